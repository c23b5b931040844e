package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFsSafeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already safe", input: "Vacation 2023", want: "Vacation 2023"},
		{name: "slashes", input: "a/b\\c", want: "a_b_c"},
		{name: "collapses runs", input: "a//??b", want: "a_b"},
		{name: "trims edges", input: "/etc/passwd", want: "etc_passwd"},
		{name: "keeps parens and dashes", input: "photo (1)-final", want: "photo (1)-final"},
		{name: "unicode replaced", input: "fotos für dich", want: "fotos f_r dich"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fsSafeName(tt.input))
		})
	}
}

func TestFsSafeName_Truncates(t *testing.T) {
	got := fsSafeName(strings.Repeat("a", 500))
	assert.Len(t, got, 255)
}

func TestNumberedName(t *testing.T) {
	assert.Equal(t, "photo (1).jpg", numberedName("photo.jpg", 1))
	assert.Equal(t, "photo (2).jpg", numberedName("photo.jpg", 2))
	assert.Equal(t, "Trip (1)", numberedName("Trip", 1))
	assert.Equal(t, "archive.tar (3).gz", numberedName("archive.tar.gz", 3))
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "sub", "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))

	require.NoError(t, moveFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestPathByCreateDate(t *testing.T) {
	ts, err := time.Parse(time.RFC3339, "2023-06-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("items", "2023", "06"), pathByCreateDate(ts))
}
