package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLock_AcquireRelease(t *testing.T) {
	lock := newRunLock(filepath.Join(t.TempDir(), "run.lock"))

	require.NoError(t, lock.Acquire())

	data, err := os.ReadFile(lock.path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	require.NoError(t, lock.Release())
	_, err = os.Stat(lock.path)
	assert.True(t, os.IsNotExist(err))
}

func TestRunLock_AcquireTwice(t *testing.T) {
	lock := newRunLock(filepath.Join(t.TempDir(), "run.lock"))

	require.NoError(t, lock.Acquire())
	err := lock.Acquire()
	assert.ErrorIs(t, err, ErrLocked)
}

func TestRunLock_ReleaseUnheld(t *testing.T) {
	lock := newRunLock(filepath.Join(t.TempDir(), "run.lock"))
	assert.NoError(t, lock.Release())
}

func TestRunLock_ReleaseForeignPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0o644))

	lock := newRunLock(path)
	assert.Error(t, lock.Release())

	// The foreign lock file must survive the failed release.
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestActionStats_String(t *testing.T) {
	assert.Equal(t, "none", ActionStats{}.String())
	assert.Equal(t, "indexed: 2, failed: 1", ActionStats{Indexed: 2, Failed: 1}.String())
}

func TestActionStats_AddTotal(t *testing.T) {
	var s ActionStats
	assert.True(t, s.Empty())

	s.Add(ActionStats{Indexed: 1, Synced: 2})
	s.Add(ActionStats{Synced: 1, Deleted: 3})

	assert.False(t, s.Empty())
	assert.Equal(t, 7, s.Total())
	assert.Equal(t, 1, s.Indexed)
	assert.Equal(t, 3, s.Synced)
	assert.Equal(t, 3, s.Deleted)
}
