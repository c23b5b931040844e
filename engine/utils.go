package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	fsUnsafeChars  = regexp.MustCompile(`[^a-zA-Z0-9\-_() ]`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

const maxNameLen = 255

// fsSafeName transforms a remote display name into a name safe to use as a
// unix file or directory name.
func fsSafeName(name string) string {
	name = fsUnsafeChars.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

// numberedName appends a disambiguating suffix before the extension, turning
// "photo.jpg" into "photo (1).jpg".
func numberedName(name string, n int) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

// moveFile moves src to dst, falling back to copy-and-remove when a plain
// rename fails because src and dst live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()    //nolint:errcheck
		os.Remove(dst) //nolint:errcheck
		return fmt.Errorf("failed to move file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	return os.Remove(src)
}
