// Package fsutil provides small filesystem helpers shared by the stores.
package fsutil

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteAtomic creates path by calling write on a temporary file in the same
// directory and renaming it into place. Parent directories are created.
// Readers see either the previous content or the complete new content.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteFileAtomic is WriteAtomic for a byte slice.
func WriteFileAtomic(path string, data []byte) error {
	return WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// FileExists checks if a file exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// SanitizeFilename turns an arbitrary string into a single safe path element.
// Separators and reserved characters become underscores, as do spaces;
// leading and trailing dots are dropped. An empty result becomes "_".
func SanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	result := strings.TrimSpace(name)
	for _, c := range invalid {
		result = strings.ReplaceAll(result, c, "_")
	}
	result = strings.Trim(result, ".")
	if result == "" {
		return "_"
	}
	return result
}
