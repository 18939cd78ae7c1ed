package fsops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CreateTempDir creates a temporary directory below base with the given prefix
func CreateTempDir(fs afero.Fs, base, prefix string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := EnsureDir(fs, base, 0755); err != nil {
		return "", err
	}
	dir, err := afero.TempDir(fs, base, prefix)
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return dir, nil
}

// CheckWritable checks if a path is writable
func CheckWritable(fs afero.Fs, path string) error {
	testFile := filepath.Join(path, ".write_test")
	f, err := fs.Create(testFile)
	if err != nil {
		return fmt.Errorf("path not writable: %w", err)
	}
	f.Close()
	return fs.Remove(testFile)
}

// EnsureDir ensures a directory exists with the given permissions
func EnsureDir(fs afero.Fs, path string, perm os.FileMode) error {
	if err := fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	return nil
}

// Exists checks if a path exists
func Exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// IsDir checks if a path is a directory
func IsDir(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// CopyFile copies a file from src to dst, replacing dst
func CopyFile(fs afero.Fs, src, dst string) (err error) {
	srcFile, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer func() {
		if cerr := dstFile.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close destination: %w", cerr)
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}

	return nil
}

// MoveFile renames src to dst, creating dst's directory.
// When a rename is impossible (for example across devices) the file is copied
// and the source removed.
func MoveFile(fs afero.Fs, src, dst string) error {
	if err := EnsureDir(fs, filepath.Dir(dst), 0755); err != nil {
		return err
	}

	if err := fs.Rename(src, dst); err == nil {
		return nil
	} else if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("move %s: %w", src, err)
	}

	if err := CopyFile(fs, src, dst); err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	if err := fs.Remove(src); err != nil {
		return fmt.Errorf("remove moved file: %w", err)
	}
	return nil
}

// RemoveContents deletes every entry inside dir but keeps dir itself.
// A missing dir is not an error. It returns the number of entries removed.
func RemoveContents(fs afero.Fs, dir string) (int, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if err := fs.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
