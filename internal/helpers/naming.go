package helpers

import (
	"fmt"

	"github.com/spf13/afero"
)

// MaxPathAttempts bounds NextFreePath
const MaxPathAttempts = 200

// NextFreePath returns path if nothing exists there, otherwise the first free
// variant produced by format(path, n) for n = 1..MaxPathAttempts.
//
//	NextFreePath(fs, "/Applications/X.app", SuffixUnderscore) // X.app, X_1.app, X_2.app...
func NextFreePath(fs afero.Fs, path string, format func(path string, n int) string) (string, error) {
	if _, err := fs.Stat(path); err != nil {
		return path, nil
	}

	for n := 1; n <= MaxPathAttempts; n++ {
		candidate := format(path, n)
		if _, err := fs.Stat(candidate); err != nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no free name for %s after %d attempts", path, MaxPathAttempts)
}

// SuffixUnderscore turns "X" into "X_n", keeping a trailing extension such as ".app"
func SuffixUnderscore(path string, n int) string {
	ext := extension(path)
	return fmt.Sprintf("%s_%d%s", path[:len(path)-len(ext)], n, ext)
}

// SuffixDot turns "gman.toml" into "gman.toml.n"
func SuffixDot(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

// extension returns the final ".ext" of the last path element, if any
func extension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			if i == 0 || path[i-1] == '/' || path[i-1] == '\\' {
				return ""
			}
			return path[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}
