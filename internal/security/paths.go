package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateExtractPath prevents directory traversal attacks (Zip Slip vulnerability)
// Ensures that the extracted path does not escape the target directory
func ValidateExtractPath(targetDir, extractedPath string) error {
	cleanPath := filepath.Clean(extractedPath)

	if strings.HasPrefix(cleanPath, "..") {
		return fmt.Errorf("path contains ..: %s", extractedPath)
	}

	if filepath.IsAbs(cleanPath) || strings.HasPrefix(extractedPath, "/") || strings.HasPrefix(extractedPath, "\\") {
		return fmt.Errorf("absolute path not allowed: %s", extractedPath)
	}

	within, err := IsPathWithinDirectory(filepath.Join(targetDir, cleanPath), targetDir)
	if err != nil {
		return err
	}
	if !within {
		return fmt.Errorf("path escapes destination directory: %s", extractedPath)
	}

	return nil
}

// IsPathWithinDirectory checks if targetPath is basePath or below it
func IsPathWithinDirectory(targetPath, basePath string) (bool, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false, fmt.Errorf("failed to resolve base path: %w", err)
	}

	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false, fmt.Errorf("failed to resolve target path: %w", err)
	}

	if absTarget == absBase {
		return true, nil
	}
	return strings.HasPrefix(absTarget, absBase+string(filepath.Separator)), nil
}
