package security

import (
	"fmt"
	"strings"
)

// cacheFieldForbidden may not appear in any field of a cached artifact name
var cacheFieldForbidden = []string{"@", "/", "\\", "\x00", "\n", "\r"}

// ValidateCacheField checks one field of a cached artifact file name.
// Fields containing the separator or a path separator would break decoding
// or let a download escape the cache directory.
func ValidateCacheField(field, value string) error {
	if value == ".." || value == "." {
		return fmt.Errorf("%s %q is not a valid name", field, value)
	}
	for _, bad := range cacheFieldForbidden {
		if strings.Contains(value, bad) {
			return fmt.Errorf("%s %q contains forbidden character %q", field, value, bad)
		}
	}
	return nil
}

// ValidateProductName validates a product name from the command line or configuration
func ValidateProductName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("product name cannot be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("product name too long (max 255 characters)")
	}
	return ValidateCacheField("product name", name)
}

// QuotePowerShell wraps s in single quotes for a PowerShell command line
func QuotePowerShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
