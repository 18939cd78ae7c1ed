//go:build windows

package windows

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const uninstallKeyPath = `Software\Microsoft\Windows\CurrentVersion\Uninstall`

// readUninstallEntries reads HKLM\...\Uninstall. Subkeys without a DisplayName are skipped.
func readUninstallEntries() ([]uninstallEntry, error) {
	root, err := registry.OpenKey(registry.LOCAL_MACHINE, uninstallKeyPath, registry.ENUMERATE_SUB_KEYS|registry.QUERY_VALUE)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uninstallKeyPath, err)
	}
	defer root.Close()

	names, err := root.ReadSubKeyNames(0)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", uninstallKeyPath, err)
	}

	entries := make([]uninstallEntry, 0, len(names))
	for _, name := range names {
		key, err := registry.OpenKey(root, name, registry.QUERY_VALUE)
		if err != nil {
			continue
		}

		displayName, _, err := key.GetStringValue("DisplayName")
		if err != nil {
			key.Close()
			continue
		}
		version, _, _ := key.GetStringValue("DisplayVersion")
		publisher, _, _ := key.GetStringValue("Publisher")
		key.Close()

		entries = append(entries, uninstallEntry{
			KeyName:        name,
			DisplayName:    displayName,
			DisplayVersion: version,
			Publisher:      publisher,
		})
	}

	return entries, nil
}
