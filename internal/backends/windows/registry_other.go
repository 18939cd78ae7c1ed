//go:build !windows

package windows

// readUninstallEntries has no registry to read outside Windows
func readUninstallEntries() ([]uninstallEntry, error) {
	return nil, nil
}
