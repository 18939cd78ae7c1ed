package windows

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/quantmind-br/gman/internal/backends/base"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/security"
)

// appxPackage is one object of Get-AppxPackage | ConvertTo-Json
type appxPackage struct {
	Name            string `json:"Name"`
	Version         string `json:"Version"`
	PackageFullName string `json:"PackageFullName"`
}

// uninstallEntry is one subkey of the machine Uninstall registry key
type uninstallEntry struct {
	KeyName        string
	DisplayName    string
	DisplayVersion string
	Publisher      string
}

// ListInstalled finds catalog products installed as AppX/MsiX packages or MSI products.
// Only packages signed by a configured publisher identity are considered.
func (w *WindowsBackend) ListInstalled(ctx context.Context, catalog core.Catalog) ([]core.InstalledProduct, error) {
	publishers := w.Cfg.PublisherIDs(core.PlatformWindows)
	if len(publishers) == 0 {
		w.Log.Warn().Msg("no publisher identities configured for Windows, installed products cannot be listed")
		return nil, nil
	}

	appx, err := w.listAppX(ctx, catalog, publishers)
	if err != nil {
		return nil, err
	}

	msi, err := w.listMsi(catalog, publishers)
	if err != nil {
		return nil, err
	}

	return append(appx, msi...), nil
}

func (w *WindowsBackend) listAppX(ctx context.Context, catalog core.Catalog, publishers []string) ([]core.InstalledProduct, error) {
	conditions := make([]string, 0, len(publishers))
	for _, p := range publishers {
		conditions = append(conditions, "$_.Publisher -eq "+security.QuotePowerShell(p))
	}
	command := fmt.Sprintf(
		"Get-AppxPackage | Where-Object { %s } | Select-Object Name, Version, PackageFullName | ConvertTo-Json -Compress",
		strings.Join(conditions, " -or "))

	out, err := w.Runner.RunCommand(ctx, "powershell", "-NoProfile", "-Command", command)
	if err != nil {
		return nil, fmt.Errorf("list appx packages: %w", err)
	}

	packages, err := parseAppXPackages(out)
	if err != nil {
		return nil, err
	}

	var installed []core.InstalledProduct
	for _, pkg := range packages {
		product, flavor, ok, err := matchFlavor(catalog, pkg.Name, func(f core.Flavor) (string, bool) {
			isAppX := f.PackageType == core.PackageTypeAppX || f.PackageType == core.PackageTypeMsiX
			return f.Meta().NameRegex, isAppX
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		installed = append(installed, core.InstalledProduct{
			ProductName: product.Name,
			Version:     core.ParseVersion(pkg.Version),
			PackageName: pkg.PackageFullName,
			PackageType: flavor.PackageType,
		})
	}
	return installed, nil
}

// parseAppXPackages accepts both a single JSON object and an array
func parseAppXPackages(out string) ([]appxPackage, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	if !strings.HasPrefix(out, "[") {
		out = "[" + out + "]"
	}

	var packages []appxPackage
	if err := json.Unmarshal([]byte(out), &packages); err != nil {
		return nil, fmt.Errorf("parse appx package list: %w", err)
	}
	return packages, nil
}

func (w *WindowsBackend) listMsi(catalog core.Catalog, publishers []string) ([]core.InstalledProduct, error) {
	entries, err := w.uninstallItems()
	if err != nil {
		return nil, fmt.Errorf("read uninstall registry: %w", err)
	}

	var installed []core.InstalledProduct
	for _, e := range entries {
		if e.DisplayName == "" || !slices.Contains(publishers, e.Publisher) {
			continue
		}
		product, _, ok, err := matchFlavor(catalog, e.DisplayName, func(f core.Flavor) (string, bool) {
			return f.Meta().DisplayNameRegex, f.PackageType == core.PackageTypeMsi
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		installed = append(installed, core.InstalledProduct{
			ProductName: product.Name,
			Version:     core.ParseVersion(e.DisplayVersion),
			PackageName: e.KeyName,
			PackageType: core.PackageTypeMsi,
		})
	}
	return installed, nil
}

// matchFlavor finds the first Windows flavor whose pattern matches name.
// pattern returns the regex to use and whether the flavor takes part.
func matchFlavor(catalog core.Catalog, name string, pattern func(core.Flavor) (string, bool)) (core.Product, core.Flavor, bool, error) {
	for _, product := range catalog {
		for _, flavor := range product.FlavorsFor(core.PlatformWindows) {
			re, ok := pattern(flavor)
			if !ok {
				continue
			}
			matched, err := base.MatchName(re, name)
			if err != nil {
				return core.Product{}, core.Flavor{}, false, fmt.Errorf("product %s: %w", product.Name, err)
			}
			if matched {
				return product, flavor, true, nil
			}
		}
	}
	return core.Product{}, core.Flavor{}, false, nil
}
