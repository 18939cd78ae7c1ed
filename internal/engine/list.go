package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/quantmind-br/gman/internal/core"
)

// PlaceholderIdentifier marks list rows that come from the inventory only
const PlaceholderIdentifier = "--"

// ListCandidates enumerates the builds offered by every repository and flags
// the ones that are installed. With includeInstalled, installed products that
// no repository offers are appended as placeholder rows.
func (e *Engine) ListCandidates(ctx context.Context, includeInstalled bool) ([]core.InstallationCandidate, error) {
	candidates := e.resolver.Enumerate(ctx, e.platform, e.catalog, e.repos)

	installed, err := e.installer.ListInstalled(ctx, e.catalog)
	if err != nil {
		if includeInstalled {
			return nil, fmt.Errorf("list installed products: %w", err)
		}
		e.log.Warn().Err(err).Msg("cannot read installed products")
		return candidates, nil
	}

	claimed := make([]bool, len(installed))
	for i := range candidates {
		for j, p := range installed {
			if sameBuild(candidates[i], p) {
				candidates[i].Installed = true
				claimed[j] = true
			}
		}
	}

	if !includeInstalled {
		return candidates, nil
	}
	for j, p := range installed {
		if claimed[j] {
			continue
		}
		candidates = append(candidates, e.placeholder(p))
	}
	return candidates, nil
}

func sameBuild(c core.InstallationCandidate, p core.InstalledProduct) bool {
	return strings.EqualFold(c.ProductName, p.ProductName) && c.Version.Equal(p.Version)
}

// placeholder builds a list row for p, borrowing the flavor of its package type
func (e *Engine) placeholder(p core.InstalledProduct) core.InstallationCandidate {
	row := core.InstallationCandidate{
		ProductName: p.ProductName,
		Version:     p.Version,
		Identifier:  PlaceholderIdentifier,
		Installed:   true,
		Flavor:      core.Flavor{Platform: e.platform, PackageType: p.PackageType},
	}

	product, ok := e.catalog.Find(p.ProductName)
	if !ok {
		return row
	}
	for _, flavor := range product.FlavorsFor(e.platform) {
		if flavor.PackageType == p.PackageType {
			row.Flavor = flavor
			return row
		}
	}
	if flavor, ok := product.DefaultFlavor(e.platform); ok {
		row.Flavor = flavor
	}
	return row
}
