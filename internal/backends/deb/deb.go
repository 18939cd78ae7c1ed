package deb

import (
	"context"
	"fmt"
	"strings"

	"github.com/quantmind-br/gman/internal/backends/base"
	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/helpers"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// dpkg-query output format: one "name<TAB>version" line per package
const queryFormat = "${Package}\t${Version}\n"

// DebBackend installs Debian packages with dpkg on Linux and Raspberry Pi
type DebBackend struct {
	*base.BaseBackend
}

// New creates a DEB backend
func New(cfg *config.Config, log *zerolog.Logger) *DebBackend {
	return NewWithDeps(cfg, log, afero.NewOsFs(), helpers.NewOSCommandRunner())
}

// NewWithDeps creates a DEB backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *DebBackend {
	return &DebBackend{BaseBackend: base.NewWithDeps(cfg, log, fs, runner)}
}

// Name returns the backend name
func (d *DebBackend) Name() string {
	return "deb"
}

// Platforms lists the platforms this backend serves
func (d *DebBackend) Platforms() []core.Platform {
	return []core.Platform{core.PlatformLinux, core.PlatformRaspberryPi}
}

// SupportsAddAlongside is false: dpkg keeps one version per package
func (d *DebBackend) SupportsAddAlongside(core.PackageType) bool {
	return false
}

// Install installs the package with dpkg
func (d *DebBackend) Install(ctx context.Context, c core.InstallationCandidate, artifactPath string, mode core.ConflictMode) (core.Result, error) {
	if mode == core.ConflictCancel {
		return core.ResultCanceled, nil
	}
	if c.Flavor.PackageType != core.PackageTypeDeb {
		d.Log.Warn().
			Str("package_type", string(c.Flavor.PackageType)).
			Msg("package type not installable with dpkg, nothing installed")
		return core.ResultSkipped, nil
	}

	if err := d.Runner.RequireCommand("dpkg"); err != nil {
		return core.ResultError, &core.InstallError{Product: c.ProductName, Err: err}
	}

	d.Log.Info().Str("product", c.ProductName).Str("artifact", artifactPath).Msg("installing with dpkg")
	if _, err := d.Runner.RunCommand(ctx, "sudo", "dpkg", "-i", artifactPath); err != nil {
		return core.ResultError, &core.InstallError{Product: c.ProductName, Err: fmt.Errorf("dpkg installation failed: %w", err)}
	}

	d.Log.Info().Msg("package installed successfully via dpkg")
	return core.ResultSucceeded, nil
}

// Uninstall removes the package with dpkg
func (d *DebBackend) Uninstall(ctx context.Context, product core.InstalledProduct) error {
	if product.PackageName == "" {
		return &core.UninstallError{Product: product.ProductName, Err: fmt.Errorf("no package name recorded")}
	}

	d.Log.Info().Str("package", product.PackageName).Msg("removing with dpkg")
	if _, err := d.Runner.RunCommand(ctx, "sudo", "dpkg", "-r", product.PackageName); err != nil {
		return &core.UninstallError{Product: product.ProductName, Err: fmt.Errorf("dpkg removal failed: %w", err)}
	}
	return nil
}

// ShutdownIfRunning runs the product's configured stop command, if any
func (d *DebBackend) ShutdownIfRunning(ctx context.Context, product core.InstalledProduct) error {
	stop := ""
	for _, p := range d.Platforms() {
		if stop = d.StopCommandFor(product.ProductName, p); stop != "" {
			break
		}
	}
	if stop == "" {
		return nil
	}

	d.Log.Debug().Str("product", product.ProductName).Str("command", stop).Msg("stopping application")
	if _, err := d.Runner.RunCommand(ctx, "sh", "-c", stop); err != nil {
		return fmt.Errorf("stop %s: %w", product.ProductName, err)
	}
	return nil
}

// ShouldUninstall is always true: dpkg replaces the package in place
func (d *DebBackend) ShouldUninstall(context.Context, core.InstalledProduct, string) (bool, error) {
	return true, nil
}

// Launch starts the flavor's install_path, if configured
func (d *DebBackend) Launch(_ context.Context, flavor core.Flavor) error {
	meta := flavor.Meta()
	if meta.InstallPath == "" {
		d.Log.Debug().Str("flavor", flavor.ID).Msg("no install_path configured, not launching")
		return nil
	}
	return d.Runner.StartDetached(meta.InstallPath, meta.LaunchArgs...)
}

// ListInstalled matches dpkg's package database against Deb flavors' name_regex
func (d *DebBackend) ListInstalled(ctx context.Context, catalog core.Catalog) ([]core.InstalledProduct, error) {
	if err := d.Runner.RequireCommand("dpkg-query"); err != nil {
		return nil, err
	}

	out, err := d.Runner.RunCommand(ctx, "dpkg-query", "-W", "-f="+queryFormat)
	if err != nil {
		return nil, fmt.Errorf("dpkg-query failed: %w", err)
	}

	var installed []core.InstalledProduct
	for _, line := range strings.Split(out, "\n") {
		name, version, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok || name == "" {
			continue
		}

		product, matched, err := d.matchPackage(catalog, name)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}

		installed = append(installed, core.InstalledProduct{
			ProductName: product.Name,
			Version:     core.ParseVersion(stripEpoch(version)),
			PackageName: name,
			PackageType: core.PackageTypeDeb,
		})
	}
	return installed, nil
}

func (d *DebBackend) matchPackage(catalog core.Catalog, pkgName string) (core.Product, bool, error) {
	for _, product := range catalog {
		for _, platform := range d.Platforms() {
			for _, flavor := range product.FlavorsFor(platform) {
				if flavor.PackageType != core.PackageTypeDeb {
					continue
				}
				matched, err := base.MatchName(flavor.Meta().NameRegex, pkgName)
				if err != nil {
					return core.Product{}, false, fmt.Errorf("product %s: %w", product.Name, err)
				}
				if matched {
					return product, true, nil
				}
			}
		}
	}
	return core.Product{}, false, nil
}

// stripEpoch turns "1:5.2.3-7023" into "5.2.3-7023"
func stripEpoch(version string) string {
	if _, rest, ok := strings.Cut(version, ":"); ok {
		return rest
	}
	return version
}
