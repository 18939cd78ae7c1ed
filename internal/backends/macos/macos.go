package macos

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/quantmind-br/gman/internal/backends/base"
	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/fsops"
	"github.com/quantmind-br/gman/internal/helpers"
	"github.com/quantmind-br/gman/internal/heuristics"
	"github.com/quantmind-br/gman/internal/security"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

var mountPointRegex = regexp.MustCompile(`(/Volumes/.+)$`)

// MacBackend installs .app bundles from disk images and .pkg installers
type MacBackend struct {
	*base.BaseBackend
	processes func(ctx context.Context) ([]runningProcess, error)
}

// New creates a macOS backend
func New(cfg *config.Config, log *zerolog.Logger) *MacBackend {
	return NewWithDeps(cfg, log, afero.NewOsFs(), helpers.NewOSCommandRunner())
}

// NewWithDeps creates a macOS backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *MacBackend {
	return &MacBackend{
		BaseBackend: base.NewWithDeps(cfg, log, fs, runner),
		processes:   listProcesses,
	}
}

// Name returns the backend name
func (m *MacBackend) Name() string {
	return "macos"
}

// Platforms lists the platforms this backend serves
func (m *MacBackend) Platforms() []core.Platform {
	return []core.Platform{core.PlatformMac}
}

// SupportsAddAlongside is true for app bundles, which can live under another folder name
func (m *MacBackend) SupportsAddAlongside(pt core.PackageType) bool {
	return pt == core.PackageTypeApp
}

// mountedPackage is the first .app or .pkg found at the root of a mounted image
type mountedPackage struct {
	path  string
	isApp bool
}

// Install copies the app bundle out of the disk image, or runs the pkg installer
func (m *MacBackend) Install(ctx context.Context, c core.InstallationCandidate, artifactPath string, mode core.ConflictMode) (result core.Result, err error) {
	if mode == core.ConflictCancel {
		return core.ResultCanceled, nil
	}

	if strings.EqualFold(filepath.Ext(artifactPath), ".pkg") {
		if err := m.runPkgInstaller(ctx, artifactPath); err != nil {
			return core.ResultError, &core.InstallError{Product: c.ProductName, Err: err}
		}
		return core.ResultSucceeded, nil
	}

	volume, err := m.attach(ctx, artifactPath)
	if err != nil {
		return core.ResultError, &core.InstallError{Product: c.ProductName, Err: err}
	}
	defer func() {
		if detachErr := m.detach(ctx, volume); detachErr != nil && err == nil {
			result, err = core.ResultError, &core.InstallError{Product: c.ProductName, Err: detachErr}
		}
	}()

	pkg, found, err := m.findMountedPackage(volume, bundleName(c.ProductName, c.Flavor))
	if err != nil {
		return core.ResultError, &core.InstallError{Product: c.ProductName, Err: err}
	}
	if !found {
		m.Log.Warn().Str("volume", volume).Msg("mounted image contains neither an .app nor a .pkg")
		return core.ResultCanceled, nil
	}

	if !pkg.isApp {
		if err := m.runPkgInstaller(ctx, pkg.path); err != nil {
			return core.ResultError, &core.InstallError{Product: c.ProductName, Err: err}
		}
		return core.ResultSucceeded, nil
	}

	return m.copyApp(ctx, c, pkg.path, mode)
}

func (m *MacBackend) copyApp(ctx context.Context, c core.InstallationCandidate, src string, mode core.ConflictMode) (core.Result, error) {
	dest := filepath.Join(m.Paths.ApplicationsDir(), filepath.Base(src))

	switch mode {
	case core.ConflictAdd:
		free, err := helpers.NextFreePath(m.Fs, dest, helpers.SuffixUnderscore)
		if err != nil {
			return core.ResultError, &core.InstallError{Product: c.ProductName, Err: err}
		}
		dest = free
	default:
		// cp -R into an existing bundle would nest the copy inside it
		if fsops.Exists(m.Fs, dest) {
			if err := m.Fs.RemoveAll(dest); err != nil {
				return core.ResultError, &core.InstallError{Product: c.ProductName, Err: fmt.Errorf("remove previous bundle: %w", err)}
			}
		}
	}

	m.Log.Info().Str("from", src).Str("to", dest).Msg("copying application bundle")
	if _, err := m.Runner.RunCommand(ctx, "cp", "-R", src, dest); err != nil {
		return core.ResultError, &core.InstallError{Product: c.ProductName, Err: fmt.Errorf("copy bundle: %w", err)}
	}
	return core.ResultSucceeded, nil
}

func (m *MacBackend) runPkgInstaller(ctx context.Context, pkgPath string) error {
	m.Log.Info().Str("pkg", pkgPath).Msg("running pkg installer")
	if _, err := m.Runner.RunCommand(ctx, "installer", "-pkg", pkgPath, "-target", "/"); err != nil {
		return fmt.Errorf("installer: %w", err)
	}
	return nil
}

// attach mounts a disk image and returns its mount point
func (m *MacBackend) attach(ctx context.Context, imagePath string) (string, error) {
	out, err := m.Runner.RunCommand(ctx, "hdiutil", "attach", "-nobrowse", imagePath)
	if err != nil {
		return "", fmt.Errorf("mount %s: %w", imagePath, err)
	}

	for _, line := range strings.Split(out, "\n") {
		if match := mountPointRegex.FindStringSubmatch(strings.TrimSpace(line)); match != nil {
			m.Log.Debug().Str("volume", match[1]).Msg("disk image mounted")
			return match[1], nil
		}
	}
	return "", fmt.Errorf("mount %s: no mount point in hdiutil output", imagePath)
}

func (m *MacBackend) detach(ctx context.Context, volume string) error {
	if _, err := m.Runner.RunCommand(ctx, "hdiutil", "detach", volume); err != nil {
		m.Log.Error().Err(err).Str("volume", volume).Msg("failed to unmount disk image")
		return fmt.Errorf("unmount %s: %w", volume, err)
	}
	return nil
}

// findMountedPackage prefers an .app bundle over a .pkg installer. When the
// image holds several bundles the one that looks most like name wins.
func (m *MacBackend) findMountedPackage(volume, name string) (mountedPackage, bool, error) {
	entries, err := afero.ReadDir(m.Fs, volume)
	if err != nil {
		return mountedPackage{}, false, fmt.Errorf("read mounted volume: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var apps []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".app") {
			apps = append(apps, filepath.Join(volume, e.Name()))
		}
	}
	if len(apps) > 0 {
		best := heuristics.NewScorer(m.Log).ChooseBest(apps, name, volume)
		return mountedPackage{path: best, isApp: true}, true, nil
	}

	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".pkg") {
			return mountedPackage{path: filepath.Join(volume, e.Name())}, true, nil
		}
	}
	return mountedPackage{}, false, nil
}

// bundleName is the name the product's bundle is expected to carry
func bundleName(product string, flavor core.Flavor) string {
	if name := flavor.Meta().BundleName; name != "" {
		return name
	}
	return product
}

// installedBundleName is bundleName for the Mac flavor product was installed from.
// The flavor is found by bundle id, falling back to the first Mac flavor.
func (m *MacBackend) installedBundleName(product core.InstalledProduct) string {
	flavors := m.FlavorsFor(product.ProductName, core.PlatformMac)
	for _, f := range flavors {
		if id := f.Meta().BundleID; id != "" && id == product.PackageName {
			return bundleName(product.ProductName, f)
		}
	}
	if len(flavors) > 0 {
		return bundleName(product.ProductName, flavors[0])
	}
	return product.ProductName
}

// ShouldUninstall reports whether the image would install into the product's folder.
// Non-bundle products are always replaced.
func (m *MacBackend) ShouldUninstall(ctx context.Context, product core.InstalledProduct, artifactPath string) (bool, error) {
	if product.PackageType != core.PackageTypeApp || strings.EqualFold(filepath.Ext(artifactPath), ".pkg") {
		return true, nil
	}

	volume, err := m.attach(ctx, artifactPath)
	if err != nil {
		return false, err
	}
	pkg, found, findErr := m.findMountedPackage(volume, m.installedBundleName(product))
	if err := m.detach(ctx, volume); err != nil {
		return false, err
	}
	if findErr != nil {
		return false, findErr
	}
	if !found || !pkg.isApp {
		return false, nil
	}

	dest := filepath.Join(m.Paths.ApplicationsDir(), filepath.Base(pkg.path))
	same := filepath.Clean(dest) == filepath.Clean(product.Path)
	m.Log.Debug().
		Str("installed", product.Path).
		Str("incoming", dest).
		Bool("same_folder", same).
		Msg("compared bundle destinations")
	return same, nil
}

// Uninstall removes the product's bundle from the applications folder
func (m *MacBackend) Uninstall(ctx context.Context, product core.InstalledProduct) error {
	path := product.Path
	if path == "" {
		found, ok, err := m.findBundleByID(product.PackageName)
		if err != nil {
			return &core.UninstallError{Product: product.ProductName, Err: err}
		}
		if !ok {
			m.Log.Debug().Str("bundle_id", product.PackageName).Msg("no bundle found, may already be uninstalled")
			return nil
		}
		path = found
	}

	appsDir := m.Paths.ApplicationsDir()
	within, err := security.IsPathWithinDirectory(path, appsDir)
	if err != nil || !within || filepath.Clean(path) == filepath.Clean(appsDir) {
		return &core.UninstallError{Product: product.ProductName, Err: fmt.Errorf("refusing to remove %s outside %s", path, appsDir)}
	}

	m.Log.Info().Str("path", path).Msg("removing application bundle")
	if err := m.Fs.RemoveAll(path); err != nil {
		return &core.UninstallError{Product: product.ProductName, Err: err}
	}
	return nil
}

func (m *MacBackend) findBundleByID(bundleID string) (string, bool, error) {
	if bundleID == "" {
		return "", false, nil
	}
	bundles, err := listBundles(m.Fs, m.Paths.ApplicationsDir())
	if err != nil {
		return "", false, fmt.Errorf("read applications folder: %w", err)
	}
	for _, b := range bundles {
		info, err := readBundleInfo(m.Fs, b)
		if err != nil {
			continue
		}
		if info.CFBundleIdentifier == bundleID {
			return b, true, nil
		}
	}
	return "", false, nil
}

// ShutdownIfRunning runs the configured stop command, or terminates every
// process whose executable lives inside the product's bundle
func (m *MacBackend) ShutdownIfRunning(ctx context.Context, product core.InstalledProduct) error {
	if stop := m.StopCommandFor(product.ProductName, core.PlatformMac); stop != "" {
		m.Log.Debug().Str("product", product.ProductName).Str("command", stop).Msg("stopping application")
		if _, err := m.Runner.RunCommand(ctx, "sh", "-c", stop); err != nil {
			return fmt.Errorf("stop %s: %w", product.ProductName, err)
		}
		return nil
	}

	if product.Path == "" {
		return nil
	}

	procs, err := m.processes(ctx)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	var errs []error
	for _, p := range procs {
		exe, err := p.Exe(ctx)
		if err != nil || exe == "" {
			continue
		}
		within, err := security.IsPathWithinDirectory(exe, product.Path)
		if err != nil || !within {
			continue
		}
		m.Log.Info().Int32("pid", p.PID()).Str("exe", exe).Msg("terminating running application")
		if err := p.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("terminate pid %d: %w", p.PID(), err))
		}
	}
	return errors.Join(errs...)
}

// Launch opens the flavor's bundle by name
func (m *MacBackend) Launch(ctx context.Context, flavor core.Flavor) error {
	meta := flavor.Meta()
	if meta.BundleName == "" {
		m.Log.Debug().Str("flavor", flavor.ID).Msg("no bundle_name configured, not launching")
		return nil
	}

	args := []string{"-a", meta.BundleName}
	if len(meta.LaunchArgs) > 0 {
		args = append(args, "--args")
		args = append(args, meta.LaunchArgs...)
	}
	if _, err := m.Runner.RunCommand(ctx, "open", args...); err != nil {
		return fmt.Errorf("launch %s: %w", meta.BundleName, err)
	}
	return nil
}

// ListInstalled finds bundles in the applications folder whose identifier
// matches a Mac flavor's bundle_id
func (m *MacBackend) ListInstalled(_ context.Context, catalog core.Catalog) ([]core.InstalledProduct, error) {
	known := make(map[string]string)
	for _, p := range catalog {
		for _, f := range p.FlavorsFor(core.PlatformMac) {
			if id := f.Meta().BundleID; id != "" {
				if _, dup := known[id]; !dup {
					known[id] = p.Name
				}
			}
		}
	}

	bundles, err := listBundles(m.Fs, m.Paths.ApplicationsDir())
	if err != nil {
		return nil, fmt.Errorf("read applications folder: %w", err)
	}

	var installed []core.InstalledProduct
	for _, b := range bundles {
		info, err := readBundleInfo(m.Fs, b)
		if err != nil {
			m.Log.Debug().Err(err).Str("bundle", b).Msg("skipping bundle without readable Info.plist")
			continue
		}
		name, ok := known[info.CFBundleIdentifier]
		if !ok {
			continue
		}
		installed = append(installed, core.InstalledProduct{
			ProductName: name,
			Version:     core.ParseVersion(info.Version()),
			PackageName: info.CFBundleIdentifier,
			PackageType: core.PackageTypeApp,
			Path:        b,
		})
	}
	return installed, nil
}
