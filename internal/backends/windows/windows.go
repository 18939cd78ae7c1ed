package windows

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quantmind-br/gman/internal/backends/base"
	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/fsops"
	"github.com/quantmind-br/gman/internal/helpers"
	"github.com/quantmind-br/gman/internal/security"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// msiexec exit code for "user cancelled installation"
const exitUserCancel = 1602

const installScript = "Install.ps1"

// WindowsBackend installs AppX, MsiX, Msi and standalone executables
type WindowsBackend struct {
	*base.BaseBackend
	extractZip     func(archivePath, destDir string) error
	uninstallItems func() ([]uninstallEntry, error)
}

// New creates a Windows backend
func New(cfg *config.Config, log *zerolog.Logger) *WindowsBackend {
	return NewWithDeps(cfg, log, afero.NewOsFs(), helpers.NewOSCommandRunner())
}

// NewWithDeps creates a Windows backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *WindowsBackend {
	return &WindowsBackend{
		BaseBackend:    base.NewWithDeps(cfg, log, fs, runner),
		extractZip:     helpers.ExtractZip,
		uninstallItems: readUninstallEntries,
	}
}

// Name returns the backend name
func (w *WindowsBackend) Name() string {
	return "windows"
}

// Platforms lists the platforms this backend serves
func (w *WindowsBackend) Platforms() []core.Platform {
	return []core.Platform{core.PlatformWindows}
}

// SupportsAddAlongside is always false: Windows installers replace in place
func (w *WindowsBackend) SupportsAddAlongside(core.PackageType) bool {
	return false
}

// Install runs the native installer for the candidate's package type
func (w *WindowsBackend) Install(ctx context.Context, c core.InstallationCandidate, artifactPath string, mode core.ConflictMode) (core.Result, error) {
	if mode == core.ConflictCancel {
		return core.ResultCanceled, nil
	}

	w.Log.Info().
		Str("product", c.ProductName).
		Str("package_type", string(c.Flavor.PackageType)).
		Str("artifact", artifactPath).
		Msg("running installer")

	switch c.Flavor.PackageType {
	case core.PackageTypeMsi:
		return w.installMsi(ctx, c, artifactPath)
	case core.PackageTypeMsiX:
		if err := w.powershell(ctx, "Add-AppxPackage -Path "+security.QuotePowerShell(artifactPath)); err != nil {
			return core.ResultError, &core.InstallError{Product: c.ProductName, Err: fmt.Errorf("msix installer: %w", err)}
		}
		return core.ResultSucceeded, nil
	case core.PackageTypeAppX:
		return w.installAppX(ctx, c, artifactPath)
	case core.PackageTypeStandaloneExe:
		if _, err := w.Runner.RunCommand(ctx, artifactPath); err != nil {
			return core.ResultError, &core.InstallError{Product: c.ProductName, Err: err}
		}
		return core.ResultSucceeded, nil
	default:
		w.Log.Warn().
			Str("package_type", string(c.Flavor.PackageType)).
			Msg("package type not installable on Windows, nothing installed")
		return core.ResultSkipped, nil
	}
}

func (w *WindowsBackend) installMsi(ctx context.Context, c core.InstallationCandidate, artifactPath string) (core.Result, error) {
	_, stderr, err := w.Runner.RunCommandWithOutput(ctx, "msiexec", "/i", artifactPath, "/passive")
	if err == nil {
		w.Log.Debug().Str("product", c.ProductName).Msg("msiexec finished")
		return core.ResultSucceeded, nil
	}

	if w.Runner.GetExitCode(err) == exitUserCancel {
		w.Log.Info().Str("product", c.ProductName).Msg("installation canceled in msiexec")
		return core.ResultCanceled, nil
	}

	w.Log.Debug().Str("stderr", strings.TrimSpace(stderr)).Msg("msiexec failed")
	return core.ResultError, &core.InstallError{Product: c.ProductName, Err: fmt.Errorf("msiexec: %w", err)}
}

// installAppX extracts the bundle and runs the Install.ps1 shipped inside it
func (w *WindowsBackend) installAppX(ctx context.Context, c core.InstallationCandidate, artifactPath string) (core.Result, error) {
	tempDir, err := fsops.CreateTempDir(w.Fs, w.Paths.TempDir(), "appx-")
	if err != nil {
		return core.ResultError, &core.InstallError{Product: c.ProductName, Err: err}
	}
	defer func() {
		if err := w.Fs.RemoveAll(tempDir); err != nil {
			w.Log.Warn().Err(err).Str("dir", tempDir).Msg("failed to remove extraction directory")
		}
	}()

	if err := w.extractZip(artifactPath, tempDir); err != nil {
		return core.ResultError, &core.InstallError{Product: c.ProductName, Err: fmt.Errorf("extract appx bundle: %w", err)}
	}

	script, err := w.findInstallScript(tempDir)
	if err != nil {
		return core.ResultError, &core.InstallError{Product: c.ProductName, Err: err}
	}

	w.Log.Debug().Str("script", script).Msg("running appx install script")
	if _, err := w.Runner.RunCommandInDir(ctx, filepath.Dir(script),
		"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", script); err != nil {
		return core.ResultError, &core.InstallError{Product: c.ProductName, Err: fmt.Errorf("install script: %w", err)}
	}

	return core.ResultSucceeded, nil
}

// findInstallScript looks for Install.ps1 at the root of dir or one level below
func (w *WindowsBackend) findInstallScript(dir string) (string, error) {
	root := filepath.Join(dir, installScript)
	if fsops.Exists(w.Fs, root) {
		return root, nil
	}

	entries, err := afero.ReadDir(w.Fs, dir)
	if err != nil {
		return "", fmt.Errorf("read extracted bundle: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(dir, e.Name(), installScript)
		if fsops.Exists(w.Fs, candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%s not found in extracted bundle", installScript)
}

// Uninstall removes an installed product
func (w *WindowsBackend) Uninstall(ctx context.Context, product core.InstalledProduct) error {
	w.Log.Info().
		Str("product", product.ProductName).
		Str("package", product.PackageName).
		Msg("uninstalling")

	var err error
	switch product.PackageType {
	case core.PackageTypeAppX, core.PackageTypeMsiX:
		err = w.powershell(ctx, "Remove-AppxPackage -Package "+security.QuotePowerShell(product.PackageName))
	case core.PackageTypeMsi:
		_, err = w.Runner.RunCommand(ctx, "msiexec", "/x", product.PackageName, "/passive")
	default:
		err = fmt.Errorf("package type %q cannot be uninstalled on Windows", product.PackageType)
	}

	if err != nil {
		return &core.UninstallError{Product: product.ProductName, Err: err}
	}
	return nil
}

// ShutdownIfRunning runs the product's configured stop command, if any
func (w *WindowsBackend) ShutdownIfRunning(ctx context.Context, product core.InstalledProduct) error {
	stop := w.StopCommandFor(product.ProductName, core.PlatformWindows)
	if stop == "" {
		return nil
	}

	w.Log.Debug().Str("product", product.ProductName).Str("command", stop).Msg("stopping application")
	if _, err := w.Runner.RunCommand(ctx, "cmd", "/C", stop); err != nil {
		return fmt.Errorf("stop %s: %w", product.ProductName, err)
	}
	return nil
}

// ShouldUninstall is always true: a Windows product has a single install location
func (w *WindowsBackend) ShouldUninstall(context.Context, core.InstalledProduct, string) (bool, error) {
	return true, nil
}

// Launch starts the flavor's application
func (w *WindowsBackend) Launch(ctx context.Context, flavor core.Flavor) error {
	meta := flavor.Meta()

	switch flavor.PackageType {
	case core.PackageTypeAppX, core.PackageTypeMsiX:
		if meta.NameRegex == "" {
			return errors.New("launching AppX and MsiX packages requires name_regex")
		}
		script := "Get-StartApps | Where-Object { $_.AppId -match " + security.QuotePowerShell(meta.NameRegex) +
			" } | Select-Object -First 1 -ExpandProperty AppId"
		out, err := w.Runner.RunCommand(ctx, "powershell", "-NoProfile", "-Command", script)
		if err != nil {
			return fmt.Errorf("find start menu entry: %w", err)
		}
		appID := strings.TrimSpace(out)
		if appID == "" {
			return fmt.Errorf("no start menu entry matches %q", meta.NameRegex)
		}
		return w.Runner.StartDetached("explorer.exe", `shell:AppsFolder\`+appID)
	default:
		if meta.InstallPath == "" {
			w.Log.Debug().Str("flavor", flavor.ID).Msg("no install_path configured, not launching")
			return nil
		}
		return w.Runner.StartDetached(meta.InstallPath, meta.LaunchArgs...)
	}
}

func (w *WindowsBackend) powershell(ctx context.Context, command string) error {
	_, stderr, err := w.Runner.RunCommandWithOutput(ctx, "powershell", "-NoProfile", "-Command", command)
	if err != nil {
		if msg := strings.TrimSpace(stderr); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
