package macos

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/helpers"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const attachOutput = "/dev/disk4          \tGUID_partition_scheme          \t\n" +
	"/dev/disk4s1        \tApple_HFS                      \t/Volumes/HubKit 5\n"

// fakeShell answers hdiutil attach with a mount point and records every command
type fakeShell struct {
	calls   []string
	failOn  string
	attach  string
	outputs map[string]string
}

func (f *fakeShell) runner() *helpers.MockCommandRunner {
	run := func(name string, args ...string) (string, error) {
		line := strings.TrimSpace(name + " " + strings.Join(args, " "))
		f.calls = append(f.calls, line)
		if f.failOn != "" && strings.HasPrefix(line, f.failOn) {
			return "", errors.New("exit status 1")
		}
		if name == "hdiutil" && len(args) > 0 && args[0] == "attach" {
			return f.attach, nil
		}
		return f.outputs[name], nil
	}
	return &helpers.MockCommandRunner{
		RunCommandFunc: func(_ context.Context, name string, args ...string) (string, error) {
			return run(name, args...)
		},
	}
}

type fakeProcess struct {
	pid        int32
	exe        string
	exeErr     error
	terminated bool
}

func (p *fakeProcess) PID() int32                          { return p.pid }
func (p *fakeProcess) Exe(context.Context) (string, error) { return p.exe, p.exeErr }
func (p *fakeProcess) Terminate(context.Context) error {
	p.terminated = true
	return nil
}

func newTestBackend(t *testing.T, cfg *config.Config, shell *fakeShell) (*MacBackend, afero.Fs) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.Paths.ApplicationsDir = "/Applications"
	if shell.attach == "" {
		shell.attach = attachOutput
	}
	logger := zerolog.New(io.Discard)
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/Applications", 0755))
	return NewWithDeps(cfg, &logger, fs, shell.runner()), fs
}

func appCandidate() core.InstallationCandidate {
	return core.InstallationCandidate{
		ProductName: "HubKit",
		Version:     "5.2.3",
		Identifier:  "develop",
		Flavor:      core.Flavor{Platform: core.PlatformMac, ID: "dmg", PackageType: core.PackageTypeApp},
	}
}

func writeInfoPlist(t *testing.T, fs afero.Fs, appPath, bundleID, short, build string) {
	t.Helper()
	content := `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>CFBundleIdentifier</key>
	<string>` + bundleID + `</string>
	<key>CFBundleExecutable</key>
	<string>HubKit</string>
	<key>CFBundleName</key>
	<string>HubKit</string>
	<key>CFBundleShortVersionString</key>
	<string>` + short + `</string>
	<key>CFBundleVersion</key>
	<string>` + build + `</string>
</dict>
</plist>
`
	require.NoError(t, afero.WriteFile(fs, infoPlistPath(appPath), []byte(content), 0644))
}

func TestInstall_AppFromImage(t *testing.T) {
	shell := &fakeShell{}
	m, fs := newTestBackend(t, nil, shell)
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/HubKit.app", 0755))
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/Extras.pkg", 0755))

	result, err := m.Install(context.Background(), appCandidate(), "/cache/HubKit.dmg", core.ConflictOverwrite)

	require.NoError(t, err)
	assert.Equal(t, core.ResultSucceeded, result)
	assert.Equal(t, []string{
		"hdiutil attach -nobrowse /cache/HubKit.dmg",
		"cp -R /Volumes/HubKit 5/HubKit.app /Applications/HubKit.app",
		"hdiutil detach /Volumes/HubKit 5",
	}, shell.calls)
}

func TestInstall_OverwriteRemovesPreviousBundle(t *testing.T) {
	shell := &fakeShell{}
	m, fs := newTestBackend(t, nil, shell)
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/HubKit.app", 0755))
	require.NoError(t, fs.MkdirAll("/Applications/HubKit.app/Contents", 0755))

	_, err := m.Install(context.Background(), appCandidate(), "/cache/HubKit.dmg", core.ConflictOverwrite)
	require.NoError(t, err)

	exists, err := afero.DirExists(fs, "/Applications/HubKit.app")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInstall_AddPicksFreeFolder(t *testing.T) {
	shell := &fakeShell{}
	m, fs := newTestBackend(t, nil, shell)
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/HubKit.app", 0755))
	require.NoError(t, fs.MkdirAll("/Applications/HubKit.app", 0755))
	require.NoError(t, fs.MkdirAll("/Applications/HubKit_1.app", 0755))

	result, err := m.Install(context.Background(), appCandidate(), "/cache/HubKit.dmg", core.ConflictAdd)

	require.NoError(t, err)
	assert.Equal(t, core.ResultSucceeded, result)
	assert.Contains(t, shell.calls, "cp -R /Volumes/HubKit 5/HubKit.app /Applications/HubKit_2.app")

	exists, err := afero.DirExists(fs, "/Applications/HubKit.app")
	require.NoError(t, err)
	assert.True(t, exists, "add keeps the existing bundle")
}

func TestInstall_PkgInsideImage(t *testing.T) {
	shell := &fakeShell{}
	m, fs := newTestBackend(t, nil, shell)
	require.NoError(t, afero.WriteFile(fs, "/Volumes/HubKit 5/HubKit.pkg", []byte("x"), 0644))

	result, err := m.Install(context.Background(), appCandidate(), "/cache/HubKit.dmg", core.ConflictOverwrite)

	require.NoError(t, err)
	assert.Equal(t, core.ResultSucceeded, result)
	assert.Equal(t, []string{
		"hdiutil attach -nobrowse /cache/HubKit.dmg",
		"installer -pkg /Volumes/HubKit 5/HubKit.pkg -target /",
		"hdiutil detach /Volumes/HubKit 5",
	}, shell.calls)
}

func TestInstall_BarePkg(t *testing.T) {
	shell := &fakeShell{}
	m, _ := newTestBackend(t, nil, shell)

	result, err := m.Install(context.Background(), appCandidate(), "/cache/HubKit.pkg", core.ConflictOverwrite)

	require.NoError(t, err)
	assert.Equal(t, core.ResultSucceeded, result)
	assert.Equal(t, []string{"installer -pkg /cache/HubKit.pkg -target /"}, shell.calls)
}

func TestInstall_EmptyImageIsCanceledAndDetached(t *testing.T) {
	shell := &fakeShell{}
	m, fs := newTestBackend(t, nil, shell)
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/.background", 0755))

	result, err := m.Install(context.Background(), appCandidate(), "/cache/HubKit.dmg", core.ConflictOverwrite)

	require.NoError(t, err)
	assert.Equal(t, core.ResultCanceled, result)
	assert.Equal(t, "hdiutil detach /Volumes/HubKit 5", shell.calls[len(shell.calls)-1])
}

func TestInstall_PicksProductBundle(t *testing.T) {
	shell := &fakeShell{}
	m, fs := newTestBackend(t, nil, shell)
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/Uninstall HubKit.app", 0755))
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/HubKit.app", 0755))
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/HubKit Helper.app", 0755))

	result, err := m.Install(context.Background(), appCandidate(), "/cache/HubKit.dmg", core.ConflictOverwrite)

	require.NoError(t, err)
	assert.Equal(t, core.ResultSucceeded, result)
	assert.Contains(t, shell.calls, "cp -R /Volumes/HubKit 5/HubKit.app /Applications/HubKit.app")
}

func TestBundleName(t *testing.T) {
	assert.Equal(t, "HubKit", bundleName("HubKit", core.Flavor{}))
	assert.Equal(t, "Hub Kit Pro", bundleName("HubKit", core.Flavor{Metadata: &core.FlavorMetadata{BundleName: "Hub Kit Pro"}}))
}

func TestInstall_CopyFailureStillDetaches(t *testing.T) {
	shell := &fakeShell{failOn: "cp "}
	m, fs := newTestBackend(t, nil, shell)
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/HubKit.app", 0755))

	result, err := m.Install(context.Background(), appCandidate(), "/cache/HubKit.dmg", core.ConflictOverwrite)

	assert.Equal(t, core.ResultError, result)
	var installErr *core.InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Equal(t, "hdiutil detach /Volumes/HubKit 5", shell.calls[len(shell.calls)-1])
}

func TestInstall_MountWithoutVolume(t *testing.T) {
	shell := &fakeShell{attach: "/dev/disk4\tGUID_partition_scheme\n"}
	m, _ := newTestBackend(t, nil, shell)

	result, err := m.Install(context.Background(), appCandidate(), "/cache/HubKit.dmg", core.ConflictOverwrite)

	assert.Equal(t, core.ResultError, result)
	assert.Error(t, err)
	assert.Len(t, shell.calls, 1)
}

func TestInstall_Cancel(t *testing.T) {
	shell := &fakeShell{}
	m, _ := newTestBackend(t, nil, shell)

	result, err := m.Install(context.Background(), appCandidate(), "/cache/HubKit.dmg", core.ConflictCancel)

	require.NoError(t, err)
	assert.Equal(t, core.ResultCanceled, result)
	assert.Empty(t, shell.calls)
}

func TestShouldUninstall(t *testing.T) {
	tests := []struct {
		name    string
		product core.InstalledProduct
		want    bool
	}{
		{
			name:    "same folder",
			product: core.InstalledProduct{PackageType: core.PackageTypeApp, Path: "/Applications/HubKit.app"},
			want:    true,
		},
		{
			name:    "side by side copy",
			product: core.InstalledProduct{PackageType: core.PackageTypeApp, Path: "/Applications/HubKit_1.app"},
			want:    false,
		},
		{
			name:    "pkg products are always replaced",
			product: core.InstalledProduct{PackageType: core.PackageTypePkg, Path: "/Applications/Other.app"},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shell := &fakeShell{}
			m, fs := newTestBackend(t, nil, shell)
			require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/HubKit.app", 0755))

			got, err := m.ShouldUninstall(context.Background(), tt.product, "/cache/HubKit.dmg")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldUninstall_UsesFlavorBundleName(t *testing.T) {
	cfg := &config.Config{Products: []core.Product{{
		Name: "HubKit",
		Flavors: []core.Flavor{
			{Platform: core.PlatformMac, ID: "lite", PackageType: core.PackageTypeApp,
				Metadata: &core.FlavorMetadata{BundleID: "com.example.hubkit.lite"}},
			{Platform: core.PlatformMac, ID: "pro", PackageType: core.PackageTypeApp,
				Metadata: &core.FlavorMetadata{BundleID: "com.example.hubkit.pro", BundleName: "Hub Kit Pro"}},
		},
	}}}
	shell := &fakeShell{}
	m, fs := newTestBackend(t, cfg, shell)
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/HubKit.app", 0755))
	require.NoError(t, fs.MkdirAll("/Volumes/HubKit 5/Hub Kit Pro.app", 0755))

	got, err := m.ShouldUninstall(context.Background(), core.InstalledProduct{
		ProductName: "HubKit",
		PackageName: "com.example.hubkit.pro",
		PackageType: core.PackageTypeApp,
		Path:        "/Applications/Hub Kit Pro.app",
	}, "/cache/HubKit.dmg")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestUninstall(t *testing.T) {
	t.Run("by path", func(t *testing.T) {
		m, fs := newTestBackend(t, nil, &fakeShell{})
		require.NoError(t, fs.MkdirAll("/Applications/HubKit.app/Contents", 0755))

		err := m.Uninstall(context.Background(), core.InstalledProduct{ProductName: "HubKit", Path: "/Applications/HubKit.app"})
		require.NoError(t, err)

		exists, _ := afero.DirExists(fs, "/Applications/HubKit.app")
		assert.False(t, exists)
	})

	t.Run("by bundle id", func(t *testing.T) {
		m, fs := newTestBackend(t, nil, &fakeShell{})
		writeInfoPlist(t, fs, "/Applications/Renamed.app", "com.example.hubkit", "5.2", "7023")
		writeInfoPlist(t, fs, "/Applications/Other.app", "com.example.other", "1.0", "1")

		err := m.Uninstall(context.Background(), core.InstalledProduct{ProductName: "HubKit", PackageName: "com.example.hubkit"})
		require.NoError(t, err)

		renamed, _ := afero.DirExists(fs, "/Applications/Renamed.app")
		other, _ := afero.DirExists(fs, "/Applications/Other.app")
		assert.False(t, renamed)
		assert.True(t, other)
	})

	t.Run("already gone", func(t *testing.T) {
		m, _ := newTestBackend(t, nil, &fakeShell{})
		err := m.Uninstall(context.Background(), core.InstalledProduct{ProductName: "HubKit", PackageName: "com.example.hubkit"})
		assert.NoError(t, err)
	})

	t.Run("outside applications folder", func(t *testing.T) {
		m, fs := newTestBackend(t, nil, &fakeShell{})
		require.NoError(t, fs.MkdirAll("/Users/me/HubKit.app", 0755))

		err := m.Uninstall(context.Background(), core.InstalledProduct{ProductName: "HubKit", Path: "/Users/me/HubKit.app"})
		var uninstallErr *core.UninstallError
		require.ErrorAs(t, err, &uninstallErr)

		exists, _ := afero.DirExists(fs, "/Users/me/HubKit.app")
		assert.True(t, exists)
	})
}

func TestShutdownIfRunning(t *testing.T) {
	t.Run("terminates processes inside the bundle", func(t *testing.T) {
		m, _ := newTestBackend(t, nil, &fakeShell{})
		inside := &fakeProcess{pid: 10, exe: "/Applications/HubKit.app/Contents/MacOS/HubKit"}
		sibling := &fakeProcess{pid: 11, exe: "/Applications/HubKit_1.app/Contents/MacOS/HubKit"}
		denied := &fakeProcess{pid: 12, exeErr: errors.New("permission denied")}
		m.processes = func(context.Context) ([]runningProcess, error) {
			return []runningProcess{inside, sibling, denied}, nil
		}

		err := m.ShutdownIfRunning(context.Background(), core.InstalledProduct{ProductName: "HubKit", Path: "/Applications/HubKit.app"})
		require.NoError(t, err)
		assert.True(t, inside.terminated)
		assert.False(t, sibling.terminated)
		assert.False(t, denied.terminated)
	})

	t.Run("stop command wins", func(t *testing.T) {
		cfg := &config.Config{Products: []core.Product{{
			Name: "HubKit",
			Flavors: []core.Flavor{{
				Platform: core.PlatformMac, ID: "dmg", PackageType: core.PackageTypeApp,
				Metadata: &core.FlavorMetadata{StopCommand: "launchctl stop com.example.hubkit"},
			}},
		}}}
		shell := &fakeShell{}
		m, _ := newTestBackend(t, cfg, shell)
		m.processes = func(context.Context) ([]runningProcess, error) {
			t.Fatal("processes should not be listed")
			return nil, nil
		}

		err := m.ShutdownIfRunning(context.Background(), core.InstalledProduct{ProductName: "HubKit", Path: "/Applications/HubKit.app"})
		require.NoError(t, err)
		assert.Equal(t, []string{"sh -c launchctl stop com.example.hubkit"}, shell.calls)
	})
}

func TestLaunch(t *testing.T) {
	shell := &fakeShell{}
	m, _ := newTestBackend(t, nil, shell)

	require.NoError(t, m.Launch(context.Background(), core.Flavor{
		Metadata: &core.FlavorMetadata{BundleName: "HubKit", LaunchArgs: []string{"--minimized"}},
	}))
	require.NoError(t, m.Launch(context.Background(), core.Flavor{}))

	assert.Equal(t, []string{"open -a HubKit --args --minimized"}, shell.calls)
}

func TestListInstalled(t *testing.T) {
	cfg := &config.Config{Products: []core.Product{{
		Name: "HubKit",
		Flavors: []core.Flavor{{
			Platform: core.PlatformMac, ID: "dmg", PackageType: core.PackageTypeApp,
			Metadata: &core.FlavorMetadata{BundleID: "com.example.hubkit"},
		}},
	}}}
	m, fs := newTestBackend(t, cfg, &fakeShell{})
	writeInfoPlist(t, fs, "/Applications/HubKit.app", "com.example.hubkit", "5.2", "7023")
	writeInfoPlist(t, fs, "/Applications/HubKit_1.app", "com.example.hubkit", "5.1", "6900")
	writeInfoPlist(t, fs, "/Applications/Safari.app", "com.apple.Safari", "17.0", "1")
	require.NoError(t, fs.MkdirAll("/Applications/Broken.app/Contents", 0755))
	require.NoError(t, fs.MkdirAll("/Applications/Utilities", 0755))

	installed, err := m.ListInstalled(context.Background(), cfg.Catalog())
	require.NoError(t, err)

	assert.Equal(t, []core.InstalledProduct{
		{ProductName: "HubKit", Version: "5.2.7023", PackageName: "com.example.hubkit", PackageType: core.PackageTypeApp, Path: filepath.Join("/Applications", "HubKit.app")},
		{ProductName: "HubKit", Version: "5.1.6900", PackageName: "com.example.hubkit", PackageType: core.PackageTypeApp, Path: filepath.Join("/Applications", "HubKit_1.app")},
	}, installed)
}

func TestListInstalled_MissingApplicationsFolder(t *testing.T) {
	m, fs := newTestBackend(t, nil, &fakeShell{})
	require.NoError(t, fs.RemoveAll("/Applications"))

	_, err := m.ListInstalled(context.Background(), nil)
	assert.Error(t, err)
}

func TestBundleInfoVersion(t *testing.T) {
	assert.Equal(t, "5.2.7023", bundleInfo{CFBundleShortVersionString: "5.2", CFBundleVersion: "7023"}.Version())
	assert.Equal(t, "5.2", bundleInfo{CFBundleShortVersionString: "5.2"}.Version())
	assert.Equal(t, "7023", bundleInfo{CFBundleVersion: "7023"}.Version())
}

func TestPolicies(t *testing.T) {
	m, _ := newTestBackend(t, nil, &fakeShell{})
	assert.Equal(t, "macos", m.Name())
	assert.True(t, m.SupportsAddAlongside(core.PackageTypeApp))
	assert.False(t, m.SupportsAddAlongside(core.PackageTypePkg))
}
