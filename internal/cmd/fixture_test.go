package cmd

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/db"
	"github.com/quantmind-br/gman/internal/engine"
	"github.com/quantmind-br/gman/internal/helpers"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// fakePlatform records installer calls and serves a fixed inventory
type fakePlatform struct {
	mu          sync.Mutex
	installed   []core.InstalledProduct
	installs    []string
	uninstalls  []string
	launches    int
	InstallFunc func(c core.InstallationCandidate, artifact string) (core.Result, error)
	ListErr     error
}

func (f *fakePlatform) Name() string { return "fake" }

func (f *fakePlatform) Install(_ context.Context, c core.InstallationCandidate, artifact string, _ core.ConflictMode) (core.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs = append(f.installs, artifact)
	if f.InstallFunc != nil {
		return f.InstallFunc(c, artifact)
	}
	f.installed = append(f.installed, core.InstalledProduct{
		ProductName: c.ProductName,
		Version:     c.Version,
		PackageName: c.ProductName + "-" + c.Version.String(),
		PackageType: c.Flavor.PackageType,
	})
	return core.ResultSucceeded, nil
}

func (f *fakePlatform) Uninstall(_ context.Context, p core.InstalledProduct) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uninstalls = append(f.uninstalls, p.PackageName)
	kept := f.installed[:0]
	for _, q := range f.installed {
		if q.PackageName != p.PackageName {
			kept = append(kept, q)
		}
	}
	f.installed = kept
	return nil
}

func (f *fakePlatform) ShutdownIfRunning(context.Context, core.InstalledProduct) error { return nil }

func (f *fakePlatform) ShouldUninstall(context.Context, core.InstalledProduct, string) (bool, error) {
	return true, nil
}

func (f *fakePlatform) Launch(context.Context, core.Flavor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches++
	return nil
}

func (f *fakePlatform) SupportsAddAlongside(core.PackageType) bool { return false }

func (f *fakePlatform) ListInstalled(context.Context, core.Catalog) ([]core.InstalledProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]core.InstalledProduct(nil), f.installed...), nil
}

type fixture struct {
	cfg      *config.Config
	fs       afero.Fs
	platform *fakePlatform
	runner   *helpers.MockCommandRunner
	rt       wiring
	log      *zerolog.Logger
}

var hubkitFlavor = core.Flavor{
	Platform:    core.PlatformWindows,
	ID:          "msi",
	PackageType: core.PackageTypeMsi,
	TeamCity:    core.TeamCityMetadata{BuildTypeID: "Hub_Win", ArtifactPath: "out/HubKit.msi"},
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := zerolog.New(io.Discard)
	fs := afero.NewMemMapFs()
	platform := &fakePlatform{}
	runner := &helpers.MockCommandRunner{}

	cfg := &config.Config{
		Paths: config.PathsConfig{
			DataDir:  "/data",
			CacheDir: "/data/cache",
			TempDir:  "/tmp/gman",
			DBFile:   filepath.Join(t.TempDir(), "history.db"),
			LogFile:  "/data/gman.log",
		},
		Logging:  config.LoggingConfig{Level: "info"},
		Download: config.DownloadConfig{ChunkSize: 4},
		Install:  config.InstallConfig{AutomaticUpgrade: config.UpgradeNever},
		Repositories: []core.CandidateRepository{
			{Name: "share", Folder: "/repo", Platforms: []core.Platform{core.PlatformWindows}},
		},
		Products: []core.Product{
			{Name: "HubKit", Flavors: []core.Flavor{hubkitFlavor}},
		},
	}

	return &fixture{
		cfg:      cfg,
		fs:       fs,
		platform: platform,
		runner:   runner,
		log:      &log,
		rt: wiring{
			fs:       fs,
			platform: func() (core.Platform, error) { return core.PlatformWindows, nil },
			backend: func(*config.Config, *zerolog.Logger, core.Platform) (engine.Platform, error) {
				return platform, nil
			},
			runner: runner,
		},
	}
}

// publish puts a build of HubKit into the folder repository
func (f *fixture) publish(t *testing.T, version, identifier string) string {
	t.Helper()
	c := core.InstallationCandidate{
		ProductName: "HubKit",
		Version:     core.Version(version),
		Identifier:  identifier,
		Flavor:      hubkitFlavor,
	}
	path := filepath.Join("/repo", c.CachedFileName())
	require.NoError(t, afero.WriteFile(f.fs, path, []byte("msi-"+version), 0644))
	return c.CachedFileName()
}

func (f *fixture) history(t *testing.T) []db.Entry {
	t.Helper()
	database, err := db.New(context.Background(), f.cfg.Paths.DBFile)
	require.NoError(t, err)
	defer database.Close()

	entries, err := database.List(context.Background(), db.ListOptions{})
	require.NoError(t, err)
	return entries
}

// run executes cmd with args and returns its standard output
func run(cmd *cobra.Command, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
