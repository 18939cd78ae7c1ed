package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/quantmind-br/gman/internal/backends"
	"github.com/quantmind-br/gman/internal/cache"
	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/db"
	"github.com/quantmind-br/gman/internal/download"
	"github.com/quantmind-br/gman/internal/engine"
	"github.com/quantmind-br/gman/internal/helpers"
	"github.com/quantmind-br/gman/internal/repository"
	"github.com/quantmind-br/gman/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// wiring holds the process-wide collaborators the commands are built from
type wiring struct {
	fs         afero.Fs
	platform   func() (core.Platform, error)
	backend    func(cfg *config.Config, log *zerolog.Logger, platform core.Platform) (engine.Platform, error)
	asker      engine.Asker
	httpClient repository.HTTPClient
	runner     helpers.CommandRunner
}

func defaultWiring() wiring {
	return wiring{
		fs:       afero.NewOsFs(),
		platform: core.CurrentPlatform,
		backend: func(cfg *config.Config, log *zerolog.Logger, platform core.Platform) (engine.Platform, error) {
			backend, err := backends.NewRegistry(cfg, log).ForPlatform(platform)
			if err != nil {
				return nil, err
			}
			return backend, nil
		},
		asker:  ui.NewAsker(nil, nil),
		runner: helpers.NewOSCommandRunner(),
	}
}

// session is one command's view of the host: platform, cache and engine
type session struct {
	platform core.Platform
	catalog  core.Catalog
	cache    *cache.Index
	engine   *engine.Engine
}

// open wires the engine for the host platform. Download progress is drawn on progress.
func (rt wiring) open(cfg *config.Config, log *zerolog.Logger, progress io.Writer) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	platform, err := rt.platform()
	if err != nil {
		return nil, err
	}

	installer, err := rt.backend(cfg, log, platform)
	if err != nil {
		return nil, err
	}

	catalog := cfg.Catalog()
	index := cache.NewIndex(rt.fs, cfg.Paths.CacheDir, catalog, log)

	clientOpts := []repository.Option{repository.WithFs(rt.fs)}
	downloadOpts := []download.Option{
		download.WithFs(rt.fs),
		download.WithProgressFunc(ui.NewDownloadProgress(progress, "Downloading").Update),
		download.WithChunkSize(cfg.Download.ChunkSize),
	}
	if rt.httpClient != nil {
		clientOpts = append(clientOpts, repository.WithHTTPClient(rt.httpClient))
		downloadOpts = append(downloadOpts, download.WithHTTPClient(rt.httpClient))
	}

	downloader, err := download.New(cfg.Paths.TempDir, cfg.Paths.CacheDir, log, downloadOpts...)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Deps{
		Platform:     platform,
		Catalog:      catalog,
		Repositories: cfg.Repositories,
		Resolver:     repository.NewClient(log, clientOpts...),
		Acquirer:     downloader,
		Cache:        index,
		Installer:    installer,
		Asker:        rt.asker,
		Fs:           rt.fs,
		TempDir:      cfg.Paths.TempDir,
	}, log)
	if err != nil {
		return nil, err
	}

	return &session{
		platform: platform,
		catalog:  catalog,
		cache:    index,
		engine:   eng,
	}, nil
}

// recordHistory appends entry to the history database. Failures are logged only.
func recordHistory(ctx context.Context, cfg *config.Config, log *zerolog.Logger, entry *db.Entry) {
	if cfg.Paths.DBFile == "" {
		return
	}

	database, err := db.New(ctx, cfg.Paths.DBFile)
	if err != nil {
		log.Warn().Err(err).Msg("cannot open history database")
		return
	}
	defer database.Close()

	if err := database.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("cannot record history")
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// unknownProductHint prints close product names when product is not in the catalog
func unknownProductHint(w io.Writer, catalog core.Catalog, product string) {
	if _, ok := catalog.Find(product); ok {
		return
	}
	if hints := ui.Suggest(product, catalog.Names()); len(hints) > 0 {
		ui.PrintInfo(w, "Did you mean: %s?", strings.Join(hints, ", "))
	}
}

func describe(c *core.InstallationCandidate) string {
	if c == nil {
		return ""
	}
	if c.Identifier == "" {
		return fmt.Sprintf("%s %s (%s)", c.ProductName, c.Version, c.Flavor.ID)
	}
	return fmt.Sprintf("%s %s [%s] (%s)", c.ProductName, c.Version, c.Identifier, c.Flavor.ID)
}
