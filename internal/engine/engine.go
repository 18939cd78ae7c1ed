// Package engine runs one install or uninstall flow: it resolves a build from
// the cache or the repositories, acquires it, settles conflicts with what is
// already installed and hands the artifact to the platform installer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/fsops"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Resolver discovers builds in the configured repositories
type Resolver interface {
	ResolveOne(ctx context.Context, search core.SearchCandidate, repos []core.CandidateRepository) (*core.InstallationCandidate, *core.CandidateRepository, error)
	Enumerate(ctx context.Context, platform core.Platform, catalog core.Catalog, repos []core.CandidateRepository) []core.InstallationCandidate
}

// Acquirer downloads a candidate into the cache and returns its local path
type Acquirer interface {
	Download(ctx context.Context, c core.InstallationCandidate, repo core.CandidateRepository) (string, error)
}

// Cache finds already downloaded candidates.
// A located candidate's RepoLocation is its local path.
type Cache interface {
	Locate(search core.SearchCandidate) (core.InstallationCandidate, bool)
}

// Asker puts questions to the user
type Asker interface {
	// Confirm asks a yes/no question; the default answer is no
	Confirm(question string) (bool, error)
	// ChooseConflict asks what to do with an existing installation of product
	ChooseConflict(product string, allowAdd bool) (core.ConflictMode, error)
}

// Platform is the installer and inventory of the host platform
type Platform interface {
	core.Installer
	core.Inventory
}

// Deps are the collaborators of an Engine
type Deps struct {
	Platform     core.Platform
	Catalog      core.Catalog
	Repositories []core.CandidateRepository
	Resolver     Resolver
	Acquirer     Acquirer
	Cache        Cache
	Installer    Platform
	Asker        Asker

	// Fs and TempDir locate the scratch directory emptied on construction
	Fs      afero.Fs
	TempDir string
}

// InstallOptions tune one install flow
type InstallOptions struct {
	// AutomaticUpgrade decides whether a cached build is checked for a newer one.
	// Nil asks the user.
	AutomaticUpgrade *bool
	// Prompt enables interactive questions
	Prompt bool
	// Autorun overrides the flavor's autorun flag
	Autorun *bool
}

// Outcome is the terminal state of an install flow
type Outcome struct {
	Result core.Result
	// Candidate is the build that was installed or found already installed
	Candidate *core.InstallationCandidate
	// Mode is the conflict resolution that was applied
	Mode core.ConflictMode
	// LaunchErr reports a failed autorun; the install itself stands
	LaunchErr error
}

// Engine orchestrates installs and uninstalls on one platform
type Engine struct {
	platform  core.Platform
	catalog   core.Catalog
	repos     []core.CandidateRepository
	resolver  Resolver
	acquirer  Acquirer
	cache     Cache
	installer Platform
	asker     Asker
	log       *zerolog.Logger
}

// New creates an Engine and empties the scratch directory left by earlier runs
func New(deps Deps, log *zerolog.Logger) (*Engine, error) {
	if deps.Resolver == nil || deps.Acquirer == nil || deps.Cache == nil || deps.Installer == nil {
		return nil, errors.New("engine: resolver, acquirer, cache and installer are required")
	}

	if deps.Fs != nil && deps.TempDir != "" {
		removed, err := fsops.RemoveContents(deps.Fs, deps.TempDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", deps.TempDir).Msg("failed to clean temp directory")
		} else if removed > 0 {
			log.Debug().Str("dir", deps.TempDir).Int("removed", removed).Msg("temp directory cleaned")
		}
	}

	return &Engine{
		platform:  deps.Platform,
		catalog:   deps.Catalog,
		repos:     core.ValidRepositories(deps.Repositories, deps.Platform),
		resolver:  deps.Resolver,
		acquirer:  deps.Acquirer,
		cache:     deps.Cache,
		installer: deps.Installer,
		asker:     deps.Asker,
		log:       log,
	}, nil
}

// Install resolves search to a build and installs it.
// A returned error always comes with an Error result.
func (e *Engine) Install(ctx context.Context, search core.SearchCandidate, opts InstallOptions) (Outcome, error) {
	log := e.log.With().Str("search", search.String()).Logger()

	candidate, artifact, err := e.resolve(ctx, search, opts)
	switch {
	case errors.Is(err, core.ErrCanceled):
		log.Info().Msg("install canceled at the upgrade prompt")
		return Outcome{Result: core.ResultCanceled}, nil
	case err != nil:
		return Outcome{Result: core.ResultError}, err
	}
	if candidate == nil {
		log.Info().Msg("no build found in any repository")
		return Outcome{Result: core.ResultSkipped}, nil
	}
	out := Outcome{Result: core.ResultError, Candidate: candidate}

	log.Debug().
		Str("version", candidate.Version.String()).
		Str("identifier", candidate.Identifier).
		Str("artifact", artifact).
		Msg("build resolved")

	eligible, err := e.eligibleInstalled(ctx, *candidate, artifact)
	if err != nil {
		return out, err
	}
	for _, p := range eligible {
		if p.Version.Equal(candidate.Version) {
			log.Info().Str("version", p.Version.String()).Msg("already installed")
			candidate.Installed = true
			out.Result = core.ResultSkipped
			return out, nil
		}
	}

	mode, err := e.conflictMode(*candidate, eligible, opts.Prompt)
	if errors.Is(err, core.ErrCanceled) {
		mode, err = core.ConflictCancel, nil
	}
	if err != nil {
		return out, err
	}
	out.Mode = mode

	switch mode {
	case core.ConflictCancel:
		log.Info().Msg("install canceled")
		out.Result = core.ResultCanceled
		return out, nil
	case core.ConflictOverwrite:
		for _, p := range eligible {
			if err := e.uninstallOne(ctx, p); err != nil {
				return out, err
			}
		}
	}

	result, err := e.installer.Install(ctx, *candidate, artifact, mode)
	switch {
	case result == core.ResultCanceled:
		log.Info().Msg("install canceled by the installer")
		out.Result = core.ResultCanceled
		return out, nil
	case err != nil || result == core.ResultError:
		if err == nil {
			err = errors.New("installer reported a failure")
		}
		var installErr *core.InstallError
		if !errors.As(err, &installErr) {
			err = &core.InstallError{Product: candidate.ProductName, Err: err}
		}
		return out, err
	case result != core.ResultSucceeded:
		out.Result = result
		return out, nil
	}

	candidate.Installed = true
	out.Result = core.ResultSucceeded
	log.Info().Str("version", candidate.Version.String()).Str("mode", mode.String()).Msg("installed")

	if e.shouldAutorun(candidate.Flavor, opts.Autorun) {
		if err := e.installer.Launch(ctx, candidate.Flavor); err != nil {
			log.Warn().Err(err).Msg("failed to launch after install")
			out.LaunchErr = err
		}
	}
	return out, nil
}

// resolve picks the build to install and returns it with its local artifact
// path. A nil candidate with a nil error means no build exists anywhere.
func (e *Engine) resolve(ctx context.Context, search core.SearchCandidate, opts InstallOptions) (*core.InstallationCandidate, string, error) {
	cached, ok := e.cache.Locate(search)
	if !ok {
		return e.fetch(ctx, search)
	}
	if !search.Version.IsZero() {
		return &cached, cached.RepoLocation, nil
	}

	upgrade, err := e.wantsUpgradeCheck(cached, opts)
	if err != nil {
		return nil, "", err
	}
	if !upgrade {
		return &cached, cached.RepoLocation, nil
	}
	return e.upgradeCheck(ctx, search, cached)
}

func (e *Engine) wantsUpgradeCheck(cached core.InstallationCandidate, opts InstallOptions) (bool, error) {
	if opts.AutomaticUpgrade != nil {
		return *opts.AutomaticUpgrade, nil
	}
	if !opts.Prompt || e.asker == nil {
		return false, nil
	}

	question := fmt.Sprintf("%s %s is cached. Check the repositories for a newer build", cached.ProductName, cached.Version)
	ok, err := e.asker.Confirm(question)
	if err != nil {
		return false, fmt.Errorf("upgrade prompt: %w", err)
	}
	return ok, nil
}

// upgradeCheck looks for a newer build than cached. Repository failures fall
// back to the cached build so offline installs keep working.
func (e *Engine) upgradeCheck(ctx context.Context, search core.SearchCandidate, cached core.InstallationCandidate) (*core.InstallationCandidate, string, error) {
	found, repo, err := e.resolver.ResolveOne(ctx, search, e.repos)
	if err != nil {
		e.log.Warn().Err(err).Msg("upgrade check failed, using cached build")
		return &cached, cached.RepoLocation, nil
	}
	if found == nil {
		e.log.Debug().Msg("no remote build, using cached build")
		return &cached, cached.RepoLocation, nil
	}

	if hit, ok := e.cache.Locate(found.SearchFor()); ok {
		e.log.Debug().Str("version", hit.Version.String()).Msg("newest build already cached")
		return &hit, hit.RepoLocation, nil
	}

	if found.Version.Compare(cached.Version) != core.Greater {
		e.log.Debug().
			Str("cached", cached.Version.String()).
			Str("remote", found.Version.String()).
			Msg("cached build is current")
		return &cached, cached.RepoLocation, nil
	}

	path, err := e.acquirer.Download(ctx, *found, *repo)
	if err != nil {
		return nil, "", err
	}
	return found, path, nil
}

// fetch resolves search remotely and downloads the result
func (e *Engine) fetch(ctx context.Context, search core.SearchCandidate) (*core.InstallationCandidate, string, error) {
	found, repo, err := e.resolver.ResolveOne(ctx, search, e.repos)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", search, err)
	}
	if found == nil {
		return nil, "", nil
	}

	path, err := e.acquirer.Download(ctx, *found, *repo)
	if err != nil {
		return nil, "", err
	}
	return found, path, nil
}

// eligibleInstalled returns the installed copies of c's product that the
// platform says would collide with artifact
func (e *Engine) eligibleInstalled(ctx context.Context, c core.InstallationCandidate, artifact string) ([]core.InstalledProduct, error) {
	installed, err := e.installer.ListInstalled(ctx, e.catalog)
	if err != nil {
		return nil, fmt.Errorf("list installed products: %w", err)
	}

	var eligible []core.InstalledProduct
	for _, p := range installed {
		if !strings.EqualFold(p.ProductName, c.ProductName) {
			continue
		}
		collides, err := e.installer.ShouldUninstall(ctx, p, artifact)
		if err != nil {
			return nil, fmt.Errorf("check %s %s: %w", p.ProductName, p.Version, err)
		}
		if collides {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}

func (e *Engine) conflictMode(c core.InstallationCandidate, eligible []core.InstalledProduct, prompt bool) (core.ConflictMode, error) {
	if len(eligible) == 0 {
		return core.ConflictOverwrite, nil
	}

	allowAdd := e.installer.SupportsAddAlongside(c.Flavor.PackageType)
	mode := core.ConflictOverwrite
	if prompt && len(eligible) > 1 && e.asker != nil {
		var err error
		if mode, err = e.asker.ChooseConflict(c.ProductName, allowAdd); err != nil {
			return core.ConflictCancel, fmt.Errorf("conflict prompt: %w", err)
		}
	}

	if mode == core.ConflictAdd && !allowAdd {
		e.log.Debug().Str("package_type", string(c.Flavor.PackageType)).Msg("side-by-side install unsupported, overwriting")
		mode = core.ConflictOverwrite
	}
	return mode, nil
}

func (e *Engine) shouldAutorun(flavor core.Flavor, override *bool) bool {
	if override != nil {
		return *override
	}
	return flavor.Autorun
}

// uninstallOne stops then removes p
func (e *Engine) uninstallOne(ctx context.Context, p core.InstalledProduct) error {
	e.log.Info().Str("product", p.ProductName).Str("version", p.Version.String()).Msg("removing installed copy")

	if err := e.installer.ShutdownIfRunning(ctx, p); err != nil {
		return &core.UninstallError{Product: p.ProductName, Err: err}
	}
	if err := e.installer.Uninstall(ctx, p); err != nil {
		var uninstallErr *core.UninstallError
		if errors.As(err, &uninstallErr) {
			return err
		}
		return &core.UninstallError{Product: p.ProductName, Err: err}
	}
	return nil
}

// Uninstall removes the installed copies of product, narrowed to version when
// it is set. With prompting enabled and several matches, each one is confirmed.
// It returns the entries that were removed.
func (e *Engine) Uninstall(ctx context.Context, product string, version core.Version, prompt bool) (core.Result, []core.InstalledProduct, error) {
	installed, err := e.installer.ListInstalled(ctx, e.catalog)
	if err != nil {
		return core.ResultError, nil, fmt.Errorf("list installed products: %w", err)
	}

	var matches []core.InstalledProduct
	for _, p := range installed {
		if !strings.EqualFold(p.ProductName, product) {
			continue
		}
		if !version.IsZero() && !p.Version.Equal(version) {
			continue
		}
		matches = append(matches, p)
	}
	if len(matches) == 0 {
		target := product
		if !version.IsZero() {
			target += " " + version.String()
		}
		return core.ResultError, nil, fmt.Errorf("%w: %s is not installed", core.ErrNotFound, target)
	}

	ask := prompt && len(matches) > 1 && e.asker != nil
	var removed []core.InstalledProduct
	for _, p := range matches {
		if ask {
			ok, err := e.asker.Confirm(fmt.Sprintf("Uninstall %s %s (%s)", p.ProductName, p.Version, p.PackageName))
			if err != nil {
				return core.ResultError, removed, fmt.Errorf("uninstall prompt: %w", err)
			}
			if !ok {
				continue
			}
		}
		if err := e.uninstallOne(ctx, p); err != nil {
			return core.ResultError, removed, err
		}
		removed = append(removed, p)
	}

	if len(removed) == 0 {
		return core.ResultCanceled, nil, nil
	}
	return core.ResultSucceeded, removed, nil
}

// Installed lists the catalog products present on this machine
func (e *Engine) Installed(ctx context.Context) ([]core.InstalledProduct, error) {
	installed, err := e.installer.ListInstalled(ctx, e.catalog)
	if err != nil {
		return nil, fmt.Errorf("list installed products: %w", err)
	}
	return installed, nil
}
