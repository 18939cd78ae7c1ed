package base

import (
	"fmt"
	"regexp"

	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/helpers"
	"github.com/quantmind-br/gman/internal/paths"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// BaseBackend holds the dependencies every platform backend shares.
// It does not implement Backend itself; concrete backends embed it.
//
//nolint:revive // exported name is kept for clarity across internal packages.
type BaseBackend struct {
	Fs     afero.Fs
	Runner helpers.CommandRunner
	Paths  *paths.Resolver
	Log    *zerolog.Logger
	Cfg    *config.Config
}

// New creates a BaseBackend with the real filesystem and command runner.
func New(cfg *config.Config, log *zerolog.Logger) *BaseBackend {
	return NewWithDeps(cfg, log, afero.NewOsFs(), helpers.NewOSCommandRunner())
}

// NewWithDeps creates a BaseBackend with injected dependencies (for tests).
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *BaseBackend {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &BaseBackend{
		Fs:     fs,
		Runner: runner,
		Paths:  paths.NewResolver(cfg.Paths),
		Log:    log,
		Cfg:    cfg,
	}
}

// MatchName reports whether name matches pattern. An empty pattern never matches.
func MatchName(pattern, name string) (bool, error) {
	if pattern == "" {
		return false, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid name pattern %q: %w", pattern, err)
	}
	return re.MatchString(name), nil
}

// FlavorsFor returns the configured flavors of product on platform
func (b *BaseBackend) FlavorsFor(product string, platform core.Platform) []core.Flavor {
	p, ok := b.Cfg.Catalog().Find(product)
	if !ok {
		return nil
	}
	return p.FlavorsFor(platform)
}

// StopCommandFor returns the first stop command configured for product on platform
func (b *BaseBackend) StopCommandFor(product string, platform core.Platform) string {
	for _, f := range b.FlavorsFor(product, platform) {
		if cmd := f.Meta().StopCommand; cmd != "" {
			return cmd
		}
	}
	return ""
}
