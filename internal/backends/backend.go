package backends

import (
	"fmt"
	"slices"

	"github.com/quantmind-br/gman/internal/backends/deb"
	"github.com/quantmind-br/gman/internal/backends/macos"
	"github.com/quantmind-br/gman/internal/backends/windows"
	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/rs/zerolog"
)

// Backend drives one platform's native installer and reads its inventory
type Backend interface {
	core.Installer
	core.Inventory

	// Platforms lists the platforms this backend serves
	Platforms() []core.Platform
}

// Registry manages all available backends
type Registry struct {
	backends []Backend
	logger   *zerolog.Logger
}

// NewRegistry creates a backend registry with all backends
func NewRegistry(cfg *config.Config, log *zerolog.Logger) *Registry {
	return NewRegistryWith(log,
		windows.New(cfg, log),
		macos.New(cfg, log),
		deb.New(cfg, log),
	)
}

// NewRegistryWith creates a registry from explicit backends, in lookup order
func NewRegistryWith(log *zerolog.Logger, backends ...Backend) *Registry {
	return &Registry{
		backends: backends,
		logger:   log,
	}
}

// ForPlatform returns the first backend serving platform
func (r *Registry) ForPlatform(platform core.Platform) (Backend, error) {
	for _, backend := range r.backends {
		if slices.Contains(backend.Platforms(), platform) {
			r.logger.Debug().
				Str("backend", backend.Name()).
				Str("platform", string(platform)).
				Msg("backend selected")
			return backend, nil
		}
	}
	return nil, fmt.Errorf("no installer backend for platform %s", platform)
}
