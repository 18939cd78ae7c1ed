package paths

import (
	"os"
	"path/filepath"
)

// Config holds the configured locations. Empty fields fall back to defaults.
type Config struct {
	DataDir         string `mapstructure:"data_dir"`
	CacheDir        string `mapstructure:"cache_dir"`
	TempDir         string `mapstructure:"temp_dir"`
	DBFile          string `mapstructure:"db_file"`
	LogFile         string `mapstructure:"log_file"`
	ApplicationsDir string `mapstructure:"applications_dir"`
}

// Resolver centralizes gman's default locations.
// Configured paths win; otherwise directories derive from HOME.
type Resolver struct {
	homeDir string
	cfg     Config
}

// NewResolver creates a Resolver for the current user's HOME.
func NewResolver(cfg Config) *Resolver {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}
	if homeDir == "" {
		homeDir = "."
	}
	return NewResolverWithHome(cfg, homeDir)
}

// NewResolverWithHome creates a Resolver with an explicit homeDir (useful for tests).
func NewResolverWithHome(cfg Config, homeDir string) *Resolver {
	return &Resolver{
		homeDir: homeDir,
		cfg:     cfg,
	}
}

// HomeDir returns the resolved HOME.
func (r *Resolver) HomeDir() string {
	return r.homeDir
}

// DataDir returns paths.data_dir, or ~/.local/share/gman.
func (r *Resolver) DataDir() string {
	if r.cfg.DataDir != "" {
		return r.cfg.DataDir
	}
	return filepath.Join(r.homeDir, ".local", "share", "gman")
}

// CacheDir returns paths.cache_dir, or <data>/cache.
func (r *Resolver) CacheDir() string {
	if r.cfg.CacheDir != "" {
		return r.cfg.CacheDir
	}
	return filepath.Join(r.DataDir(), "cache")
}

// TempDir returns paths.temp_dir, or <os temp>/gman.
func (r *Resolver) TempDir() string {
	if r.cfg.TempDir != "" {
		return r.cfg.TempDir
	}
	return filepath.Join(os.TempDir(), "gman")
}

// DBFile returns paths.db_file, or <data>/history.db.
func (r *Resolver) DBFile() string {
	if r.cfg.DBFile != "" {
		return r.cfg.DBFile
	}
	return filepath.Join(r.DataDir(), "history.db")
}

// LogFile returns paths.log_file, or <data>/gman.log.
func (r *Resolver) LogFile() string {
	if r.cfg.LogFile != "" {
		return r.cfg.LogFile
	}
	return filepath.Join(r.DataDir(), "gman.log")
}

// ApplicationsDir is where mac bundles are copied.
func (r *Resolver) ApplicationsDir() string {
	if r.cfg.ApplicationsDir != "" {
		return r.cfg.ApplicationsDir
	}
	return "/Applications"
}

// ConfigDir returns ~/.config/gman.
func (r *Resolver) ConfigDir() string {
	return filepath.Join(r.homeDir, ".config", "gman")
}

// Expand expands a leading ~ to HOME and environment variables in path
func (r *Resolver) Expand(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		path = filepath.Join(r.homeDir, path[1:])
	}
	return os.ExpandEnv(path)
}
