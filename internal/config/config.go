package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/paths"
	"github.com/spf13/viper"
)

// Automatic upgrade policies
const (
	UpgradeAsk    = "ask"
	UpgradeAlways = "always"
	UpgradeNever  = "never"
)

// EnvConfigFile names an explicit configuration file
const EnvConfigFile = "GMAN_CONFIG"

// Config represents the application configuration
type Config struct {
	Paths               PathsConfig                `mapstructure:"paths"`
	Logging             LoggingConfig              `mapstructure:"logging"`
	Download            DownloadConfig             `mapstructure:"download"`
	Install             InstallConfig              `mapstructure:"install"`
	Repositories        []core.CandidateRepository `mapstructure:"repositories"`
	Products            []core.Product             `mapstructure:"products"`
	PublisherIdentities []PublisherIdentity        `mapstructure:"publisher_identities"`
}

// PathsConfig contains path-related configuration
type PathsConfig = paths.Config

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Color string `mapstructure:"color"`
}

// DownloadConfig tunes the ranged downloader
type DownloadConfig struct {
	ChunkSize int64 `mapstructure:"chunk_size"`
}

// InstallConfig holds install defaults that command-line flags override
type InstallConfig struct {
	AutomaticUpgrade  string `mapstructure:"automatic_upgrade"`
	Prompt            bool   `mapstructure:"prompt"`
	DefaultIdentifier string `mapstructure:"default_identifier"`
}

// PublisherIdentity is a package publisher trusted on a platform
type PublisherIdentity struct {
	Name      string          `mapstructure:"name"`
	ID        string          `mapstructure:"id"`
	Platforms []core.Platform `mapstructure:"platforms"`
}

// Catalog returns the configured products
func (c *Config) Catalog() core.Catalog {
	return core.Catalog(c.Products)
}

// PublisherIDs lists the publisher ids trusted on platform
func (c *Config) PublisherIDs(platform core.Platform) []string {
	var ids []string
	for _, p := range c.PublisherIdentities {
		if len(p.Platforms) == 0 {
			ids = append(ids, p.ID)
			continue
		}
		for _, pl := range p.Platforms {
			if pl == platform {
				ids = append(ids, p.ID)
				break
			}
		}
	}
	return ids
}

// UpgradePolicy maps automatic_upgrade to a decision. nil means ask.
func (c *Config) UpgradePolicy() *bool {
	switch strings.ToLower(c.Install.AutomaticUpgrade) {
	case UpgradeAlways:
		v := true
		return &v
	case UpgradeNever:
		v := false
		return &v
	default:
		return nil
	}
}

// Load loads configuration from $GMAN_CONFIG, or gman.toml in ~/.config/gman
// or the working directory, then the environment
func Load() (*Config, error) {
	resolver := paths.NewResolver(paths.Config{})

	if explicit := os.Getenv(EnvConfigFile); explicit != "" {
		return LoadFile(resolver.Expand(explicit))
	}

	v := viper.New()
	v.SetConfigName("gman")
	v.SetConfigType("toml")
	v.AddConfigPath(resolver.ConfigDir())
	v.AddConfigPath(".")
	return load(v, resolver)
}

// LoadFile reads configuration from an explicit TOML file
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	return load(v, paths.NewResolver(paths.Config{}))
}

func load(v *viper.Viper, resolver *paths.Resolver) (*Config, error) {
	setDefaults(v, resolver)

	v.SetEnvPrefix("GMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Paths.DataDir = resolver.Expand(cfg.Paths.DataDir)
	cfg.Paths.CacheDir = resolver.Expand(cfg.Paths.CacheDir)
	cfg.Paths.TempDir = resolver.Expand(cfg.Paths.TempDir)
	cfg.Paths.DBFile = resolver.Expand(cfg.Paths.DBFile)
	cfg.Paths.LogFile = resolver.Expand(cfg.Paths.LogFile)
	cfg.Paths.ApplicationsDir = resolver.Expand(cfg.Paths.ApplicationsDir)
	for i := range cfg.Repositories {
		cfg.Repositories[i].Folder = resolver.Expand(cfg.Repositories[i].Folder)
	}

	return &cfg, nil
}

// decodeHook keeps viper's defaults and normalizes platform and package type names
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		enumHook,
	)
}

var (
	platformType    = reflect.TypeOf(core.Platform(""))
	packageTypeType = reflect.TypeOf(core.PackageType(""))
)

// enumHook turns "windows" into core.PlatformWindows and "msi" into core.PackageTypeMsi.
// Unknown names are load errors.
func enumHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s, _ := data.(string)
	if s == "" {
		return data, nil
	}
	switch to {
	case platformType:
		return core.ParsePlatform(s)
	case packageTypeType:
		return core.ParsePackageType(s)
	}
	return data, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper, resolver *paths.Resolver) {
	v.SetDefault("paths.data_dir", resolver.DataDir())
	v.SetDefault("paths.cache_dir", resolver.CacheDir())
	v.SetDefault("paths.temp_dir", resolver.TempDir())
	v.SetDefault("paths.db_file", resolver.DBFile())
	v.SetDefault("paths.log_file", resolver.LogFile())
	v.SetDefault("paths.applications_dir", resolver.ApplicationsDir())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.color", "auto")

	v.SetDefault("download.chunk_size", 1<<20)

	v.SetDefault("install.automatic_upgrade", UpgradeAsk)
	v.SetDefault("install.prompt", true)
	v.SetDefault("install.default_identifier", "")
}
