package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/quantmind-br/gman/internal/logging"
	"github.com/quantmind-br/gman/internal/security"
)

// Validate reports every configuration problem found, joined
func (c *Config) Validate() error {
	var errs []error

	if c.Download.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("download.chunk_size must be positive, got %d", c.Download.ChunkSize))
	}

	// the temp directory is emptied on every run
	if overlaps(c.Paths.TempDir, c.Paths.CacheDir) {
		errs = append(errs, fmt.Errorf("paths.temp_dir %q and paths.cache_dir %q must not contain each other",
			c.Paths.TempDir, c.Paths.CacheDir))
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}

	switch strings.ToLower(c.Logging.Color) {
	case "", "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("logging.color: expected auto, always or never, got %q", c.Logging.Color))
	}

	switch strings.ToLower(c.Install.AutomaticUpgrade) {
	case "", UpgradeAsk, UpgradeAlways, UpgradeNever:
	default:
		errs = append(errs, fmt.Errorf("install.automatic_upgrade: unknown policy %q", c.Install.AutomaticUpgrade))
	}

	for i, r := range c.Repositories {
		if r.Server == "" && r.Folder == "" {
			errs = append(errs, fmt.Errorf("repositories[%d] %q: neither server nor folder set", i, r.Name))
		}
	}

	seenProducts := make(map[string]bool)
	for _, p := range c.Products {
		if p.Name == "" {
			errs = append(errs, errors.New("product without a name"))
			continue
		}
		if err := security.ValidateProductName(p.Name); err != nil {
			errs = append(errs, err)
		}
		key := strings.ToLower(p.Name)
		if seenProducts[key] {
			errs = append(errs, fmt.Errorf("product %q declared twice", p.Name))
		}
		seenProducts[key] = true

		seenFlavors := make(map[string]bool)
		for _, f := range p.Flavors {
			if f.ID == "" {
				errs = append(errs, fmt.Errorf("product %q: flavor without an id", p.Name))
				continue
			}
			fkey := strings.ToLower(string(f.Platform) + "/" + f.ID)
			if seenFlavors[fkey] {
				errs = append(errs, fmt.Errorf("product %q: duplicate flavor %q on %s", p.Name, f.ID, f.Platform))
			}
			seenFlavors[fkey] = true

			if !f.PackageType.SupportedOn(f.Platform) {
				errs = append(errs, fmt.Errorf("product %q flavor %q: package type %q is not supported on %q",
					p.Name, f.ID, f.PackageType, f.Platform))
			}

			meta := f.Meta()
			for key, pattern := range map[string]string{
				"name_regex":         meta.NameRegex,
				"display_name_regex": meta.DisplayNameRegex,
			} {
				if pattern == "" {
					continue
				}
				if _, err := regexp.Compile(pattern); err != nil {
					errs = append(errs, fmt.Errorf("product %q flavor %q: %s: %w", p.Name, f.ID, key, err))
				}
			}
		}
	}

	return errors.Join(errs...)
}

// overlaps reports whether a and b are the same directory or one lies inside the other
func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a, b = filepath.Clean(a), filepath.Clean(b)
	return a == b || within(a, b) || within(b, a)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
