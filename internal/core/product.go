package core

import (
	"path"
	"strings"
)

// TeamCityMetadata locates a flavor's artifact on a build server
type TeamCityMetadata struct {
	BuildTypeID  string `mapstructure:"build_type_id" json:"build_type_id"`
	ArtifactPath string `mapstructure:"artifact_path" json:"artifact_path"`
}

// ArtifactFileName is the last element of the artifact path
func (m TeamCityMetadata) ArtifactFileName() string {
	p := strings.Trim(strings.ReplaceAll(m.ArtifactPath, "\\", "/"), "/")
	if p == "" {
		return "--"
	}
	return path.Base(p)
}

// FlavorMetadata holds optional platform hints. Empty fields are not used.
type FlavorMetadata struct {
	NameRegex        string   `mapstructure:"name_regex" json:"name_regex,omitempty"`
	DisplayNameRegex string   `mapstructure:"display_name_regex" json:"display_name_regex,omitempty"`
	InstallPath      string   `mapstructure:"install_path" json:"install_path,omitempty"`
	BundleID         string   `mapstructure:"bundle_id" json:"bundle_id,omitempty"`
	BundleName       string   `mapstructure:"bundle_name" json:"bundle_name,omitempty"`
	LaunchArgs       []string `mapstructure:"launch_args" json:"launch_args,omitempty"`
	StopCommand      string   `mapstructure:"stop_command" json:"stop_command,omitempty"`
}

// Flavor is one platform and packaging variant of a product
type Flavor struct {
	Platform    Platform         `mapstructure:"platform" json:"platform"`
	ID          string           `mapstructure:"id" json:"id"`
	PackageType PackageType      `mapstructure:"package_type" json:"package_type"`
	TeamCity    TeamCityMetadata `mapstructure:"teamcity" json:"teamcity"`
	Metadata    *FlavorMetadata  `mapstructure:"metadata" json:"metadata,omitempty"`
	Autorun     bool             `mapstructure:"autorun" json:"autorun"`
}

// Meta never returns nil
func (f Flavor) Meta() FlavorMetadata {
	if f.Metadata == nil {
		return FlavorMetadata{}
	}
	return *f.Metadata
}

// Product is a named piece of software with one or more flavors
type Product struct {
	Name    string   `mapstructure:"name" json:"name"`
	Flavors []Flavor `mapstructure:"flavors" json:"flavors"`
}

// FlavorsFor returns the product's flavors for platform, in declaration order
func (p Product) FlavorsFor(platform Platform) []Flavor {
	var out []Flavor
	for _, f := range p.Flavors {
		if f.Platform == platform {
			out = append(out, f)
		}
	}
	return out
}

// DefaultFlavor is the first flavor declared for platform
func (p Product) DefaultFlavor(platform Platform) (Flavor, bool) {
	flavors := p.FlavorsFor(platform)
	if len(flavors) == 0 {
		return Flavor{}, false
	}
	return flavors[0], true
}

// FlavorByID finds a flavor of platform case-insensitively.
// Flavor ids are only unique within one platform.
func (p Product) FlavorByID(platform Platform, id string) (Flavor, bool) {
	for _, f := range p.Flavors {
		if f.Platform == platform && strings.EqualFold(f.ID, id) {
			return f, true
		}
	}
	return Flavor{}, false
}

// Catalog is the configured list of products
type Catalog []Product

// Find looks a product up by name, ignoring case
func (c Catalog) Find(name string) (Product, bool) {
	for _, p := range c {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Product{}, false
}

// Names lists product names in catalog order
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for _, p := range c {
		names = append(names, p.Name)
	}
	return names
}

// FindFlavor resolves a (product, platform, flavor id) triple
func (c Catalog) FindFlavor(product string, platform Platform, flavorID string) (Product, Flavor, bool) {
	p, ok := c.Find(product)
	if !ok {
		return Product{}, Flavor{}, false
	}
	f, ok := p.FlavorByID(platform, flavorID)
	if !ok {
		return Product{}, Flavor{}, false
	}
	return p, f, true
}
