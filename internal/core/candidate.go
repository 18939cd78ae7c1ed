package core

import (
	"fmt"
	"net/url"
	"strings"
)

// cachedNameSeparator joins the fields of a cached artifact file name
const cachedNameSeparator = "@"

// identifierEscaper percent-encodes the characters a branch name may carry
// that cannot appear in a cache entry name. '%' goes first so decoding is exact.
var identifierEscaper = strings.NewReplacer(
	"%", "%25",
	"@", "%40",
	"/", "%2F",
	"\\", "%5C",
)

// EscapeIdentifier encodes a branch identifier for use in a cache entry name,
// turning "feature/login" into "feature%2Flogin"
func EscapeIdentifier(identifier string) string {
	return identifierEscaper.Replace(identifier)
}

// UnescapeIdentifier reverses EscapeIdentifier
func UnescapeIdentifier(field string) (string, error) {
	return url.PathUnescape(field)
}

// SearchCandidate describes what the user asked to install
type SearchCandidate struct {
	ProductName string
	Version     Version
	Identifier  string
	Flavor      Flavor
}

// NewSearchCandidate resolves a product and flavor from the catalog.
// An empty flavorID selects the platform's default flavor.
func NewSearchCandidate(catalog Catalog, platform Platform, product string, version Version, identifier, flavorID string) (SearchCandidate, error) {
	p, ok := catalog.Find(product)
	if !ok {
		return SearchCandidate{}, fmt.Errorf("%w: product %q", ErrNotFound, product)
	}

	var flavor Flavor
	if flavorID != "" {
		flavor, ok = p.FlavorByID(platform, flavorID)
		if !ok {
			return SearchCandidate{}, fmt.Errorf("%w: flavor %q of %s for %s", ErrNotFound, flavorID, p.Name, platform)
		}
	} else {
		flavor, ok = p.DefaultFlavor(platform)
		if !ok {
			return SearchCandidate{}, fmt.Errorf("%w: %s has no flavor for %s", ErrNotFound, p.Name, platform)
		}
	}

	return SearchCandidate{
		ProductName: p.Name,
		Version:     version,
		Identifier:  identifier,
		Flavor:      flavor,
	}, nil
}

func (s SearchCandidate) String() string {
	target := "latest"
	switch {
	case !s.Version.IsZero():
		target = s.Version.String()
	case s.Identifier != "":
		target = s.Identifier
	}
	return fmt.Sprintf("%s (%s) %s", s.ProductName, s.Flavor.ID, target)
}

// InstallationCandidate is a concrete build artifact that can be installed
type InstallationCandidate struct {
	RemoteID     string  `json:"remote_id"`
	RepoLocation string  `json:"repo_location"`
	ProductName  string  `json:"product_name"`
	Version      Version `json:"version"`
	Identifier   string  `json:"identifier"`
	Flavor       Flavor  `json:"flavor"`
	Installed    bool    `json:"installed"`
}

// CachedFileName encodes the candidate into its cache entry name
func (c InstallationCandidate) CachedFileName() string {
	return strings.Join([]string{
		c.ProductName,
		string(c.Flavor.Platform),
		c.Flavor.ID,
		EscapeIdentifier(c.Identifier),
		string(c.Version),
		c.Flavor.TeamCity.ArtifactFileName(),
	}, cachedNameSeparator)
}

// ParseCachedFileName decodes a cache entry name.
// The returned flavor only carries the platform, id and artifact file name;
// callers re-attach the full flavor from the catalog.
func ParseCachedFileName(name string) (InstallationCandidate, error) {
	fields := strings.Split(name, cachedNameSeparator)
	if len(fields) != 6 {
		return InstallationCandidate{}, fmt.Errorf("cached file name %q: expected 6 fields, got %d", name, len(fields))
	}

	identifier, err := UnescapeIdentifier(fields[3])
	if err != nil {
		return InstallationCandidate{}, fmt.Errorf("cached file name %q: identifier: %w", name, err)
	}

	return InstallationCandidate{
		ProductName: fields[0],
		Identifier:  identifier,
		Version:     Version(fields[4]),
		Flavor: Flavor{
			Platform: Platform(fields[1]),
			ID:       fields[2],
			TeamCity: TeamCityMetadata{ArtifactPath: fields[5]},
		},
	}, nil
}

// SearchFor pins a search to this candidate's flavor, identifier and version
func (c InstallationCandidate) SearchFor() SearchCandidate {
	return SearchCandidate{
		ProductName: c.ProductName,
		Version:     c.Version,
		Identifier:  c.Identifier,
		Flavor:      c.Flavor,
	}
}
