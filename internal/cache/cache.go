// Package cache indexes the directory of downloaded artifacts.
//
// Every entry is a plain file whose name encodes the candidate it holds:
//
//	{product}@{platform}@{flavorId}@{identifier}@{version}@{artifactFileName}
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/fsops"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Index answers questions about the artifacts present in one directory
type Index struct {
	fs      afero.Fs
	dir     string
	catalog core.Catalog
	log     *zerolog.Logger
}

// NewIndex creates an Index over dir
func NewIndex(fs afero.Fs, dir string, catalog core.Catalog, log *zerolog.Logger) *Index {
	return &Index{
		fs:      fs,
		dir:     dir,
		catalog: catalog,
		log:     log,
	}
}

// Dir returns the indexed directory
func (i *Index) Dir() string {
	return i.dir
}

// PathFor returns where the artifact of c lives (or will live) in the index
func (i *Index) PathFor(c core.InstallationCandidate) string {
	return filepath.Join(i.dir, c.CachedFileName())
}

// List decodes every entry, re-attaches its flavor from the catalog and sorts
// the result. Entries that do not decode or whose product or flavor is no
// longer configured are skipped. A missing directory yields an empty list.
// The RepoLocation of every returned candidate is the entry's full path.
func (i *Index) List() ([]core.InstallationCandidate, error) {
	entries, err := afero.ReadDir(i.fs, i.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	var out []core.InstallationCandidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		parsed, err := core.ParseCachedFileName(entry.Name())
		if err != nil {
			i.log.Trace().Str("entry", entry.Name()).Msg("skipping unrecognized cache entry")
			continue
		}

		product, flavor, ok := i.catalog.FindFlavor(parsed.ProductName, parsed.Flavor.Platform, parsed.Flavor.ID)
		if !ok {
			i.log.Debug().
				Str("product", parsed.ProductName).
				Str("flavor", parsed.Flavor.ID).
				Msg("cache entry has no catalog flavor, skipping")
			continue
		}

		out = append(out, core.InstallationCandidate{
			RemoteID:     entry.Name(),
			RepoLocation: filepath.Join(i.dir, entry.Name()),
			ProductName:  product.Name,
			Version:      parsed.Version,
			Identifier:   parsed.Identifier,
			Flavor:       flavor,
		})
	}

	Sort(out)
	return out, nil
}

// Locate returns the cached candidate that satisfies search, if any
func (i *Index) Locate(search core.SearchCandidate) (core.InstallationCandidate, bool) {
	entries, err := i.List()
	if err != nil {
		i.log.Warn().Err(err).Str("dir", i.dir).Msg("cannot read cache")
		return core.InstallationCandidate{}, false
	}
	return Match(entries, search)
}

// Clear removes every entry of the cache directory
func (i *Index) Clear() (int, error) {
	n, err := fsops.RemoveContents(i.fs, i.dir)
	if err != nil {
		return n, fmt.Errorf("clear cache: %w", err)
	}
	i.log.Info().Str("dir", i.dir).Int("removed", n).Msg("cache cleared")
	return n, nil
}

// Sort orders candidates by flavor id, then newest version first, then identifier.
// Versions that cannot be compared keep their relative order.
func Sort(candidates []core.InstallationCandidate) {
	slices.SortStableFunc(candidates, func(a, b core.InstallationCandidate) int {
		if c := strings.Compare(a.Flavor.ID, b.Flavor.ID); c != 0 {
			return c
		}
		switch a.Version.Compare(b.Version) {
		case core.Greater:
			return -1
		case core.Less:
			return 1
		}
		return strings.Compare(a.Identifier, b.Identifier)
	})
}

// Match picks the first entry of sorted that satisfies search.
//
// Entries must share the search's platform, product and flavor id. A version
// in the search must match exactly; otherwise an identifier must match;
// otherwise the first entry wins.
func Match(sorted []core.InstallationCandidate, search core.SearchCandidate) (core.InstallationCandidate, bool) {
	for _, c := range sorted {
		if c.Flavor.Platform != search.Flavor.Platform ||
			!strings.EqualFold(c.ProductName, search.ProductName) ||
			!strings.EqualFold(c.Flavor.ID, search.Flavor.ID) {
			continue
		}

		switch {
		case !search.Version.IsZero():
			if strings.EqualFold(string(c.Version), string(search.Version)) {
				return c, true
			}
		case search.Identifier != "":
			if strings.EqualFold(c.Identifier, search.Identifier) {
				return c, true
			}
		default:
			return c, true
		}
	}
	return core.InstallationCandidate{}, false
}
