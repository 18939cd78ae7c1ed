package repository

import (
	"github.com/quantmind-br/gman/internal/cache"
	"github.com/quantmind-br/gman/internal/core"
)

// folderIndex reads a folder repository with the cache naming rules,
// restricted to one product flavor
func (c *Client) folderIndex(repo core.CandidateRepository, product string, flavor core.Flavor) *cache.Index {
	catalog := core.Catalog{{Name: product, Flavors: []core.Flavor{flavor}}}
	return cache.NewIndex(c.fs, repo.Folder, catalog, c.log)
}

func (c *Client) enumerateFolder(repo core.CandidateRepository, product string, flavor core.Flavor) ([]core.InstallationCandidate, error) {
	entries, err := c.folderIndex(repo, product, flavor).List()
	if err != nil {
		return nil, &core.RepositoryError{Repository: repo.Name, Err: err}
	}

	var out []core.InstallationCandidate
	for _, e := range entries {
		if e.Flavor.Platform != flavor.Platform {
			continue
		}
		e.RemoteID = e.RepoLocation
		e.RepoLocation = repo.Location()
		out = append(out, e)
	}
	return out, nil
}

func (c *Client) resolveFolder(repo core.CandidateRepository, search core.SearchCandidate) (*core.InstallationCandidate, error) {
	entries, err := c.folderIndex(repo, search.ProductName, search.Flavor).List()
	if err != nil {
		return nil, &core.RepositoryError{Repository: repo.Name, Err: err}
	}

	found, ok := cache.Match(entries, search)
	if !ok {
		return nil, nil
	}
	// the artifact's path inside the folder is the remote id
	found.RemoteID = found.RepoLocation
	found.RepoLocation = repo.Location()
	return &found, nil
}
