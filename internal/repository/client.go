// Package repository discovers builds in the configured artifact repositories.
//
// A repository is either a TeamCity-style build server queried over its REST
// API, or a folder holding artifacts named like cache entries.
package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/quantmind-br/gman/internal/core"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrNoRepositories is returned when no repository is usable for a search
var ErrNoRepositories = errors.New("no repository configured for this platform and product")

// HTTPClient is the subset of *http.Client the repository needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries repositories for candidates
type Client struct {
	httpClient HTTPClient
	fs         afero.Fs
	log        *zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithFs sets the filesystem used for folder repositories
func WithFs(fs afero.Fs) Option {
	return func(cl *Client) {
		cl.fs = fs
	}
}

// NewClient creates a Client. Requests carry no timeout of their own;
// cancel ctx to abort them.
func NewClient(log *zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		fs:         afero.NewOsFs(),
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enumerate lists the candidates every valid repository offers for the
// platform flavors of products. Failing repositories are logged and skipped.
func (c *Client) Enumerate(ctx context.Context, platform core.Platform, products core.Catalog, repos []core.CandidateRepository) []core.InstallationCandidate {
	var out []core.InstallationCandidate

	for _, repo := range core.ValidRepositories(repos, platform) {
		for _, product := range products {
			if !repo.Allows(product.Name) {
				continue
			}
			for _, flavor := range product.FlavorsFor(platform) {
				if err := ctx.Err(); err != nil {
					return out
				}

				var (
					found []core.InstallationCandidate
					err   error
				)
				if repo.Server != "" {
					found, err = c.enumerateServer(ctx, repo, product.Name, flavor)
				} else {
					found, err = c.enumerateFolder(repo, product.Name, flavor)
				}
				if err != nil {
					c.logRepositoryError(err, repo, flavor)
					continue
				}
				out = append(out, found...)
			}
		}
	}

	return out
}

// ResolveOne asks each valid repository in order for the build matching
// search and returns the first hit with the repository that served it.
//
// A nil candidate with a nil error means no repository knows the build.
// When nothing is found and at least one repository could not be reached,
// the transport errors are returned instead.
func (c *Client) ResolveOne(ctx context.Context, search core.SearchCandidate, repos []core.CandidateRepository) (*core.InstallationCandidate, *core.CandidateRepository, error) {
	var (
		tried     int
		transport []error
	)

	for _, repo := range core.ValidRepositories(repos, search.Flavor.Platform) {
		if !repo.Allows(search.ProductName) {
			continue
		}
		tried++

		var (
			found *core.InstallationCandidate
			err   error
		)
		if repo.Server != "" {
			found, err = c.resolveServer(ctx, repo, search)
		} else {
			found, err = c.resolveFolder(repo, search)
		}

		if err != nil {
			c.logRepositoryError(err, repo, search.Flavor)
			if isTransport(err) {
				transport = append(transport, err)
			}
			continue
		}
		if found != nil {
			c.log.Debug().
				Str("repository", repo.Name).
				Str("version", found.Version.String()).
				Str("identifier", found.Identifier).
				Msg("resolved build")
			r := repo
			return found, &r, nil
		}
		c.log.Debug().Str("repository", repo.Name).Str("search", search.String()).Msg("no matching build")
	}

	if tried == 0 {
		return nil, nil, fmt.Errorf("%w: %s on %s", ErrNoRepositories, search.ProductName, search.Flavor.Platform)
	}
	if len(transport) > 0 {
		return nil, nil, fmt.Errorf("resolve %s: %w", search, errors.Join(transport...))
	}
	return nil, nil, nil
}

func (c *Client) logRepositoryError(err error, repo core.CandidateRepository, flavor core.Flavor) {
	event := c.log.Warn()
	if errors.Is(err, core.ErrEndpointNotFound) {
		event = c.log.Debug()
	}
	event.Err(err).
		Str("repository", repo.Name).
		Str("flavor", flavor.ID).
		Msg("repository skipped")
}

// isTransport reports whether err means the repository could not be reached at all
func isTransport(err error) bool {
	var repoErr *core.RepositoryError
	return errors.As(err, &repoErr) && repoErr.StatusCode == 0
}
