// Package download moves artifacts from a repository into the local cache.
//
// Bytes land in the temp directory first and are renamed into the cache
// only once complete. A failed transfer leaves its partial temp file behind
// and the next attempt starts again from byte zero.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/fsops"
	"github.com/quantmind-br/gman/internal/repository"
	"github.com/quantmind-br/gman/internal/security"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultChunkSize is the size of each ranged request
const DefaultChunkSize int64 = 1 << 20

var (
	// ErrMissingLength is returned when the server does not announce a Content-Length
	ErrMissingLength = errors.New("missing content length")
	// ErrInvalidChunkSize is returned for a chunk size that is not positive
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

// ProgressFunc receives the cumulative number of bytes requested so far
type ProgressFunc func(done, total int64)

// Downloader fetches artifacts into the cache directory
type Downloader struct {
	httpClient repository.HTTPClient
	fs         afero.Fs
	tempDir    string
	cacheDir   string
	chunkSize  int64
	progress   ProgressFunc
	log        *zerolog.Logger
}

// Option configures a Downloader
type Option func(*Downloader)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c repository.HTTPClient) Option {
	return func(d *Downloader) {
		d.httpClient = c
	}
}

// WithFs replaces the OS filesystem
func WithFs(fs afero.Fs) Option {
	return func(d *Downloader) {
		d.fs = fs
	}
}

// WithChunkSize sets the size of each ranged request
func WithChunkSize(n int64) Option {
	return func(d *Downloader) {
		d.chunkSize = n
	}
}

// WithProgressFunc registers a progress callback
func WithProgressFunc(fn ProgressFunc) Option {
	return func(d *Downloader) {
		d.progress = fn
	}
}

// New creates a Downloader writing partial files to tempDir and finished
// artifacts to cacheDir
func New(tempDir, cacheDir string, log *zerolog.Logger, opts ...Option) (*Downloader, error) {
	d := &Downloader{
		httpClient: http.DefaultClient,
		fs:         afero.NewOsFs(),
		tempDir:    tempDir,
		cacheDir:   cacheDir,
		chunkSize:  DefaultChunkSize,
		log:        log,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.chunkSize <= 0 {
		return nil, fmt.Errorf("downloader: %w (got %d)", ErrInvalidChunkSize, d.chunkSize)
	}
	return d, nil
}

// Download fetches the artifact of c from repo and returns its path in the cache
func (d *Downloader) Download(ctx context.Context, c core.InstallationCandidate, repo core.CandidateRepository) (string, error) {
	name := c.CachedFileName()
	if err := validateName(c); err != nil {
		return "", &core.DownloadError{URL: name, Err: err}
	}

	tempPath := filepath.Join(d.tempDir, name)
	cachePath := filepath.Join(d.cacheDir, name)

	var err error
	if repo.Server != "" {
		err = d.fetchRemote(ctx, repository.ArtifactURL(repo.Server, c), repo, tempPath)
	} else {
		err = d.copyLocal(ctx, c.RemoteID, tempPath)
	}
	if err != nil {
		return "", err
	}

	if err := fsops.MoveFile(d.fs, tempPath, cachePath); err != nil {
		return "", fmt.Errorf("downloader: move into cache: %w", err)
	}

	d.log.Info().Str("artifact", cachePath).Msg("artifact cached")
	return cachePath, nil
}

// fetchRemote probes the artifact length, then pulls it range by range
func (d *Downloader) fetchRemote(ctx context.Context, url string, repo core.CandidateRepository, tempPath string) error {
	length, err := d.contentLength(ctx, url, repo)
	if err != nil {
		return err
	}

	f, err := d.createTemp(tempPath)
	if err != nil {
		return &core.DownloadError{URL: url, Err: err}
	}
	defer f.Close()

	d.log.Debug().Str("url", url).Int64("bytes", length).Int64("chunk", d.chunkSize).Msg("downloading")

	for start := int64(0); start < length; start += d.chunkSize {
		end := min(start+d.chunkSize, length) - 1
		if err := d.fetchRange(ctx, url, repo, start, end, f); err != nil {
			return err
		}
		d.report(end+1, length)
	}

	if err := f.Close(); err != nil {
		return &core.DownloadError{URL: url, Err: err}
	}
	return nil
}

func (d *Downloader) contentLength(ctx context.Context, url string, repo core.CandidateRepository) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, &core.DownloadError{URL: url, Err: err}
	}
	repository.Authorize(req, repo.Credentials)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, &core.DownloadError{URL: url, Err: err}
	}
	resp.Body.Close()

	if err := repository.CheckStatus(repo.Name, resp.StatusCode); err != nil {
		return 0, &core.DownloadError{URL: url, Err: err}
	}

	header := resp.Header.Get("Content-Length")
	if header == "" {
		return 0, &core.DownloadError{URL: url, Err: ErrMissingLength}
	}
	length, err := strconv.ParseInt(header, 10, 64)
	if err != nil || length < 0 {
		return 0, &core.DownloadError{URL: url, Err: fmt.Errorf("%w: %q", ErrMissingLength, header)}
	}
	return length, nil
}

func (d *Downloader) fetchRange(ctx context.Context, url string, repo core.CandidateRepository, start, end int64, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &core.DownloadError{URL: url, Err: err}
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	repository.Authorize(req, repo.Credentials)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &core.DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return &core.DownloadError{
			URL: url,
			Err: &core.RepositoryError{Repository: repo.Name, StatusCode: resp.StatusCode, Err: core.ErrUnexpectedStatus},
		}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return &core.DownloadError{URL: url, Err: fmt.Errorf("range %d-%d: %w", start, end, err)}
	}
	return nil
}

// copyLocal copies an artifact out of a folder repository in chunks
func (d *Downloader) copyLocal(ctx context.Context, src, tempPath string) error {
	in, err := d.fs.Open(src)
	if err != nil {
		return &core.DownloadError{URL: src, Err: err}
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return &core.DownloadError{URL: src, Err: err}
	}
	length := info.Size()

	out, err := d.createTemp(tempPath)
	if err != nil {
		return &core.DownloadError{URL: src, Err: err}
	}
	defer out.Close()

	for done := int64(0); done < length; {
		if err := ctx.Err(); err != nil {
			return &core.DownloadError{URL: src, Err: err}
		}
		n, err := io.CopyN(out, in, min(d.chunkSize, length-done))
		done += n
		if err != nil {
			return &core.DownloadError{URL: src, Err: err}
		}
		d.report(done, length)
	}

	if err := out.Close(); err != nil {
		return &core.DownloadError{URL: src, Err: err}
	}
	return nil
}

func (d *Downloader) createTemp(path string) (afero.File, error) {
	if err := fsops.EnsureDir(d.fs, filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return d.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
}

func (d *Downloader) report(done, total int64) {
	if d.progress != nil {
		d.progress(done, total)
	}
}

// validateName rejects candidates whose cache name would not decode back
// or would escape the cache directory
func validateName(c core.InstallationCandidate) error {
	fields := []struct{ name, value string }{
		{"product", c.ProductName},
		{"platform", string(c.Flavor.Platform)},
		{"flavor", c.Flavor.ID},
		{"identifier", core.EscapeIdentifier(c.Identifier)},
		{"version", string(c.Version)},
		{"artifact", c.Flavor.TeamCity.ArtifactFileName()},
	}
	for _, f := range fields {
		if err := security.ValidateCacheField(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}
