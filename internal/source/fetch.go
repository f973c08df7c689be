package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Retrieves recipe sources.
type Fetcher struct {
	client *retryablehttp.Client
}

// Creates a fetcher with the default retry policy.
func NewFetcher() *Fetcher {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.Logger = slog.Default()
	return &Fetcher{client: c}
}

// Opens ref as an uncompressed tar stream.
//
// Relative host paths are resolved against base. The caller must close the
// returned stream. Errors wrap [ErrSourceFetch].
func (f *Fetcher) Open(ctx context.Context, ref, base string) (io.ReadCloser, error) {
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return f.download(ctx, ref, u.Path)
	}

	p := ref
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceFetch, err)
	}
	if info.IsDir() {
		return archiveDir(p), nil
	}

	file, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceFetch, err)
	}
	rc, err := decompress(file, p)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceFetch, p, err)
	}
	return rc, nil
}

func (f *Fetcher) download(ctx context.Context, ref, name string) (io.ReadCloser, error) {
	if _, err := compressionOf(name); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceFetch, ref, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %s", ErrSourceFetch, ref, resp.Status)
	}

	rc, err := decompress(resp.Body, name)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceFetch, ref, err)
	}
	return rc, nil
}

