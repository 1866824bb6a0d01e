// Package cover downloads cover images for resolved ISBNs from the Open Library covers host.
package cover

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/ratelimit"
)

const (
	defaultBaseURL = "https://covers.openlibrary.org"

	defaultRPS     = 1.0
	defaultBurst   = 2
	defaultTimeout = 30 * time.Second
)

// Fetcher downloads cover images into a local directory.
type Fetcher struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
	baseURL string
	dir     string
}

// New creates a fetcher that stores images under dir.
func New(dir string, logger *slog.Logger) *Fetcher {
	return NewWithBaseURL(dir, logger, defaultBaseURL)
}

// NewWithBaseURL creates a fetcher against a custom endpoint for tests.
func NewWithBaseURL(dir string, logger *slog.Logger, baseURL string) *Fetcher {
	return &Fetcher{
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: ratelimit.New(defaultRPS, defaultBurst),
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dir:     dir,
	}
}

// Fetch downloads the large cover for an ISBN and returns the saved path.
// Books without a cover on record return os.ErrNotExist.
func (f *Fetcher) Fetch(ctx context.Context, isbnCode string) (string, error) {
	host := f.baseURL
	if u, err := url.Parse(f.baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	if err := f.limiter.Wait(ctx, host); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	// default=false turns the placeholder image into a 404.
	reqURL := fmt.Sprintf("%s/b/isbn/%s-L.jpg?default=false", f.baseURL, url.PathEscape(isbnCode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Bookshelf/1.0")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", os.ErrNotExist
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create covers dir: %w", err)
	}

	path := filepath.Join(f.dir, isbnCode+".jpg")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create cover file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write cover: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close cover: %w", err)
	}

	f.logger.Debug("cover saved", "isbn", isbnCode, "path", path)
	return path, nil
}
