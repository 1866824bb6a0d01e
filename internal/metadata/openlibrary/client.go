// Package openlibrary provides a rate-limited client for the Open Library book API.
package openlibrary

import (
	"context"
	"github.com/go-json-experiment/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/ratelimit"
)

const (
	defaultBaseURL = "https://openlibrary.org"

	// Open Library asks clients to stay around 1 request per second.
	defaultRPS   = 1.0
	defaultBurst = 3

	defaultTimeout = 30 * time.Second
)

// Client is a rate-limited Open Library API client.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
	baseURL string
}

// New creates a new Open Library client.
func New(logger *slog.Logger) *Client {
	return NewWithBaseURL(logger, defaultBaseURL)
}

// NewWithBaseURL creates a client against a custom endpoint.
// Used by tests to point at a local server.
func NewWithBaseURL(logger *slog.Logger, baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: ratelimit.New(defaultRPS, defaultBurst),
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Edition is a resolved Open Library edition record.
type Edition struct {
	Title       string
	Authors     []string
	Publishers  []string
	PublishDate string
	Year        int
	ISBN13      []string
	Languages   []string // ISO 639 codes, e.g. "eng"
}

// rawEdition mirrors the /isbn/{isbn}.json response shape.
type rawEdition struct {
	Title       string   `json:"title"`
	PublishDate string   `json:"publish_date"`
	Publishers  []string `json:"publishers"`
	ISBN13      []string `json:"isbn_13"`
	Authors     []keyRef `json:"authors"`
	Languages   []keyRef `json:"languages"`
}

type keyRef struct {
	Key string `json:"key"` // e.g. "/authors/OL26320A", "/languages/eng"
}

// GetEdition looks up an edition by ISBN (10 or 13, without hyphens).
// Author names are resolved through follow-up requests; a failed author
// lookup degrades to fewer names rather than failing the edition.
func (c *Client) GetEdition(ctx context.Context, isbnCode string) (*Edition, error) {
	body, err := c.doRequest(ctx, "/isbn/"+url.PathEscape(isbnCode)+".json")
	if err != nil {
		return nil, wrapError("getEdition", isbnCode, err)
	}

	var raw rawEdition
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, wrapError("getEdition", isbnCode, fmt.Errorf("parse response: %w", err))
	}

	ed := &Edition{
		Title:       raw.Title,
		Publishers:  raw.Publishers,
		PublishDate: raw.PublishDate,
		Year:        extractYear(raw.PublishDate),
		ISBN13:      raw.ISBN13,
	}
	for _, lang := range raw.Languages {
		if code := strings.TrimPrefix(lang.Key, "/languages/"); code != "" {
			ed.Languages = append(ed.Languages, code)
		}
	}
	for _, ref := range raw.Authors {
		name, err := c.getAuthorName(ctx, ref.Key)
		if err != nil {
			c.logger.Debug("author lookup failed", "key", ref.Key, "error", err)
			continue
		}
		if name != "" {
			ed.Authors = append(ed.Authors, name)
		}
	}

	return ed, nil
}

// getAuthorName resolves an author record key to a display name.
func (c *Client) getAuthorName(ctx context.Context, key string) (string, error) {
	if !strings.HasPrefix(key, "/authors/") {
		return "", wrapError("getAuthor", "", fmt.Errorf("unexpected author key %q", key))
	}

	body, err := c.doRequest(ctx, key+".json")
	if err != nil {
		return "", wrapError("getAuthor", "", err)
	}

	var raw struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", wrapError("getAuthor", "", fmt.Errorf("parse response: %w", err))
	}
	return raw.Name, nil
}

// doRequest executes a GET with rate limiting keyed by host.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	host := c.baseURL
	if u, err := url.Parse(c.baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	if err := c.limiter.Wait(ctx, host); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Bookshelf/1.0")

	c.logger.Debug("openlibrary request", "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		if resp.StatusCode >= 500 {
			return nil, ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// yearPattern matches a plausible publication year.
var yearPattern = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})\b`)

// extractYear pulls a year out of free-form publish dates such as
// "March 2004" or "2004-03-01". Returns 0 when none is found.
func extractYear(publishDate string) int {
	match := yearPattern.FindString(publishDate)
	if match == "" {
		return 0
	}
	year, _ := strconv.Atoi(match)
	return year
}
