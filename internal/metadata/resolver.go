// Package metadata resolves bibliographic metadata for extracted identifiers.
package metadata

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/isbn"
	"github.com/bookshelfapp/bookshelf-server/internal/metadata/openlibrary"
)

// Metadata is the bibliographic record attached to an imported book.
// Zero values mean unknown.
type Metadata struct {
	Title      string
	Authors    []string
	Year       int
	Lang       string
	Publisher  string
	ISBN13     string
	ParsedISBN string
}

// LookupClient fetches an edition record for a normalized ISBN.
type LookupClient interface {
	GetEdition(ctx context.Context, isbnCode string) (*openlibrary.Edition, error)
}

// Resolver turns extracted ISBN candidates into metadata. The ISBN-13 is
// tried first, falling back to the ISBN-10. Lookup failures are recovered:
// a book with no metadata is still a book.
type Resolver struct {
	client  LookupClient
	logger  *slog.Logger
	timeout time.Duration
	retries int
	backoff time.Duration
}

// NewResolver creates a resolver around a lookup client. timeout bounds
// each attempt, retries bounds extra attempts on transient failures.
func NewResolver(client LookupClient, timeout time.Duration, retries int, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Resolver{
		client:  client,
		logger:  logger,
		timeout: timeout,
		retries: retries,
		backoff: 500 * time.Millisecond,
	}
}

// Resolve looks up metadata for the extracted identifiers, which may be
// hyphenated as found in the file. Returns an empty Metadata and
// ok=false when neither identifier yields a record: parsed_isbn records
// the identifier that resolved, so an unresolved book carries none.
func (r *Resolver) Resolve(ctx context.Context, isbn10, isbn13 string) (Metadata, bool) {
	for _, candidate := range []string{isbn13, isbn10} {
		if candidate == "" {
			continue
		}
		ed, err := r.lookup(ctx, isbn.Normalize(candidate))
		if err != nil {
			r.logger.Warn("metadata lookup failed", "isbn", candidate, "error", err)
			continue
		}

		md := editionToMetadata(ed)
		md.ParsedISBN = candidate
		if md.ISBN13 == "" && len(isbn.Normalize(candidate)) == 13 {
			md.ISBN13 = isbn.Normalize(candidate)
		}
		return md, true
	}

	return Metadata{}, false
}

// lookup runs one identifier through the client with a per-attempt
// deadline and bounded retries on transient failures.
func (r *Resolver) lookup(ctx context.Context, isbnCode string) (*openlibrary.Edition, error) {
	var lastErr error
	backoff := r.backoff

	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		ed, err := r.client.GetEdition(attemptCtx, isbnCode)
		cancel()

		if err == nil {
			return ed, nil
		}
		lastErr = err

		// A definitive miss will not improve with retries.
		if errors.Is(err, openlibrary.ErrNotFound) {
			return nil, err
		}
		r.logger.Debug("lookup attempt failed", "isbn", isbnCode, "attempt", attempt+1, "error", err)
	}

	return nil, lastErr
}

func editionToMetadata(ed *openlibrary.Edition) Metadata {
	md := Metadata{
		Title:   ed.Title,
		Authors: ed.Authors,
		Year:    ed.Year,
	}
	if md.Authors == nil {
		md.Authors = []string{}
	}
	if len(ed.Publishers) > 0 {
		md.Publisher = ed.Publishers[0]
	}
	if len(ed.Languages) > 0 {
		md.Lang = ed.Languages[0]
	}
	if len(ed.ISBN13) > 0 {
		md.ISBN13 = isbn.Normalize(ed.ISBN13[0])
	}
	return md
}
