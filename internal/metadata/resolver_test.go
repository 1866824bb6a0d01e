package metadata

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelfapp/bookshelf-server/internal/metadata/openlibrary"
)

type fakeClient struct {
	editions map[string]*openlibrary.Edition
	errs     map[string]error
	calls    []string
}

func (f *fakeClient) GetEdition(_ context.Context, isbnCode string) (*openlibrary.Edition, error) {
	f.calls = append(f.calls, isbnCode)
	if err, ok := f.errs[isbnCode]; ok {
		return nil, err
	}
	if ed, ok := f.editions[isbnCode]; ok {
		return ed, nil
	}
	return nil, openlibrary.ErrNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestResolver(client LookupClient) *Resolver {
	return NewResolver(client, time.Second, 0, testLogger())
}

func TestResolvePrefersISBN13(t *testing.T) {
	client := &fakeClient{editions: map[string]*openlibrary.Edition{
		"9780306406157": {
			Title:      "Effective TCP/IP Programming",
			Authors:    []string{"Jon C. Snader"},
			Publishers: []string{"Addison-Wesley"},
			Year:       2004,
			ISBN13:     []string{"9780306406157"},
			Languages:  []string{"eng"},
		},
	}}

	md, ok := newTestResolver(client).Resolve(context.Background(), "0-306-40615-2", "978-0-306-40615-7")
	require.True(t, ok)

	assert.Equal(t, []string{"9780306406157"}, client.calls, "only the ISBN-13 should be tried")
	assert.Equal(t, "Effective TCP/IP Programming", md.Title)
	assert.Equal(t, "Addison-Wesley", md.Publisher)
	assert.Equal(t, "eng", md.Lang)
	assert.Equal(t, 2004, md.Year)
	assert.Equal(t, "9780306406157", md.ISBN13)
	assert.Equal(t, "978-0-306-40615-7", md.ParsedISBN, "parsed form is kept as extracted")
}

func TestResolveFallsBackToISBN10(t *testing.T) {
	client := &fakeClient{editions: map[string]*openlibrary.Edition{
		"0306406152": {Title: "Fallback Title"},
	}}

	md, ok := newTestResolver(client).Resolve(context.Background(), "0306406152", "9780306406157")
	require.True(t, ok)

	assert.Equal(t, []string{"9780306406157", "0306406152"}, client.calls)
	assert.Equal(t, "Fallback Title", md.Title)
	assert.Equal(t, "0306406152", md.ParsedISBN)
	assert.Empty(t, md.ISBN13, "a 10-digit lookup without isbn_13 data leaves it unknown")
}

func TestResolveNothingFound(t *testing.T) {
	client := &fakeClient{}

	md, ok := newTestResolver(client).Resolve(context.Background(), "0306406152", "978-0-306-40615-7")
	assert.False(t, ok)
	assert.Equal(t, []string{"9780306406157", "0306406152"}, client.calls)
	assert.Equal(t, Metadata{}, md, "an unresolved lookup yields no metadata at all")
}

func TestResolveNoIdentifiers(t *testing.T) {
	client := &fakeClient{}

	md, ok := newTestResolver(client).Resolve(context.Background(), "", "")
	assert.False(t, ok)
	assert.Empty(t, client.calls)
	assert.Empty(t, md.ParsedISBN)
}

func TestResolveRetriesTransientErrors(t *testing.T) {
	client := &fakeClient{errs: map[string]error{
		"9780306406157": openlibrary.ErrServer,
	}}
	r := NewResolver(client, time.Second, 2, testLogger())
	r.backoff = time.Millisecond

	_, ok := r.Resolve(context.Background(), "", "9780306406157")
	assert.False(t, ok)
	assert.Len(t, client.calls, 3, "initial attempt plus two retries")
}

func TestResolveDoesNotRetryNotFound(t *testing.T) {
	client := &fakeClient{}
	r := NewResolver(client, time.Second, 3, testLogger())

	_, ok := r.Resolve(context.Background(), "", "9780306406157")
	assert.False(t, ok)
	assert.Len(t, client.calls, 1, "a definitive miss should not be retried")
}
