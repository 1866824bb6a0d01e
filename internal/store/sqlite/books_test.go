package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

func TestInsertAndLoadBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")

	b := mustBook(t, f, "snader.pdf")
	b.Title = "Effective TCP/IP Programming"
	b.Authors = []string{"Jon C. Snader"}
	b.Year = 2004
	b.Lang = "eng"
	b.Publisher = "Addison-Wesley"
	b.ISBN13 = "9780306406157"
	b.ParsedISBN = "978-0-306-40615-7"
	b.Tags = []string{"networking"}

	id, err := s.InsertBook(ctx, b)
	if err != nil {
		t.Fatalf("insert book: %v", err)
	}
	if id == 0 || b.ID != id {
		t.Fatalf("id = %d, book.ID = %d", id, b.ID)
	}

	loaded, err := s.LoadBookByID(ctx, id)
	if err != nil {
		t.Fatalf("load book: %v", err)
	}
	if loaded.Title != b.Title || loaded.Publisher != b.Publisher || loaded.Year != 2004 {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Authors) != 1 || loaded.Authors[0] != "Jon C. Snader" {
		t.Errorf("authors = %v", loaded.Authors)
	}
	if len(loaded.Tags) != 1 || loaded.Tags[0] != "networking" {
		t.Errorf("tags = %v", loaded.Tags)
	}
	if loaded.ISBN13 != "9780306406157" || loaded.ParsedISBN != "978-0-306-40615-7" {
		t.Errorf("isbns = (%q, %q)", loaded.ISBN13, loaded.ParsedISBN)
	}
	if loaded.Folder == nil || loaded.Folder.ID != f.ID || loaded.Folder.Name != "library" {
		t.Errorf("folder = %+v", loaded.Folder)
	}
	if !loaded.AddedAt.Equal(b.AddedAt) {
		t.Errorf("added_date = %v, want %v", loaded.AddedAt, b.AddedAt)
	}
	if !loaded.Active || loaded.Confirmed {
		t.Errorf("state = (active=%v, confirmed=%v)", loaded.Active, loaded.Confirmed)
	}
}

func TestLoadBookNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadBookByID(context.Background(), 42)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestInsertBookDuplicateHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")

	original := mustBook(t, f, "same.pdf")
	originalID, err := s.InsertBook(ctx, original)
	if err != nil {
		t.Fatalf("insert original: %v", err)
	}

	// Same filename, same hash, even from a different storage path.
	dup := mustBook(t, f, "same.pdf")
	dup.StoragePath = "elsewhere/same.pdf"

	gotID, err := s.InsertBook(ctx, dup)
	if err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}
	if gotID != originalID {
		t.Errorf("duplicate returned id %d, want original %d", gotID, originalID)
	}

	books, err := s.LoadBooks(ctx, store.SortNone, store.FilterNone, "")
	if err != nil {
		t.Fatalf("load books: %v", err)
	}
	if len(books) != 1 {
		t.Errorf("got %d books, want 1", len(books))
	}

	n, err := s.CountDuplicates(ctx, originalID)
	if err != nil {
		t.Fatalf("count duplicates: %v", err)
	}
	if n != 1 {
		t.Errorf("duplicates = %d, want 1", n)
	}
}

func TestInsertBookDuplicateISBN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")

	original := mustBook(t, f, "first-copy.pdf")
	original.ISBN13 = "9780306406157"
	originalID, err := s.InsertBook(ctx, original)
	if err != nil {
		t.Fatalf("insert original: %v", err)
	}

	dup := mustBook(t, f, "second-copy.pdf")
	dup.ISBN13 = "9780306406157"

	gotID, err := s.InsertBook(ctx, dup)
	if err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}
	if gotID != originalID {
		t.Errorf("duplicate returned id %d, want original %d", gotID, originalID)
	}

	n, _ := s.CountDuplicates(ctx, originalID)
	if n != 1 {
		t.Errorf("duplicates = %d, want 1", n)
	}
}

func TestInsertBooksWithoutISBNDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")

	// NULL isbn13 never trips the partial unique index.
	for _, name := range []string{"a.pdf", "b.pdf", "c.epub"} {
		if _, err := s.InsertBook(ctx, mustBook(t, f, name)); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}

	books, err := s.LoadBooks(ctx, store.SortNone, store.FilterNone, "")
	if err != nil {
		t.Fatalf("load books: %v", err)
	}
	if len(books) != 3 {
		t.Errorf("got %d books, want 3", len(books))
	}
}

func TestInsertBookUnregisteredFolder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	unregistered, _ := domain.NewFolder("ghost", "/data/ghost")
	b := mustBook(t, unregistered, "orphan.pdf")
	if _, err := s.InsertBook(ctx, b); !errors.Is(err, store.ErrFolderMissing) {
		t.Errorf("err = %v, want folder missing", err)
	}

	unregistered.ID = 9999
	if _, err := s.InsertBook(ctx, b); !errors.Is(err, store.ErrFolderMissing) {
		t.Errorf("stale folder id err = %v, want folder missing", err)
	}

	if _, err := s.InsertBook(ctx, nil); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("nil book err = %v, want invalid input", err)
	}
}

func TestInsertBooksBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")

	first := mustBook(t, f, "one.pdf")
	second := mustBook(t, f, "two.pdf")
	dupOfFirst := mustBook(t, f, "one.pdf")

	ids, err := s.InsertBooks(ctx, []*domain.Book{first, second, dupOfFirst})
	if err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %d ids, want 3", len(ids))
	}
	if ids[2] != ids[0] {
		t.Errorf("duplicate folded to id %d, want %d", ids[2], ids[0])
	}

	books, err := s.LoadBooks(ctx, store.SortNone, store.FilterNone, "")
	if err != nil {
		t.Fatalf("load books: %v", err)
	}
	if len(books) != 2 {
		t.Errorf("got %d books, want 2", len(books))
	}
}

func TestInsertBooksBatchRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")

	batch := []*domain.Book{
		mustBook(t, f, "good.pdf"),
		nil, // hard failure mid-batch
		mustBook(t, f, "never.pdf"),
	}

	if _, err := s.InsertBooks(ctx, batch); err == nil {
		t.Fatal("expected batch error")
	}

	books, err := s.LoadBooks(ctx, store.SortNone, store.FilterNone, "")
	if err != nil {
		t.Fatalf("load books: %v", err)
	}
	if len(books) != 0 {
		t.Errorf("got %d books after failed batch, want 0", len(books))
	}
	if batch[0].ID != 0 {
		t.Errorf("book in rolled-back batch has id %d, want 0", batch[0].ID)
	}
}

// seedCatalog inserts a small catalog used by the sort and filter tests.
func seedCatalog(t *testing.T, s *Store, f *domain.Folder) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	ids := map[string]int64{}

	specs := []struct {
		filename  string
		title     string
		authors   []string
		year      int
		publisher string
		size      int64
		tags      []string
		confirmed bool
		active    bool
		addedAt   time.Time
	}{
		{"zebra.pdf", "Zebra Patterns", []string{"Ann Stripe"}, 2001, "Acme", 300, []string{"animals"}, true, true,
			time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"apple.epub", "Apple Farming", []string{"Bob Orchard"}, 2010, "Fruit Press", 100, []string{"farming", "fruit"}, false, true,
			time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"mystery.pdf", "", nil, 0, "", 200, nil, false, false,
			time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, spec := range specs {
		b := mustBook(t, f, spec.filename)
		b.Title = spec.title
		b.Year = spec.year
		b.Publisher = spec.publisher
		b.Size = spec.size
		b.Confirmed = spec.confirmed
		b.Active = spec.active
		b.AddedAt = spec.addedAt
		if spec.authors != nil {
			b.Authors = spec.authors
		}
		if spec.tags != nil {
			b.Tags = spec.tags
		}
		id, err := s.InsertBook(ctx, b)
		if err != nil {
			t.Fatalf("seed %s: %v", spec.filename, err)
		}
		ids[spec.filename] = id
	}
	return ids
}

func filenames(books []*domain.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Filename
	}
	return out
}

func TestLoadBooksSorted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")
	seedCatalog(t, s, f)

	tests := []struct {
		key  store.SortKey
		want []string
	}{
		{store.SortNone, []string{"zebra.pdf", "apple.epub", "mystery.pdf"}},
		{store.SortTitle, []string{"apple.epub", "zebra.pdf", "mystery.pdf"}}, // unknown title last
		{store.SortYear, []string{"zebra.pdf", "apple.epub", "mystery.pdf"}},  // unknown year last
		{store.SortSize, []string{"apple.epub", "mystery.pdf", "zebra.pdf"}},
		{store.SortAddedDate, []string{"zebra.pdf", "mystery.pdf", "apple.epub"}},
	}

	for _, tt := range tests {
		books, err := s.LoadBooks(ctx, tt.key, store.FilterNone, "")
		if err != nil {
			t.Fatalf("sort %q: %v", tt.key, err)
		}
		got := filenames(books)
		if len(got) != len(tt.want) {
			t.Fatalf("sort %q: got %v, want %v", tt.key, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("sort %q: got %v, want %v", tt.key, got, tt.want)
				break
			}
		}
	}
}

func TestLoadBooksFiltered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")
	seedCatalog(t, s, f)

	tests := []struct {
		key   store.FilterKey
		value string
		want  []string
	}{
		{store.FilterPublisher, "Acme", []string{"zebra.pdf"}},
		{store.FilterExt, ".epub", []string{"apple.epub"}},
		{store.FilterYear, "2010", []string{"apple.epub"}},
		{store.FilterTag, "fruit", []string{"apple.epub"}},
		{store.FilterTag, "nothing", []string{}},
		{store.FilterAuthor, "Stripe", []string{"zebra.pdf"}},
		{store.FilterActive, "false", []string{"mystery.pdf"}},
		{store.FilterConfirmed, "true", []string{"zebra.pdf"}},
		{store.FilterConfirmed, "false", []string{"apple.epub", "mystery.pdf"}},
	}

	for _, tt := range tests {
		books, err := s.LoadBooks(ctx, store.SortNone, tt.key, tt.value)
		if err != nil {
			t.Fatalf("filter %q=%q: %v", tt.key, tt.value, err)
		}
		got := filenames(books)
		if len(got) != len(tt.want) {
			t.Fatalf("filter %q=%q: got %v, want %v", tt.key, tt.value, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("filter %q=%q: got %v, want %v", tt.key, tt.value, got, tt.want)
				break
			}
		}
	}
}

func TestLoadBooksRejectsBadKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.LoadBooks(ctx, store.SortKey("filename"), store.FilterNone, ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("bad sort err = %v, want invalid input", err)
	}
	if _, err := s.LoadBooks(ctx, store.SortNone, store.FilterKey("isbn"), "x"); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("bad filter err = %v, want invalid input", err)
	}
	if _, err := s.LoadBooks(ctx, store.SortNone, store.FilterYear, "not-a-year"); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("bad year err = %v, want invalid input", err)
	}
	if _, err := s.LoadBooks(ctx, store.SortNone, store.FilterActive, "maybe"); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("bad bool err = %v, want invalid input", err)
	}
}

func TestUpdateBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")
	ids := seedCatalog(t, s, f)

	err := s.UpdateBook(ctx, ids["mystery.pdf"], map[string]any{
		"title":   "Found At Last",
		"authors": []string{"Jane Doe"},
		"year":    1999,
		"tags":    []any{"solved"},
	})
	if err != nil {
		t.Fatalf("update book: %v", err)
	}

	loaded, err := s.LoadBookByID(ctx, ids["mystery.pdf"])
	if err != nil {
		t.Fatalf("load book: %v", err)
	}
	if loaded.Title != "Found At Last" || loaded.Year != 1999 {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Authors) != 1 || loaded.Authors[0] != "Jane Doe" {
		t.Errorf("authors = %v", loaded.Authors)
	}
	if len(loaded.Tags) != 1 || loaded.Tags[0] != "solved" {
		t.Errorf("tags = %v", loaded.Tags)
	}
}

func TestUpdateBookRejectsProtectedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")
	ids := seedCatalog(t, s, f)
	id := ids["zebra.pdf"]

	protected := []string{
		"book_id", "hash_id", "isbn13", "parsed_isbn", "folder_id",
		"filename", "ext", "storage_path", "size", "added_date",
		"active", "confirmed",
	}
	for _, field := range protected {
		err := s.UpdateBook(ctx, id, map[string]any{field: "changed"})
		if !errors.Is(err, store.ErrInvalidInput) {
			t.Errorf("field %q err = %v, want invalid input", field, err)
		}
	}

	// A single protected field poisons the whole update.
	err := s.UpdateBook(ctx, id, map[string]any{"title": "New", "hash_id": "evil"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("mixed update err = %v, want invalid input", err)
	}
	loaded, _ := s.LoadBookByID(ctx, id)
	if loaded.Title != "Zebra Patterns" {
		t.Errorf("title = %q, rejected update must not apply partially", loaded.Title)
	}
}

func TestUpdateBookBadInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")
	ids := seedCatalog(t, s, f)
	id := ids["zebra.pdf"]

	if err := s.UpdateBook(ctx, id, map[string]any{}); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("empty update err = %v", err)
	}
	if err := s.UpdateBook(ctx, id, map[string]any{"color": "red"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("unknown field err = %v", err)
	}
	if err := s.UpdateBook(ctx, id, map[string]any{"year": "nineteen"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("bad year err = %v", err)
	}
	if err := s.UpdateBook(ctx, 4242, map[string]any{"title": "Ghost"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("absent id err = %v, want not found", err)
	}
}

func TestDeleteBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustFolder(t, s, "library", "/data/library")

	id, err := s.InsertBook(ctx, mustBook(t, f, "gone.pdf"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Fold one duplicate so the audit row cleanup is exercised.
	if _, err := s.InsertBook(ctx, mustBook(t, f, "gone.pdf")); err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}

	if err := s.DeleteBook(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.LoadBookByID(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("load after delete err = %v, want not found", err)
	}
	n, err := s.CountDuplicates(ctx, id)
	if err != nil {
		t.Fatalf("count duplicates: %v", err)
	}
	if n != 0 {
		t.Errorf("duplicates = %d, want 0 after delete", n)
	}

	if err := s.DeleteBook(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete err = %v, want not found", err)
	}
}
