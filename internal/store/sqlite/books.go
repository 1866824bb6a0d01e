package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Books are always loaded with their folder; must match scanBook.
const bookColumns = `b.book_id, b.hash_id, b.title, b.authors, b.year, b.lang, b.publisher,
	b.isbn13, b.parsed_isbn, b.filename, b.ext, b.storage_path, b.size, b.tags,
	b.cover_path, b.added_date, b.active, b.confirmed,
	f.folder_id, f.name, f.path, f.added_date, f.active`

const bookFrom = ` FROM books b JOIN folders f ON b.folder_id = f.folder_id`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var (
		b      domain.Book
		folder domain.Folder

		title, lang, publisher  sql.NullString
		isbn13, parsed, cover   sql.NullString
		year                    sql.NullInt64
		authors, tags           string
		addedDate, folderAdded  string
		active, confirmed       int
		folderActive            int
	)

	err := scanner.Scan(
		&b.ID,
		&b.HashID,
		&title,
		&authors,
		&year,
		&lang,
		&publisher,
		&isbn13,
		&parsed,
		&b.Filename,
		&b.Ext,
		&b.StoragePath,
		&b.Size,
		&tags,
		&cover,
		&addedDate,
		&active,
		&confirmed,
		&folder.ID,
		&folder.Name,
		&folder.Path,
		&folderAdded,
		&folderActive,
	)
	if err != nil {
		return nil, err
	}

	b.Title = title.String
	b.Year = int(year.Int64)
	b.Lang = lang.String
	b.Publisher = publisher.String
	b.ISBN13 = isbn13.String
	b.ParsedISBN = parsed.String
	b.CoverPath = cover.String
	b.Authors = unmarshalStrings(authors)
	b.Tags = unmarshalStrings(tags)
	b.Active = active != 0
	b.Confirmed = confirmed != 0

	b.AddedAt, err = parseTime(addedDate)
	if err != nil {
		return nil, err
	}
	folder.AddedAt, err = parseTime(folderAdded)
	if err != nil {
		return nil, err
	}
	folder.Active = folderActive != 0
	b.Folder = &folder

	return &b, nil
}

// InsertBook inserts a book, folding duplicates into the existing record.
// When the book collides on hash_id or isbn13 the attempt is logged into
// the duplicates table and the existing book's id is returned.
func (s *Store) InsertBook(ctx context.Context, b *domain.Book) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := s.insertBookTx(ctx, tx, b)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	b.ID = id
	return id, nil
}

// InsertBooks inserts a batch in a single transaction. Duplicates fold
// as in InsertBook; any other failure rolls the whole batch back.
func (s *Store) InsertBooks(ctx context.Context, books []*domain.Book) ([]int64, error) {
	if len(books) == 0 {
		return []int64{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(books))
	for _, b := range books {
		id, err := s.insertBookTx(ctx, tx, b)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	// IDs become real only once the transaction commits; a rolled-back
	// batch must leave the books untouched.
	for i, b := range books {
		b.ID = ids[i]
	}
	return ids, nil
}

// insertBookTx performs the actual insert inside a transaction. SQLite
// aborts only the failing statement on a constraint violation, so the
// transaction stays usable for the duplicate audit row.
func (s *Store) insertBookTx(ctx context.Context, tx *sql.Tx, b *domain.Book) (int64, error) {
	if b == nil {
		return 0, store.ErrInvalidInput.WithMessage("no book given")
	}
	if b.Folder == nil || b.Folder.ID == 0 {
		return 0, store.ErrFolderMissing.WithMessage("book has no registered folder")
	}

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM folders WHERE folder_id = ?)`, b.Folder.ID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check folder: %w", err)
	}
	if exists == 0 {
		return 0, store.ErrFolderMissing.WithMessagef("folder %d is not registered", b.Folder.ID)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO books (hash_id, title, authors, year, lang, publisher, isbn13,
			parsed_isbn, folder_id, filename, ext, storage_path, size, tags,
			cover_path, added_date, active, confirmed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.HashID,
		nullString(b.Title),
		marshalStrings(b.Authors),
		nullInt64(int64(b.Year)),
		nullString(b.Lang),
		nullString(b.Publisher),
		nullString(b.ISBN13),
		nullString(b.ParsedISBN),
		b.Folder.ID,
		b.Filename,
		b.Ext,
		b.StoragePath,
		b.Size,
		marshalStrings(b.Tags),
		nullString(b.CoverPath),
		formatTime(b.AddedAt),
		boolToInt(b.Active),
		boolToInt(b.Confirmed),
	)
	if err == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("book id: %w", err)
		}
		return id, nil
	}
	if !isUniqueViolation(err) {
		return 0, fmt.Errorf("insert book: %w", err)
	}

	return s.foldDuplicateTx(ctx, tx, b)
}

// foldDuplicateTx records a colliding insert in the duplicates table and
// returns the id of the book it collided with.
func (s *Store) foldDuplicateTx(ctx context.Context, tx *sql.Tx, b *domain.Book) (int64, error) {
	var originalID int64
	err := tx.QueryRowContext(ctx, `
		SELECT book_id FROM books
		WHERE hash_id = ? OR (isbn13 IS NOT NULL AND isbn13 = ?)
		LIMIT 1`,
		b.HashID,
		nullString(b.ISBN13),
	).Scan(&originalID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("duplicate insert but no colliding book for %q", b.Filename)
	}
	if err != nil {
		return 0, fmt.Errorf("find colliding book: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO duplicates (original_book_id, hash_id, title, authors, year,
			lang, publisher, isbn13, parsed_isbn, folder_id, filename, ext,
			storage_path, size, added_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		originalID,
		b.HashID,
		nullString(b.Title),
		marshalStrings(b.Authors),
		nullInt64(int64(b.Year)),
		nullString(b.Lang),
		nullString(b.Publisher),
		nullString(b.ISBN13),
		nullString(b.ParsedISBN),
		b.Folder.ID,
		b.Filename,
		b.Ext,
		b.StoragePath,
		b.Size,
		formatTime(b.AddedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("record duplicate: %w", err)
	}

	s.logger.Info("duplicate book folded",
		"filename", b.Filename,
		"original_book_id", originalID,
	)
	return originalID, nil
}

// LoadBookByID retrieves a book with its folder.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) LoadBookByID(ctx context.Context, id int64) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+bookFrom+` WHERE b.book_id = ?`, id)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound.WithMessagef("book %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// LoadBooks returns books matching a filter in the requested order.
// Sort and filter keys are closed sets; unknown keys are rejected.
func (s *Store) LoadBooks(ctx context.Context, sortKey store.SortKey, filterKey store.FilterKey, filterValue string) ([]*domain.Book, error) {
	where, args, err := bookWhereClause(filterKey, filterValue)
	if err != nil {
		return nil, err
	}
	orderBy, err := bookOrderClause(sortKey)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+bookFrom+where+orderBy, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*domain.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return books, nil
}

// bookOrderClause maps a sort key onto SQL. Unknown title and year sort
// last; book_id breaks ties so the order is stable.
func bookOrderClause(key store.SortKey) (string, error) {
	switch key {
	case store.SortNone:
		return ` ORDER BY b.book_id ASC`, nil
	case store.SortTitle:
		return ` ORDER BY b.title IS NULL, b.title ASC, b.book_id ASC`, nil
	case store.SortAddedDate:
		return ` ORDER BY b.added_date ASC, b.book_id ASC`, nil
	case store.SortYear:
		return ` ORDER BY b.year IS NULL, b.year ASC, b.book_id ASC`, nil
	case store.SortSize:
		return ` ORDER BY b.size ASC, b.book_id ASC`, nil
	default:
		return "", store.ErrInvalidInput.WithMessagef("unknown sort key %q", key)
	}
}

// bookWhereClause maps a filter key and value onto SQL.
func bookWhereClause(key store.FilterKey, value string) (string, []any, error) {
	switch key {
	case store.FilterNone:
		return "", nil, nil
	case store.FilterPublisher:
		return ` WHERE b.publisher = ?`, []any{value}, nil
	case store.FilterExt:
		return ` WHERE b.ext = ?`, []any{value}, nil
	case store.FilterYear:
		year, err := strconv.Atoi(value)
		if err != nil {
			return "", nil, store.ErrInvalidInput.WithMessagef("invalid year %q", value)
		}
		return ` WHERE b.year = ?`, []any{year}, nil
	case store.FilterTag:
		return ` WHERE b.tags LIKE '%' || ? || '%'`, []any{value}, nil
	case store.FilterAuthor:
		return ` WHERE b.authors LIKE '%' || ? || '%'`, []any{value}, nil
	case store.FilterActive:
		return boolWhere(`b.active`, value)
	case store.FilterConfirmed:
		return boolWhere(`b.confirmed`, value)
	default:
		return "", nil, store.ErrInvalidInput.WithMessagef("unknown filter key %q", key)
	}
}

func boolWhere(column, value string) (string, []any, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return "", nil, store.ErrInvalidInput.WithMessagef("invalid boolean %q", value)
	}
	return ` WHERE ` + column + ` = ?`, []any{boolToInt(b)}, nil
}

// bookUpdatable lists the columns UpdateBook may touch.
var bookUpdatable = map[string]bool{
	"title":      true,
	"authors":    true,
	"year":       true,
	"lang":       true,
	"publisher":  true,
	"tags":       true,
	"cover_path": true,
}

// bookProtected lists identity, provenance, and state columns that a
// partial update must never change.
var bookProtected = map[string]bool{
	"book_id":      true,
	"hash_id":      true,
	"isbn13":       true,
	"parsed_isbn":  true,
	"folder_id":    true,
	"filename":     true,
	"ext":          true,
	"storage_path": true,
	"size":         true,
	"added_date":   true,
	"active":       true,
	"confirmed":    true,
}

// UpdateBook applies a partial update to a book's bibliographic fields.
// Unknown and protected fields reject the whole update.
func (s *Store) UpdateBook(ctx context.Context, id int64, fields map[string]any) error {
	setClause, args, err := buildSetClause(fields, bookUpdatable, bookProtected)
	if err != nil {
		return err
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET `+setClause+` WHERE book_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound.WithMessagef("book %d not found", id)
	}
	return nil
}

// DeleteBook removes a book and its duplicate audit rows.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM duplicates WHERE original_book_id = ?`, id); err != nil {
		return fmt.Errorf("delete book duplicates: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE book_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound.WithMessagef("book %d not found", id)
	}

	return tx.Commit()
}

// CountDuplicates returns the number of folded insert attempts recorded
// against a book.
func (s *Store) CountDuplicates(ctx context.Context, bookID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM duplicates WHERE original_book_id = ?`, bookID).Scan(&n)
	return n, err
}
