package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

// folderColumns is the ordered list of columns selected in folder queries.
// Must match the scan order in scanFolder.
const folderColumns = `folder_id, name, path, added_date, active`

// scanFolder scans a sql.Row (or sql.Rows via its Scan method) into a domain.Folder.
func scanFolder(scanner interface{ Scan(dest ...any) error }) (*domain.Folder, error) {
	var (
		f         domain.Folder
		addedDate string
		active    int
	)

	err := scanner.Scan(
		&f.ID,
		&f.Name,
		&f.Path,
		&addedDate,
		&active,
	)
	if err != nil {
		return nil, err
	}

	f.AddedAt, err = parseTime(addedDate)
	if err != nil {
		return nil, err
	}
	f.Active = active != 0

	return &f, nil
}

// InsertFolder registers a folder and returns its assigned id.
// Returns store.ErrAlreadyExists on a duplicate name or path.
func (s *Store) InsertFolder(ctx context.Context, f *domain.Folder) (int64, error) {
	if f == nil || f.Path == "" {
		return 0, store.ErrInvalidInput.WithMessage("folder path is required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (name, path, added_date, active)
		VALUES (?, ?, ?, ?)`,
		f.Name,
		f.Path,
		formatTime(f.AddedAt),
		boolToInt(f.Active),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrAlreadyExists.WithMessagef("folder %q already registered", f.Name).WithCause(err)
		}
		return 0, fmt.Errorf("insert folder: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("folder id: %w", err)
	}
	f.ID = id
	return id, nil
}

// LoadFolderByID retrieves a folder by id.
// Returns store.ErrNotFound if the folder does not exist.
func (s *Store) LoadFolderByID(ctx context.Context, id int64) (*domain.Folder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE folder_id = ?`, id)

	f, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound.WithMessagef("folder %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// LoadFolders returns all registered folders ordered by name.
func (s *Store) LoadFolders(ctx context.Context) ([]*domain.Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM folders ORDER BY name ASC, folder_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders := []*domain.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return folders, nil
}

// folderUpdatable lists the columns UpdateFolder may touch. Identity and
// provenance columns are protected.
var folderUpdatable = map[string]bool{
	"name":   true,
	"active": true,
}

var folderProtected = map[string]bool{
	"folder_id":  true,
	"path":       true,
	"added_date": true,
}

// UpdateFolder applies a partial update to a folder.
// Unknown and protected fields are rejected, not skipped.
func (s *Store) UpdateFolder(ctx context.Context, id int64, fields map[string]any) error {
	setClause, args, err := buildSetClause(fields, folderUpdatable, folderProtected)
	if err != nil {
		return err
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE folders SET `+setClause+` WHERE folder_id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithMessage("folder name already in use").WithCause(err)
		}
		return fmt.Errorf("update folder: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound.WithMessagef("folder %d not found", id)
	}
	return nil
}

// DeleteFolder removes a folder and all of its books in one transaction.
// Returns store.ErrNotFound if the folder does not exist.
func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM duplicates WHERE original_book_id IN (SELECT book_id FROM books WHERE folder_id = ?)`, id); err != nil {
		return fmt.Errorf("delete folder duplicates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE folder_id = ?`, id); err != nil {
		return fmt.Errorf("delete folder books: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE folder_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound.WithMessagef("folder %d not found", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("folder deleted", "folder_id", id)
	return nil
}

// IsPathDuplicate reports whether another folder is registered at the same path.
func (s *Store) IsPathDuplicate(ctx context.Context, f *domain.Folder) (bool, error) {
	return s.folderExists(ctx, `SELECT EXISTS (SELECT 1 FROM folders WHERE path = ? AND folder_id != ?)`, f.Path, f.ID)
}

// IsNameDuplicate reports whether another folder uses the same name.
func (s *Store) IsNameDuplicate(ctx context.Context, f *domain.Folder) (bool, error) {
	return s.folderExists(ctx, `SELECT EXISTS (SELECT 1 FROM folders WHERE name = ? AND folder_id != ?)`, f.Name, f.ID)
}

func (s *Store) folderExists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists != 0, nil
}
