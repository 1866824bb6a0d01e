package domain

import (
	"path/filepath"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/errors"
)

// Folder is a registered library directory that books are imported from.
type Folder struct {
	ID      int64     `json:"folder_id"`
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	AddedAt time.Time `json:"added_date"`
	Active  bool      `json:"active"`
}

// NewFolder creates a folder for the given directory path.
// The path must be absolute. An empty name defaults to the directory name.
func NewFolder(name, path string) (*Folder, error) {
	if path == "" {
		return nil, errors.Validation("folder path is required")
	}
	if !filepath.IsAbs(path) {
		return nil, errors.Validationf("folder path %q is not absolute", path)
	}
	path = filepath.Clean(path)
	if name == "" {
		name = filepath.Base(path)
	}
	return &Folder{
		Name:    name,
		Path:    path,
		AddedAt: time.Now().UTC(),
		Active:  true,
	}, nil
}

// FolderFromDir synthesizes an unregistered folder for a bare directory.
// Used when a single file is imported without a registered folder.
func FolderFromDir(dir string) *Folder {
	dir = filepath.Clean(dir)
	return &Folder{
		Name:    filepath.Base(dir),
		Path:    dir,
		AddedAt: time.Now().UTC(),
		Active:  true,
	}
}
