// Package domain contains the core entities of the Bookshelf server.
package domain

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/errors"
)

// Book is an imported e-book file together with its resolved metadata.
// Zero values mean unknown: an empty Title or a zero Year is stored as
// NULL so that sorted listings can push unknowns to the end.
type Book struct {
	ID         int64    `json:"book_id"`
	HashID     string   `json:"hash_id"`
	Title      string   `json:"title,omitempty"`
	Authors    []string `json:"authors"`
	Year       int      `json:"year,omitempty"`
	Lang       string   `json:"lang,omitempty"`
	Publisher  string   `json:"publisher,omitempty"`
	ISBN13     string   `json:"isbn13,omitempty"`
	ParsedISBN string   `json:"parsed_isbn,omitempty"`

	Folder      *Folder `json:"folder"`
	Filename    string  `json:"filename"`
	Ext         string  `json:"ext"`
	StoragePath string  `json:"storage_path"`
	Size        int64   `json:"size"`

	Tags      []string  `json:"tags"`
	CoverPath string    `json:"cover_path,omitempty"`
	AddedAt   time.Time `json:"added_date"`
	Active    bool      `json:"active"`
	Confirmed bool      `json:"confirmed"`
}

// BookParams carries the required file facts for constructing a Book.
type BookParams struct {
	Filename    string
	StoragePath string
	Size        int64
	Folder      *Folder
}

// NewBook creates a book from file facts, deriving the extension and
// identity hash. Metadata fields start unknown.
func NewBook(p BookParams) (*Book, error) {
	if p.Filename == "" {
		return nil, errors.Validation("book filename is required")
	}
	if p.StoragePath == "" {
		return nil, errors.Validation("book storage path is required")
	}
	if p.Size < 0 {
		return nil, errors.Validationf("book size %d is negative", p.Size)
	}
	if p.Folder == nil {
		return nil, errors.Validation("book folder is required")
	}

	ext := strings.ToLower(filepath.Ext(p.Filename))
	if ext == "" {
		return nil, errors.Validationf("filename %q has no extension", p.Filename)
	}

	return &Book{
		HashID:      HashID(p.Filename),
		Authors:     []string{},
		Folder:      p.Folder,
		Filename:    p.Filename,
		Ext:         ext,
		StoragePath: p.StoragePath,
		Size:        p.Size,
		Tags:        []string{},
		AddedAt:     time.Now().UTC(),
		Active:      true,
	}, nil
}

// HashID derives the stable identity hash for a filename.
func HashID(filename string) string {
	sum := md5.Sum([]byte(filename))
	return hex.EncodeToString(sum[:])
}

// AbsolutePath returns the full path of the book file on disk.
func (b *Book) AbsolutePath() string {
	if b.Folder == nil {
		return b.StoragePath
	}
	return filepath.Join(b.Folder.Path, b.StoragePath)
}
