// Package parser extracts ISBN identifiers from e-book files.
package parser

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bookshelfapp/bookshelf-server/internal/errors"
)

// Source extracts raw ISBN candidates from a single e-book file.
// Corrupted or unreadable files yield an empty pair; extraction itself
// never fails once a source has been dispatched.
type Source interface {
	Path() string
	Identifiers() (isbn10, isbn13 string)
}

// SupportedExt reports whether files with this extension can be parsed.
func SupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".epub":
		return true
	}
	return false
}

// Parser dispatches files to format-specific identifier sources.
type Parser struct {
	pages  int // PDF pages scanned per file
	docs   int // EPUB documents scanned per file
	logger *slog.Logger
}

// New creates a parser. Page and document limits bound how much of each
// file is scanned for identifiers.
func New(pages, docs int, logger *slog.Logger) *Parser {
	return &Parser{pages: pages, docs: docs, logger: logger}
}

// ForFile returns the identifier source for a file, dispatching on its
// extension. Unknown extensions fail with a format error.
func (p *Parser) ForFile(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return &PDFSource{path: path, pages: p.pages, logger: p.logger}, nil
	case ".epub":
		return &EPUBSource{path: path, docs: p.docs, logger: p.logger}, nil
	default:
		return nil, errors.FormatNotSupported(ext)
	}
}
