package parser

import (
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/bookshelfapp/bookshelf-server/internal/isbn"
)

// PDFSource scans the leading pages of a PDF for ISBN identifiers.
// Publishers put the copyright block in the front matter, so a small
// page limit catches nearly everything without reading whole files.
type PDFSource struct {
	path   string
	pages  int
	logger *slog.Logger
}

// Path returns the file this source reads.
func (s *PDFSource) Path() string {
	return s.path
}

// Identifiers extracts the first valid ISBN-10 and ISBN-13 from the
// scanned pages. A corrupted file logs a warning and yields an empty pair.
func (s *PDFSource) Identifiers() (isbn10, isbn13 string) {
	defer func() {
		// The pdf reader panics on some malformed xref tables.
		if r := recover(); r != nil {
			s.logger.Warn("pdf parse panic", "path", s.path, "panic", r)
			isbn10, isbn13 = "", ""
		}
	}()

	f, reader, err := pdf.Open(s.path)
	if err != nil {
		s.logger.Warn("unreadable pdf", "path", s.path, "error", err)
		return "", ""
	}
	defer f.Close()

	limit := reader.NumPage()
	if limit > s.pages {
		limit = s.pages
	}

	for i := 1; i <= limit; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			s.logger.Debug("skipping unreadable page", "path", s.path, "page", i, "error", err)
			continue
		}

		found10, found13 := isbn.Extract(text)
		if isbn10 == "" {
			isbn10 = found10
		}
		if isbn13 == "" {
			isbn13 = found13
		}
		if isbn10 != "" && isbn13 != "" {
			break
		}
	}

	return isbn10, isbn13
}
