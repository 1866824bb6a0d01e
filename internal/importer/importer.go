// Package importer turns files on disk into catalog-ready books.
package importer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/metadata"
	"github.com/bookshelfapp/bookshelf-server/internal/parser"
)

// SourceSelector dispatches a file to its identifier source.
// *parser.Parser is the production implementation.
type SourceSelector interface {
	ForFile(path string) (parser.Source, error)
}

// CoverFetcher downloads a cover image for an ISBN and returns its path.
type CoverFetcher interface {
	Fetch(ctx context.Context, isbnCode string) (string, error)
}

// Failure records a file that could not be imported during a folder run.
type Failure struct {
	Path string `json:"path"`
	Err  error  `json:"error"`
}

// Result is the outcome of a folder import: everything that imported
// plus the per-file failures that were skipped over.
type Result struct {
	Books    []*domain.Book
	Failures []Failure
}

// Importer builds books from files: parse identifiers, resolve metadata,
// attach file facts. Metadata resolution failures never fail an import
// on their own.
type Importer struct {
	parser   SourceSelector
	resolver *metadata.Resolver
	covers   CoverFetcher // optional
	walker   *Walker
	logger   *slog.Logger
	workers  int
}

// New creates an importer. workers bounds concurrent per-file imports
// during folder runs.
func New(selector SourceSelector, resolver *metadata.Resolver, workers int, logger *slog.Logger) *Importer {
	if workers < 1 {
		workers = 1
	}
	return &Importer{
		parser:   selector,
		resolver: resolver,
		walker:   NewWalker(logger),
		logger:   logger,
		workers:  workers,
	}
}

// SetCoverFetcher enables cover downloads for resolved books.
func (imp *Importer) SetCoverFetcher(f CoverFetcher) {
	imp.covers = f
}

// ImportFile imports a single file. A nil folder synthesizes an
// unregistered folder from the file's directory.
func (imp *Importer) ImportFile(ctx context.Context, path string, folder *domain.Folder) (*domain.Book, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NotFoundf("file %q does not exist", path)
	}
	if info.IsDir() {
		return nil, errors.Validationf("%q is a directory, not a file", path)
	}

	src, err := imp.parser.ForFile(path)
	if err != nil {
		return nil, err
	}

	if folder == nil {
		folder = domain.FolderFromDir(filepath.Dir(path))
	}

	rel, err := filepath.Rel(folder.Path, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, errors.Validationf("file %q is outside folder %q", path, folder.Path)
	}

	book, err := domain.NewBook(domain.BookParams{
		Filename:    filepath.Base(path),
		StoragePath: rel,
		Size:        info.Size(),
		Folder:      folder,
	})
	if err != nil {
		return nil, err
	}

	isbn10, isbn13 := src.Identifiers()
	md, resolved := imp.resolver.Resolve(ctx, isbn10, isbn13)
	book.Title = md.Title
	book.Year = md.Year
	book.Lang = md.Lang
	book.Publisher = md.Publisher
	book.ISBN13 = md.ISBN13
	book.ParsedISBN = md.ParsedISBN
	if len(md.Authors) > 0 {
		book.Authors = md.Authors
	}

	if resolved && imp.covers != nil && book.ISBN13 != "" {
		coverPath, err := imp.covers.Fetch(ctx, book.ISBN13)
		if err != nil {
			imp.logger.Debug("cover fetch failed", "isbn", book.ISBN13, "error", err)
		} else {
			book.CoverPath = coverPath
		}
	}

	imp.logger.Info("imported file",
		"path", path,
		"resolved", resolved,
		"isbn13", book.ISBN13,
	)
	return book, nil
}

// ImportFolder walks a folder and imports every supported file inside
// it, accumulating per-file failures instead of aborting the run.
func (imp *Importer) ImportFolder(ctx context.Context, folder *domain.Folder) (*Result, error) {
	if folder == nil || folder.Path == "" {
		return nil, errors.FolderNotFound("no folder given")
	}
	info, err := os.Stat(folder.Path)
	if err != nil || !info.IsDir() {
		return nil, errors.FolderNotFoundf("folder %q does not exist", folder.Path)
	}

	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
	)

	files := imp.walker.Walk(ctx, folder.Path)
	for i := 0; i < imp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for wr := range files {
				if wr.Err != nil {
					mu.Lock()
					res.Failures = append(res.Failures, Failure{Path: wr.Path, Err: wr.Err})
					mu.Unlock()
					continue
				}

				book, err := imp.ImportFile(ctx, wr.Path, folder)
				mu.Lock()
				if err != nil {
					imp.logger.Warn("file import failed", "path", wr.Path, "error", err)
					res.Failures = append(res.Failures, Failure{Path: wr.Path, Err: err})
				} else {
					res.Books = append(res.Books, book)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return &res, err
	}

	imp.logger.Info("folder import finished",
		"folder", folder.Path,
		"imported", len(res.Books),
		"failed", len(res.Failures),
	)
	return &res, nil
}
