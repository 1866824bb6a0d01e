// Package watcher auto-imports e-book files that appear in watched folders.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/parser"
)

const defaultSettle = 2 * time.Second

// FileImporter imports a single file into a folder.
type FileImporter interface {
	ImportFile(ctx context.Context, path string, folder *domain.Folder) (*domain.Book, error)
}

// BookInserter persists an imported book.
type BookInserter interface {
	InsertBook(ctx context.Context, b *domain.Book) (int64, error)
}

// Watcher reacts to files created under registered folders by importing
// and inserting them after a settle delay, so half-copied files are not
// picked up mid-write.
type Watcher struct {
	fs       *fsnotify.Watcher
	importer FileImporter
	store    BookInserter
	logger   *slog.Logger
	settle   time.Duration

	mu      sync.Mutex
	folders map[string]*domain.Folder // watched directory -> owning folder
}

// New creates a watcher. Call WatchFolder for each active folder, then Run.
func New(imp FileImporter, store BookInserter, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fs:       fsw,
		importer: imp,
		store:    store,
		logger:   logger,
		settle:   defaultSettle,
		folders:  make(map[string]*domain.Folder),
	}, nil
}

// WatchFolder registers a folder and its existing subdirectories.
// fsnotify watches are not recursive, so each directory is added on its own.
func (w *Watcher) WatchFolder(f *domain.Folder) error {
	return filepath.WalkDir(f.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("watch walk error", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != f.Path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watchDir(path, f)
	})
}

func (w *Watcher) watchDir(dir string, f *domain.Folder) error {
	if err := w.fs.Add(dir); err != nil {
		return err
	}
	w.mu.Lock()
	w.folders[dir] = f
	w.mu.Unlock()
	w.logger.Debug("watching directory", "dir", dir, "folder", f.Name)
	return nil
}

// Run processes filesystem events until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				w.handleCreate(ctx, event.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleCreate(ctx context.Context, path string) {
	folder := w.folderFor(path)
	if folder == nil {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		// New subdirectories join the watch so files inside are seen.
		if err := w.watchDir(path, folder); err != nil {
			w.logger.Warn("failed to watch new directory", "dir", path, "error", err)
		}
		return
	}

	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !parser.SupportedExt(filepath.Ext(base)) {
		return
	}

	time.AfterFunc(w.settle, func() {
		if ctx.Err() != nil {
			return
		}
		book, err := w.importer.ImportFile(ctx, path, folder)
		if err != nil {
			w.logger.Warn("auto-import failed", "path", path, "error", err)
			return
		}
		id, err := w.store.InsertBook(ctx, book)
		if err != nil {
			w.logger.Warn("auto-import insert failed", "path", path, "error", err)
			return
		}
		w.logger.Info("auto-imported file", "path", path, "book_id", id)
	})
}

// folderFor resolves the registered folder owning a path by longest
// watched-directory prefix.
func (w *Watcher) folderFor(path string) *domain.Folder {
	w.mu.Lock()
	defer w.mu.Unlock()

	var (
		best    string
		matched *domain.Folder
	)
	for dir, f := range w.folders {
		if (path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))) && len(dir) > len(best) {
			best = dir
			matched = f
		}
	}
	return matched
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
