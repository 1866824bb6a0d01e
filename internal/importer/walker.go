package importer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bookshelfapp/bookshelf-server/internal/parser"
)

// WalkResult is a candidate e-book file discovered during traversal,
// or a traversal error attached to the path that produced it.
type WalkResult struct {
	Path    string
	RelPath string
	Size    int64
	Err     error
}

// Walker traverses a folder and streams the e-book files inside it.
type Walker struct {
	logger *slog.Logger
}

// NewWalker creates a walker.
func NewWalker(logger *slog.Logger) *Walker {
	return &Walker{logger: logger}
}

// Walk traverses root recursively and streams supported files. Hidden
// files and directories are skipped. The channel closes when the walk
// completes or the context is canceled.
func (w *Walker) Walk(ctx context.Context, root string) <-chan WalkResult {
	results := make(chan WalkResult, 64)

	go func() {
		defer close(results)

		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil {
				w.logger.Warn("walk error", "path", path, "error", err)
				send(ctx, results, WalkResult{Path: path, Err: err})
				return nil
			}

			// The root is walked even when its own name is hidden;
			// a registered folder may be a dot-directory.
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !parser.SupportedExt(filepath.Ext(d.Name())) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				w.logger.Warn("stat failed", "path", path, "error", err)
				send(ctx, results, WalkResult{Path: path, Err: err})
				return nil
			}

			relPath, err := filepath.Rel(root, path)
			if err != nil {
				relPath = d.Name()
			}

			send(ctx, results, WalkResult{
				Path:    path,
				RelPath: relPath,
				Size:    info.Size(),
			})
			return nil
		})

		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("walk failed", "root", root, "error", err)
		}
	}()

	return results
}

func send(ctx context.Context, results chan<- WalkResult, r WalkResult) {
	select {
	case results <- r:
	case <-ctx.Done():
	}
}
