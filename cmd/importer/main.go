// Command importer imports a folder of e-books from the command line:
//
//	importer [flags] /path/to/folder
//
// The folder is registered if it is not already known, then every
// supported file inside it is imported into the catalog.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bookshelfapp/bookshelf-server/internal/config"
	"github.com/bookshelfapp/bookshelf-server/internal/cover"
	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/importer"
	"github.com/bookshelfapp/bookshelf-server/internal/logger"
	"github.com/bookshelfapp/bookshelf-server/internal/metadata"
	"github.com/bookshelfapp/bookshelf-server/internal/metadata/openlibrary"
	"github.com/bookshelfapp/bookshelf-server/internal/parser"
	"github.com/bookshelfapp/bookshelf-server/internal/store/sqlite"
)

func main() {
	cfg, args, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: importer [flags] <folder>")
		os.Exit(2)
	}

	log := logger.New(logger.Config{
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
	})

	if err := run(cfg, args[0], log); err != nil {
		log.Fatal("import failed", "error", err)
	}
}

func run(cfg *config.Config, dir string, log *logger.Logger) error {
	path, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := cfg.EnsureDataDirs(); err != nil {
		return err
	}

	st, err := sqlite.Open(cfg.DatabasePath(), log.Logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	folder, err := registerOrReuse(ctx, st, path)
	if err != nil {
		return err
	}

	client := openlibrary.New(log.Logger)
	resolver := metadata.NewResolver(client, cfg.Lookup.Timeout, cfg.Lookup.Retries, log.Logger)
	selector := parser.New(cfg.Import.ParserPages, cfg.Import.ParserDocs, log.Logger)

	imp := importer.New(selector, resolver, cfg.Import.Workers, log.Logger)
	if cfg.Lookup.Covers {
		imp.SetCoverFetcher(cover.New(cfg.CoversPath(), log.Logger))
	}

	result, err := imp.ImportFolder(ctx, folder)
	if err != nil {
		return err
	}

	ids, err := st.InsertBooks(ctx, result.Books)
	if err != nil {
		return err
	}

	fmt.Printf("imported %d books from %s (%d failures)\n", len(ids), path, len(result.Failures))
	for _, f := range result.Failures {
		fmt.Printf("  failed: %s: %v\n", f.Path, f.Err)
	}
	return nil
}

// registerOrReuse returns the registered folder at path, creating it if
// this is the first import of that directory.
func registerOrReuse(ctx context.Context, st *sqlite.Store, path string) (*domain.Folder, error) {
	folders, err := st.LoadFolders(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		if f.Path == path {
			return f, nil
		}
	}

	folder, err := domain.NewFolder("", path)
	if err != nil {
		return nil, err
	}
	if _, err := st.InsertFolder(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}
