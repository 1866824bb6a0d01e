// Command api runs the Bookshelf HTTP server: catalog API, metadata
// resolution, and optional folder watching.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/api"
	"github.com/bookshelfapp/bookshelf-server/internal/config"
	"github.com/bookshelfapp/bookshelf-server/internal/cover"
	"github.com/bookshelfapp/bookshelf-server/internal/importer"
	"github.com/bookshelfapp/bookshelf-server/internal/logger"
	"github.com/bookshelfapp/bookshelf-server/internal/metadata"
	"github.com/bookshelfapp/bookshelf-server/internal/metadata/openlibrary"
	"github.com/bookshelfapp/bookshelf-server/internal/parser"
	"github.com/bookshelfapp/bookshelf-server/internal/store/sqlite"
	"github.com/bookshelfapp/bookshelf-server/internal/watcher"
)

func main() {
	cfg, _, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
	})

	if err := cfg.EnsureDataDirs(); err != nil {
		log.Fatal("failed to create data directories", "error", err)
	}

	st, err := sqlite.Open(cfg.DatabasePath(), log.Logger)
	if err != nil {
		log.Fatal("failed to open database", "path", cfg.DatabasePath(), "error", err)
	}
	defer st.Close()

	client := openlibrary.New(log.Logger)
	resolver := metadata.NewResolver(client, cfg.Lookup.Timeout, cfg.Lookup.Retries, log.Logger)
	selector := parser.New(cfg.Import.ParserPages, cfg.Import.ParserDocs, log.Logger)

	imp := importer.New(selector, resolver, cfg.Import.Workers, log.Logger)
	if cfg.Lookup.Covers {
		imp.SetCoverFetcher(cover.New(cfg.CoversPath(), log.Logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Import.WatchEnabled {
		w, err := watcher.New(imp, st, log.Logger)
		if err != nil {
			log.Fatal("failed to start folder watcher", "error", err)
		}
		defer w.Close()

		folders, err := st.LoadFolders(ctx)
		if err != nil {
			log.Fatal("failed to load folders", "error", err)
		}
		for _, f := range folders {
			if !f.Active {
				continue
			}
			if err := w.WatchFolder(f); err != nil {
				log.Warn("failed to watch folder", "folder", f.Name, "error", err)
			}
		}
		go w.Run(ctx)
	}

	server := api.New(cfg, st, imp, log.Logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Fatal("server error", "error", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
