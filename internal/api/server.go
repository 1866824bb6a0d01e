// Package api exposes the Bookshelf catalog over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bookshelfapp/bookshelf-server/internal/config"
	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/http/response"
	"github.com/bookshelfapp/bookshelf-server/internal/importer"
	"github.com/bookshelfapp/bookshelf-server/internal/store/sqlite"
)

// FolderImporter runs a folder import. *importer.Importer is the
// production implementation.
type FolderImporter interface {
	ImportFolder(ctx context.Context, folder *domain.Folder) (*importer.Result, error)
}

// Server wires the catalog store and importer into an HTTP API.
type Server struct {
	store    *sqlite.Store
	importer FolderImporter
	logger   *slog.Logger
	http     *http.Server
	router   chi.Router
}

// New creates the API server.
func New(cfg *config.Config, st *sqlite.Store, imp FolderImporter, logger *slog.Logger) *Server {
	s := &Server{
		store:    st,
		importer: imp,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Route("/folders", func(r chi.Router) {
			r.Get("/", s.handleListFolders)
			r.Post("/", s.handleCreateFolder)
			r.Route("/{folderID}", func(r chi.Router) {
				r.Get("/", s.handleGetFolder)
				r.Patch("/", s.handleUpdateFolder)
				r.Delete("/", s.handleDeleteFolder)
				r.Post("/import", s.handleImportFolder)
			})
		})
		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Route("/{bookID}", func(r chi.Router) {
				r.Get("/", s.handleGetBook)
				r.Patch("/", s.handleUpdateBook)
				r.Delete("/", s.handleDeleteBook)
			})
		})
	})
	s.router = r

	s.http = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// Router returns the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{"status": "ok"}, s.logger)
}
