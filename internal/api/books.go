package api

import (
	"github.com/go-json-experiment/json"
	"net/http"

	"github.com/bookshelfapp/bookshelf-server/internal/http/response"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sortKey, err := store.ParseSortKey(q.Get("sort"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	filterKey, err := store.ParseFilterKey(q.Get("filter"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	books, err := s.store.LoadBooks(r.Context(), sortKey, filterKey, q.Get("value"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, books, s.logger)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "bookID")
	if !ok {
		return
	}
	book, err := s.store.LoadBookByID(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "bookID")
	if !ok {
		return
	}

	var fields map[string]any
	if err := json.UnmarshalRead(r.Body, &fields); err != nil {
		response.BadRequest(w, "invalid request body", s.logger)
		return
	}

	if err := s.store.UpdateBook(r.Context(), id, fields); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	book, err := s.store.LoadBookByID(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "bookID")
	if !ok {
		return
	}
	if err := s.store.DeleteBook(r.Context(), id); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}
