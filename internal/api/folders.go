package api

import (
	"github.com/go-json-experiment/json"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/http/response"
)

type createFolderRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type importSummary struct {
	Imported int     `json:"imported"`
	Failed   int     `json:"failed"`
	BookIDs  []int64 `json:"book_ids"`
	Failures []struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	} `json:"failures,omitempty"`
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.store.LoadFolders(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, folders, s.logger)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body", s.logger)
		return
	}

	info, err := os.Stat(req.Path)
	if err != nil || !info.IsDir() {
		response.BadRequest(w, "path is not an existing directory", s.logger)
		return
	}

	folder, err := domain.NewFolder(req.Name, req.Path)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if dup, err := s.store.IsPathDuplicate(r.Context(), folder); err != nil {
		response.HandleError(w, err, s.logger)
		return
	} else if dup {
		response.Conflict(w, "a folder is already registered at this path", s.logger)
		return
	}
	if dup, err := s.store.IsNameDuplicate(r.Context(), folder); err != nil {
		response.HandleError(w, err, s.logger)
		return
	} else if dup {
		response.Conflict(w, "folder name already in use", s.logger)
		return
	}

	if _, err := s.store.InsertFolder(r.Context(), folder); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, folder, s.logger)
}

func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "folderID")
	if !ok {
		return
	}
	folder, err := s.store.LoadFolderByID(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, folder, s.logger)
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "folderID")
	if !ok {
		return
	}

	var fields map[string]any
	if err := json.UnmarshalRead(r.Body, &fields); err != nil {
		response.BadRequest(w, "invalid request body", s.logger)
		return
	}

	if err := s.store.UpdateFolder(r.Context(), id, fields); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	folder, err := s.store.LoadFolderByID(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, folder, s.logger)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "folderID")
	if !ok {
		return
	}
	if err := s.store.DeleteFolder(r.Context(), id); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleImportFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "folderID")
	if !ok {
		return
	}
	folder, err := s.store.LoadFolderByID(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	result, err := s.importer.ImportFolder(r.Context(), folder)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	ids, err := s.store.InsertBooks(r.Context(), result.Books)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	summary := importSummary{
		Imported: len(ids),
		Failed:   len(result.Failures),
		BookIDs:  ids,
	}
	for _, f := range result.Failures {
		summary.Failures = append(summary.Failures, struct {
			Path  string `json:"path"`
			Error string `json:"error"`
		}{Path: f.Path, Error: f.Err.Error()})
	}
	response.Success(w, summary, s.logger)
}

// pathID parses a numeric id from the route. Writes a 400 and returns
// false when the segment is not a positive integer.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id < 1 {
		response.BadRequest(w, "invalid id", s.logger)
		return 0, false
	}
	return id, true
}
