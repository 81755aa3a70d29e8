package api

import (
	"net/http"

	"github.com/quaverapp/quaver-server/internal/http/response"
)

// searchLimit caps the number of hits returned per search request.
const searchLimit = 50

// handlePing is a trivial health check.
// GET /rest/ping
func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{"status": "ok", "server": s.cfg.Name}, s.logger)
}

// handleGetMusicDirectory lists the children of a directory ID.
// GET /rest/getMusicDirectory?id=...
func (s *Server) handleGetMusicDirectory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dirID := r.URL.Query().Get("id")
	if dirID == "" {
		dirID = "/"
	}

	children, err := s.library.ListDirectory(ctx, dirID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]any{
		"id":       dirID,
		"children": children,
	}, s.logger)
}

// handleSearch runs a free-text track search.
// GET /rest/search?query=...
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query().Get("query")
	if query == "" {
		response.BadRequest(w, "query is required", s.logger)
		return
	}

	hits, err := s.searcher.Search(ctx, query, searchLimit)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]any{
		"query": query,
		"hits":  hits,
	}, s.logger)
}
