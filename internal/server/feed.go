package server

import (
	"net/http"
	"strconv"
	"strings"

	"devhub/pkg/domain"
)

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	entries, err := s.app.HomeFeed(r.Context(), user, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": entries,
		"count": len(entries),
	})
}

// /search/{q}
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := strings.TrimPrefix(r.URL.Path, "/search/")
	if query == "" {
		notFoundPath(w)
		return
	}
	results, err := s.app.Search(query)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleProjectTypes(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	types := s.app.ProjectTypeList()
	writeJSON(w, http.StatusOK, map[string]any{
		"items": types,
		"count": len(types),
	})
}
