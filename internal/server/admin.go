package server

import (
	"net/http"
	"strings"

	"devhub/internal/app"
	"devhub/pkg/domain"
)

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": users,
		"count": len(users),
	})
}

// /admin/users/{id} or /admin/users/{id}/verify
func (s *Server) handleAdminUserPath(w http.ResponseWriter, r *http.Request, admin domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFoundPath(w)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "verify" {
			notFoundPath(w)
			return
		}
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		user, err := s.app.AdminVerifyUser(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var update app.AdminUserUpdate
		if err := decodeJSONBody(r, &update); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		user, err := s.app.AdminUpdateUser(id, update)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := s.app.AdminDeleteUser(admin, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminProjects(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	projects, err := s.app.ListProjects()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": projects,
		"count": len(projects),
	})
}

// /admin/projects/{id} or /admin/projects/{id}/lock
func (s *Server) handleAdminProjectPath(w http.ResponseWriter, r *http.Request, admin domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/admin/projects/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFoundPath(w)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "lock" {
			notFoundPath(w)
			return
		}
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		project, err := s.app.AdminUnlockProject(r.Context(), admin, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var update app.ProjectUpdate
		if err := decodeJSONBody(r, &update); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		project, err := s.app.AdminUpdateProject(r.Context(), id, update)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)
	case http.MethodDelete:
		if err := s.app.AdminDeleteProject(r.Context(), id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}
