package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"devhub/internal/app"
	"devhub/pkg/domain"
)

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateProject(w, r, user)
	case http.MethodGet:
		projects, err := s.app.ListProjects()
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": projects,
			"count": len(projects),
		})
	default:
		methodNotAllowed(w)
	}
}

// handleCreateProject accepts a multipart form: a "project" JSON field
// with the metadata, optional "files" parts, and an optional "image".
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !s.parseUploadForm(w, r) {
		return
	}
	var req app.CreateProjectRequest
	raw := r.FormValue("project")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "project metadata is required (field: project)")
		return
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	files, closeFiles, err := openUploads(r, "files")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer closeFiles()
	image, closeImage, err := openSingleUpload(r, "image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer closeImage()

	project, err := s.app.CreateProject(r.Context(), user, req, files, image)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// /projects/search/{q}, /projects/{id}, and the nested project
// resources (checkout, checkin, checkins, files).
func (s *Server) handleProjectPath(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/projects/")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" {
		notFoundPath(w)
		return
	}
	if parts[0] == "search" {
		if len(parts) != 2 || parts[1] == "" {
			notFoundPath(w)
			return
		}
		s.handleProjectSearch(w, r, parts[1])
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleProjectByID(w, r, user, id)
		return
	}
	switch {
	case parts[1] == "checkout":
		s.handleCheckout(w, r, user, id)
	case parts[1] == "checkin":
		s.handleCheckin(w, r, user, id)
	case parts[1] == "checkins":
		s.handleListCheckins(w, r, id)
	case parts[1] == "files":
		s.handleAddFiles(w, r, user, id)
	case strings.HasPrefix(parts[1], "files/"):
		s.handleProjectFile(w, r, user, id, strings.TrimPrefix(parts[1], "files/"))
	default:
		notFoundPath(w)
	}
}

func (s *Server) handleProjectSearch(w http.ResponseWriter, r *http.Request, query string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	projects, err := s.app.SearchProjects(query)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": projects,
		"count": len(projects),
	})
}

func (s *Server) handleProjectByID(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	switch r.Method {
	case http.MethodGet:
		project, err := s.app.GetProject(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)
	case http.MethodPut:
		s.handleUpdateProject(w, r, user, id)
	case http.MethodDelete:
		if err := s.app.DeleteProject(r.Context(), user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// handleUpdateProject accepts either a plain JSON body or a multipart
// form with a "project" JSON field plus an optional "image".
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	var update app.ProjectUpdate
	var image *app.Upload
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if !s.parseUploadForm(w, r) {
			return
		}
		if raw := r.FormValue("project"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &update); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
		}
		img, closeImage, err := openSingleUpload(r, "image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		defer closeImage()
		image = img
	} else {
		if err := decodeJSONBody(r, &update); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	project, err := s.app.UpdateProject(r.Context(), user, id, update, image)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	project, err := s.app.Checkout(r.Context(), user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleCheckin accepts a multipart form: "message" and "version"
// fields plus "files" parts.
func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.parseUploadForm(w, r) {
		return
	}
	files, closeFiles, err := openUploads(r, "files")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer closeFiles()
	project, entry, err := s.app.Checkin(r.Context(), user, id, app.CheckinRequest{
		Message: r.FormValue("message"),
		Version: r.FormValue("version"),
	}, files)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"project": project,
		"checkin": entry,
	})
}

func (s *Server) handleListCheckins(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	checkins, err := s.app.ListCheckins(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": checkins,
		"count": len(checkins),
	})
}

// /projects/{id}/files/{storedName} or .../files/{storedName}/download
func (s *Server) handleProjectFile(w http.ResponseWriter, r *http.Request, user domain.User, id, rest string) {
	parts := strings.SplitN(rest, "/", 2)
	storedName := parts[0]
	if storedName == "" {
		notFoundPath(w)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "download" {
			notFoundPath(w)
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		dl, err := s.app.FileDownloadURL(r.Context(), id, storedName)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dl)
		return
	}
	switch r.Method {
	case http.MethodPut:
		if !s.parseUploadForm(w, r) {
			return
		}
		up, closeUpload, err := openSingleUpload(r, "file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		defer closeUpload()
		if up == nil {
			writeError(w, http.StatusBadRequest, "file is required (field: file)")
			return
		}
		project, err := s.app.ReplaceFile(r.Context(), user, id, storedName, *up)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)
	case http.MethodDelete:
		project, err := s.app.DeleteFile(r.Context(), user, id, storedName)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, project)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAddFiles(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.parseUploadForm(w, r) {
		return
	}
	files, closeFiles, err := openUploads(r, "files")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer closeFiles()
	project, err := s.app.AddFiles(r.Context(), user, id, files)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}
