package server

import (
	"net/http"
	"strings"

	"devhub/pkg/domain"
)

func (s *Server) handleFriends(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	friends, err := s.app.ListFriends(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": friends,
		"count": len(friends),
	})
}

// /friends/{friendId}, /friends/request, /friends/requests,
// /friends/requests/outgoing, /friends/request/{id},
// /friends/request/{id}/accept, /friends/request/{id}/reject
func (s *Server) handleFriendPath(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/friends/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		notFoundPath(w)
		return
	}
	switch parts[0] {
	case "request":
		s.handleFriendRequest(w, r, user, parts[1:])
	case "requests":
		s.handleFriendRequestLists(w, r, user, parts[1:])
	default:
		if len(parts) != 1 {
			notFoundPath(w)
			return
		}
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		if err := s.app.RemoveFriend(user, parts[0]); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	}
}

func (s *Server) handleFriendRequest(w http.ResponseWriter, r *http.Request, user domain.User, parts []string) {
	switch len(parts) {
	case 0:
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req struct {
			UserID string `json:"userId"`
		}
		if err := decodeJSONBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		request, err := s.app.SendFriendRequest(user, req.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, request)
	case 1:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		if err := s.app.CancelFriendRequest(user, parts[0]); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	case 2:
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var err error
		switch parts[1] {
		case "accept":
			err = s.app.AcceptFriendRequest(user, parts[0])
		case "reject":
			err = s.app.RejectFriendRequest(user, parts[0])
		default:
			notFoundPath(w)
			return
		}
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": parts[1] + "ed"})
	default:
		notFoundPath(w)
	}
}

func (s *Server) handleFriendRequestLists(w http.ResponseWriter, r *http.Request, user domain.User, parts []string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	switch {
	case len(parts) == 0:
		requests, err := s.app.IncomingRequests(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": requests,
			"count": len(requests),
		})
	case len(parts) == 1 && parts[0] == "outgoing":
		requests, err := s.app.OutgoingRequests(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": requests,
			"count": len(requests),
		})
	default:
		notFoundPath(w)
	}
}
