package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"devhub/internal/app"
	"devhub/internal/ratelimit"
	"devhub/internal/util"
	"devhub/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	RedisAddr                string
	RedisPassword            string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	MaxUploadBytes           int64
	TrustedProxies           []string
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	trustedProxies *util.TrustedProxies
	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Rate limiting is
// enabled when a Redis address is provided.
func New(cfg Config) (*Server, error) {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 * 1024 * 1024
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		trustedProxies: trustedProxies,
	}
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		signupLimit := cfg.SignupRateLimitPerMinute
		if signupLimit <= 0 {
			signupLimit = 5
		}
		loginLimit := cfg.LoginRateLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
			prefix := "devhub:ratelimit:" + name
			limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		var err error
		if s.signupLimiter, err = newLimiter("signup", signupLimit); err != nil {
			return nil, err
		}
		if s.loginLimiter, err = newLimiter("login", loginLimit); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("devhub", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/auth/refresh", s.handleRefresh)
	s.mux.Handle("/auth/logout", s.withUser(s.handleLogout))
	s.mux.Handle("/auth/me", s.withUser(s.handleMe))

	// users
	s.mux.Handle("/users", s.withUser(s.handleUsers))
	s.mux.Handle("/users/", s.withUser(s.handleUserPath))

	// projects
	s.mux.Handle("/projects", s.withUser(s.handleProjects))
	s.mux.Handle("/projects/", s.withUser(s.handleProjectPath))

	// friends
	s.mux.Handle("/friends", s.withUser(s.handleFriends))
	s.mux.Handle("/friends/", s.withUser(s.handleFriendPath))

	// feed & discovery
	s.mux.Handle("/feed", s.withUser(s.handleFeed))
	s.mux.Handle("/search/", s.withUser(s.handleSearch))
	s.mux.Handle("/project-types", s.withUser(s.handleProjectTypes))

	// admin
	s.mux.Handle("/admin/users", s.withAdmin(s.handleAdminUsers))
	s.mux.Handle("/admin/users/", s.withAdmin(s.handleAdminUserPath))
	s.mux.Handle("/admin/projects", s.withAdmin(s.handleAdminProjects))
	s.mux.Handle("/admin/projects/", s.withAdmin(s.handleAdminProjectPath))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) withAdmin(next userHandler) http.Handler {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

// multipart helpers

// parseUploadForm bounds the body and parses the multipart form.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) bool {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return false
	}
	return true
}

// openUploads opens all file parts under the given field. The caller
// must invoke the returned closer once the uploads are consumed.
func openUploads(r *http.Request, field string) ([]app.Upload, func(), error) {
	if r.MultipartForm == nil {
		return nil, func() {}, nil
	}
	headers := r.MultipartForm.File[field]
	uploads := make([]app.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		files = append(files, f)
		uploads = append(uploads, app.Upload{
			Filename:    h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Reader:      f,
		})
	}
	return uploads, closeAll, nil
}

// openSingleUpload opens the first file part under the given field, or
// returns nil when the field is absent.
func openSingleUpload(r *http.Request, field string) (*app.Upload, func(), error) {
	uploads, closer, err := openUploads(r, field)
	if err != nil {
		return nil, func() {}, err
	}
	if len(uploads) == 0 {
		closer()
		return nil, func() {}, nil
	}
	return &uploads[0], closer, nil
}

func decodeJSONBody(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFoundPath(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeFor(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

// writeAppError maps an application error onto an HTTP status.
func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, statusForKind(app.KindOf(err)), err.Error())
}

func statusForKind(kind app.Kind) int {
	switch kind {
	case app.KindNotFound:
		return http.StatusNotFound
	case app.KindForbidden:
		return http.StatusForbidden
	case app.KindConflict, app.KindInvalidState:
		return http.StatusConflict
	case app.KindValidation:
		return http.StatusBadRequest
	case app.KindUnauthorized:
		return http.StatusUnauthorized
	case app.KindStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCodeFor(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case message == "incorrect email or password":
		return "AUTH_INVALID_CREDENTIALS"
	case message == "account disabled":
		return "AUTH_ACCOUNT_DISABLED"
	case message == "invalid refresh token":
		return "AUTH_INVALID_REFRESH_TOKEN"
	case message == "email already registered":
		return "AUTH_EMAIL_TAKEN"
	case message == "username already taken":
		return "AUTH_USERNAME_TAKEN"
	case strings.Contains(message, "checked out by another user"):
		return "PROJECT_CHECKED_OUT"
	case strings.Contains(message, "not checked out by you"):
		return "PROJECT_NOT_CHECKED_OUT_BY_YOU"
	case message == "project not found":
		return "PROJECT_NOT_FOUND"
	case message == "file not found":
		return "PROJECT_FILE_NOT_FOUND"
	case message == "user not found":
		return "USER_NOT_FOUND"
	case message == "friend request not found":
		return "FRIEND_REQUEST_NOT_FOUND"
	case message == "invalid form data":
		return "REQUEST_INVALID_UPLOAD_FORM"
	case message == "invalid json body":
		return "REQUEST_INVALID_BODY"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "REQUEST_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusConflict:
		return "REQUEST_CONFLICT"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "REQUEST_RATE_LIMITED"
	case http.StatusBadGateway:
		return "STORAGE_UNAVAILABLE"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
