// Package server exposes a TaskStore, and optionally a PostStore, over the
// json-server style HTTP API that the rest backend consumes.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"taskmaster/backend"
	"taskmaster/internal/utils"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Logf receives one access log line per request
type Logf func(format string, args ...interface{})

// Options configures a Server
type Options struct {
	Tasks     backend.TaskStore
	Posts     backend.PostStore // Optional; /posts routes are only mounted when set
	Token     string            // Bearer token; empty disables auth
	AccessLog Logf              // Defaults to utils.Debugf
}

// Server routes HTTP requests to the stores
type Server struct {
	router *mux.Router
	tasks  backend.TaskStore
	posts  backend.PostStore
	token  string
	logf   Logf
}

// New builds the router. Tasks is required.
func New(opts Options) (*Server, error) {
	if opts.Tasks == nil {
		return nil, errors.New("server: task store is required")
	}
	s := &Server{
		router: mux.NewRouter(),
		tasks:  opts.Tasks,
		posts:  opts.Posts,
		token:  opts.Token,
		logf:   opts.AccessLog,
	}
	if s.logf == nil {
		s.logf = utils.Debugf
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.accessLog, s.authenticate)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Methods(http.MethodGet).Path("/projects").HandlerFunc(s.listProjects)
	r.Methods(http.MethodPost).Path("/projects").HandlerFunc(s.createProject)
	r.Methods(http.MethodGet).Path("/projects/{id}").HandlerFunc(s.getProject)
	r.Methods(http.MethodGet).Path("/projects/{id}/tasks").HandlerFunc(s.listProjectTasks)

	r.Methods(http.MethodGet).Path("/tasks").HandlerFunc(s.listTasks)
	r.Methods(http.MethodPost).Path("/tasks").HandlerFunc(s.createTask)
	r.Methods(http.MethodGet).Path("/tasks/{id}").HandlerFunc(s.getTask)
	r.Methods(http.MethodPatch).Path("/tasks/{id}").HandlerFunc(s.updateTask)
	r.Methods(http.MethodDelete).Path("/tasks/{id}").HandlerFunc(s.deleteTask)

	if s.posts != nil {
		r.Methods(http.MethodGet).Path("/posts").HandlerFunc(s.listPosts)
		r.Methods(http.MethodPost).Path("/posts").HandlerFunc(s.createPost)
		r.Methods(http.MethodGet).Path("/posts/{id}").HandlerFunc(s.getPost)
		r.Methods(http.MethodPatch).Path("/posts/{id}").HandlerFunc(s.updatePost)
		r.Methods(http.MethodDelete).Path("/posts/{id}").HandlerFunc(s.deletePost)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logf("%s %s %d %dB %s", r.Method, r.URL.RequestURI(), m.Code, m.Written, m.Duration)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="taskmaster"`)
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// badRequest marks client errors that map to 400
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func invalid(format string, args ...interface{}) error {
	return badRequest{fmt.Errorf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Debugf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps store and validation errors onto HTTP statuses
func fail(w http.ResponseWriter, err error) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		writeError(w, http.StatusBadRequest, br.Error())
	case errors.Is(err, backend.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		utils.Errorf("server: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return invalid("invalid JSON body: %v", err)
	}
	return nil
}

func validateStatus(s backend.TaskStatus) error {
	for _, v := range backend.ValidStatuses {
		if s == v {
			return nil
		}
	}
	return invalid("invalid status %q", s)
}

func validatePriority(p backend.TaskPriority) error {
	for _, v := range backend.ValidPriorities {
		if p == v {
			return nil
		}
	}
	return invalid("invalid priority %q", p)
}

func validateTitle(kind, title string) error {
	if err := utils.ValidateTitle(kind, title); err != nil {
		var ews *utils.ErrorWithSuggestion
		if errors.As(err, &ews) {
			return badRequest{ews.Err}
		}
		return badRequest{err}
	}
	return nil
}
