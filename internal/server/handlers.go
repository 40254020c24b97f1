package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"taskmaster/backend"
)

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.tasks.GetProjects(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(projects))
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.tasks.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var in backend.NewProject
	if err := decode(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		fail(w, invalid("project name is required"))
		return
	}
	p, err := s.tasks.CreateProject(r.Context(), in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) listProjectTasks(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.tasks.GetProject(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	s.writeTasks(w, r, id)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	s.writeTasks(w, r, r.URL.Query().Get("projectId"))
}

func (s *Server) writeTasks(w http.ResponseWriter, r *http.Request, projectID string) {
	tasks, err := s.tasks.GetTasks(r.Context(), projectID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tasks))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var in backend.NewTask
	if err := decode(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	in = in.WithDefaults()
	if in.ProjectID == "" {
		fail(w, invalid("projectId is required"))
		return
	}
	if err := firstError(
		validateTitle("task", in.Title),
		validateStatus(in.Status),
		validatePriority(in.Priority),
	); err != nil {
		fail(w, err)
		return
	}

	t, err := s.tasks.CreateTask(r.Context(), in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var patch backend.TaskPatch
	if err := decode(w, r, &patch); err != nil {
		fail(w, err)
		return
	}
	var errs []error
	if patch.Title != nil {
		errs = append(errs, validateTitle("task", *patch.Title))
	}
	if patch.Status != nil {
		errs = append(errs, validateStatus(*patch.Status))
	}
	if patch.Priority != nil {
		errs = append(errs, validatePriority(*patch.Priority))
	}
	if patch.ProjectID != nil {
		if _, err := s.tasks.GetProject(r.Context(), *patch.ProjectID); err != nil {
			errs = append(errs, invalid("unknown projectId %q", *patch.ProjectID))
		}
	}
	if err := firstError(errs...); err != nil {
		fail(w, err)
		return
	}

	t, err := s.tasks.UpdateTask(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.DeleteTask(r.Context(), mux.Vars(r)["id"]); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"), 1)
	if err != nil {
		fail(w, err)
		return
	}
	size, err := queryInt(q.Get("pageSize"), 0)
	if err != nil {
		fail(w, err)
		return
	}
	result, err := s.posts.GetPosts(r.Context(), page, size)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := backend.ParsePostID(mux.Vars(r)["id"])
	if err != nil {
		fail(w, err)
		return
	}
	p, err := s.posts.GetPost(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var in backend.NewPost
	if err := decode(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	if err := validateTitle("post", in.Title); err != nil {
		fail(w, err)
		return
	}
	p, err := s.posts.CreatePost(r.Context(), in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	id, err := backend.ParsePostID(mux.Vars(r)["id"])
	if err != nil {
		fail(w, err)
		return
	}
	var patch backend.PostPatch
	if err := decode(w, r, &patch); err != nil {
		fail(w, err)
		return
	}
	if patch.Title != nil {
		if err := validateTitle("post", *patch.Title); err != nil {
			fail(w, err)
			return
		}
	}
	p, err := s.posts.UpdatePost(r.Context(), id, patch)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// deletePost succeeds for unknown ids, like the store
func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	id, err := backend.ParsePostID(mux.Vars(r)["id"])
	if err != nil {
		fail(w, err)
		return
	}
	if err := s.posts.DeletePost(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func queryInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalid("invalid number %q", raw)
	}
	return n, nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// nonNil keeps empty lists encoded as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
