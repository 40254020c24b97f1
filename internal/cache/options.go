package cache

import (
	"time"

	"taskmaster/backend"
)

// TaskOptions returns the options used for task caches.
func TaskOptions(name string, recorder Recorder[backend.Task], timeout time.Duration) Options[backend.Task, backend.NewTask, backend.TaskPatch] {
	return Options[backend.Task, backend.NewTask, backend.TaskPatch]{
		Name:        name,
		Placeholder: backend.NewTask.Placeholder,
		Merge: func(t backend.Task, patch backend.TaskPatch) backend.Task {
			return patch.Apply(t)
		},
		Recorder: recorder,
		Timeout:  timeout,
	}
}

// PostOptions returns the options used for post caches.
func PostOptions(name string, recorder Recorder[backend.Post], timeout time.Duration) Options[backend.Post, backend.NewPost, backend.PostPatch] {
	return Options[backend.Post, backend.NewPost, backend.PostPatch]{
		Name:        name,
		Placeholder: backend.NewPost.Placeholder,
		Merge: func(p backend.Post, patch backend.PostPatch) backend.Post {
			return patch.Apply(p)
		},
		Recorder: recorder,
		Timeout:  timeout,
	}
}
