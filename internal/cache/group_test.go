package cache_test

import (
	"context"
	"testing"

	"taskmaster/backend"
	"taskmaster/internal/cache"
)

func newTaskGroup(remote *fakeTasks) *cache.Group[backend.Task, backend.NewTask, backend.TaskPatch] {
	return cache.NewGroup(func(key string) *taskCache {
		return cache.New[backend.Task, backend.NewTask, backend.TaskPatch](remote, cache.TaskOptions("tasks:"+key, nil, 0))
	})
}

func TestGroupReusesCachePerKey(t *testing.T) {
	g := newTaskGroup(newFakeTasks())
	if g.Get("p1") != g.Get("p1") {
		t.Error("Get should return the same cache for a key")
	}
	if g.Get("p1") == g.Get("p2") {
		t.Error("different keys should get different caches")
	}
	keys := g.Keys()
	if len(keys) != 2 || keys[0] != "p1" || keys[1] != "p2" {
		t.Errorf("Keys() = %v", keys)
	}
	if g.Get("p2").Name() != "tasks:p2" {
		t.Errorf("Name() = %q", g.Get("p2").Name())
	}
}

func TestGroupPrimeSplitsByKey(t *testing.T) {
	remote := newFakeTasks()
	g := newTaskGroup(remote)

	all := []backend.Task{
		{ID: "1", ProjectID: "p1", Title: "one"},
		{ID: "2", ProjectID: "p2", Title: "two"},
		{ID: "3", ProjectID: "p1", Title: "three"},
	}
	g.Prime(all, func(t backend.Task) string { return t.ProjectID }, "p3")

	assertTitles(t, g.Get("p1").Items(), "one", "three")
	assertTitles(t, g.Get("p2").Items(), "two")
	if !g.Get("p3").Loaded() || len(g.Get("p3").Items()) != 0 {
		t.Error("listed key without items should be primed empty")
	}

	// Primed caches are fresh, so Load does not hit the remote
	if _, err := g.Get("p1").Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := remote.count("list"); n != 0 {
		t.Errorf("List calls = %d, want 0", n)
	}

	g.InvalidateAll()
	for _, k := range g.Keys() {
		if !g.Get(k).Stale() {
			t.Errorf("cache %s should be stale", k)
		}
	}
}
