package recent_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"taskmaster/backend"
	"taskmaster/internal/recent"
)

func task(id, title string) backend.Task {
	return backend.Task{ID: id, Title: title}
}

// ids returns the ids of tasks in order
func ids(tasks []backend.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func assertIDs(t *testing.T, got []backend.Task, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("ids = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("ids = %v, want %v", g, want)
		}
	}
}

func TestNewDefaultsCapacity(t *testing.T) {
	tests := []struct {
		capacity int
		want     int
	}{
		{0, recent.DefaultCapacity},
		{-3, recent.DefaultCapacity},
		{3, 3},
	}
	for _, tt := range tests {
		tr := recent.New[backend.Task](tt.capacity)
		if tr.Capacity() != tt.want {
			t.Errorf("New(%d).Capacity() = %d, want %d", tt.capacity, tr.Capacity(), tt.want)
		}
	}
}

func TestRecordOrdersMostRecentFirst(t *testing.T) {
	tr := recent.New[backend.Task](5)
	tr.Record(task("A", "a"))
	tr.Record(task("B", "b"))
	tr.Record(task("C", "c"))

	assertIDs(t, tr.List(), "C", "B", "A")
}

func TestRecordRetouchMovesToFront(t *testing.T) {
	tr := recent.New[backend.Task](3)
	tr.Record(task("A", "a"))
	tr.Record(task("B", "b"))
	tr.Record(task("C", "c"))
	tr.Record(task("A", "a"))

	assertIDs(t, tr.List(), "A", "C", "B")
}

func TestRecordEvictsOldestAtCapacity(t *testing.T) {
	tr := recent.New[backend.Task](3)
	for _, id := range []string{"A", "B", "C", "D"} {
		tr.Record(task(id, id))
	}

	assertIDs(t, tr.List(), "D", "C", "B")
}

func TestRecordHeadReplacesPayload(t *testing.T) {
	tr := recent.New[backend.Task](5)
	tr.Record(task("A", "old"))
	tr.Record(task("A", "new"))

	list := tr.List()
	assertIDs(t, list, "A")
	if list[0].Title != "new" {
		t.Errorf("head title = %q, want latest payload %q", list[0].Title, "new")
	}
}

func TestRecordGrowsBelowCapacity(t *testing.T) {
	tr := recent.New[backend.Task](5)
	for i := 1; i <= 3; i++ {
		tr.Record(task(fmt.Sprint(i), ""))
		if tr.Len() != i {
			t.Errorf("after %d records Len() = %d", i, tr.Len())
		}
	}
}

// TestRecordInvariantsRandomized checks bound, uniqueness and head for random sequences.
func TestRecordInvariantsRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		capacity := 1 + rng.Intn(6)
		tr := recent.New[backend.Task](capacity)
		calls := capacity + rng.Intn(20)
		var last string
		for i := 0; i < calls; i++ {
			last = fmt.Sprint(rng.Intn(8))
			tr.Record(task(last, ""))
		}

		list := tr.List()
		if len(list) > capacity {
			t.Fatalf("run %d: len = %d exceeds capacity %d", run, len(list), capacity)
		}
		seen := map[string]bool{}
		for _, e := range list {
			if seen[e.ID] {
				t.Fatalf("run %d: duplicate id %s in %v", run, e.ID, ids(list))
			}
			seen[e.ID] = true
		}
		if list[0].ID != last {
			t.Fatalf("run %d: head = %s, want %s", run, list[0].ID, last)
		}
	}
}

func TestListReturnsCopy(t *testing.T) {
	tr := recent.New[backend.Task](5)
	tr.Record(task("A", "a"))

	list := tr.List()
	list[0].Title = "mutated"

	if tr.List()[0].Title != "a" {
		t.Error("mutating the returned slice changed the tracker")
	}
}

func TestSeedUsesModificationOrder(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []backend.Task{
		{ID: "old", Created: base, Modified: base},
		{ID: "newest", Created: base, Modified: base.Add(3 * time.Hour)},
		{ID: "created-only", Created: base.Add(time.Hour)},
		{ID: "mid", Created: base, Modified: base.Add(2 * time.Hour)},
	}

	tr := recent.New[backend.Task](3)
	tr.Seed(items)

	assertIDs(t, tr.List(), "newest", "mid", "created-only")
}

func TestSubscribeReceivesLatestSnapshot(t *testing.T) {
	tr := recent.New[backend.Task](5)
	ch, unsubscribe := tr.Subscribe()
	defer unsubscribe()

	tr.Record(task("A", "a"))
	tr.Record(task("B", "b"))

	select {
	case snap := <-ch:
		assertIDs(t, snap, "B", "A")
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	select {
	case snap := <-ch:
		t.Fatalf("unexpected extra snapshot %v", ids(snap))
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	tr := recent.New[backend.Task](5)
	ch, unsubscribe := tr.Subscribe()
	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
	// Recording after unsubscribe must not panic
	tr.Record(task("A", "a"))
}
