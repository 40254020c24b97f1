// Package cache keeps a local copy of a remote collection and applies
// mutations to it optimistically, rolling back when the remote rejects them.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"taskmaster/backend"
	"taskmaster/internal/utils"
)

// Recorder is notified of every entity a committed create or update returns.
type Recorder[E any] interface {
	Record(e E)
}

// Options configures a Cache.
type Options[E backend.Entity, N any, P any] struct {
	// Name identifies the cache in log output.
	Name string
	// Placeholder builds the entity shown while a create is in flight.
	// Without it creates are not applied optimistically.
	Placeholder func(draft N) E
	// Merge applies a patch to a cached entity.
	// Without it updates are not applied optimistically.
	Merge func(e E, patch P) E
	// Recorder, when set, receives the results of committed creates and updates.
	Recorder Recorder[E]
	// Timeout bounds each remote mutation. Zero means no bound beyond the caller's context.
	Timeout time.Duration
}

// entry is one cached item. token is set while the entry is a create placeholder.
type entry[E any] struct {
	value E
	token string
}

// Cache is an optimistic cache over one remote collection. It is safe for
// concurrent use; every read and write of the cached list is serialized.
type Cache[E backend.Entity, N any, P any] struct {
	remote backend.Collection[E, N, P]
	opts   Options[E, N, P]

	mu          sync.Mutex
	items       []entry[E]
	loaded      bool
	stale       bool
	generation  uint64
	pending     int
	subscribers map[chan []E]struct{}
}

// New creates an empty cache over remote.
func New[E backend.Entity, N any, P any](remote backend.Collection[E, N, P], opts Options[E, N, P]) *Cache[E, N, P] {
	if opts.Name == "" {
		opts.Name = "collection"
	}
	return &Cache[E, N, P]{
		remote:      remote,
		opts:        opts,
		subscribers: make(map[chan []E]struct{}),
	}
}

// Name returns the name the cache logs under.
func (c *Cache[E, N, P]) Name() string {
	return c.opts.Name
}

// Items returns the cached entities, including unsettled optimistic changes.
func (c *Cache[E, N, P]) Items() []E {
	c.mu.Lock()
	defer c.mu.Unlock()
	return values(c.items)
}

// Get returns the cached entity with the given id.
func (c *Cache[E, N, P]) Get(id string) (E, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.items, id); i >= 0 {
		return c.items[i].value, true
	}
	var zero E
	return zero, false
}

// Loaded reports whether the cache has been populated from the remote.
func (c *Cache[E, N, P]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Stale reports whether the cached list should be refetched before it is trusted.
func (c *Cache[E, N, P]) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale || !c.loaded
}

// Pending returns the number of mutations applied but not yet settled.
func (c *Cache[E, N, P]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Invalidate marks the cache stale so the next Load refetches.
func (c *Cache[E, N, P]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = true
}

// Load returns the cached list, fetching it first when it is missing or stale.
func (c *Cache[E, N, P]) Load(ctx context.Context) ([]E, error) {
	c.mu.Lock()
	fresh := c.loaded && !c.stale
	items := values(c.items)
	c.mu.Unlock()
	if fresh {
		return items, nil
	}
	return c.Refresh(ctx)
}

// Refresh fetches the collection and replaces the cached list. A fetch that
// started before a mutation was applied or settled is discarded, and the
// current cached list is returned instead.
func (c *Cache[E, N, P]) Refresh(ctx context.Context) ([]E, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	fetched, err := c.remote.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.opts.Name, err)
	}

	c.mu.Lock()
	if gen != c.generation {
		items := values(c.items)
		c.stale = true
		c.mu.Unlock()
		utils.Debugf("cache %s: discarded fetch superseded by a mutation", c.opts.Name)
		return items, nil
	}
	c.replaceLocked(fetched)
	items := values(c.items)
	c.mu.Unlock()

	utils.Debugf("cache %s: loaded %d items", c.opts.Name, len(items))
	return items, nil
}

// Prime replaces the cached list with items known to be authoritative.
func (c *Cache[E, N, P]) Prime(items []E) {
	c.mu.Lock()
	c.generation++
	c.replaceLocked(items)
	c.mu.Unlock()
}

func (c *Cache[E, N, P]) replaceLocked(items []E) {
	c.items = make([]entry[E], len(items))
	for i, e := range items {
		c.items[i] = entry[E]{value: e}
	}
	c.loaded = true
	c.stale = false
	c.publishLocked()
}

// Subscribe returns a channel that receives the cached list after every change.
// Only the latest list is kept for a slow reader. Call the returned function
// to stop receiving and close the channel.
func (c *Cache[E, N, P]) Subscribe() (<-chan []E, func()) {
	ch := make(chan []E, 1)
	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Cache[E, N, P]) publishLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	for ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- values(c.items)
	}
}

// Begin applies m to the cached list and returns the pending mutation. The
// caller observes the optimistic list as soon as Begin returns; nothing is
// sent to the remote until Settle is called.
func (c *Cache[E, N, P]) Begin(m Mutation[N, P]) *Pending[E, N, P] {
	p := &Pending[E, N, P]{cache: c, mutation: m, state: StateIdle}

	c.mu.Lock()
	p.snapshot = cloneEntries(c.items)
	switch m.Kind {
	case OpCreate:
		if c.opts.Placeholder != nil {
			p.token = uuid.New().String()
			c.items = append(c.items, entry[E]{value: c.opts.Placeholder(m.Draft), token: p.token})
		}
	case OpUpdate:
		if c.opts.Merge != nil {
			if i := indexOf(c.items, m.ID); i >= 0 {
				c.items[i].value = c.opts.Merge(c.items[i].value, m.Patch)
			}
		}
	case OpDelete:
		if i := indexOf(c.items, m.ID); i >= 0 {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
		}
	}
	c.generation++
	c.pending++
	c.publishLocked()
	c.mu.Unlock()

	p.state = StateOptimisticApplied
	utils.Debugf("cache %s: applied %s %s", c.opts.Name, m.Kind, m.ID)
	return p
}

// Mutate applies m optimistically and settles it against the remote.
func (c *Cache[E, N, P]) Mutate(ctx context.Context, m Mutation[N, P]) (E, error) {
	return c.Begin(m).Settle(ctx)
}

// Create adds draft optimistically and returns the stored entity.
func (c *Cache[E, N, P]) Create(ctx context.Context, draft N) (E, error) {
	return c.Mutate(ctx, Mutation[N, P]{Kind: OpCreate, Draft: draft})
}

// Update merges patch into the entity with the given id and returns the stored result.
func (c *Cache[E, N, P]) Update(ctx context.Context, id string, patch P) (E, error) {
	return c.Mutate(ctx, Mutation[N, P]{Kind: OpUpdate, ID: id, Patch: patch})
}

// Delete removes the entity with the given id.
func (c *Cache[E, N, P]) Delete(ctx context.Context, id string) error {
	_, err := c.Mutate(ctx, Mutation[N, P]{Kind: OpDelete, ID: id})
	return err
}

// rollback restores the snapshot taken when p was applied.
func (c *Cache[E, N, P]) rollback(p *Pending[E, N, P]) {
	c.mu.Lock()
	c.items = cloneEntries(p.snapshot)
	c.generation++
	c.pending--
	c.publishLocked()
	c.mu.Unlock()
}

// commit folds the remote result of p into the cached list.
func (c *Cache[E, N, P]) commit(p *Pending[E, N, P], result E) {
	c.mu.Lock()
	switch p.mutation.Kind {
	case OpCreate:
		c.commitCreateLocked(p.token, result)
	case OpUpdate:
		if i := indexOf(c.items, p.mutation.ID); i >= 0 {
			c.items[i].value = result
		}
	case OpDelete:
		if i := indexOf(c.items, p.mutation.ID); i >= 0 {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
		}
	}
	c.stale = true
	c.generation++
	c.pending--
	c.publishLocked()
	c.mu.Unlock()
}

func (c *Cache[E, N, P]) commitCreateLocked(token string, result E) {
	if token != "" {
		for i := range c.items {
			if c.items[i].token == token {
				c.items[i] = entry[E]{value: result}
				return
			}
		}
	}
	if i := indexOf(c.items, result.EntityID()); i >= 0 {
		c.items[i].value = result
		return
	}
	c.items = append(c.items, entry[E]{value: result})
}

// Pending is a mutation that has been applied to the cache and awaits its
// remote outcome.
type Pending[E backend.Entity, N any, P any] struct {
	cache    *Cache[E, N, P]
	mutation Mutation[N, P]
	token    string
	snapshot []entry[E]

	mu     sync.Mutex
	state  State
	once   sync.Once
	result E
	err    error
}

// Mutation returns the mutation being settled.
func (p *Pending[E, N, P]) Mutation() Mutation[N, P] {
	return p.mutation
}

// State returns the current lifecycle state.
func (p *Pending[E, N, P]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pending[E, N, P]) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Settle sends the mutation to the remote and commits or rolls back the
// cache. The remote is called at most once; later calls return the first outcome.
func (p *Pending[E, N, P]) Settle(ctx context.Context) (E, error) {
	p.once.Do(func() {
		p.result, p.err = p.settle(ctx)
	})
	return p.result, p.err
}

func (p *Pending[E, N, P]) settle(ctx context.Context) (E, error) {
	c := p.cache
	m := p.mutation
	p.setState(StateRemotePending)

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var (
		result E
		err    error
	)
	switch m.Kind {
	case OpCreate:
		result, err = c.remote.Create(ctx, m.Draft)
	case OpUpdate:
		result, err = c.remote.Update(ctx, m.ID, m.Patch)
	case OpDelete:
		err = c.remote.Delete(ctx, m.ID)
	default:
		err = fmt.Errorf("unknown mutation kind %s", m.Kind)
	}

	if err != nil {
		c.rollback(p)
		p.setState(StateRolledBack)
		utils.Debugf("cache %s: rolled back %s %s: %v", c.opts.Name, m.Kind, m.ID, err)
		var zero E
		return zero, &MutationError{Op: m.Kind, ID: m.ID, Err: err}
	}

	c.commit(p, result)
	p.setState(StateCommitted)
	id := m.ID
	if m.Kind == OpCreate {
		id = result.EntityID()
	}
	utils.Debugf("cache %s: committed %s %s", c.opts.Name, m.Kind, id)

	if c.opts.Recorder != nil && m.Kind != OpDelete {
		c.opts.Recorder.Record(result)
	}
	return result, nil
}

func indexOf[E backend.Entity](items []entry[E], id string) int {
	for i := range items {
		if items[i].token == "" && items[i].value.EntityID() == id {
			return i
		}
	}
	return -1
}

func values[E any](items []entry[E]) []E {
	out := make([]E, len(items))
	for i := range items {
		out[i] = items[i].value
	}
	return out
}

func cloneEntries[E any](items []entry[E]) []entry[E] {
	out := make([]entry[E], len(items))
	copy(out, items)
	return out
}
