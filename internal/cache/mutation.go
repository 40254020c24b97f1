package cache

import "fmt"

// Kind identifies the kind of a mutation.
type Kind int

const (
	OpCreate Kind = iota
	OpUpdate
	OpDelete
)

func (k Kind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Mutation describes one change to a collection. Draft is used by creates,
// Patch by updates, and ID by updates and deletes.
type Mutation[N any, P any] struct {
	Kind  Kind
	ID    string
	Draft N
	Patch P
}

// State is the lifecycle position of a mutation.
//
//	Idle -> OptimisticApplied -> RemotePending -> Committed
//	                                          \-> RolledBack
type State int

const (
	StateIdle State = iota
	StateOptimisticApplied
	StateRemotePending
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimisticApplied:
		return "optimistic_applied"
	case StateRemotePending:
		return "remote_pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Done reports whether s is terminal.
func (s State) Done() bool {
	return s == StateCommitted || s == StateRolledBack
}

// MutationError is returned when the remote rejects a mutation. The cache has
// already been restored to its snapshot when the caller sees it.
type MutationError struct {
	Op  Kind
	ID  string
	Err error
}

func (e *MutationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s failed, changes rolled back: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed, changes rolled back: %v", e.Op, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
