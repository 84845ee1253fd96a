package tasklist

import (
	"strings"

	"github.com/google/uuid"

	"punchlist/internal/service"
)

// Kind identifies the type of a mutation.
type Kind int

const (
	KindAdd Kind = iota
	KindToggle
	KindRemove
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindToggle:
		return "toggle"
	case KindRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a mutation.
type State int

const (
	// Pending means the optimistic edit is applied locally and the
	// remote call has not resolved yet.
	Pending State = iota

	// Confirmed means the remote call succeeded.
	Confirmed

	// Reverted means the remote call failed and the edit was rolled back.
	Reverted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Reverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Mutation is one in-flight optimistic edit.
// Exported fields are fixed at Begin time. Perform reads them off the
// event loop, so they must not be modified while the mutation is pending.
type Mutation struct {
	Kind  Kind
	State State

	// ID is the task ID the mutation applies to. For adds this is the
	// provisional ID until the mutation is confirmed.
	ID string

	// Title is the title sent to the backend (adds only).
	Title string

	// Done is the new done value sent to the backend (toggles only).
	Done bool

	owner    string
	prevDone bool
	snapshot []service.Task
	gen      uint64
}

const provisionalPrefix = "local-"

// newProvisionalID returns a fresh ID in the provisional namespace.
// Provisional IDs never collide with server-assigned IDs.
func newProvisionalID() string {
	return provisionalPrefix + uuid.NewString()
}

// IsProvisional reports whether id was assigned locally by BeginAdd and
// not yet confirmed by the backend.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}
