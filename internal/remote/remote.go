// Package remote defines the contract the engine needs from whatever
// talks to the remote calendar service, and provides the default HTTP
// implementation. The engine only ever sees Repository.
package remote

import (
	"context"
	"errors"

	"github.com/existflow/caldo/internal/model"
)

// Inventory is the full remote snapshot returned by FetchAll.
type Inventory struct {
	Tasks     []model.Task     `json:"tasks"`
	Calendars []model.Calendar `json:"calendars"`
}

// OpKind tags a mutation pushed to the remote.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
	OpMove   OpKind = "move"
)

// Op is one mutation to propagate, keyed by the task's uid.
type Op struct {
	Kind           OpKind     `json:"kind"`
	Task           model.Task `json:"task"`
	TargetCalendar string     `json:"target_calendar,omitempty"` // move only
}

// ErrVanished reports that the remote no longer has (or has since
// replaced) the resource an op targets. The push cannot succeed and
// should not be retried; the next fetch settles the truth.
var ErrVanished = errors.New("remote resource gone or stale")

// Repository is the narrow surface the sync orchestrator consumes.
// Implementations own timeouts; a timeout surfaces as an ordinary
// transport error.
type Repository interface {
	// FetchAll returns the complete remote snapshot.
	FetchAll(ctx context.Context) (Inventory, error)

	// Push propagates one local mutation. A non-nil error that wraps
	// ErrVanished means the op is permanently unapplicable; any other
	// error is a transient transport failure.
	Push(ctx context.Context, op Op) error
}
