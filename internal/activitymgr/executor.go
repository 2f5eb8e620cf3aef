package activitymgr

import (
	"context"

	"github.com/hstp/node/internal/activity"
)

// Executor runs one activity to completion, streaming ExecutionEvents back
// to the manager as it progresses (§4.8's "execution protocol"). Executors
// are discovered by explicit registration (§9 Design Notes), keyed by the
// plugin id a Schema references.
type Executor interface {
	// PluginID identifies this executor for Schema.ExecutorPluginID lookup.
	PluginID() string
	// Execute runs act against schema, sending events to events until the
	// activity reaches a terminal state or ctx is cancelled. Execute must
	// not close events; the manager owns that channel's lifetime. A
	// non-nil return is treated as an uncaught failure distinct from an
	// explicit Failed event; implement Retryable on the returned error to
	// opt into the manager's retry policy.
	Execute(ctx context.Context, act *activity.Activity, schema *activity.Schema, events chan<- activity.ExecutionEvent) error
	// Shutdown releases any resources the executor holds.
	Shutdown(ctx context.Context) error
}

// Retryable is implemented by executor-reported errors that know whether
// the manager should retry the failed execution (§4.8: "a retryable
// failure, distinct error class ... executor-declared").
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err opts into the manager's retry policy.
func IsRetryable(err error) bool {
	r, ok := err.(Retryable)
	return ok && r.Retryable()
}
