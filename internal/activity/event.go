package activity

import "time"

// EventKind discriminates the ExecutionEvent tagged union (§3).
type EventKind string

const (
	EventStarted            EventKind = "Started"
	EventProgress           EventKind = "Progress"
	EventOutput             EventKind = "Output"
	EventCompleted          EventKind = "Completed"
	EventFailed             EventKind = "Failed"
	EventCancelled          EventKind = "Cancelled"
	EventPaused             EventKind = "Paused"
	EventResumed            EventKind = "Resumed"
	EventSubActivityCreated EventKind = "SubActivityCreated"
)

// ExecutionEvent is one item of the stream an ActivityExecutor emits for a
// running activity (§3, §4.8). Only the fields relevant to Kind are
// populated; this mirrors a tagged union without requiring a type switch
// over concrete Go types at every call site.
type ExecutionEvent struct {
	ActivityID string
	Kind       EventKind
	At         time.Time

	// Progress
	Progress float64
	Message  string

	// Output / Completed
	Output     map[string]any
	DurationMS int64

	// Failed
	Code   string
	Detail map[string]any

	// Cancelled / Paused
	Reason string

	// SubActivityCreated
	ParentID      string
	ChildID       string
	ChildSchemaID string
}
