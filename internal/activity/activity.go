package activity

import (
	"time"

	"github.com/hstp/node/internal/nodeerr"
)

// Status is an Activity's position in the state machine (§4.8).
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether status has no outbound transitions (§4.8).
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// validTransitions enumerates every legal Status->Status edge (§4.8):
//
//	CREATED → QUEUED → RUNNING → (COMPLETED | FAILED | CANCELLED)
//	                   RUNNING ↔ PAUSED
var validTransitions = map[Status]map[Status]bool{
	StatusCreated: {StatusQueued: true, StatusCancelled: true},
	StatusQueued:  {StatusRunning: true, StatusCancelled: true},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
		StatusPaused:    true,
	},
	StatusPaused: {StatusRunning: true, StatusCancelled: true},
}

// CanTransition reports whether from->to is a legal edge.
func CanTransition(from, to Status) bool {
	return validTransitions[from][to]
}

// Error is the structured failure detail attached to a FAILED activity
// (§3).
type Error struct {
	Code    string
	Message string
	Detail  map[string]any
	Trace   string
}

// Transition is one append-only history entry recording a status change
// (§3's "append-only history of status transitions").
type Transition struct {
	From Status
	To   Status
	At   time.Time
}

// Activity is a single instance of work created from a Schema (§3).
// Created and mutated only by the Activity Manager; callers only ever see
// immutable snapshots (use Snapshot to obtain one).
type Activity struct {
	ID            string
	SchemaID      string
	Status        Status
	Input         map[string]any
	Output        map[string]any
	Progress      float64
	Error         *Error
	CreatedBy     string
	CorrelationID string
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	History       []Transition
}

// Snapshot returns a deep-enough copy of the activity safe for a caller to
// retain without racing the manager's mutations (§3: "exposed to callers
// as immutable snapshots").
func (a *Activity) Snapshot() *Activity {
	cp := *a
	cp.Input = copyMap(a.Input)
	cp.Output = copyMap(a.Output)
	cp.History = append([]Transition(nil), a.History...)
	if a.Error != nil {
		errCopy := *a.Error
		cp.Error = &errCopy
	}
	return &cp
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TransitionTo is the exported form of transitionTo for callers outside this
// package (the Activity Manager's execution loop).
func (a *Activity) TransitionTo(to Status, now time.Time) error {
	return a.transitionTo(to, now)
}

// transitionTo mutates the activity's status, appending a history entry, if
// the edge is legal. Returns a KindExecution/ILLEGAL_STATE_TRANSITION
// NodeError otherwise (§4.8: "attempts return a refusal and are logged").
func (a *Activity) transitionTo(to Status, now time.Time) error {
	if a.Status == to {
		return nil
	}
	if !CanTransition(a.Status, to) {
		return nodeerr.New(nodeerr.KindExecution, nodeerr.CodeIllegalTransition,
			"illegal activity transition from "+string(a.Status)+" to "+string(to))
	}
	a.History = append(a.History, Transition{From: a.Status, To: to, At: now})
	a.Status = to
	return nil
}
