package activitymgr

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/hstp/node/internal/activity"
	"github.com/hstp/node/internal/metrics"
	"github.com/hstp/node/internal/nodeerr"
	"github.com/hstp/node/internal/validator"
	"github.com/hstp/node/pkg/logging"
)

// knownActivityStatuses enumerates every status the activities-by-status
// gauge reports, so a status that has dropped to zero is reported as such
// rather than left stale at its last nonzero value.
var knownActivityStatuses = []string{
	string(activity.StatusCreated),
	string(activity.StatusQueued),
	string(activity.StatusRunning),
	string(activity.StatusPaused),
	string(activity.StatusCompleted),
	string(activity.StatusFailed),
	string(activity.StatusCancelled),
}

// StartRequest names the arguments to StartActivity (§4.8).
type StartRequest struct {
	SchemaID      string
	Input         map[string]any
	CreatedBy     string
	CorrelationID string
	// NonBlocking, when true, makes StartActivity return an
	// ACTIVITY_BACKPRESSURE refusal immediately if the concurrency ceiling
	// is reached rather than blocking for a free slot (§4.8's "backpressure
	// policy" open question, resolved in favor of an explicit opt-in flag).
	NonBlocking bool
}

// StartActivity validates input against the named schema and, if valid,
// creates and enqueues an Activity for execution, returning its CREATED→
// QUEUED snapshot (§4.8).
func (m *Manager) StartActivity(ctx context.Context, req StartRequest) (*activity.Activity, error) {
	m.mu.RLock()
	schema, ok := m.schemas[req.SchemaID]
	m.mu.RUnlock()
	if !ok {
		return nil, nodeerr.New(nodeerr.KindConfig, "UNKNOWN_SCHEMA", fmt.Sprintf("no schema registered as %q", req.SchemaID))
	}

	result, err := m.validator.ValidateInput(ctx, validator.Context{Phase: validator.PhaseInput}, schema, req.Input)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindValidation, "INPUT_VALIDATION_ERROR", "input validation failed", err)
	}
	if !result.IsValid {
		return nil, nodeerr.New(nodeerr.KindValidation, "INPUT_INVALID", formatIssues(result))
	}

	m.mu.RLock()
	executor, ok := m.executors[schema.ExecutorPluginID]
	m.mu.RUnlock()
	if !ok {
		return nil, nodeerr.New(nodeerr.KindConfig, "UNKNOWN_EXECUTOR_PLUGIN", fmt.Sprintf("executor plugin %q not registered", schema.ExecutorPluginID))
	}

	if !m.acquireSlot(req.NonBlocking) {
		return nil, nodeerr.New(nodeerr.KindExecution, nodeerr.CodeActivityBackpress, "activity concurrency ceiling reached")
	}

	now := time.Now().UTC()
	act := &activity.Activity{
		ID:            uuid.NewString(),
		SchemaID:      schema.ID,
		Status:        activity.StatusCreated,
		Input:         req.Input,
		CreatedBy:     req.CreatedBy,
		CorrelationID: req.CorrelationID,
		CreatedAt:     now,
	}
	if err := act.TransitionTo(activity.StatusQueued, now); err != nil {
		m.releaseSlot()
		return nil, err
	}

	execCtx, cancel := context.WithCancelCause(context.Background())
	rec := &executionRecord{activity: act, schema: schema, executor: executor, ctx: execCtx, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.active[act.ID] = rec
	m.mu.Unlock()

	m.reportActivityGauges()
	go m.runExecution(rec)

	return act.Snapshot(), nil
}

func (m *Manager) acquireSlot(nonBlocking bool) bool {
	if nonBlocking {
		select {
		case m.sem <- struct{}{}:
			return true
		default:
			return false
		}
	}
	m.sem <- struct{}{}
	return true
}

func (m *Manager) releaseSlot() {
	select {
	case <-m.sem:
	default:
	}
}

// GetActivity returns a snapshot of a tracked activity, if still present.
func (m *Manager) GetActivity(id string) (*activity.Activity, bool) {
	m.mu.RLock()
	rec, ok := m.active[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.activity.Snapshot(), true
}

// SearchQuery filters SearchActivities results; zero-value fields are
// unfiltered.
type SearchQuery struct {
	SchemaID  string
	Status    activity.Status
	CreatedBy string
}

// SearchActivities returns every tracked activity matching q.
func (m *Manager) SearchActivities(q SearchQuery) []*activity.Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*activity.Activity
	for _, rec := range m.active {
		rec.mu.Lock()
		a := rec.activity
		matches := (q.SchemaID == "" || a.SchemaID == q.SchemaID) &&
			(q.Status == "" || a.Status == q.Status) &&
			(q.CreatedBy == "" || a.CreatedBy == q.CreatedBy)
		var snap *activity.Activity
		if matches {
			snap = a.Snapshot()
		}
		rec.mu.Unlock()
		if matches {
			out = append(out, snap)
		}
	}
	return out
}

// Statistics summarizes the manager's tracked activities by status (§4.8's
// GetStatistics).
type Statistics struct {
	Total    int
	ByStatus map[activity.Status]int
}

// GetStatistics reports a point-in-time count of tracked activities by
// status.
func (m *Manager) GetStatistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Statistics{ByStatus: make(map[activity.Status]int)}
	for _, rec := range m.active {
		rec.mu.Lock()
		status := rec.activity.Status
		rec.mu.Unlock()
		stats.Total++
		stats.ByStatus[status]++
	}
	return stats
}

// CancelActivity requests cancellation of a tracked activity. Compatible
// states are every non-terminal status (§4.8's state machine allows
// CANCELLED from CREATED, QUEUED, RUNNING, and PAUSED).
func (m *Manager) CancelActivity(id string, reason string) error {
	rec, ok := m.lookupActive(id)
	if !ok {
		return nodeerr.New(nodeerr.KindExecution, "UNKNOWN_ACTIVITY", fmt.Sprintf("no active activity %q", id))
	}

	rec.mu.Lock()
	status := rec.activity.Status
	rec.mu.Unlock()
	if status.IsTerminal() {
		return nodeerr.New(nodeerr.KindExecution, nodeerr.CodeIllegalTransition, "activity is already in a terminal state")
	}

	rec.cancel(fmt.Errorf("cancelled: %s", reason))
	m.applyEvent(rec, activity.ExecutionEvent{Kind: activity.EventCancelled, Reason: reason})

	grace := time.NewTimer(m.gracePeriod)
	defer grace.Stop()
	select {
	case <-rec.done:
	case <-grace.C:
		logging.Warn("activitymgr", "execution %s did not stop within grace period", id)
	}
	return nil
}

// PauseActivity requests a RUNNING activity pause. Forwards to the owning
// executor if it implements Pausable (§4.8: "forward to the owning
// executor").
func (m *Manager) PauseActivity(id string, reason string) error {
	rec, ok := m.lookupActive(id)
	if !ok {
		return nodeerr.New(nodeerr.KindExecution, "UNKNOWN_ACTIVITY", fmt.Sprintf("no active activity %q", id))
	}
	rec.mu.Lock()
	status := rec.activity.Status
	rec.mu.Unlock()
	if status != activity.StatusRunning {
		return nodeerr.New(nodeerr.KindExecution, nodeerr.CodeIllegalTransition, "activity is not running")
	}
	if p, ok := rec.executor.(Pausable); ok {
		if err := p.Pause(rec.ctx, rec.activity, reason); err != nil {
			return nodeerr.Wrap(nodeerr.KindExecution, "PAUSE_FAILED", "executor refused pause", err)
		}
	}
	m.applyEvent(rec, activity.ExecutionEvent{Kind: activity.EventPaused, Reason: reason})
	return nil
}

// ResumeActivity requests a PAUSED activity resume.
func (m *Manager) ResumeActivity(id string) error {
	rec, ok := m.lookupActive(id)
	if !ok {
		return nodeerr.New(nodeerr.KindExecution, "UNKNOWN_ACTIVITY", fmt.Sprintf("no active activity %q", id))
	}
	rec.mu.Lock()
	status := rec.activity.Status
	rec.mu.Unlock()
	if status != activity.StatusPaused {
		return nodeerr.New(nodeerr.KindExecution, nodeerr.CodeIllegalTransition, "activity is not paused")
	}
	if p, ok := rec.executor.(Pausable); ok {
		if err := p.Resume(rec.ctx, rec.activity); err != nil {
			return nodeerr.Wrap(nodeerr.KindExecution, "RESUME_FAILED", "executor refused resume", err)
		}
	}
	m.applyEvent(rec, activity.ExecutionEvent{Kind: activity.EventResumed})
	return nil
}

func (m *Manager) lookupActive(id string) (*executionRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.active[id]
	return rec, ok
}

// Shutdown cancels every active execution with a bounded grace period and
// shuts down every registered executor (§4.8).
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	records := make([]*executionRecord, 0, len(m.active))
	for _, rec := range m.active {
		records = append(records, rec)
	}
	executors := make([]Executor, 0, len(m.executors))
	for _, e := range m.executors {
		executors = append(executors, e)
	}
	m.mu.RUnlock()

	for _, rec := range records {
		rec.cancel(fmt.Errorf("shutdown"))
	}

	deadline := time.NewTimer(m.gracePeriod)
	defer deadline.Stop()
	for _, rec := range records {
		select {
		case <-rec.done:
		case <-deadline.C:
			logging.Warn("activitymgr", "execution %s did not stop within grace period", rec.activity.ID)
		}
	}

	var errs nodeerr.Errors
	for _, e := range executors {
		if err := e.Shutdown(ctx); err != nil {
			errs.Add(nodeerr.Wrap(nodeerr.KindExecution, "EXECUTOR_SHUTDOWN_FAILED", "executor failed to shut down cleanly", err))
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// runExecution drives one activity's executor to completion, applying the
// retry policy from its schema's constraints (§4.8's "Retry").
func (m *Manager) runExecution(rec *executionRecord) {
	defer close(rec.done)
	defer m.releaseSlot()

	m.applyEvent(rec, activity.ExecutionEvent{Kind: activity.EventStarted})

	constraints := rec.schema.Constraints
	bo := retryBackoff(constraints)

	var attempt int
	for {
		failedEvent, err := m.runOnce(rec)
		if failedEvent == nil {
			return // Completed or Cancelled already applied terminally.
		}
		if err == nil || !IsRetryable(err) || attempt >= constraints.MaxRetries {
			m.applyEvent(rec, *failedEvent)
			return
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			m.applyEvent(rec, *failedEvent)
			return
		}
		attempt++
		logging.Warn("activitymgr", "retrying activity=%s attempt=%d after %s", rec.activity.ID, attempt, delay)

		select {
		case <-time.After(delay):
		case <-rec.ctx.Done():
			m.applyEvent(rec, activity.ExecutionEvent{Kind: activity.EventCancelled, Reason: "cancelled during retry backoff"})
			return
		}
	}
}

// runOnce invokes the executor exactly once, applying every event except a
// terminal Failed (which the caller decides whether to retry). Returns the
// pending Failed event (nil if execution reached a different terminal
// state) and the executor's returned error, if any.
func (m *Manager) runOnce(rec *executionRecord) (*activity.ExecutionEvent, error) {
	events := make(chan activity.ExecutionEvent, 16)
	execErr := make(chan error, 1)

	go func() {
		defer close(events)
		execErr <- rec.executor.Execute(rec.ctx, rec.activity, rec.schema, events)
	}()

	var pendingFailure *activity.ExecutionEvent
	for ev := range events {
		if ev.Kind == activity.EventFailed {
			evCopy := ev
			pendingFailure = &evCopy
			continue
		}
		m.applyEvent(rec, ev)
	}
	err := <-execErr

	if pendingFailure == nil && err != nil {
		pendingFailure = &activity.ExecutionEvent{
			Kind:    activity.EventFailed,
			Code:    nodeerr.CodeExecutionError,
			Message: err.Error(),
		}
	}
	return pendingFailure, err
}

func retryBackoff(c activity.ExecutionConstraints) backoff.BackOff {
	base := c.RetryBaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	mult := c.RetryMultiplier
	if mult <= 0 {
		mult = 2.0
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = mult
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0 // bounded by MaxRetries, not elapsed time
	exp.Reset()
	return exp
}

// applyEvent mutates rec.activity per §4.8's event-effect table and
// notifies listeners.
func (m *Manager) applyEvent(rec *executionRecord, ev activity.ExecutionEvent) {
	now := time.Now().UTC()
	a := rec.activity

	rec.mu.Lock()
	switch ev.Kind {
	case activity.EventStarted:
		if err := a.TransitionTo(activity.StatusRunning, now); err == nil {
			a.StartedAt = &now
		}
	case activity.EventProgress:
		a.Progress = clamp01(ev.Progress)
	case activity.EventOutput:
		if a.Output == nil {
			a.Output = make(map[string]any, len(ev.Output))
		}
		for k, v := range ev.Output {
			a.Output[k] = v
		}
	case activity.EventCompleted:
		if a.TransitionTo(activity.StatusCompleted, now) == nil {
			if ev.Output != nil {
				a.Output = ev.Output
			}
			a.FinishedAt = &now
		}
	case activity.EventFailed:
		if a.TransitionTo(activity.StatusFailed, now) == nil {
			a.Error = &activity.Error{Code: ev.Code, Message: ev.Message, Detail: ev.Detail}
			a.FinishedAt = &now
		}
	case activity.EventCancelled:
		if a.TransitionTo(activity.StatusCancelled, now) == nil {
			a.FinishedAt = &now
		}
	case activity.EventPaused:
		a.TransitionTo(activity.StatusPaused, now)
	case activity.EventResumed:
		a.TransitionTo(activity.StatusRunning, now)
	case activity.EventSubActivityCreated:
		// notify only; no activity mutation.
	}
	snap := a.Snapshot()
	rec.mu.Unlock()

	if snap.Status.IsTerminal() && snap.FinishedAt != nil {
		metrics.ObserveActivityDuration(snap.FinishedAt.Sub(snap.CreatedAt).Seconds())
	}
	m.reportActivityGauges()
	m.notifyListenersSnapshot(snap, ev)
}

// reportActivityGauges recomputes the per-status activity gauge from the
// manager's current tracked set.
func (m *Manager) reportActivityGauges() {
	stats := m.GetStatistics()
	counts := make(map[string]int, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		counts[string(status)] = n
	}
	metrics.SetActivitiesByStatus(counts, knownActivityStatuses)
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Pausable is an optional Executor capability (§4.8's Pause/Resume event
// effects forwarding to "the owning executor").
type Pausable interface {
	Pause(ctx context.Context, act *activity.Activity, reason string) error
	Resume(ctx context.Context, act *activity.Activity) error
}
