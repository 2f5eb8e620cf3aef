// Package activitymgr implements the Activity Manager (§4.8, component
// J): a self-contained scheduler that drives declarative activities
// through their lifecycle, owning the schema/executor/active-execution
// registries and enforcing the concurrency ceiling and retry policy.
package activitymgr

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hstp/node/internal/activity"
	"github.com/hstp/node/internal/nodeerr"
	"github.com/hstp/node/internal/validator"
	"github.com/hstp/node/pkg/logging"
)

// DefaultMaxConcurrentActivities is applied when Config.MaxConcurrentActivities
// is zero.
const DefaultMaxConcurrentActivities = 64

// DefaultCancelGracePeriod bounds how long Shutdown/CancelActivity wait for
// an executor to react to context cancellation before moving on (§5).
const DefaultCancelGracePeriod = 5 * time.Second

// EventListener observes every ExecutionEvent applied to an activity
// (§4.8's "notifies listeners").
type EventListener func(act *activity.Activity, ev activity.ExecutionEvent)

// Config configures a new Manager.
type Config struct {
	Validator               validator.ActivityValidator
	MaxConcurrentActivities int
	CancelGracePeriod       time.Duration
}

type executionRecord struct {
	activity *activity.Activity
	schema   *activity.Schema
	executor Executor
	ctx      context.Context
	cancel   context.CancelCauseFunc
	done     chan struct{}

	// mu guards activity's mutable fields while it is shared between the
	// execution loop goroutine and lifecycle calls (CancelActivity et al.).
	mu sync.Mutex
}

// Manager is the Activity Manager (§4.8, component J).
type Manager struct {
	validator   validator.ActivityValidator
	gracePeriod time.Duration
	sem         chan struct{}

	mu        sync.RWMutex
	schemas   map[string]*activity.Schema
	executors map[string]Executor
	active    map[string]*executionRecord

	listenersMu sync.RWMutex
	listeners   map[string]EventListener
}

// New constructs an Activity Manager.
func New(cfg Config) *Manager {
	maxConcurrent := cfg.MaxConcurrentActivities
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentActivities
	}
	grace := cfg.CancelGracePeriod
	if grace <= 0 {
		grace = DefaultCancelGracePeriod
	}
	v := cfg.Validator
	if v == nil {
		v = validator.ShaclValidator{}
	}
	return &Manager{
		validator:   v,
		gracePeriod: grace,
		sem:         make(chan struct{}, maxConcurrent),
		schemas:     make(map[string]*activity.Schema),
		executors:   make(map[string]Executor),
		active:      make(map[string]*executionRecord),
		listeners:   make(map[string]EventListener),
	}
}

// RegisterExecutor adds an executor under its own PluginID.
func (m *Manager) RegisterExecutor(e Executor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := e.PluginID()
	if id == "" {
		return nodeerr.New(nodeerr.KindConfig, "EMPTY_PLUGIN_ID", "executor returned an empty plugin id")
	}
	if _, exists := m.executors[id]; exists {
		return nodeerr.New(nodeerr.KindConfig, "DUPLICATE_EXECUTOR", fmt.Sprintf("executor %q already registered", id))
	}
	m.executors[id] = e
	return nil
}

// RegisterSchema validates schema and inserts it, rejecting registration if
// its referenced executor plugin is absent or validation fails (§4.8).
func (m *Manager) RegisterSchema(ctx context.Context, schema *activity.Schema) error {
	result, err := m.validator.ValidateSchema(ctx, validator.Context{Phase: validator.PhaseSchema}, schema)
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindValidation, "SCHEMA_VALIDATION_ERROR", "schema validation failed", err)
	}
	if !result.IsValid {
		return nodeerr.New(nodeerr.KindValidation, "SCHEMA_INVALID", formatIssues(result))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.executors[schema.ExecutorPluginID]; !ok {
		return nodeerr.New(nodeerr.KindConfig, "UNKNOWN_EXECUTOR_PLUGIN",
			fmt.Sprintf("schema %q references unregistered executor plugin %q", schema.ID, schema.ExecutorPluginID))
	}
	m.schemas[schema.ID] = schema
	return nil
}

// UnregisterSchema removes a schema and logs the removal (§4.8). Event
// listeners are not notified: they receive activity events only.
func (m *Manager) UnregisterSchema(id string) {
	m.mu.Lock()
	_, existed := m.schemas[id]
	delete(m.schemas, id)
	m.mu.Unlock()

	if existed {
		logging.Info("activitymgr", "schema unregistered id=%s", id)
	}
}

// GetSchema returns a registered schema by id.
func (m *Manager) GetSchema(id string) (*activity.Schema, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemas[id]
	return s, ok
}

// GetAllSchemas returns every registered schema.
func (m *Manager) GetAllSchemas() []*activity.Schema {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*activity.Schema, 0, len(m.schemas))
	for _, s := range m.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetAllExecutors returns the plugin ids of every registered executor.
func (m *Manager) GetAllExecutors() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.executors))
	for id := range m.executors {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AddEventListener registers a listener, returning a subscription id usable
// with RemoveEventListener.
func (m *Manager) AddEventListener(l EventListener) string {
	id := uuid.NewString()
	m.listenersMu.Lock()
	m.listeners[id] = l
	m.listenersMu.Unlock()
	return id
}

// RemoveEventListener unregisters a listener by its subscription id.
func (m *Manager) RemoveEventListener(id string) {
	m.listenersMu.Lock()
	delete(m.listeners, id)
	m.listenersMu.Unlock()
}

// notifyListenersSnapshot notifies every registered listener with an
// already-taken snapshot (the execution loop holds the activity's lock
// while producing it, so listeners never race the next event's mutation).
func (m *Manager) notifyListenersSnapshot(snap *activity.Activity, ev activity.ExecutionEvent) {
	m.listenersMu.RLock()
	listeners := make([]EventListener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.listenersMu.RUnlock()

	for _, l := range listeners {
		l(snap, ev)
	}
}

func formatIssues(r validator.Result) string {
	if len(r.Errors) == 0 {
		return "schema failed validation"
	}
	return r.Errors[0].Field + ": " + r.Errors[0].Message
}
