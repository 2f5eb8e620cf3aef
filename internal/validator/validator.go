// Package validator implements the Validator Framework (§4.9, component
// I): the pluggable ActivityValidator contract, the default SHACL-subset
// engine, and a composite validator that chains several strategies.
package validator

import (
	"context"

	"github.com/hstp/node/internal/activity"
)

// Phase is where in an activity's lifecycle a validation call occurs.
type Phase string

const (
	PhaseSchema  Phase = "SCHEMA"
	PhaseInput   Phase = "INPUT"
	PhaseOutput  Phase = "OUTPUT"
	PhaseRuntime Phase = "RUNTIME"
)

// Options tunes how strictly a validation call is carried out (§4.9).
type Options struct {
	Strict       bool
	AllowUnknown bool
	Recursive    bool
	MaxDepth     int
}

// Context carries the phase, caller identity, and Options for one
// validation call (§4.9).
type Context struct {
	Phase   Phase
	Caller  string
	Options Options
}

// Issue is a single constraint violation or warning (§4.9).
type Issue struct {
	Field    string
	Message  string
	Severity activity.Severity
}

// Result is the outcome of one validation call (§4.9).
type Result struct {
	IsValid  bool
	Errors   []Issue
	Warnings []Issue
	Metadata map[string]any
}

// merge folds other's issues into r, demoting r.IsValid if other failed.
func (r *Result) merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if !other.IsValid {
		r.IsValid = false
	}
}

func ok() Result { return Result{IsValid: true} }

func failWith(issues ...Issue) Result {
	return Result{IsValid: false, Errors: issues}
}

// ActivityValidator is the pluggable validation contract (§4.9).
type ActivityValidator interface {
	// Name identifies the validator for diagnostics.
	Name() string
	// Priority orders validators lowest-first when a composite validator
	// uses the PRIORITY strategy.
	Priority() int
	// CanValidate reports whether this validator applies to schema.
	CanValidate(schema *activity.Schema) bool

	Init(ctx context.Context) error
	Shutdown(ctx context.Context) error

	ValidateSchema(ctx context.Context, vctx Context, schema *activity.Schema) (Result, error)
	ValidateInput(ctx context.Context, vctx Context, schema *activity.Schema, input map[string]any) (Result, error)
	ValidateOutput(ctx context.Context, vctx Context, schema *activity.Schema, output map[string]any) (Result, error)
	ValidateVariable(ctx context.Context, vctx Context, def activity.VariableDefinition, value any) (Result, error)
}

// Listener observes every validation call made through a validator (§4.9's
// "event stream").
type Listener func(schema *activity.Schema, vctx Context, result Result)
