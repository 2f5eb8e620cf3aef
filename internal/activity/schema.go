// Package activity defines the declarative activity data model (§3, §4.8):
// schemas, variable definitions, activity instances and their state
// machine, and the execution event union executors emit.
package activity

import "time"

// DataType is one of the SHACL-style scalar kinds a VariableDefinition can
// constrain (§3).
type DataType string

const (
	DataTypeString   DataType = "string"
	DataTypeInteger  DataType = "integer"
	DataTypeDecimal  DataType = "decimal"
	DataTypeDouble   DataType = "double"
	DataTypeBoolean  DataType = "boolean"
	DataTypeDate     DataType = "date"
	DataTypeDateTime DataType = "datetime"
	DataTypeTime     DataType = "time"
	DataTypeURI      DataType = "uri"
	DataTypeLangStr  DataType = "lang-string"
)

// Severity controls whether a constraint violation is promoted to an error
// or merely surfaced as a warning/info (§4.9).
type Severity string

const (
	SeverityViolation Severity = "violation"
	SeverityWarning   Severity = "warning"
	SeverityInfo      Severity = "info"
)

// VariableDefinition is a single SHACL-style constrained variable (§3).
type VariableDefinition struct {
	ID          string
	Name        string
	Description string

	DataType DataType
	Required bool

	MinCount *int
	MaxCount *int

	MinLength *int
	MaxLength *int
	Pattern   string

	MinInclusive *float64
	MaxInclusive *float64
	MinExclusive *float64
	MaxExclusive *float64

	AllowedValues    []any
	DisallowedValues []any

	Severity Severity
}

// EffectiveSeverity defaults an unset Severity to violation.
func (v VariableDefinition) EffectiveSeverity() Severity {
	if v.Severity == "" {
		return SeverityViolation
	}
	return v.Severity
}

// ExecutionConstraints bounds how an activity created from a schema may run
// (§3).
type ExecutionConstraints struct {
	MaxExecutionTime time.Duration
	MaxRetries       int
	AllowParallel    bool
	RetryBaseDelay   time.Duration
	RetryMultiplier  float64
}

// VariableMap is an ordered-by-iteration-not-guaranteed map of variable
// name to its definition, matching §3's "ordered map" description; Go maps
// don't preserve insertion order, so callers that need declaration order
// keep a parallel []string of names where it matters (schema validation
// does not depend on order).
type VariableMap map[string]VariableDefinition

// Schema is a named, versioned activity template (§3).
type Schema struct {
	ID               string
	Name             string
	Version          string
	Category         string
	ExecutorPluginID string
	InputSchema      VariableMap
	OutputSchema     VariableMap
	Constraints      ExecutionConstraints
	Metadata         map[string]string
}
