package validator

import (
	"context"
	"fmt"
	"regexp"

	"github.com/hstp/node/internal/activity"
)

// ShaclValidator is the default validator (§4.9): it evaluates each
// variable's SHACL-style constraint set against input/output maps.
type ShaclValidator struct{}

var _ ActivityValidator = ShaclValidator{}

func (ShaclValidator) Name() string                   { return "shacl-subset" }
func (ShaclValidator) Priority() int                  { return 0 }
func (ShaclValidator) Init(context.Context) error     { return nil }
func (ShaclValidator) Shutdown(context.Context) error { return nil }

func (ShaclValidator) CanValidate(schema *activity.Schema) bool { return schema != nil }

func (v ShaclValidator) ValidateSchema(ctx context.Context, vctx Context, schema *activity.Schema) (Result, error) {
	if schema == nil {
		return failWith(Issue{Field: "schema", Message: "schema is nil", Severity: activity.SeverityViolation}), nil
	}
	var issues []Issue
	if schema.ID == "" {
		issues = append(issues, Issue{Field: "id", Message: "schema id is required", Severity: activity.SeverityViolation})
	}
	if schema.ExecutorPluginID == "" {
		issues = append(issues, Issue{Field: "executorPluginId", Message: "executor plugin id is required", Severity: activity.SeverityViolation})
	}
	for name, def := range schema.InputSchema {
		if def.DataType == "" {
			issues = append(issues, Issue{Field: "inputSchema." + name, Message: "data type is required", Severity: activity.SeverityViolation})
		}
	}
	if len(issues) == 0 {
		return ok(), nil
	}
	return failWith(issues...), nil
}

func (v ShaclValidator) ValidateInput(ctx context.Context, vctx Context, schema *activity.Schema, input map[string]any) (Result, error) {
	return v.validateAgainst(ctx, vctx, schema.InputSchema, input)
}

func (v ShaclValidator) ValidateOutput(ctx context.Context, vctx Context, schema *activity.Schema, output map[string]any) (Result, error) {
	return v.validateAgainst(ctx, vctx, schema.OutputSchema, output)
}

func (v ShaclValidator) validateAgainst(ctx context.Context, vctx Context, shape activity.VariableMap, values map[string]any) (Result, error) {
	result := ok()
	result.Metadata = map[string]any{}

	for name, def := range shape {
		value, present := values[name]
		r, err := v.validateOneNamed(ctx, vctx, name, def, value, present)
		if err != nil {
			return Result{}, err
		}
		result.merge(r)
	}

	if !vctx.Options.AllowUnknown {
		for name := range values {
			if _, declared := shape[name]; !declared {
				result.merge(Result{IsValid: false, Errors: []Issue{{
					Field:    name,
					Message:  "unknown variable not declared in schema",
					Severity: activity.SeverityViolation,
				}}})
			}
		}
	}

	return result, nil
}

func (v ShaclValidator) validateOneNamed(ctx context.Context, vctx Context, name string, def activity.VariableDefinition, value any, present bool) (Result, error) {
	if !present {
		if def.Required {
			return failWith(Issue{Field: name, Message: "required variable is missing", Severity: def.EffectiveSeverity()}), nil
		}
		return ok(), nil
	}
	return v.ValidateVariable(ctx, vctx, def, value)
}

// ValidateVariable runs every constraint §4.9 lists, in order, collecting
// every violation rather than stopping at the first (consistent with the
// composite validator's ALL strategy default).
func (v ShaclValidator) ValidateVariable(ctx context.Context, vctx Context, def activity.VariableDefinition, value any) (Result, error) {
	sev := def.EffectiveSeverity()
	var issues []Issue
	addIssue := func(msg string) {
		issues = append(issues, Issue{Field: def.Name, Message: msg, Severity: sev})
	}

	if !checkDataType(def.DataType, value) {
		addIssue(fmt.Sprintf("value does not match declared type %s", def.DataType))
	}

	if list, isList := value.([]any); isList {
		if def.MinCount != nil && len(list) < *def.MinCount {
			addIssue(fmt.Sprintf("must have at least %d items", *def.MinCount))
		}
		if def.MaxCount != nil && len(list) > *def.MaxCount {
			addIssue(fmt.Sprintf("must have at most %d items", *def.MaxCount))
		}
	}

	if s, isString := value.(string); isString {
		if def.MinLength != nil && len(s) < *def.MinLength {
			addIssue(fmt.Sprintf("must be at least %d characters", *def.MinLength))
		}
		if def.MaxLength != nil && len(s) > *def.MaxLength {
			addIssue(fmt.Sprintf("must be at most %d characters", *def.MaxLength))
		}
		if def.Pattern != "" {
			if matched, err := regexp.MatchString(def.Pattern, s); err != nil {
				addIssue("pattern is not a valid regular expression")
			} else if !matched {
				addIssue(fmt.Sprintf("does not match pattern %q", def.Pattern))
			}
		}
	}

	if n, isNumber := asFloat64(value); isNumber {
		if def.MinInclusive != nil && n < *def.MinInclusive {
			addIssue(fmt.Sprintf("must be >= %v", *def.MinInclusive))
		}
		if def.MaxInclusive != nil && n > *def.MaxInclusive {
			addIssue(fmt.Sprintf("must be <= %v", *def.MaxInclusive))
		}
		if def.MinExclusive != nil && n <= *def.MinExclusive {
			addIssue(fmt.Sprintf("must be > %v", *def.MinExclusive))
		}
		if def.MaxExclusive != nil && n >= *def.MaxExclusive {
			addIssue(fmt.Sprintf("must be < %v", *def.MaxExclusive))
		}
	}

	if len(def.AllowedValues) > 0 && !containsValue(def.AllowedValues, value) {
		addIssue("value is not one of the allowed values")
	}
	if containsValue(def.DisallowedValues, value) {
		addIssue("value is explicitly disallowed")
	}

	if len(issues) == 0 {
		return ok(), nil
	}
	if sev != activity.SeverityViolation {
		return Result{IsValid: true, Warnings: issues}, nil
	}
	return failWith(issues...), nil
}

func checkDataType(dt activity.DataType, value any) bool {
	if dt == "" {
		return true
	}
	switch dt {
	case activity.DataTypeString, activity.DataTypeURI, activity.DataTypeLangStr,
		activity.DataTypeDate, activity.DataTypeDateTime, activity.DataTypeTime:
		_, ok := value.(string)
		return ok
	case activity.DataTypeBoolean:
		_, ok := value.(bool)
		return ok
	case activity.DataTypeInteger:
		switch value.(type) {
		case int, int32, int64:
			return true
		default:
			return false
		}
	case activity.DataTypeDecimal, activity.DataTypeDouble:
		_, ok := asFloat64(value)
		return ok
	default:
		return true
	}
}

func asFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func containsValue(haystack []any, needle any) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
