package nodeconfig

import (
	"fmt"
	"strings"
)

// ValidationError is a single config field failing a constraint.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// ValidationErrors collects every violation found in one validation pass,
// rather than aborting on the first (mirroring the teacher's
// "collect many, format one summary" idiom).
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	if len(es) == 0 {
		return "no validation errors"
	}
	if len(es) == 1 {
		return es[0].Error()
	}
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

func (es ValidationErrors) HasErrors() bool { return len(es) > 0 }

func (es *ValidationErrors) Add(field, message string, value ...any) {
	var v any
	if len(value) > 0 {
		v = value[0]
	}
	*es = append(*es, ValidationError{Field: field, Value: v, Message: message})
}

func validateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

func validateOneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", "))}
}

// ValidateNodeConfig checks the constraints §6 implies on a loaded
// NodeConfig, collecting every violation found.
func ValidateNodeConfig(cfg NodeConfig) ValidationErrors {
	var errs ValidationErrors

	if err := validateRequired("nodeId", cfg.NodeID); err != nil {
		errs.Add("nodeId", err.Error())
	}
	if cfg.Logging.Level != "" {
		if err := validateOneOf("logging.level", cfg.Logging.Level, "debug", "info", "warn", "error"); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port <= 0 {
		errs.Add("metrics.port", "must be a positive port number when metrics.enabled is true")
	}
	if cfg.Security.TLS.Enabled {
		if err := validateRequired("security.tls.certFile", cfg.Security.TLS.CertFile); err != nil {
			errs = append(errs, err.(ValidationError))
		}
		if err := validateRequired("security.tls.keyFile", cfg.Security.TLS.KeyFile); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}
	if cfg.Security.Authentication.Enabled {
		if err := validateRequired("security.authentication.type", cfg.Security.Authentication.Type); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}

	return errs
}

// ValidateTransportRecord checks one binding instance's required fields.
func ValidateTransportRecord(r TransportRecord) ValidationErrors {
	var errs ValidationErrors
	if err := validateRequired("name", r.Name); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := validateRequired("type", r.Type); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	return errs
}
