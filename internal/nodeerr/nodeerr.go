// Package nodeerr implements the error taxonomy described in the node
// design's error-handling section: a closed set of kinds, each carrying a
// stable code, wrapped so errors.Is/errors.As work across package
// boundaries.
package nodeerr

import (
	"errors"
	"fmt"
)

// Kind is one of the node's closed error taxonomy members.
type Kind string

const (
	KindConfig           Kind = "ConfigError"
	KindTransport        Kind = "TransportError"
	KindInvalidMessage   Kind = "InvalidMessage"
	KindUnknownOperation Kind = "UnknownOperation"
	KindHandler          Kind = "HandlerError"
	KindValidation       Kind = "ValidationError"
	KindExecution        Kind = "ExecutionError"
	KindCancelled        Kind = "Cancelled"
	KindAuth             Kind = "AuthError"
)

// NodeError is a single taxonomy error with a stable code and optional
// wrapped cause.
type NodeError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *NodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Code, e.Message)
}

func (e *NodeError) Unwrap() error { return e.Cause }

// New constructs a NodeError without a wrapped cause.
func New(kind Kind, code, message string) *NodeError {
	return &NodeError{Kind: kind, Code: code, Message: message}
}

// Wrap constructs a NodeError that wraps an underlying cause.
func Wrap(kind Kind, code, message string, cause error) *NodeError {
	return &NodeError{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Is reports whether err (or something it wraps) is a NodeError of kind.
func Is(err error, kind Kind) bool {
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne.Kind == kind
	}
	return false
}

// Common codes referenced directly by §7/§8.
const (
	CodeUnknownOperation  = "UNKNOWN_OPERATION"
	CodeMissingTarget     = "MISSING_DESTINATION_OR_CHANNEL"
	CodeAmbiguousTarget   = "BOTH_DESTINATION_AND_CHANNEL"
	CodeUnparsableHeader  = "UNPARSABLE_HEADER"
	CodeExecutionError    = "EXECUTION_ERROR"
	CodePayloadConsumed   = "PAYLOAD_ALREADY_CONSUMED"
	CodeActivityBackpress = "ACTIVITY_BACKPRESSURE"
	CodeIllegalTransition = "ILLEGAL_STATE_TRANSITION"
)

// ErrPayloadConsumed is returned by Payload.Next after the payload's single
// consumption has already happened (§3, testable property 5).
var ErrPayloadConsumed = New(KindInvalidMessage, CodePayloadConsumed, "payload already consumed")

// Errors is an ordered collection of NodeErrors, used by the validator
// framework and config loader to report every violation found rather than
// bailing out on the first one.
type Errors []*NodeError

func (es Errors) Error() string {
	if len(es) == 0 {
		return "no errors"
	}
	if len(es) == 1 {
		return es[0].Error()
	}
	return fmt.Sprintf("%d errors, first: %s", len(es), es[0].Error())
}

func (es Errors) HasErrors() bool { return len(es) > 0 }

func (es *Errors) Add(e *NodeError) { *es = append(*es, e) }
