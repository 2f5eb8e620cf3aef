// Package did implements the decentralized-identifier value type used to
// address every HSTP message source, destination, and channel, plus the
// resolver/verifier contracts the engine calls out to (§1: DID document
// resolution and verifiable-credential verification are external
// collaborators, specified here only by the interface the core consumes).
package did

import (
	"context"
	"fmt"
	"strings"
)

// DID is an opaque, method-prefixed identifier (e.g. "did:example:alice").
// It is compared by value, so DID is safe to use as a map key.
type DID struct {
	Method string
	ID     string
}

// Parse splits a "did:<method>:<method-specific-id>" string into a DID.
func Parse(s string) (DID, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return DID{}, fmt.Errorf("did: malformed identifier %q", s)
	}
	return DID{Method: parts[1], ID: parts[2]}, nil
}

// MustParse is Parse but panics on error; for tests and constant literals.
func MustParse(s string) DID {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders the DID back to its canonical "did:method:id" form.
func (d DID) String() string {
	return fmt.Sprintf("did:%s:%s", d.Method, d.ID)
}

// IsZero reports whether d is the zero value (no method/id set).
func (d DID) IsZero() bool { return d.Method == "" && d.ID == "" }

// Equal reports value equality between two DIDs.
func (d DID) Equal(other DID) bool { return d.Method == other.Method && d.ID == other.ID }

// SafeToken converts the DID into a transport-safe token suitable for use
// in topic names or other restricted-character contexts, replacing every
// ":" with "_" per §6's MQTT "did-safe" rule.
func (d DID) SafeToken() string {
	return strings.ReplaceAll(d.String(), ":", "_")
}

// FromSafeToken reverses SafeToken, reconstructing a DID from a
// transport-safe token. Only the first two underscores are treated as
// separators so method-specific ids containing "_" survive the round trip.
func FromSafeToken(token string) (DID, error) {
	return Parse(strings.Replace(token, "_", ":", 2))
}

// Document is the subset of a resolved DID document the engine needs: the
// identifier it was resolved for and the verification methods/service
// endpoints a caller might inspect. Full DID-document semantics (key
// material, service endpoint parsing) are the resolver's concern, not the
// core's — this is deliberately a thin passthrough shape.
type Document struct {
	ID                 DID
	VerificationMethod []string
	Service            map[string]string
}

// Resolver resolves a DID to its document. Implementations are external
// collaborators (§1); the core only calls this interface.
type Resolver interface {
	ResolveDid(ctx context.Context, id DID) (Document, error)
}

// Credential is an opaque verifiable credential as carried in a message's
// payload or sidecar header; its internal structure is transport-agnostic
// and not interpreted by the core.
type Credential struct {
	Format string
	Raw    []byte
}

// VerificationResult is the outcome of verifying one credential.
type VerificationResult struct {
	Valid  bool
	Reason string
}

// Verifier checks verifiable credentials. Implementations are external
// collaborators (§1); the core only calls this interface.
type Verifier interface {
	VerifyCredential(ctx context.Context, cred Credential) (VerificationResult, error)
}
