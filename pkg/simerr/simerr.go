// Package simerr defines the error taxonomy of spec §7: sentinel errors
// wrapped with context via fmt.Errorf("...: %w"), matching the teacher's
// plain-error-value style (the pack carries no errors library in any full
// source repo).
package simerr

import (
	"errors"
	"fmt"
)

var (
	// ErrScenarioInvalid is returned when a loaded scenario fails structural
	// or referential validation (e.g. a directive names an unknown node).
	ErrScenarioInvalid = errors.New("scenario invalid")

	// ErrProtocolDecode is returned by a Codec when inbound bytes cannot be
	// decoded into the protocol's message type.
	ErrProtocolDecode = errors.New("protocol decode failed")

	// ErrStoreFault wraps a storage-layer error raised by a Store
	// implementation (distinct from the deliberate fault *injection*
	// modeled by FaultyStore, which returns data, not errors).
	ErrStoreFault = errors.New("store fault")

	// ErrInvariantViolation indicates the coordinator detected a violation
	// of one of spec §3's invariants (e.g. an event scheduled before
	// world.now) — always a bug in engine code, never a scenario error.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrExternalChannelClosed is returned when a send on the control or
	// telemetry channel observes the channel has been closed.
	ErrExternalChannelClosed = errors.New("external channel closed")
)

// Diagnostic carries extra structured context alongside a wrapped sentinel
// error, for telemetry/log consumption without parsing error strings.
type Diagnostic struct {
	Err     error
	Context map[string]any
}

func (d *Diagnostic) Error() string {
	return d.Err.Error()
}

func (d *Diagnostic) Unwrap() error {
	return d.Err
}

// Wrap builds a Diagnostic around sentinel, with a formatted message and
// structured context.
func Wrap(sentinel error, msg string, context map[string]any) *Diagnostic {
	return &Diagnostic{Err: fmt.Errorf("%s: %w", msg, sentinel), Context: context}
}
