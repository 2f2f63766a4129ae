// File: internal/agent/errors.go
package agent

import "errors"

// Sentinel errors for the step loop's failure taxonomy. Validation and
// transient-remote failures are recovered locally; budget errors terminate
// the run with a synthesized terminal record.
var (
	// ErrInterrupted is returned when an external pause/stop request takes
	// effect at a step checkpoint.
	ErrInterrupted = errors.New("step interrupted by external signal")
	// ErrMaxFailures is returned when the consecutive-failure ceiling is hit.
	ErrMaxFailures = errors.New("maximum consecutive failures reached")
	// ErrElementUnresolvable is returned during replay when a recorded
	// fingerprint matches nothing in the current tree.
	ErrElementUnresolvable = errors.New("historical element no longer resolvable in current tree")
)

// StepOutcome is the explicit result of one step call; the run driver
// branches on it instead of using errors for control flow.
type StepOutcome int

const (
	OutcomeContinue StepOutcome = iota
	OutcomePaused
	OutcomeFailed
	OutcomeDone
)

func (o StepOutcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomePaused:
		return "paused"
	case OutcomeFailed:
		return "failed"
	case OutcomeDone:
		return "done"
	default:
		return "unknown"
	}
}
