package session

import "fmt"

// Phase is the lifecycle state of one playthrough.
type Phase string

const (
	PhaseNotLoaded Phase = "not_loaded"
	PhaseLoading   Phase = "loading"
	PhaseLoadError Phase = "load_error"
	PhaseReady     Phase = "ready"
	PhaseRunning   Phase = "running"
	PhaseEnded     Phase = "ended"
)

// transitions is the full edge set of the phase machine. Anything not
// listed here is rejected.
var transitions = map[Phase][]Phase{
	PhaseNotLoaded: {PhaseLoading},
	PhaseLoading:   {PhaseReady, PhaseLoadError},
	PhaseLoadError: {PhaseLoading},
	PhaseReady:     {PhaseRunning},
	PhaseRunning:   {PhaseEnded},
	PhaseEnded:     {PhaseLoading},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrWrongPhase rejects a command issued outside its valid phase.
// Callers treat it as a silent no-op (logged, never surfaced as a
// user-facing error).
type ErrWrongPhase struct {
	Command string
	Phase   Phase
}

func (e *ErrWrongPhase) Error() string {
	return fmt.Sprintf("command %q rejected in phase %q", e.Command, e.Phase)
}

// IsWrongPhase reports whether err is a phase rejection.
func IsWrongPhase(err error) bool {
	_, ok := err.(*ErrWrongPhase)
	return ok
}
