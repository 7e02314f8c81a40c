package pipeline

import "fmt"

// State is the orchestrator's position within one run.
type State int

const (
	Idle State = iota
	Fetching
	Validating
	Persisting
	Analyzing
	Detecting
	Reporting
	// Failed is terminal for a run; the next run starts again from Idle.
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Fetching:   "fetching",
	Validating: "validating",
	Persisting: "persisting",
	Analyzing:  "analyzing",
	Detecting:  "detecting",
	Reporting:  "reporting",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// StageError identifies the stage at which a run aborted.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
