package logic

import (
	"fmt"
	"time"
)

// Program targets.
const (
	TargetSmoke  = "smoke"
	TargetHold   = "hold"
	TargetIgnite = "ignite"
)

// Step is one stage of a run program. A zero Duration holds the state until
// the operator intervenes.
type Step struct {
	State    State
	Duration time.Duration
}

// Program is the sequence of states the daemon walks through after Start.
type Program []Step

// NewProgram builds the program for target.
func NewProgram(target string, start, smoke, ignite time.Duration) (Program, error) {
	switch target {
	case TargetSmoke:
		return Program{{StateStart, start}, {StateSmoke, 0}}, nil
	case TargetHold:
		return Program{{StateStart, start}, {StateHold, 0}}, nil
	case TargetIgnite:
		return Program{{StateStart, start}, {StateSmoke, smoke}, {StateIgnite, ignite}, {StateHold, 0}}, nil
	}
	return nil, fmt.Errorf("unknown program target %q", target)
}

// Next returns the state that follows current once it has been held since
// `since` for its step duration. ok is false while the step is still
// running, when current is not part of the program, or at the last step.
func (p Program) Next(current State, since, now time.Time) (next State, ok bool) {
	for i, step := range p {
		if step.State != current {
			continue
		}
		if step.Duration <= 0 || i+1 >= len(p) {
			return "", false
		}
		if now.Sub(since) < step.Duration {
			return "", false
		}
		return p[i+1].State, true
	}
	return "", false
}

// Final returns the last state of the program.
func (p Program) Final() State {
	if len(p) == 0 {
		return StateOff
	}
	return p[len(p)-1].State
}
