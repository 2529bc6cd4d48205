package logic

import "fmt"

// InvalidTransitionError reports a state change outside the allowed set.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// transitions lists the allowed targets per state. Every active state can
// reach Shutdown.
var transitions = map[State][]State{
	StateOff:      {StateStart},
	StateStart:    {StateSmoke, StateHold, StateShutdown},
	StateSmoke:    {StateIgnite, StateHold, StateShutdown},
	StateIgnite:   {StateHold, StateShutdown},
	StateHold:     {StateSmoke, StateShutdown},
	StateShutdown: {StateOff},
}

// ValidateTransition returns nil if from -> to is allowed and an
// *InvalidTransitionError otherwise.
func ValidateTransition(from, to State) error {
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// AllowedTransitions returns the states reachable from s.
func AllowedTransitions(s State) []State {
	return append([]State(nil), transitions[s]...)
}
