// Package logic contains the pure control policy of the smoker: operating
// states, the allowed transitions, per-state actuation, the igniter
// maintenance rule and the run program.
// This package has NO external dependencies (no GPIO, SPI, MQTT, OS, or
// time.Sleep). Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"strings"
	"time"
)

// State is the appliance operating state.
type State string

const (
	StateOff      State = "OFF"
	StateStart    State = "START"
	StateSmoke    State = "SMOKE"
	StateIgnite   State = "IGNITE"
	StateHold     State = "HOLD"
	StateShutdown State = "SHUTDOWN"
)

// States lists every state in lifecycle order.
var States = []State{StateOff, StateStart, StateSmoke, StateIgnite, StateHold, StateShutdown}

// ParseState accepts a state name in any case.
func ParseState(s string) (State, error) {
	for _, st := range States {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown state %q", s)
}

// Active reports whether the state burns pellets (everything except Off and
// Shutdown).
func (s State) Active() bool {
	switch s {
	case StateStart, StateSmoke, StateIgnite, StateHold:
		return true
	}
	return false
}

// EventType represents a controller event to be published.
type EventType string

const (
	EventTransition EventType = "TRANSITION"
	EventFault      EventType = "SENSOR_FAULT"
	EventRecovered  EventType = "SENSOR_RECOVERED"
)

// Event represents a controller event.
type Event struct {
	Timestamp time.Time
	Type      EventType
	From      State
	To        State
	Detail    string
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Transitions int
	Faults      int
	Recoveries  int
}

// Add counts e.
func (c *EventCounts) Add(e Event) {
	switch e.Type {
	case EventTransition:
		c.Transitions++
	case EventFault:
		c.Faults++
	case EventRecovered:
		c.Recoveries++
	}
}
