package actuator

import (
	"time"

	"github.com/sweeney/pellet-smoker/internal/clock"
	"github.com/sweeney/pellet-smoker/internal/gpio"
)

// Latched is an actuator whose off phase never ends: once on, it turns
// itself off after the cycle time and stays off until turned on again.
type Latched struct {
	d *DutyCycle
}

// NewLatched creates a stopped Latched actuator.
func NewLatched(name string, out gpio.Output, clk clock.Clock, cycle, poll time.Duration) *Latched {
	return &Latched{d: New(name, out, clk, cycle, Forever, poll)}
}

// Name returns the actuator name.
func (l *Latched) Name() string { return l.d.Name() }

// Subscribe adds fn to the observer list.
func (l *Latched) Subscribe(fn Observer) { l.d.Subscribe(fn) }

// TurnOn turns the output on for at most the cycle time.
func (l *Latched) TurnOn() { l.d.TurnOn() }

// TurnOff turns the output off.
func (l *Latched) TurnOff() { l.d.TurnOff() }

// Keepalive holds the output on: if on, the cycle window restarts from now;
// if off, the output is turned on.
func (l *Latched) Keepalive() { l.d.keepalive() }

// Start begins the timer loop if it is not already running.
func (l *Latched) Start() { l.d.Start() }

// StartOnce applies the end of the current on window once, then halts.
func (l *Latched) StartOnce() { l.d.StartOnce() }

// Stop cancels the pending wake, leaving the output as it is.
func (l *Latched) Stop() { l.d.Stop() }

// Halt stops the loop and drives the output off.
func (l *Latched) Halt() { l.d.Halt() }

// IsOn reports the output state.
func (l *Latched) IsOn() bool { return l.d.IsOn() }

// Running reports whether the timer loop is active.
func (l *Latched) Running() bool { return l.d.Running() }

// CycleTime returns the maximum on time.
func (l *Latched) CycleTime() time.Duration { return l.d.OnDuration() }

// SetCycleTime changes the maximum on time. Timing restarts from now.
func (l *Latched) SetCycleTime(d time.Duration) { l.d.SetDurations(d, Forever) }

// Snapshot returns the current state.
func (l *Latched) Snapshot() Snapshot { return l.d.Snapshot() }
