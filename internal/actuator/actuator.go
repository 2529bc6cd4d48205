// Package actuator provides duty-cycle timing for the relay outputs.
//
// A DutyCycle free-runs between an on phase and an off phase once started:
// a timer wakes every poll interval and flips the output when the current
// phase has run its duration. A Latched actuator has an infinite off phase,
// so it turns itself off after its cycle time and stays off until turned on
// again.
package actuator

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/sweeney/pellet-smoker/internal/clock"
	"github.com/sweeney/pellet-smoker/internal/gpio"
)

// Forever is the phase duration that never elapses.
const Forever time.Duration = math.MaxInt64

// DefaultPollInterval bounds how late a phase change can be applied.
const DefaultPollInterval = 500 * time.Millisecond

// Event is an output transition.
type Event struct {
	Name string
	On   bool
	At   time.Time
}

// Observer is notified of each transition, outside the actuator's lock.
type Observer func(Event)

// Snapshot is a point-in-time view of an actuator.
type Snapshot struct {
	Name        string
	On          bool
	OnDuration  time.Duration
	OffDuration time.Duration
	Running     bool
	WriteErrors int
}

// DutyCycle drives one output with independent on and off durations.
type DutyCycle struct {
	mu sync.Mutex

	name  string
	out   gpio.Output
	clock clock.Clock
	poll  time.Duration

	on          bool
	lastToggle  time.Time
	onDuration  time.Duration
	offDuration time.Duration

	running bool
	once    bool // halt after the next scheduled check
	timer   clock.Timer
	gen     uint64 // invalidates callbacks from a superseded schedule

	observers   []Observer
	writeErrors int
}

// New creates a stopped DutyCycle with the output off.
// poll <= 0 selects DefaultPollInterval.
func New(name string, out gpio.Output, clk clock.Clock, onDuration, offDuration, poll time.Duration) *DutyCycle {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &DutyCycle{
		name:        name,
		out:         out,
		clock:       clk,
		poll:        poll,
		onDuration:  nonNegative(onDuration),
		offDuration: nonNegative(offDuration),
		lastToggle:  clk.Now(),
	}
}

// Name returns the actuator name.
func (a *DutyCycle) Name() string {
	return a.name
}

// Subscribe adds fn to the observer list.
func (a *DutyCycle) Subscribe(fn Observer) {
	a.mu.Lock()
	a.observers = append(a.observers, fn)
	a.mu.Unlock()
}

// Start begins the timer loop if it is not already running.
func (a *DutyCycle) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running && !a.once {
		return
	}
	a.once = false
	a.running = true
	a.scheduleLocked()
}

// StartOnce arms a single check at the end of the current phase, applies
// it, and halts. It replaces any running loop.
func (a *DutyCycle) StartOnce() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.once = true
	a.running = true
	a.scheduleLocked()
}

// Stop cancels the pending wake. The output is left as it is.
func (a *DutyCycle) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Halt stops the loop and drives the output off.
func (a *DutyCycle) Halt() {
	a.mu.Lock()
	a.stopLocked()
	var events []Event
	if a.on {
		events = append(events, a.setLocked(false))
	}
	obs := a.observersLocked()
	a.mu.Unlock()
	notify(obs, events)
}

// TurnOn forces the output on and restarts timing from now.
// It is a no-op if the output is already on.
func (a *DutyCycle) TurnOn() {
	a.force(true)
}

// TurnOff forces the output off and restarts timing from now.
// It is a no-op if the output is already off.
func (a *DutyCycle) TurnOff() {
	a.force(false)
}

func (a *DutyCycle) force(on bool) {
	a.mu.Lock()
	if a.on == on {
		a.mu.Unlock()
		return
	}
	ev := a.setLocked(on)
	a.restartLocked()
	obs := a.observersLocked()
	a.mu.Unlock()
	notify(obs, []Event{ev})
}

// SetOnDuration changes the on phase. Timing restarts from now; elapsed
// time in the current phase is discarded.
func (a *DutyCycle) SetOnDuration(d time.Duration) {
	a.SetDurations(d, a.OffDuration())
}

// SetOffDuration changes the off phase. Timing restarts from now.
func (a *DutyCycle) SetOffDuration(d time.Duration) {
	a.SetDurations(a.OnDuration(), d)
}

// SetDurations changes both phases at once. Timing restarts from now.
func (a *DutyCycle) SetDurations(on, off time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onDuration = nonNegative(on)
	a.offDuration = nonNegative(off)
	a.lastToggle = a.clock.Now()
	if a.running {
		a.scheduleLocked()
	}
}

// IsOn reports the output state.
func (a *DutyCycle) IsOn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

// Running reports whether the timer loop is active.
func (a *DutyCycle) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// OnDuration returns the on phase.
func (a *DutyCycle) OnDuration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.onDuration
}

// OffDuration returns the off phase.
func (a *DutyCycle) OffDuration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offDuration
}

// Snapshot returns the current state.
func (a *DutyCycle) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Name:        a.name,
		On:          a.on,
		OnDuration:  a.onDuration,
		OffDuration: a.offDuration,
		Running:     a.running,
		WriteErrors: a.writeErrors,
	}
}

// keepalive restarts the on window if on, otherwise turns on.
func (a *DutyCycle) keepalive() {
	a.mu.Lock()
	if a.on {
		a.lastToggle = a.clock.Now()
		a.restartLocked()
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.TurnOn()
}

func (a *DutyCycle) restartLocked() {
	if !a.running {
		a.once = false
	}
	a.running = true
	a.scheduleLocked()
}

func (a *DutyCycle) stopLocked() {
	a.running = false
	a.once = false
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *DutyCycle) scheduleLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
	gen := a.gen

	delay := a.poll
	if a.once {
		phase := a.phaseLocked()
		if phase == Forever {
			// Nothing can ever fall due.
			a.running = false
			a.once = false
			return
		}
		delay = phase - a.clock.Now().Sub(a.lastToggle)
		if delay < 0 {
			delay = 0
		}
	}
	a.timer = a.clock.AfterFunc(delay, func() { a.check(gen) })
}

func (a *DutyCycle) check(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || !a.running {
		a.mu.Unlock()
		return
	}
	a.timer = nil

	var events []Event
	if a.clock.Now().Sub(a.lastToggle) >= a.phaseLocked() {
		events = append(events, a.setLocked(!a.on))
	}

	if a.once {
		a.running = false
		a.once = false
	} else {
		a.scheduleLocked()
	}
	obs := a.observersLocked()
	a.mu.Unlock()
	notify(obs, events)
}

func (a *DutyCycle) phaseLocked() time.Duration {
	if a.on {
		return a.onDuration
	}
	return a.offDuration
}

// setLocked writes the output and records the toggle. A failed relay write
// is logged and counted; the logical state still changes.
func (a *DutyCycle) setLocked(on bool) Event {
	var err error
	if on {
		err = a.out.On()
	} else {
		err = a.out.Off()
	}
	if err != nil {
		a.writeErrors++
		log.Printf("actuator: %s: relay write: %v", a.name, err)
	}
	a.on = on
	a.lastToggle = a.clock.Now()
	return Event{Name: a.name, On: on, At: a.lastToggle}
}

func (a *DutyCycle) observersLocked() []Observer {
	if len(a.observers) == 0 {
		return nil
	}
	return append([]Observer(nil), a.observers...)
}

func notify(obs []Observer, events []Event) {
	for _, ev := range events {
		for _, fn := range obs {
			fn(ev)
		}
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
