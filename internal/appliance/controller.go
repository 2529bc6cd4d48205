// Package appliance runs the smoker: it owns the operating state, applies the
// per-state actuator program on every transition and keeps it maintained on
// every control tick.
package appliance

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sweeney/pellet-smoker/internal/actuator"
	"github.com/sweeney/pellet-smoker/internal/clock"
	"github.com/sweeney/pellet-smoker/internal/config"
	"github.com/sweeney/pellet-smoker/internal/logic"
	"github.com/sweeney/pellet-smoker/internal/pid"
	"github.com/sweeney/pellet-smoker/internal/rtd"
)

// ErrNoReading is returned by LastReading before the first good acquisition.
var ErrNoReading = errors.New("no temperature reading yet")

// TemperatureSensor performs one acquisition. *rtd.Sensor satisfies it.
type TemperatureSensor interface {
	Acquire() (rtd.Reading, error)
}

// Settings is the control policy taken from the configuration.
type Settings struct {
	Setpoint          float64
	PMode             int
	CycleTime         time.Duration
	MinDuty           float64
	MaxDuty           float64
	IgnitionThreshold float64
	IgniterGrace      time.Duration
	PurgeDuration     time.Duration
	FanCycle          time.Duration
}

// SettingsFrom extracts the controller settings from cfg.
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		Setpoint:          cfg.Controller.Setpoint,
		PMode:             cfg.Controller.PMode,
		CycleTime:         cfg.PID.CycleTime,
		MinDuty:           cfg.Controller.MinDuty,
		MaxDuty:           cfg.Controller.MaxDuty,
		IgnitionThreshold: cfg.Controller.IgnitionThreshold,
		IgniterGrace:      cfg.Controller.IgniterGrace,
		PurgeDuration:     cfg.Controller.PurgeDuration,
		FanCycle:          cfg.Actuators.FanCycle,
	}
}

// Actuators groups the three relay programs.
type Actuators struct {
	Auger   *actuator.DutyCycle
	Fan     *actuator.Latched
	Igniter *actuator.Latched
}

// Observer receives transition and sensor events, outside the controller's
// lock.
type Observer func(logic.Event)

// Sample is the outcome of one control tick.
type Sample struct {
	Time        time.Time
	State       logic.State
	EnteredAt   time.Time
	Reading     rtd.Reading
	Valid       bool   // Reading came from a clean acquisition
	HaveReading bool   // a good reading has been seen since startup
	Fault       string // last acquisition error, empty when healthy
	Setpoint    float64
	Terms       pid.Terms
	Duty        float64
	AugerOn     time.Duration
	AugerOff    time.Duration
	Auger       actuator.Snapshot
	Fan         actuator.Snapshot
	Igniter     actuator.Snapshot
}

// Controller is the appliance state machine. Actuator observers must not call
// back into the Controller.
type Controller struct {
	mu sync.Mutex

	sensor   TemperatureSensor
	loop     *pid.Controller
	auger    *actuator.DutyCycle
	fan      *actuator.Latched
	igniter  *actuator.Latched
	clock    clock.Clock
	settings Settings
	ignition *logic.IgniterPolicy

	state     logic.State
	enteredAt time.Time
	setpoint  float64

	last        rtd.Reading
	haveReading bool
	fault       error

	duty     float64
	terms    pid.Terms // written by the PID observer inside Tick
	lastEval time.Time
	evalDue  bool

	observers []Observer
}

// New creates a Controller in the Off state. It installs its own observer on
// loop.
func New(sensor TemperatureSensor, loop *pid.Controller, acts Actuators, clk clock.Clock, settings Settings) *Controller {
	c := &Controller{
		sensor:    sensor,
		loop:      loop,
		auger:     acts.Auger,
		fan:       acts.Fan,
		igniter:   acts.Igniter,
		clock:     clk,
		settings:  settings,
		ignition:  logic.NewIgniterPolicy(settings.IgnitionThreshold, settings.IgniterGrace),
		state:     logic.StateOff,
		enteredAt: clk.Now(),
		setpoint:  settings.Setpoint,
	}
	// Response is only called from Tick with mu held.
	loop.SetObserver(func(t pid.Terms) { c.terms = t })
	return c
}

// Subscribe adds fn to the observer list.
func (c *Controller) Subscribe(fn Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// State returns the current state.
func (c *Controller) State() logic.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EnteredAt returns the time the current state was entered.
func (c *Controller) EnteredAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enteredAt
}

// Setpoint returns the Hold target in °C.
func (c *Controller) Setpoint() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setpoint
}

// SetSetpoint changes the Hold target. In Hold the PID restarts from the new
// target and the auger is reprogrammed on the next tick.
func (c *Controller) SetSetpoint(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setpoint = t
	if c.state == logic.StateHold {
		c.loop.SetDesiredTemp(t)
		c.evalDue = true
	}
	log.Printf("appliance: setpoint=%.1f", t)
}

// LastReading returns the most recent good reading.
func (c *Controller) LastReading() (rtd.Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveReading {
		return rtd.Reading{}, ErrNoReading
	}
	return c.last, nil
}

// Purging reports whether the shutdown fan purge is still running.
func (c *Controller) Purging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == logic.StateShutdown && (c.fan.IsOn() || c.fan.Running())
}

// Transition moves to the requested state and applies its actuator program.
// Requests outside the allowed set return *logic.InvalidTransitionError and
// change nothing.
func (c *Controller) Transition(to logic.State) error {
	c.mu.Lock()
	from := c.state
	if err := logic.ValidateTransition(from, to); err != nil {
		c.mu.Unlock()
		return err
	}

	now := c.clock.Now()
	c.applyLocked(to)
	c.state = to
	c.enteredAt = now
	ev := logic.Event{Timestamp: now, Type: logic.EventTransition, From: from, To: to}
	obs := c.observersLocked()
	c.mu.Unlock()

	log.Printf("appliance: %s -> %s", from, to)
	notify(obs, ev)
	return nil
}

// Tick acquires a reading and maintains the current state's program. A
// transport error or faulted reading is returned after the fan and a forced
// igniter have been kept alive; the auger program and the igniter policy are
// left untouched.
func (c *Controller) Tick() (Sample, error) {
	reading, err := c.sensor.Acquire()
	if err == nil {
		err = reading.Fault()
	}

	c.mu.Lock()
	now := c.clock.Now()
	var events []logic.Event
	if err != nil {
		if c.fault == nil {
			log.Printf("appliance: sensor fault: %v", err)
			events = append(events, logic.Event{Timestamp: now, Type: logic.EventFault, From: c.state, To: c.state, Detail: err.Error()})
		}
		c.fault = err
	} else {
		if c.fault != nil {
			log.Printf("appliance: sensor recovered temp=%.1f", reading.TemperatureC)
			events = append(events, logic.Event{Timestamp: now, Type: logic.EventRecovered, From: c.state, To: c.state})
		}
		c.fault = nil
		c.last = reading
		c.haveReading = true
	}

	c.maintainLocked(now, err == nil)

	s := c.sampleLocked(now)
	s.Reading = reading
	s.Valid = err == nil
	obs := c.observersLocked()
	c.mu.Unlock()

	notify(obs, events...)
	return s, err
}

// Snapshot returns the controller state without acquiring. Reading is the
// last good reading.
func (c *Controller) Snapshot() Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sampleLocked(c.clock.Now())
	s.Reading = c.last
	s.Valid = c.haveReading && c.fault == nil
	return s
}

func (c *Controller) sampleLocked(now time.Time) Sample {
	s := Sample{
		Time:        now,
		State:       c.state,
		EnteredAt:   c.enteredAt,
		Setpoint:    c.setpoint,
		Terms:       c.terms,
		Duty:        c.duty,
		Auger:       c.auger.Snapshot(),
		Fan:         c.fan.Snapshot(),
		Igniter:     c.igniter.Snapshot(),
		HaveReading: c.haveReading,
	}
	s.AugerOn = s.Auger.OnDuration
	s.AugerOff = s.Auger.OffDuration
	if c.fault != nil {
		s.Fault = c.fault.Error()
	}
	return s
}

// applyLocked installs the entry program for state to.
func (c *Controller) applyLocked(to logic.State) {
	act := logic.ActuationFor(to)

	switch act.Fan {
	case logic.FanStop:
		c.fan.Halt()
	case logic.FanHold:
		if c.fan.CycleTime() != c.settings.FanCycle {
			c.fan.SetCycleTime(c.settings.FanCycle)
		}
		c.fan.Keepalive()
	}

	switch act.Igniter {
	case logic.IgniterStop:
		c.igniter.Halt()
	case logic.IgniterForce:
		c.igniter.Keepalive()
	}
	c.ignition.Reset()

	switch act.Auger {
	case logic.AugerStop:
		c.auger.Halt()
		c.duty = 0
	case logic.AugerFixed:
		c.programAuger(logic.StartAugerOn, logic.StartAugerOff)
		c.duty = logic.DutyFraction(logic.StartAugerOn, logic.StartAugerOff)
	case logic.AugerSmoke:
		on, off, u := logic.SmokeDuty(c.settings.PMode)
		c.programAuger(on, off)
		c.duty = u
	case logic.AugerPID:
		c.loop.SetDesiredTemp(c.setpoint)
		on, off, u := logic.HoldDuty(0.5, c.settings.CycleTime, c.settings.MinDuty, c.settings.MaxDuty)
		c.programAuger(on, off)
		c.duty = u
		c.evalDue = true
	}

	// The purge runs after everything else has stopped.
	if act.Fan == logic.FanPurge {
		c.fan.Stop()
		c.fan.SetCycleTime(c.settings.PurgeDuration)
		c.fan.TurnOn()
		c.fan.StartOnce()
	}

	if to == logic.StateOff {
		c.loop.Reset()
		c.terms = pid.Terms{}
		c.evalDue = false
	}
}

// maintainLocked refreshes the current program. good is false when the
// latest acquisition failed.
func (c *Controller) maintainLocked(now time.Time, good bool) {
	act := logic.ActuationFor(c.state)

	if act.Fan == logic.FanHold {
		c.fan.Keepalive()
	}
	if act.Igniter == logic.IgniterForce {
		c.igniter.Keepalive()
	}
	if !good {
		return
	}

	temp := c.last.TemperatureC
	if act.Igniter == logic.IgniterMaintain {
		if c.ignition.Process(temp, now) && !c.igniter.IsOn() {
			log.Printf("appliance: relighting igniter temp=%.1f threshold=%.1f", temp, c.ignition.Threshold())
			c.igniter.TurnOn()
		}
	}

	if act.Auger == logic.AugerPID && (c.evalDue || now.Sub(c.lastEval) >= c.settings.CycleTime) {
		u := c.loop.Response(temp)
		on, off, clamped := logic.HoldDuty(u, c.settings.CycleTime, c.settings.MinDuty, c.settings.MaxDuty)
		c.programAuger(on, off)
		c.duty = clamped
		c.lastEval = now
		c.evalDue = false
	}
}

// programAuger sets the auger timing and starts it with a feed if it is idle.
func (c *Controller) programAuger(on, off time.Duration) {
	c.auger.SetDurations(on, off)
	if c.auger.Running() {
		return
	}
	if c.auger.IsOn() {
		c.auger.Start()
		return
	}
	c.auger.TurnOn()
}

func (c *Controller) observersLocked() []Observer {
	if len(c.observers) == 0 {
		return nil
	}
	return append([]Observer(nil), c.observers...)
}

func notify(obs []Observer, events ...logic.Event) {
	for _, ev := range events {
		for _, fn := range obs {
			fn(ev)
		}
	}
}
