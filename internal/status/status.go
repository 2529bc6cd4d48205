// Package status provides a thread-safe status tracker for the smoker daemon.
// It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pellet-smoker/internal/actuator"
	"github.com/sweeney/pellet-smoker/internal/appliance"
	"github.com/sweeney/pellet-smoker/internal/clock"
	"github.com/sweeney/pellet-smoker/internal/logic"
	"github.com/sweeney/pellet-smoker/internal/pid"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	CycleMs     int64
	HeartbeatMs int64
	Target      string
	Broker      string
	HTTPAddr    string
	RunID       string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	StateSince    time.Time
	TemperatureC  float64
	HaveReading   bool
	Fault         string
	Setpoint      float64
	Duty          float64
	Terms         pid.Terms
	Actuators     []actuator.Snapshot
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu    sync.RWMutex
	snap  Snapshot
	clock clock.Clock
}

// NewTracker creates a Tracker. The start time is taken from clk.
func NewTracker(clk clock.Clock, cfg Config) *Tracker {
	return &Tracker{
		clock: clk,
		snap: Snapshot{
			State:     logic.StateOff,
			StartTime: clk.Now(),
			Config:    cfg,
		},
	}
}

// Update records the latest controller sample and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(s appliance.Sample, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.State = s.State
	t.snap.StateSince = s.EnteredAt
	t.snap.HaveReading = s.HaveReading
	if s.Valid {
		t.snap.TemperatureC = s.Reading.TemperatureC
	}
	t.snap.Fault = s.Fault
	t.snap.Setpoint = s.Setpoint
	t.snap.Duty = s.Duty
	t.snap.Terms = s.Terms
	t.snap.Actuators = []actuator.Snapshot{s.Auger, s.Fan, s.Igniter}
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the clock's time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Actuators = append([]actuator.Snapshot(nil), t.snap.Actuators...)
	t.mu.RUnlock()
	s.Now = t.clock.Now()
	return s
}
