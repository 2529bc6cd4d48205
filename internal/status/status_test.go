package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/pellet-smoker/internal/actuator"
	"github.com/sweeney/pellet-smoker/internal/appliance"
	"github.com/sweeney/pellet-smoker/internal/clock"
	"github.com/sweeney/pellet-smoker/internal/logic"
	"github.com/sweeney/pellet-smoker/internal/pid"
	"github.com/sweeney/pellet-smoker/internal/rtd"
)

var testStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func holdSample() appliance.Sample {
	return appliance.Sample{
		Time:        testStart.Add(time.Minute),
		State:       logic.StateHold,
		EnteredAt:   testStart.Add(30 * time.Second),
		Reading:     rtd.Reading{TemperatureC: 101.5},
		Valid:       true,
		HaveReading: true,
		Setpoint:    107,
		Terms:       pid.Terms{Error: -5.5, P: 0.59, I: 0.01, Output: 0.6},
		Duty:        0.6,
		Auger:       actuator.Snapshot{Name: "auger", On: true, Running: true, OnDuration: 12 * time.Second, OffDuration: 8 * time.Second},
		Fan:         actuator.Snapshot{Name: "fan", On: true, Running: true, OnDuration: 30 * time.Second, OffDuration: actuator.Forever},
		Igniter:     actuator.Snapshot{Name: "igniter", OnDuration: 5 * time.Minute, OffDuration: actuator.Forever},
	}
}

func TestNewTracker(t *testing.T) {
	clk := clock.NewFake(testStart)
	cfg := Config{TickMs: 3000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(clk, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(testStart) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, testStart)
	}
	if snap.State != logic.StateOff {
		t.Errorf("State: got %q, want OFF", snap.State)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.HaveReading {
		t.Error("expected HaveReading=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(clock.NewFake(testStart), Config{})

	tr.Update(holdSample(), logic.EventCounts{Transitions: 2, Faults: 1})

	snap := tr.Snapshot()
	if snap.State != logic.StateHold {
		t.Errorf("State: got %q, want HOLD", snap.State)
	}
	if snap.TemperatureC != 101.5 {
		t.Errorf("TemperatureC: got %v, want 101.5", snap.TemperatureC)
	}
	if snap.Duty != 0.6 {
		t.Errorf("Duty: got %v, want 0.6", snap.Duty)
	}
	if len(snap.Actuators) != 3 || snap.Actuators[1].Name != "fan" {
		t.Errorf("Actuators: got %+v", snap.Actuators)
	}
	if snap.Counts.Transitions != 2 || snap.Counts.Faults != 1 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
}

func TestUpdateKeepsTemperatureOnFault(t *testing.T) {
	tr := NewTracker(clock.NewFake(testStart), Config{})
	tr.Update(holdSample(), logic.EventCounts{})

	faulted := holdSample()
	faulted.Valid = false
	faulted.Reading = rtd.Reading{}
	faulted.Fault = "rtd: read rtd: bus stuck"
	tr.Update(faulted, logic.EventCounts{Faults: 1})

	snap := tr.Snapshot()
	if snap.TemperatureC != 101.5 {
		t.Errorf("TemperatureC: got %v, want last good 101.5", snap.TemperatureC)
	}
	if snap.Fault != "rtd: read rtd: bus stuck" {
		t.Errorf("Fault: got %q", snap.Fault)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(clock.NewFake(testStart), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	clk := clock.NewFake(testStart)
	tr := NewTracker(clk, Config{})
	clk.Advance(15 * time.Minute)

	snap := tr.Snapshot()
	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(clock.NewFake(testStart), Config{})
	tr.Update(holdSample(), logic.EventCounts{Transitions: 1})

	snap1 := tr.Snapshot()
	snap1.Actuators[0].On = false

	next := holdSample()
	next.State = logic.StateShutdown
	tr.Update(next, logic.EventCounts{Transitions: 2})

	if snap1.State != logic.StateHold {
		t.Error("snapshot should be a copy; State was modified")
	}
	if !tr.Snapshot().Actuators[0].On {
		t.Error("mutating a snapshot must not reach the tracker")
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		State:         logic.StateHold,
		StateSince:    testStart.Add(time.Minute),
		TemperatureC:  101.5,
		HaveReading:   true,
		Setpoint:      107,
		Duty:          0.6,
		Terms:         pid.Terms{Error: -5.5, P: 0.59, I: 0.01, Output: 0.6},
		Actuators:     []actuator.Snapshot{holdSample().Auger, holdSample().Fan},
		Counts:        logic.EventCounts{Transitions: 5, Faults: 2, Recoveries: 2},
		StartTime:     testStart,
		Now:           testStart.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{TickMs: 3000, CycleMs: 20000, HeartbeatMs: 900000, Target: "hold", Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.State != "HOLD" {
		t.Errorf("State: got %q, want HOLD", s.State)
	}
	if s.StateSince != "2026-01-01T00:01:00Z" {
		t.Errorf("StateSince: got %q", s.StateSince)
	}
	if s.TemperatureC == nil || *s.TemperatureC != 101.5 {
		t.Errorf("TemperatureC: got %v, want 101.5", s.TemperatureC)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if s.PID.Output != 0.6 {
		t.Errorf("PID.Output: got %v, want 0.6", s.PID.Output)
	}
	if len(s.Actuators) != 2 {
		t.Fatalf("Actuators: got %d, want 2", len(s.Actuators))
	}
	if s.Actuators[0].OnMs != 12000 || s.Actuators[0].OffMs != 8000 {
		t.Errorf("auger timing: got %d/%d", s.Actuators[0].OnMs, s.Actuators[0].OffMs)
	}
	if s.Actuators[1].OffMs != 0 {
		t.Errorf("latched fan should omit off_ms, got %d", s.Actuators[1].OffMs)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Counts.Transitions != 5 || s.Counts.Faults != 2 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Config.Target != "hold" {
		t.Errorf("Config.Target: got %q", s.Config.Target)
	}
	// Event and Reason should be omitted
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected empty Event/Reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONBeforeFirstReading(t *testing.T) {
	snap := Snapshot{
		StartTime: testStart,
		Now:       testStart.Add(time.Second),
	}

	data := FormatJSON(snap)

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"]
	if status["state"] != "UNKNOWN" {
		t.Errorf("state: got %v, want UNKNOWN", status["state"])
	}
	if v, ok := status["temperature_c"]; !ok || v != nil {
		t.Errorf("temperature_c: got %v, want null", v)
	}
	if acts, ok := status["actuators"].([]interface{}); !ok || len(acts) != 0 {
		t.Errorf("actuators: got %v, want []", status["actuators"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		State:     logic.StateOff,
		StartTime: testStart,
		Now:       testStart.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883", RunID: "6f1c2d3e"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.Config.RunID != "6f1c2d3e" {
		t.Errorf("RunID: got %q", parsed.Status.Config.RunID)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: testStart, Now: testStart.Add(time.Second)}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(clock.Real{}, Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(holdSample(), logic.EventCounts{Transitions: i})
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
