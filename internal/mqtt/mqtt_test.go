package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/pellet-smoker/internal/actuator"
	"github.com/sweeney/pellet-smoker/internal/appliance"
	"github.com/sweeney/pellet-smoker/internal/logic"
	"github.com/sweeney/pellet-smoker/internal/pid"
	"github.com/sweeney/pellet-smoker/internal/rtd"
)

func TestTopics(t *testing.T) {
	tests := []struct{ got, want string }{
		{TopicEvents, "smoker/controller/events"},
		{TopicSamples, "smoker/controller/samples"},
		{TopicSystem, "smoker/controller/system"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic: got %s, want %s", tt.got, tt.want)
		}
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventTransition,
		From:      logic.StateStart,
		To:        logic.StateHold,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"event":{"timestamp":"2026-02-02T22:18:12Z","type":"TRANSITION","from":"START","to":"HOLD"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadFaultDetail(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventFault,
		From:      logic.StateHold,
		To:        logic.StateHold,
		Detail:    "rtd: read rtd: bus stuck",
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed EventPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Event.Type != "SENSOR_FAULT" {
		t.Errorf("type: got %s, want SENSOR_FAULT", parsed.Event.Type)
	}
	if parsed.Event.Detail != "rtd: read rtd: bus stuck" {
		t.Errorf("detail: got %q", parsed.Event.Detail)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 3, 3, 0, 0, 0, loc),
		Type:      logic.EventTransition,
	}

	payload, _ := FormatPayload(event)
	var parsed EventPayload
	json.Unmarshal(payload, &parsed)

	if parsed.Event.Timestamp != "2026-02-02T22:00:00Z" {
		t.Errorf("timestamp: got %s, want 2026-02-02T22:00:00Z", parsed.Event.Timestamp)
	}
}

func testSample() appliance.Sample {
	return appliance.Sample{
		Time:     time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC),
		State:    logic.StateHold,
		Reading:  rtd.Reading{TemperatureC: 104.5},
		Valid:    true,
		Setpoint: 107,
		Terms:    pid.Terms{P: 0.5, I: 0.25, D: -0.125},
		Duty:     0.625,
		AugerOn:  12500 * time.Millisecond,
		AugerOff: 7500 * time.Millisecond,
		Auger:    actuator.Snapshot{Name: "auger", On: true},
		Fan:      actuator.Snapshot{Name: "fan", On: true},
	}
}

func TestFormatSamplePayloadExactJSON(t *testing.T) {
	payload, err := FormatSamplePayload(testSample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"sample":{"timestamp":"2026-02-03T19:05:51Z","state":"HOLD","temperature_c":104.5,"setpoint_c":107,"duty":0.625,"p":0.5,"i":0.25,"d":-0.125,"auger_on_ms":12500,"auger_off_ms":7500,"auger":true,"fan":true,"igniter":false}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSamplePayloadInvalidReading(t *testing.T) {
	s := testSample()
	s.Valid = false
	s.Fault = "rtd: sensor fault 0x80"

	payload, err := FormatSamplePayload(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	sample := parsed["sample"]
	if v, ok := sample["temperature_c"]; !ok || v != nil {
		t.Errorf("temperature_c: got %v, want null", v)
	}
	if sample["fault"] != "rtd: sensor fault 0x80" {
		t.Errorf("fault: got %v", sample["fault"])
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
		RunID:     "6f1c2d3e-0000-4000-8000-000000000000",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM","run_id":"6f1c2d3e-0000-4000-8000-000000000000"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadOmitsEmpty(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC),
		Event:     "OFFLINE",
	}

	payload, _ := FormatSystemPayload(event)
	expected := `{"system":{"timestamp":"2026-02-03T19:05:51Z","event":"OFFLINE"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestClientIDFor(t *testing.T) {
	tests := []struct {
		clientID, runID, want string
	}{
		{"pellet-smoker", "6f1c2d3e-0000-4000-8000-000000000000", "pellet-smoker-6f1c2d3e"},
		{"pellet-smoker", "", "pellet-smoker"},
		{"smoker", "abc", "smoker-abc"},
	}
	for _, tt := range tests {
		if got := clientIDFor(tt.clientID, tt.runID); got != tt.want {
			t.Errorf("clientIDFor(%q, %q): got %q, want %q", tt.clientID, tt.runID, got, tt.want)
		}
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	event := logic.Event{Timestamp: time.Now(), Type: logic.EventTransition, From: logic.StateOff, To: logic.StateStart}
	if err := f.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSample(testSample()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Events) != 1 || f.Events[0].To != logic.StateStart {
		t.Errorf("unexpected events: %+v", f.Events)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(f.Payloads))
	}
	if len(f.Samples) != 1 {
		t.Errorf("expected 1 sample, got %d", len(f.Samples))
	}
	if names := f.SystemEventNames(); len(names) != 1 || names[0] != "STARTUP" {
		t.Errorf("system events: got %v", names)
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")
	f.PublishSystemError = errors.New("simulated error")

	if err := f.Publish(logic.Event{Type: logic.EventTransition}); err == nil {
		t.Error("expected error from Publish")
	}
	if err := f.PublishSample(testSample()); err == nil {
		t.Error("expected error from PublishSample")
	}
	if err := f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err == nil {
		t.Error("expected error from PublishSystem")
	}
	if len(f.Events) != 0 || len(f.Samples) != 0 || len(f.SystemEvents) != 0 {
		t.Error("nothing should be recorded on error")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(logic.Event{Type: logic.EventTransition})
	f.PublishSample(testSample())
	f.Close()
	f.Connected = true
	f.PublishError = errors.New("error")

	f.Reset()

	if len(f.Events) != 0 || len(f.Payloads) != 0 || len(f.Samples) != 0 {
		t.Error("recorded messages should be cleared")
	}
	if f.Closed || f.Connected || f.PublishError != nil {
		t.Error("flags should be reset")
	}
}
