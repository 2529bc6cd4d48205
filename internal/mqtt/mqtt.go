// Package mqtt publishes controller telemetry with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pellet-smoker/internal/appliance"
	"github.com/sweeney/pellet-smoker/internal/logic"
)

// TopicEvents is the MQTT topic for transitions and sensor faults.
const TopicEvents = "smoker/controller/events"

// TopicSamples is the MQTT topic for per-tick control samples.
const TopicSamples = "smoker/controller/samples"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "smoker/controller/system"

// Publisher publishes controller telemetry to MQTT.
type Publisher interface {
	// Publish sends a controller event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSample sends one control tick.
	PublishSample(sample appliance.Sample) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RunID      string
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// EventPayload is the message published on TopicEvents.
type EventPayload struct {
	Event EventInner `json:"event"`
}

// EventInner contains the event details.
type EventInner struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	From      string `json:"from"`
	To        string `json:"to"`
	Detail    string `json:"detail,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := EventPayload{
		Event: EventInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Type:      string(event.Type),
			From:      string(event.From),
			To:        string(event.To),
			Detail:    event.Detail,
		},
	}
	return json.Marshal(payload)
}

// SamplePayload is the message published on TopicSamples.
type SamplePayload struct {
	Sample SampleInner `json:"sample"`
}

// SampleInner contains one control tick.
type SampleInner struct {
	Timestamp    string   `json:"timestamp"`
	State        string   `json:"state"`
	TemperatureC *float64 `json:"temperature_c"` // null when the acquisition failed
	Fault        string   `json:"fault,omitempty"`
	SetpointC    float64  `json:"setpoint_c"`
	Duty         float64  `json:"duty"`
	P            float64  `json:"p"`
	I            float64  `json:"i"`
	D            float64  `json:"d"`
	AugerOnMs    int64    `json:"auger_on_ms"`
	AugerOffMs   int64    `json:"auger_off_ms"`
	Auger        bool     `json:"auger"`
	Fan          bool     `json:"fan"`
	Igniter      bool     `json:"igniter"`
}

// FormatSamplePayload creates the JSON payload for a control sample.
func FormatSamplePayload(s appliance.Sample) ([]byte, error) {
	inner := SampleInner{
		Timestamp:  s.Time.UTC().Format(time.RFC3339),
		State:      string(s.State),
		Fault:      s.Fault,
		SetpointC:  s.Setpoint,
		Duty:       s.Duty,
		P:          s.Terms.P,
		I:          s.Terms.I,
		D:          s.Terms.D,
		AugerOnMs:  s.AugerOn.Milliseconds(),
		AugerOffMs: s.AugerOff.Milliseconds(),
		Auger:      s.Auger.On,
		Fan:        s.Fan.On,
		Igniter:    s.Igniter.On,
	}
	if s.Valid {
		t := s.Reading.TemperatureC
		inner.TemperatureC = &t
	}
	return json.Marshal(SamplePayload{Sample: inner})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	RunID     string `json:"run_id,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			RunID:     event.RunID,
		},
	}
	return json.Marshal(payload)
}
