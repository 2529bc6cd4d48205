package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pellet-smoker/internal/actuator"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	State         string         `json:"state"`
	StateSince    string         `json:"state_since,omitempty"`
	TemperatureC  *float64       `json:"temperature_c"` // null before the first good reading
	Fault         string         `json:"fault,omitempty"`
	SetpointC     float64        `json:"setpoint_c"`
	Duty          float64        `json:"duty"`
	PID           PIDJSON        `json:"pid"`
	Actuators     []ActuatorJSON `json:"actuators"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	Config        ConfigJSON     `json:"config"`
}

// PIDJSON is the decomposed controller response.
type PIDJSON struct {
	Error  float64 `json:"error"`
	P      float64 `json:"p"`
	I      float64 `json:"i"`
	D      float64 `json:"d"`
	Output float64 `json:"output"`
}

// ActuatorJSON is the JSON representation of one relay program.
type ActuatorJSON struct {
	Name        string `json:"name"`
	On          bool   `json:"on"`
	Running     bool   `json:"running"`
	OnMs        int64  `json:"on_ms"`
	OffMs       int64  `json:"off_ms,omitempty"` // omitted for latched actuators
	WriteErrors int    `json:"write_errors,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Transitions int `json:"transitions"`
	Faults      int `json:"faults"`
	Recoveries  int `json:"recoveries"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	CycleMs     int64  `json:"cycle_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Target      string `json:"target"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	RunID       string `json:"run_id,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:         state,
		Fault:         snap.Fault,
		SetpointC:     snap.Setpoint,
		Duty:          snap.Duty,
		PID:           PIDJSON{Error: snap.Terms.Error, P: snap.Terms.P, I: snap.Terms.I, D: snap.Terms.D, Output: snap.Terms.Output},
		Actuators:     []ActuatorJSON{},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Transitions: snap.Counts.Transitions,
			Faults:      snap.Counts.Faults,
			Recoveries:  snap.Counts.Recoveries,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			CycleMs:     snap.Config.CycleMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Target:      snap.Config.Target,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			RunID:       snap.Config.RunID,
		},
	}
	if !snap.StateSince.IsZero() {
		inner.StateSince = snap.StateSince.UTC().Format(time.RFC3339)
	}
	if snap.HaveReading {
		t := snap.TemperatureC
		inner.TemperatureC = &t
	}
	for _, a := range snap.Actuators {
		aj := ActuatorJSON{
			Name:        a.Name,
			On:          a.On,
			Running:     a.Running,
			OnMs:        a.OnDuration.Milliseconds(),
			WriteErrors: a.WriteErrors,
		}
		if a.OffDuration != actuator.Forever {
			aj.OffMs = a.OffDuration.Milliseconds()
		}
		inner.Actuators = append(inner.Actuators, aj)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
