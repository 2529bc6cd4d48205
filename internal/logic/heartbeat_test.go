package logic

import (
	"testing"
	"time"
)

func TestHeartbeatInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)

	if hb := h.Check(start.Add(14*time.Minute), 15*time.Minute); hb != nil {
		t.Error("expected no heartbeat before the interval")
	}
	hb := h.Check(start.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at the interval")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", hb.Uptime)
	}
	if hb := h.Check(start.Add(16*time.Minute), 15*time.Minute); hb != nil {
		t.Error("interval restarts after a heartbeat")
	}
	if hb := h.Check(start.Add(30*time.Minute), 15*time.Minute); hb == nil {
		t.Error("expected second heartbeat")
	}
}

func TestHeartbeatDisabled(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)
	if hb := h.Check(start.Add(24*time.Hour), 0); hb != nil {
		t.Error("zero interval disables heartbeats")
	}
}
