package mqtt

import (
	"fmt"
	"testing"
)

// The three kinds of message the controller buffers while offline.
func eventMsg(n int) bufferedMsg {
	return bufferedMsg{topic: TopicEvents, payload: []byte(fmt.Sprintf("event-%d", n)), qos: 1}
}

func sampleMsg(n int) bufferedMsg {
	return bufferedMsg{topic: TopicSamples, payload: []byte(fmt.Sprintf("sample-%d", n))}
}

func systemMsg(name string) bufferedMsg {
	return bufferedMsg{topic: TopicSystem, payload: []byte(name), qos: 1, retained: true}
}

func payloads(msgs []bufferedMsg) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.payload)
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(BufferSize)
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferReplaysMixedTrafficInOrder(t *testing.T) {
	rb := newRingBuffer(BufferSize)

	// A tick that transitions: sample, event, then a heartbeat.
	want := []bufferedMsg{sampleMsg(1), eventMsg(1), sampleMsg(2), systemMsg("HEARTBEAT"), sampleMsg(3)}
	for _, m := range want {
		rb.push(m)
	}

	got := rb.drainAll()
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].topic != want[i].topic || string(got[i].payload) != string(want[i].payload) {
			t.Errorf("item %d: got %s %s, want %s %s", i, got[i].topic, got[i].payload, want[i].topic, want[i].payload)
		}
		if got[i].qos != want[i].qos || got[i].retained != want[i].retained {
			t.Errorf("item %d: got qos=%d retained=%v, want qos=%d retained=%v",
				i, got[i].qos, got[i].retained, want[i].qos, want[i].retained)
		}
	}

	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got))
	}
}

func TestRingBufferOverflowDropsOldestRegardlessOfQoS(t *testing.T) {
	rb := newRingBuffer(4)

	// A long outage: one transition followed by a stream of samples.
	rb.push(eventMsg(1))
	for i := 1; i <= 5; i++ {
		rb.push(sampleMsg(i))
	}

	got := payloads(rb.drainAll())
	want := []string{"sample-2", "sample-3", "sample-4", "sample-5"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRingBufferWrapsAcrossDrains(t *testing.T) {
	rb := newRingBuffer(5)

	for i := 1; i <= 3; i++ {
		rb.push(sampleMsg(i))
	}
	if got := rb.drainAll(); len(got) != 3 {
		t.Fatalf("first outage: expected 3 items, got %d", len(got))
	}

	// Second outage writes past the end of the backing array.
	rb.push(eventMsg(7))
	for i := 4; i <= 7; i++ {
		rb.push(sampleMsg(i))
	}
	got := payloads(rb.drainAll())
	want := []string{"event-7", "sample-4", "sample-5", "sample-6", "sample-7"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("second outage: got %v, want %v", got, want)
	}
}

func TestRingBufferLen(t *testing.T) {
	rb := newRingBuffer(3)
	if rb.len() != 0 {
		t.Errorf("expected len 0, got %d", rb.len())
	}

	rb.push(sampleMsg(1))
	rb.push(eventMsg(1))
	if rb.len() != 2 {
		t.Errorf("expected len 2, got %d", rb.len())
	}

	for i := 2; i <= 5; i++ {
		rb.push(sampleMsg(i))
	}
	if rb.len() != 3 {
		t.Errorf("len should stop at capacity, got %d", rb.len())
	}

	rb.drainAll()
	if rb.len() != 0 {
		t.Errorf("expected len 0 after drain, got %d", rb.len())
	}
}

func TestRingBufferCountsDropped(t *testing.T) {
	rb := newRingBuffer(2)
	for i := 0; i < 5; i++ {
		rb.push(sampleMsg(i))
	}
	if rb.dropped != 3 {
		t.Errorf("dropped: got %d, want 3", rb.dropped)
	}
	rb.drainAll()
	if rb.dropped != 0 {
		t.Errorf("dropped after drain: got %d, want 0", rb.dropped)
	}
}
