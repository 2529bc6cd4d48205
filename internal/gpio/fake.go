package gpio

import "sync"

// FakeOutput is a test double that records relay writes.
type FakeOutput struct {
	mu sync.Mutex

	on      bool
	history []bool

	// WriteError, if set, will be returned by On and Off.
	WriteError error
}

// NewFakeOutput creates a FakeOutput that starts off.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// On records an on write.
func (f *FakeOutput) On() error {
	return f.set(true)
}

// Off records an off write.
func (f *FakeOutput) Off() error {
	return f.set(false)
}

func (f *FakeOutput) set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.on = on
	f.history = append(f.history, on)
	return nil
}

// IsOn reports the last successfully written level.
func (f *FakeOutput) IsOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// History returns every level written, in order.
func (f *FakeOutput) History() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.history...)
}

// Reset clears the recorded history.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = false
	f.history = nil
	f.WriteError = nil
}
