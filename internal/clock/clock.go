// Package clock provides the time capability injected into every timing
// component (actuators, PID, sensor waits). The real implementation wraps the
// time package; the fake implementation is advanced manually by tests.
package clock

import "time"

// Clock reads the current time, blocks, and schedules callbacks.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d. It is not cancellable.
	Sleep(d time.Duration)
	// AfterFunc calls f in its own goroutine (real) or during Advance (fake)
	// once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from firing. Returns false if it already
	// fired or was stopped.
	Stop() bool
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Sleep calls time.Sleep.
func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
