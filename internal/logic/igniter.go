package logic

import "time"

// IgniterPolicy decides when a maintained igniter is re-triggered: the
// temperature must stay below the ignition threshold for at least the grace
// period. Any reading at or above the threshold restarts the wait.
type IgniterPolicy struct {
	threshold  float64
	grace      time.Duration
	below      bool
	belowSince time.Time
}

// NewIgniterPolicy creates a policy.
func NewIgniterPolicy(threshold float64, grace time.Duration) *IgniterPolicy {
	return &IgniterPolicy{threshold: threshold, grace: grace}
}

// Threshold returns the ignition threshold in °C.
func (p *IgniterPolicy) Threshold() float64 {
	return p.threshold
}

// Process records a temperature sample and reports whether the igniter
// should be on.
func (p *IgniterPolicy) Process(tempC float64, now time.Time) bool {
	if tempC >= p.threshold {
		p.below = false
		return false
	}
	if !p.below {
		p.below = true
		p.belowSince = now
	}
	return now.Sub(p.belowSince) >= p.grace
}

// Reset forgets any pending cold period.
func (p *IgniterPolicy) Reset() {
	p.below = false
	p.belowSince = time.Time{}
}
