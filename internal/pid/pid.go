// Package pid implements the temperature loop controller. Tuning is given in
// physical units (proportional band, integral time, derivative time); the
// output is an auger duty ratio centred on 0.5.
package pid

import (
	"math"
	"sync"
	"time"

	"github.com/sweeney/pellet-smoker/internal/clock"
	"github.com/sweeney/pellet-smoker/internal/config"
)

// Terms is the decomposed controller response.
type Terms struct {
	Error   float64
	Target  float64
	Current float64
	P, I, D float64
	Output  float64
}

// Observer receives the terms of every response. It must not call back into
// the Controller.
type Observer func(Terms)

// Controller is a PID loop with clamp-and-store anti-windup.
type Controller struct {
	mu sync.Mutex

	kp, ki, kd    float64
	maxIntegrator float64

	setpoint      float64
	integratorSum float64
	lastSample    time.Time // zero: no previous sample

	clock    clock.Clock
	observer Observer
}

// New derives the gains from pb (°C), ti (s) and td (s).
func New(pb, ti, td float64, clk clock.Clock) (*Controller, error) {
	if err := config.ValidateTuning(pb, ti, td); err != nil {
		return nil, err
	}
	kp := -1 / pb
	ki := kp / ti
	return &Controller{
		kp:            kp,
		ki:            ki,
		kd:            kp * td,
		maxIntegrator: math.Abs(0.5 / ki),
		clock:         clk,
	}, nil
}

// Gains returns Kp, Ki and Kd.
func (c *Controller) Gains() (kp, ki, kd float64) {
	return c.kp, c.ki, c.kd
}

// MaxIntegrator returns the anti-windup bound.
func (c *Controller) MaxIntegrator() float64 {
	return c.maxIntegrator
}

// SetObserver installs fn, replacing any previous observer.
func (c *Controller) SetObserver(fn Observer) {
	c.mu.Lock()
	c.observer = fn
	c.mu.Unlock()
}

// SetDesiredTemp sets the setpoint, zeroes the integrator and forgets the
// previous sample.
func (c *Controller) SetDesiredTemp(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setpoint = t
	c.integratorSum = 0
	c.lastSample = time.Time{}
}

// Setpoint returns the current setpoint.
func (c *Controller) Setpoint() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setpoint
}

// IntegratorSum returns the stored, clamped integrator.
func (c *Controller) IntegratorSum() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.integratorSum
}

// Reset zeroes setpoint and integrator and forgets the previous sample.
func (c *Controller) Reset() {
	c.SetDesiredTemp(0)
}

// Response computes the controller output for the current temperature.
// The first call after construction or a setpoint change has no dt, so the
// integral does not accumulate and the derivative term is zero.
func (c *Controller) Response(current float64) float64 {
	c.mu.Lock()
	now := c.clock.Now()

	var dt float64
	if !c.lastSample.IsZero() {
		dt = now.Sub(c.lastSample).Seconds()
	}

	e := current - c.setpoint
	p := c.kp*e + 0.5

	if dt > 0 {
		c.integratorSum = clamp(c.integratorSum+e*dt, -c.maxIntegrator, c.maxIntegrator)
	}
	i := c.ki * c.integratorSum

	var d float64
	if dt > 0 {
		d = c.kd * (e / dt)
	}

	u := p + i + d
	c.lastSample = now

	terms := Terms{Error: e, Target: c.setpoint, Current: current, P: p, I: i, D: d, Output: u}
	obs := c.observer
	c.mu.Unlock()

	if obs != nil {
		obs(terms)
	}
	return u
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
