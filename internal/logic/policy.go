package logic

import "time"

// FanMode is the fan program for a state.
type FanMode int

const (
	FanStop  FanMode = iota
	FanHold          // kept on every tick
	FanPurge         // one final bounded run, then off
)

// IgniterMode is the igniter program for a state.
type IgniterMode int

const (
	IgniterStop     IgniterMode = iota
	IgniterForce                // kept on every tick
	IgniterMaintain             // re-triggered by IgniterPolicy only
)

// AugerMode is the auger program for a state.
type AugerMode int

const (
	AugerStop  AugerMode = iota
	AugerFixed           // StartAugerOn / StartAugerOff
	AugerSmoke           // SmokeDuty(pMode)
	AugerPID             // PID output over the cycle time
)

// Actuation is the program applied on entry to a state and maintained on
// every tick while in it.
type Actuation struct {
	Fan     FanMode
	Igniter IgniterMode
	Auger   AugerMode
}

// Start-up auger program.
const (
	StartAugerOn  = 15 * time.Second
	StartAugerOff = 45 * time.Second
)

// Smoke auger program: fixed on time, off time stretched by pMode.
const (
	SmokeAugerOn      = 15 * time.Second
	SmokeAugerOffBase = 45 * time.Second
	SmokeAugerOffStep = 10 * time.Second
)

var actuation = map[State]Actuation{
	StateOff:      {Fan: FanStop, Igniter: IgniterStop, Auger: AugerStop},
	StateStart:    {Fan: FanHold, Igniter: IgniterForce, Auger: AugerFixed},
	StateSmoke:    {Fan: FanHold, Igniter: IgniterMaintain, Auger: AugerSmoke},
	StateIgnite:   {Fan: FanHold, Igniter: IgniterForce, Auger: AugerSmoke},
	StateHold:     {Fan: FanHold, Igniter: IgniterMaintain, Auger: AugerPID},
	StateShutdown: {Fan: FanPurge, Igniter: IgniterStop, Auger: AugerStop},
}

// ActuationFor returns the program for s. Unknown states stop everything.
func ActuationFor(s State) Actuation {
	return actuation[s]
}

// SmokeDuty returns the smoke auger timing for pMode and its on-fraction.
func SmokeDuty(pMode int) (on, off time.Duration, u float64) {
	on = SmokeAugerOn
	off = SmokeAugerOffBase + time.Duration(pMode)*SmokeAugerOffStep
	return on, off, DutyFraction(on, off)
}

// DutyFraction returns on/(on+off), or 0 when both are zero.
func DutyFraction(on, off time.Duration) float64 {
	total := on + off
	if total <= 0 {
		return 0
	}
	return float64(on) / float64(total)
}

// HoldDuty splits cycle by u after clamping u to [minDuty, maxDuty].
func HoldDuty(u float64, cycle time.Duration, minDuty, maxDuty float64) (on, off time.Duration, clamped float64) {
	clamped = u
	if clamped < minDuty {
		clamped = minDuty
	}
	if clamped > maxDuty {
		clamped = maxDuty
	}
	on = time.Duration(clamped * float64(cycle))
	return on, cycle - on, clamped
}
