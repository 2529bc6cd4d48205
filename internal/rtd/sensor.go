// Package rtd reads a platinum RTD through a MAX31865-style analog front end
// and converts the result to degrees Celsius.
//
// The register transport is injected as a Conn; on hardware it is a periph.io
// SPI connection (see OpenSPI), in tests a FakeChip.
package rtd

import (
	"sync"
	"time"

	"github.com/sweeney/pellet-smoker/internal/clock"
)

// Conn is a full-duplex byte exchange. len(r) == len(w).
// periph.io's spi.Conn satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

// Options configures the front end and the acquisition waits.
type Options struct {
	Wires          int  // 2, 3 or 4
	Filter50Hz     bool // false selects the 60 Hz notch
	BiasSettle     time.Duration
	ConversionTime time.Duration
}

// DefaultOptions returns 3-wire, 60 Hz filter, 10 ms bias settle and a 65 ms
// conversion budget.
func DefaultOptions() Options {
	return Options{
		Wires:          3,
		BiasSettle:     10 * time.Millisecond,
		ConversionTime: 65 * time.Millisecond,
	}
}

// Reading is the result of one acquisition sequence.
type Reading struct {
	Time         time.Time
	RawCode      uint16 // 15-bit conversion result
	Ratio        float64
	Resistance   float64
	TemperatureC float64
	Faulted      bool
	FaultStatus  uint8
}

// Fault returns a *SensorFaultError if the reading is faulted, nil otherwise.
func (r Reading) Fault() error {
	if !r.Faulted {
		return nil
	}
	return &SensorFaultError{Status: r.FaultStatus}
}

// Sensor runs the acquisition protocol. One acquisition holds the transport
// exclusively from fault-clear to result read.
type Sensor struct {
	mu    sync.Mutex
	conn  Conn
	conv  Converter
	clock clock.Clock
	opts  Options
}

// NewSensor creates a Sensor on conn.
func NewSensor(conn Conn, conv Converter, clk clock.Clock, opts Options) *Sensor {
	return &Sensor{conn: conn, conv: conv, clock: clk, opts: opts}
}

// Converter returns the converter used by Acquire.
func (s *Sensor) Converter() Converter {
	return s.conv
}

// Configure writes the wire mode and filter selection with bias and
// auto-conversion off, and opens the fault thresholds to the full range.
func (s *Sensor) Configure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg uint8
	if s.opts.Wires == 3 {
		cfg |= config3Wire
	}
	if s.opts.Filter50Hz {
		cfg |= configFilt50Hz
	}
	if err := s.write8(regConfig, cfg); err != nil {
		return &TransportError{Op: "configure", Err: err}
	}
	return s.setThresholds(0x0000, 0x7FFF)
}

// SetThresholds programs the low and high fault comparators with 15-bit
// codes.
func (s *Sensor) SetThresholds(low, high uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setThresholds(low, high)
}

func (s *Sensor) setThresholds(low, high uint16) error {
	hi := high << 1
	lo := low << 1
	w := []byte{regHighFaultHi | writeFlag, byte(hi >> 8), byte(hi), byte(lo >> 8), byte(lo)}
	if err := s.conn.Tx(w, make([]byte, len(w))); err != nil {
		return &TransportError{Op: "write thresholds", Err: err}
	}
	return nil
}

// Acquire performs clear-fault, bias-enable, one-shot conversion and result
// read as one sequence. Transfer failures return a *TransportError; fault
// bits only mark the Reading as faulted.
func (s *Sensor) Acquire() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clearFault(); err != nil {
		return Reading{}, &TransportError{Op: "clear fault", Err: err}
	}
	if err := s.setConfigBit(configBias, true); err != nil {
		return Reading{}, &TransportError{Op: "enable bias", Err: err}
	}
	s.clock.Sleep(s.opts.BiasSettle)

	if err := s.setConfigBit(config1Shot, true); err != nil {
		return Reading{}, &TransportError{Op: "trigger conversion", Err: err}
	}
	s.clock.Sleep(s.opts.ConversionTime)

	reg, err := s.read16(regRTDMSB)
	if err != nil {
		return Reading{}, &TransportError{Op: "read rtd", Err: err}
	}
	status, err := s.read8(regFaultStatus)
	if err != nil {
		return Reading{}, &TransportError{Op: "read fault status", Err: err}
	}
	if err := s.setConfigBit(configBias, false); err != nil {
		return Reading{}, &TransportError{Op: "disable bias", Err: err}
	}

	return s.decode(reg, status), nil
}

func (s *Sensor) decode(reg uint16, status uint8) Reading {
	code, faultBit := DecodeRaw(reg)
	ratio := float64(code) / FullScale
	r := s.conv.Resistance(ratio)
	return Reading{
		Time:         s.clock.Now(),
		RawCode:      code,
		Ratio:        ratio,
		Resistance:   r,
		TemperatureC: s.conv.Temperature(r),
		Faulted:      faultBit || status != 0,
		FaultStatus:  status,
	}
}

func (s *Sensor) clearFault() error {
	cfg, err := s.read8(regConfig)
	if err != nil {
		return err
	}
	cfg &^= config1Shot | configFaultMask
	cfg |= configFaultStat
	return s.write8(regConfig, cfg)
}

func (s *Sensor) setConfigBit(bit uint8, on bool) error {
	cfg, err := s.read8(regConfig)
	if err != nil {
		return err
	}
	if on {
		cfg |= bit
	} else {
		cfg &^= bit
	}
	return s.write8(regConfig, cfg)
}

// read8 exchanges two bytes; the first received byte is turnaround.
func (s *Sensor) read8(addr uint8) (uint8, error) {
	var r [2]byte
	if err := s.conn.Tx([]byte{addr &^ writeFlag, 0}, r[:]); err != nil {
		return 0, err
	}
	return r[1], nil
}

// read16 exchanges three bytes, MSB first after the turnaround byte.
func (s *Sensor) read16(addr uint8) (uint16, error) {
	var r [3]byte
	if err := s.conn.Tx([]byte{addr &^ writeFlag, 0, 0}, r[:]); err != nil {
		return 0, err
	}
	return uint16(r[1])<<8 | uint16(r[2]), nil
}

func (s *Sensor) write8(addr, v uint8) error {
	var r [2]byte
	return s.conn.Tx([]byte{addr | writeFlag, v}, r[:])
}
