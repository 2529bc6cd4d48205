package rtd

import (
	"errors"
	"sync"
	"time"

	"github.com/sweeney/pellet-smoker/internal/clock"
)

// Transfer records one register access on a FakeChip.
type Transfer struct {
	At    time.Time
	Write bool
	Addr  uint8
	Data  []byte // bytes written, or bytes returned after the turnaround byte
}

// FakeChip emulates the front end's register file for tests. A write that
// sets the one-shot bit while bias is on latches Code into the RTD registers
// and FaultStatus into the status register; the one-shot and fault-clear
// bits self-clear as on the real part.
type FakeChip struct {
	mu sync.Mutex

	// Code is the 15-bit result produced by the next conversion.
	Code uint16
	// FaultBit sets bit 0 of the RTD register on the next conversion.
	FaultBit bool
	// FaultStatus is latched into the status register on conversion.
	FaultStatus uint8
	// TxError, if set, is returned by every Tx.
	TxError error
	// FailAfter, if > 0, makes Tx fail once that many transfers succeeded.
	FailAfter int
	// Clock, if set, timestamps the transfer log.
	Clock clock.Clock

	Regs [8]byte
	Log  []Transfer
	txs  int
}

// NewFakeChip creates a chip that converts to code.
func NewFakeChip(code uint16) *FakeChip {
	return &FakeChip{Code: code}
}

// SetResistance sets Code from a resistance and reference resistor.
func (f *FakeChip) SetResistance(r, rref float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Code = uint16(r/rref*FullScale + 0.5)
}

// Tx implements Conn.
func (f *FakeChip) Tx(w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.TxError != nil {
		return f.TxError
	}
	if f.FailAfter > 0 && f.txs >= f.FailAfter {
		return errFakeBus
	}
	f.txs++

	var at time.Time
	if f.Clock != nil {
		at = f.Clock.Now()
	}

	addr := w[0]
	if addr&writeFlag != 0 {
		base := addr &^ writeFlag
		data := append([]byte(nil), w[1:]...)
		for i, b := range data {
			f.store(base+uint8(i), b)
		}
		f.Log = append(f.Log, Transfer{At: at, Write: true, Addr: base, Data: data})
		return nil
	}

	r[0] = 0xFF
	for i := 1; i < len(w); i++ {
		r[i] = f.Regs[(int(addr)+i-1)%len(f.Regs)]
	}
	f.Log = append(f.Log, Transfer{At: at, Addr: addr, Data: append([]byte(nil), r[1:]...)})
	return nil
}

// ConfigWrites returns the values written to the config register, in order.
func (f *FakeChip) ConfigWrites() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint8
	for _, t := range f.Log {
		if t.Write && t.Addr == regConfig {
			out = append(out, t.Data[0])
		}
	}
	return out
}

// store must be called with f.mu held.
func (f *FakeChip) store(addr, v uint8) {
	if int(addr) >= len(f.Regs) {
		return
	}
	if addr != regConfig {
		f.Regs[addr] = v
		return
	}
	if v&configFaultStat != 0 {
		f.Regs[regFaultStatus] = 0
		v &^= configFaultStat
	}
	if v&config1Shot != 0 && v&configBias != 0 {
		reg := f.Code << 1
		if f.FaultBit {
			reg |= 1
		}
		f.Regs[regRTDMSB] = byte(reg >> 8)
		f.Regs[regRTDLSB] = byte(reg)
		f.Regs[regFaultStatus] = f.FaultStatus
		v &^= config1Shot
	}
	f.Regs[regConfig] = v
}

var errFakeBus = errors.New("fake bus failure")
