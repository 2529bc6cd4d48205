package rtd

import (
	"fmt"
	"strings"
)

// TransportError reports a failed register transfer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rtd: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SensorFaultError reports fault-status bits set after a clean transfer.
type SensorFaultError struct {
	Status uint8
}

func (e *SensorFaultError) Error() string {
	faults := e.Faults()
	if len(faults) == 0 {
		return fmt.Sprintf("rtd: fault status 0x%02x", e.Status)
	}
	return fmt.Sprintf("rtd: fault status 0x%02x (%s)", e.Status, strings.Join(faults, ", "))
}

// Faults names each fault bit that is set.
func (e *SensorFaultError) Faults() []string {
	var out []string
	for _, f := range faultNames {
		if e.Status&f.bit != 0 {
			out = append(out, f.name)
		}
	}
	return out
}
