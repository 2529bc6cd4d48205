// Package gpio drives the relay outputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Output is a single relay line.
type Output interface {
	// On energizes the relay (logical high; active-low boards are inverted
	// by the implementation).
	On() error
	// Off de-energizes the relay.
	Off() error
}

// Default line assignments (BCM numbering).
const (
	DefaultPinAuger   = 22
	DefaultPinFan     = 18
	DefaultPinIgniter = 4
)
