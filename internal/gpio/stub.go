//go:build !linux

package gpio

import "errors"

// Bank is not available on non-Linux platforms.
type Bank struct{}

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// OpenBank returns an error on non-Linux platforms.
func OpenBank(chipName string, activeLow bool) (*Bank, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Output is not implemented on non-Linux platforms.
func (b *Bank) Output(pin int) (*RealOutput, error) {
	return nil, errors.New("gpio: not supported")
}

// On is not implemented on non-Linux platforms.
func (o *RealOutput) On() error {
	return errors.New("gpio: not supported")
}

// Off is not implemented on non-Linux platforms.
func (o *RealOutput) Off() error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *Bank) Close() error {
	return nil
}
