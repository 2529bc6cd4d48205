//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Bank owns a GPIO chip and the output lines requested from it.
type Bank struct {
	chip      *gpiocdev.Chip
	activeLow bool
	lines     []*RealOutput
}

// RealOutput is a relay on a GPIO character-device line.
type RealOutput struct {
	pin  int
	line *gpiocdev.Line
}

// OpenBank opens the named chip (e.g. "gpiochip0").
func OpenBank(chipName string, activeLow bool) (*Bank, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Bank{chip: chip, activeLow: activeLow}, nil
}

// Output requests pin as an output, initially off.
func (b *Bank) Output(pin int) (*RealOutput, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if b.activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := b.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request relay pin %d: %w", pin, err)
	}
	out := &RealOutput{pin: pin, line: line}
	b.lines = append(b.lines, out)
	return out, nil
}

// On sets the line active.
func (o *RealOutput) On() error {
	if err := o.line.SetValue(1); err != nil {
		return fmt.Errorf("set pin %d on: %w", o.pin, err)
	}
	return nil
}

// Off sets the line inactive.
func (o *RealOutput) Off() error {
	if err := o.line.SetValue(0); err != nil {
		return fmt.Errorf("set pin %d off: %w", o.pin, err)
	}
	return nil
}

// Close drives every relay off and releases the lines.
// Lines are left as inputs biased to the relay-off level so the board stays
// de-energized across reboot.
func (b *Bank) Close() error {
	var errs []error

	bias := gpiocdev.WithPullDown
	if b.activeLow {
		bias = gpiocdev.WithPullUp
	}

	for _, out := range b.lines {
		if err := out.Off(); err != nil {
			errs = append(errs, err)
		}
		if err := out.line.Reconfigure(gpiocdev.AsInput, bias); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", out.pin, err))
		}
		if err := out.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", out.pin, err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
