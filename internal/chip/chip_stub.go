//go:build !linux

package chip

import (
	"fmt"

	"mtech-gpio/internal/gpio"
)

// Stub implementation for non-Linux platforms.
type Chip struct{}

var _ gpio.Chip = (*Chip)(nil)

func Open(index int, consumer string) (*Chip, error) {
	return nil, fmt.Errorf("chip: gpio unsupported on this platform")
}

func OpenPath(path, consumer string) (*Chip, error) {
	return nil, fmt.Errorf("chip: gpio unsupported on this platform")
}

func (c *Chip) Path() string { return "" }

func (c *Chip) ClaimOutput(pin int) error                { return fmt.Errorf("chip: gpio unsupported") }
func (c *Chip) ClaimInput(pin int, pull gpio.Pull) error { return fmt.Errorf("chip: gpio unsupported") }
func (c *Chip) Release(pin int) error                    { return fmt.Errorf("chip: gpio unsupported") }
func (c *Chip) Write(pin int, level gpio.Level) error    { return fmt.Errorf("chip: gpio unsupported") }
func (c *Chip) Read(pin int) (gpio.Level, error)         { return gpio.Low, fmt.Errorf("chip: gpio unsupported") }
func (c *Chip) Close() error                             { return nil }
