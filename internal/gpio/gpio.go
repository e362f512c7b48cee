// Package gpio is a small procedural GPIO layer: pin numbering, pin claims,
// digital reads and writes, and a software PWM generator per pin.
//
// All state lives in a Controller. The hardware side is reached only through
// the Chip interface, implemented for Linux by package chip.
package gpio

import (
	"fmt"
	"strings"
)

// Level describes the binary state of a GPIO pin: either LOW or HIGH.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "in"
	case Output:
		return "out"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

func (d Direction) valid() bool { return d == Input || d == Output }

// ParseDirection accepts "in"/"input" and "out"/"output".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "input":
		return Input, nil
	case "out", "output":
		return Output, nil
	default:
		return 0, fmt.Errorf("gpio: direction %q: %w", s, ErrInvalidArgument)
	}
}

// Pull is the bias resistor configuration of an input pin.
type Pull int

const (
	PullNone Pull = iota
	PullDown
	PullUp
)

func (p Pull) String() string {
	switch p {
	case PullNone:
		return "none"
	case PullDown:
		return "down"
	case PullUp:
		return "up"
	default:
		return fmt.Sprintf("Pull(%d)", int(p))
	}
}

func (p Pull) valid() bool { return p >= PullNone && p <= PullUp }

// ParsePull accepts "", "none"/"off", "down" and "up".
func ParsePull(s string) (Pull, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return PullNone, nil
	case "down":
		return PullDown, nil
	case "up":
		return PullUp, nil
	default:
		return 0, fmt.Errorf("gpio: pull %q: %w", s, ErrInvalidArgument)
	}
}

// Chip is the chip access layer the Controller drives. Pins are canonical
// line offsets.
//
// Write and Read are called concurrently from PWM goroutines and must be
// safe for concurrent use. Claiming a line that is already claimed should
// fail rather than silently succeed.
type Chip interface {
	ClaimOutput(pin int) error
	ClaimInput(pin int, pull Pull) error
	Release(pin int) error
	Write(pin int, level Level) error
	Read(pin int) (Level, error)
	Close() error
}
