package gpio

import (
	"fmt"
	"sort"
	"strings"
)

// Scheme selects how raw pin numbers are interpreted.
type Scheme int

const (
	// Logical pins are the chip's own line offsets (BCM numbering on a Pi).
	Logical Scheme = iota
	// Physical pins are positions on the 40-pin header (BOARD numbering).
	Physical
)

func (s Scheme) String() string {
	switch s {
	case Logical:
		return "bcm"
	case Physical:
		return "board"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

func (s Scheme) valid() bool { return s == Logical || s == Physical }

// ParseScheme accepts "bcm"/"logical" and "board"/"physical".
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bcm", "logical":
		return Logical, nil
	case "board", "physical":
		return Physical, nil
	default:
		return 0, fmt.Errorf("gpio: numbering scheme %q: %w", s, ErrInvalidArgument)
	}
}

// physicalToLogical maps the GPIO-capable positions of the 40-pin header to
// BCM line offsets. Power, ground and the ID EEPROM pins are absent.
var physicalToLogical = map[int]int{
	7:  4,
	11: 17,
	12: 18,
	13: 27,
	15: 22,
	16: 23,
	18: 24,
	22: 25,
	29: 5,
	31: 6,
	32: 12,
	33: 13,
	35: 19,
	36: 16,
	37: 26,
	38: 20,
	40: 21,
}

// MapPin translates pin under scheme into a canonical line offset.
func MapPin(pin int, scheme Scheme) (int, error) {
	if pin < 0 {
		return 0, fmt.Errorf("gpio: pin %d: %w", pin, ErrInvalidPin)
	}
	switch scheme {
	case Logical:
		return pin, nil
	case Physical:
		canonical, ok := physicalToLogical[pin]
		if !ok {
			return 0, fmt.Errorf("gpio: header pin %d is not a GPIO: %w", pin, ErrInvalidPin)
		}
		return canonical, nil
	default:
		return 0, fmt.Errorf("gpio: numbering scheme %v: %w", scheme, ErrInvalidArgument)
	}
}

// PhysicalPins returns the header positions that map to a GPIO line, in
// ascending order.
func PhysicalPins() []int {
	pins := make([]int, 0, len(physicalToLogical))
	for p := range physicalToLogical {
		pins = append(pins, p)
	}
	sort.Ints(pins)
	return pins
}
