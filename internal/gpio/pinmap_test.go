package gpio

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMapPin_LogicalIsIdentity(t *testing.T) {
	for pin := 0; pin < 64; pin++ {
		got, err := MapPin(pin, Logical)
		if err != nil {
			t.Fatalf("MapPin(%d) err=%v", pin, err)
		}
		if got != pin {
			t.Fatalf("MapPin(%d)=%d want %d", pin, got, pin)
		}
	}
}

func TestMapPin_PhysicalIsBijection(t *testing.T) {
	pins := PhysicalPins()
	if len(pins) != 17 {
		t.Fatalf("len(PhysicalPins())=%d want 17", len(pins))
	}
	seen := make(map[int]int)
	for _, p := range pins {
		got, err := MapPin(p, Physical)
		if err != nil {
			t.Fatalf("MapPin(%d) err=%v", p, err)
		}
		if prev, dup := seen[got]; dup {
			t.Fatalf("header pins %d and %d both map to %d", prev, p, got)
		}
		seen[got] = p
	}
}

func TestMapPin_PhysicalKnownPins(t *testing.T) {
	want := map[int]int{7: 4, 11: 17, 12: 18, 13: 27, 29: 5, 35: 19, 40: 21}
	got := make(map[int]int)
	for p := range want {
		c, err := MapPin(p, Physical)
		if err != nil {
			t.Fatalf("MapPin(%d) err=%v", p, err)
		}
		got[p] = c
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestMapPin_PhysicalRejectsNonGPIOPins(t *testing.T) {
	// Power rails, grounds, ID EEPROM and off-header positions.
	for _, p := range []int{0, 1, 2, 4, 6, 9, 27, 28, 39, 41} {
		if _, err := MapPin(p, Physical); !errors.Is(err, ErrInvalidPin) {
			t.Fatalf("MapPin(%d) err=%v want ErrInvalidPin", p, err)
		}
	}
}

func TestMapPin_NegativePin(t *testing.T) {
	for _, s := range []Scheme{Logical, Physical} {
		if _, err := MapPin(-1, s); !errors.Is(err, ErrInvalidPin) {
			t.Fatalf("scheme=%v err=%v want ErrInvalidPin", s, err)
		}
	}
}

func TestMapPin_UnknownScheme(t *testing.T) {
	if _, err := MapPin(3, Scheme(9)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v want ErrInvalidArgument", err)
	}
}

func TestParseScheme(t *testing.T) {
	cases := map[string]Scheme{"bcm": Logical, "BCM": Logical, "logical": Logical, "board": Physical, " Physical ": Physical}
	for in, want := range cases {
		got, err := ParseScheme(in)
		if err != nil {
			t.Fatalf("ParseScheme(%q) err=%v", in, err)
		}
		if got != want {
			t.Fatalf("ParseScheme(%q)=%v want %v", in, got, want)
		}
	}
	if _, err := ParseScheme("wiringpi"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v want ErrInvalidArgument", err)
	}
}

func TestParseDirectionAndPull(t *testing.T) {
	if d, err := ParseDirection("OUT"); err != nil || d != Output {
		t.Fatalf("ParseDirection(OUT)=%v,%v", d, err)
	}
	if d, err := ParseDirection("input"); err != nil || d != Input {
		t.Fatalf("ParseDirection(input)=%v,%v", d, err)
	}
	if _, err := ParseDirection("both"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v want ErrInvalidArgument", err)
	}
	if p, err := ParsePull(""); err != nil || p != PullNone {
		t.Fatalf("ParsePull(\"\")=%v,%v", p, err)
	}
	if p, err := ParsePull("up"); err != nil || p != PullUp {
		t.Fatalf("ParsePull(up)=%v,%v", p, err)
	}
	if _, err := ParsePull("sideways"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v want ErrInvalidArgument", err)
	}
}
