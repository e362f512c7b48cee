//go:build linux

package chip

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	"mtech-gpio/internal/gpio"
)

// Chip drives lines of one GPIO character device (/dev/gpiochipN) through
// the Linux GPIO uAPI (libgpiod compatible).
//
// Write and Read may be called concurrently; claims and releases take an
// exclusive lock.
type Chip struct {
	path     string
	consumer string

	mu    sync.RWMutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

var _ gpio.Chip = (*Chip)(nil)

var newChipFn = func(path string) (*gpiocdev.Chip, error) {
	return gpiocdev.NewChip(path)
}

// Open opens /dev/gpiochip<index>. On a Pi 5 the header GPIOs are on
// gpiochip4 for older kernels and gpiochip0 for newer ones.
func Open(index int, consumer string) (*Chip, error) {
	if index < 0 {
		return nil, fmt.Errorf("chip: invalid chip index %d", index)
	}
	return OpenPath(fmt.Sprintf("/dev/gpiochip%d", index), consumer)
}

// OpenPath opens the GPIO character device at path. Lines are requested
// with consumer as their label.
func OpenPath(path, consumer string) (*Chip, error) {
	path = filepath.Clean(path)
	if err := checkCharDevice(path); err != nil {
		return nil, err
	}
	if consumer == "" {
		consumer = DefaultConsumer
	}
	c, err := newChipFn(path)
	if err != nil {
		return nil, fmt.Errorf("chip: open %s: %w", path, err)
	}
	return &Chip{
		path:     path,
		consumer: consumer,
		chip:     c,
		lines:    make(map[int]*gpiocdev.Line),
	}, nil
}

func checkCharDevice(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("chip: stat %s: %w", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return fmt.Errorf("chip: %s is not a character device", path)
	}
	return nil
}

func (c *Chip) Path() string { return c.path }

func (c *Chip) request(pin int, opts ...gpiocdev.LineReqOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chip == nil {
		return fmt.Errorf("chip: %s is closed", c.path)
	}
	if _, ok := c.lines[pin]; ok {
		return fmt.Errorf("chip: line %d already requested", pin)
	}
	opts = append(opts, gpiocdev.WithConsumer(c.consumer))
	line, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return fmt.Errorf("chip: request line %d on %s: %w", pin, c.path, err)
	}
	c.lines[pin] = line
	return nil
}

// ClaimOutput requests pin as an output driven LOW.
func (c *Chip) ClaimOutput(pin int) error {
	return c.request(pin, gpiocdev.AsOutput(0))
}

// ClaimInput requests pin as an input with the given bias.
func (c *Chip) ClaimInput(pin int, pull gpio.Pull) error {
	bias, err := biasOption(pull)
	if err != nil {
		return err
	}
	return c.request(pin, gpiocdev.AsInput, bias)
}

func biasOption(pull gpio.Pull) (gpiocdev.LineReqOption, error) {
	switch pull {
	case gpio.PullNone:
		return gpiocdev.WithBiasDisabled, nil
	case gpio.PullDown:
		return gpiocdev.WithPullDown, nil
	case gpio.PullUp:
		return gpiocdev.WithPullUp, nil
	default:
		return nil, fmt.Errorf("chip: unsupported pull %v", pull)
	}
}

func (c *Chip) Release(pin int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[pin]
	if !ok {
		return fmt.Errorf("chip: line %d not requested", pin)
	}
	delete(c.lines, pin)
	return line.Close()
}

func (c *Chip) line(pin int) (*gpiocdev.Line, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	line, ok := c.lines[pin]
	if !ok {
		return nil, fmt.Errorf("chip: line %d not requested", pin)
	}
	return line, nil
}

func (c *Chip) Write(pin int, level gpio.Level) error {
	line, err := c.line(pin)
	if err != nil {
		return err
	}
	v := 0
	if level {
		v = 1
	}
	return line.SetValue(v)
}

func (c *Chip) Read(pin int) (gpio.Level, error) {
	line, err := c.line(pin)
	if err != nil {
		return gpio.Low, err
	}
	v, err := line.Value()
	if err != nil {
		return gpio.Low, err
	}
	return v != 0, nil
}

// Close releases any lines still requested and closes the device.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chip == nil {
		return nil
	}
	for pin, line := range c.lines {
		_ = line.Close()
		delete(c.lines, pin)
	}
	err := c.chip.Close()
	c.chip = nil
	return err
}
