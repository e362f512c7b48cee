package gpio

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Claim records how a canonical pin is currently held.
type Claim struct {
	Direction Direction
	Pull      Pull
}

// Controller owns one chip and everything done with it: the numbering
// scheme, the set of claimed pins and the running PWM tasks.
//
// Methods are safe for concurrent use. Writing to a pin that is running PWM
// races with its task; the last write wins.
type Controller struct {
	chip Chip
	log  logrus.FieldLogger

	mu     sync.RWMutex
	scheme Scheme
	claims map[int]Claim
	tasks  map[int]*pwmTask
	closed bool

	// pwmMu serialises PWM lifecycle changes and claim changes, so a pin is
	// never driven by two tasks and never re-claimed under a running task.
	pwmMu sync.Mutex
	wg    sync.WaitGroup
}

type Option func(*Controller)

// WithLogger sets the logger used for PWM lifecycle events. The default is
// the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// NewController returns a Controller driving chip with the Logical scheme
// selected. The Controller takes ownership of chip and closes it in
// ReleaseAll.
func NewController(chip Chip, opts ...Option) *Controller {
	c := &Controller{
		chip:   chip,
		log:    logrus.StandardLogger(),
		scheme: Logical,
		claims: make(map[int]Claim),
		tasks:  make(map[int]*pwmTask),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetNumberingScheme changes how pin numbers passed to later calls are
// interpreted. Running PWM tasks keep the line they were started on.
func (c *Controller) SetNumberingScheme(scheme Scheme) error {
	if !scheme.valid() {
		return fmt.Errorf("gpio: numbering scheme %v: %w", scheme, ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheme = scheme
	return nil
}

func (c *Controller) NumberingScheme() Scheme {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scheme
}

func closedErr() error {
	return fmt.Errorf("gpio: %w: %w", ErrResource, errClosed)
}

func (c *Controller) mapPin(pin int) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, closedErr()
	}
	return MapPin(pin, c.scheme)
}

// Setup claims pin as an input with the given pull, or as an output (pull is
// ignored). Setting up a pin that is already claimed stops any PWM running on
// it, releases the line and claims it again with the new configuration.
func (c *Controller) Setup(pin int, dir Direction, pull Pull) error {
	if !dir.valid() {
		return fmt.Errorf("gpio: setup pin %d: direction %v: %w", pin, dir, ErrInvalidArgument)
	}
	if dir == Input && !pull.valid() {
		return fmt.Errorf("gpio: setup pin %d: pull %v: %w", pin, pull, ErrInvalidArgument)
	}
	canonical, err := c.mapPin(pin)
	if err != nil {
		return err
	}

	c.pwmMu.Lock()
	defer c.pwmMu.Unlock()
	if err := c.stopLocked(canonical); err != nil {
		c.log.WithField("pin", canonical).WithError(err).Warn("pwm task ended with error before re-setup")
	}
	return c.claimLocked(canonical, dir, pull)
}

// claimLocked must be called with pwmMu held.
func (c *Controller) claimLocked(pin int, dir Direction, pull Pull) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return closedErr()
	}

	if _, ok := c.claims[pin]; ok {
		if err := c.chip.Release(pin); err != nil {
			return fmt.Errorf("gpio: release pin %d before re-claim: %w: %w", pin, ErrResource, err)
		}
		delete(c.claims, pin)
	}

	var err error
	if dir == Output {
		pull = PullNone
		err = c.chip.ClaimOutput(pin)
	} else {
		err = c.chip.ClaimInput(pin, pull)
	}
	if err != nil {
		return fmt.Errorf("gpio: claim pin %d as %v: %w: %w", pin, dir, ErrResource, err)
	}
	c.claims[pin] = Claim{Direction: dir, Pull: pull}
	return nil
}

// Claims returns a copy of the claim set keyed by canonical pin.
func (c *Controller) Claims() map[int]Claim {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int]Claim, len(c.claims))
	for pin, cl := range c.claims {
		out[pin] = cl
	}
	return out
}

// Write drives pin to level. The claim state is not checked; writing to a
// pin that is not an output fails with whatever the chip reports.
func (c *Controller) Write(pin int, level Level) error {
	canonical, err := c.mapPin(pin)
	if err != nil {
		return err
	}
	return c.writeLine(canonical, level)
}

// Read returns the current level of pin.
func (c *Controller) Read(pin int) (Level, error) {
	canonical, err := c.mapPin(pin)
	if err != nil {
		return Low, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return Low, closedErr()
	}
	level, err := c.chip.Read(canonical)
	if err != nil {
		return Low, fmt.Errorf("gpio: read pin %d: %w: %w", canonical, ErrResource, err)
	}
	return level, nil
}

// writeLine is the single write path shared by Write and the PWM tasks.
func (c *Controller) writeLine(pin int, level Level) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return closedErr()
	}
	if err := c.chip.Write(pin, level); err != nil {
		return fmt.Errorf("gpio: write pin %d %v: %w: %w", pin, level, ErrResource, err)
	}
	return nil
}

// ReleaseAll stops every PWM task, releases every claimed pin and closes the
// chip. It is safe to call with nothing claimed, and calling it again is a
// no-op. Every other method fails once it has run.
func (c *Controller) ReleaseAll() error {
	c.pwmMu.Lock()
	defer c.pwmMu.Unlock()

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil
	}

	var errs []error
	if err := c.stopAllLocked(); err != nil {
		errs = append(errs, err)
	}

	c.mu.Lock()
	pins := make([]int, 0, len(c.claims))
	for pin := range c.claims {
		pins = append(pins, pin)
	}
	sort.Ints(pins)
	for _, pin := range pins {
		if err := c.chip.Release(pin); err != nil {
			errs = append(errs, fmt.Errorf("gpio: release pin %d: %w: %w", pin, ErrResource, err))
		}
		delete(c.claims, pin)
	}
	c.closed = true
	if err := c.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("gpio: close chip: %w: %w", ErrResource, err))
	}
	c.mu.Unlock()

	c.wg.Wait()
	return errors.Join(errs...)
}
