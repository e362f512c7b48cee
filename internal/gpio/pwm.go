package gpio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Software PWM frequency bounds. Above MaxFrequencyHz the period is shorter
// than a single line write; below MinFrequencyHz a period no longer fits a
// time.Duration comfortably.
const (
	MinFrequencyHz = 1e-3
	MaxFrequencyHz = 1e6
)

// PWMStatus is a point-in-time view of one PWM task.
type PWMStatus struct {
	Pin         int     `json:"pin"`
	FrequencyHz float64 `json:"frequency_hz"`
	DutyPercent float64 `json:"duty_percent"`
	Running     bool    `json:"running"`
	LastError   string  `json:"last_error,omitempty"`
}

type pwmParams struct {
	frequency float64
	duty      float64
}

// pwmTask is shared between its goroutine, which reads params once per
// cycle, and the callers that change or stop it.
type pwmTask struct {
	pin int

	mu     sync.Mutex
	params pwmParams
	err    error

	stop chan struct{}
	done chan struct{}
}

func newPWMTask(pin int, frequency, duty float64) *pwmTask {
	return &pwmTask{
		pin:    pin,
		params: pwmParams{frequency: frequency, duty: duty},
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (t *pwmTask) snapshot() pwmParams {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.params
}

func (t *pwmTask) update(fn func(*pwmParams)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.params)
}

func (t *pwmTask) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

func (t *pwmTask) lastErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *pwmTask) exited() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *pwmTask) status() PWMStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := PWMStatus{
		Pin:         t.pin,
		FrequencyHz: t.params.frequency,
		DutyPercent: t.params.duty,
		Running:     !t.exited(),
	}
	if t.err != nil {
		st.LastError = t.err.Error()
	}
	return st
}

func checkFrequency(op string, pin int, hz float64) error {
	if math.IsNaN(hz) || hz < MinFrequencyHz || hz > MaxFrequencyHz {
		return fmt.Errorf("gpio: %s pin %d: frequency %v Hz: %w", op, pin, hz, ErrInvalidArgument)
	}
	return nil
}

func checkDuty(op string, pin int, percent float64) error {
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return fmt.Errorf("gpio: %s pin %d: duty cycle %v%%: %w", op, pin, percent, ErrInvalidArgument)
	}
	return nil
}

// StartPWM starts a software PWM signal on pin. An unclaimed pin is claimed
// as an output first; a pin claimed as an input is rejected. If pin already
// runs PWM, the old task is stopped and its final LOW written before the new
// task starts.
func (c *Controller) StartPWM(pin int, frequencyHz, dutyPercent float64) error {
	if err := checkFrequency("start pwm", pin, frequencyHz); err != nil {
		return err
	}
	if err := checkDuty("start pwm", pin, dutyPercent); err != nil {
		return err
	}
	canonical, err := c.mapPin(pin)
	if err != nil {
		return err
	}

	c.pwmMu.Lock()
	defer c.pwmMu.Unlock()

	if err := c.stopLocked(canonical); err != nil {
		c.log.WithField("pin", canonical).WithError(err).Warn("previous pwm task ended with error")
	}

	c.mu.RLock()
	claim, claimed := c.claims[canonical]
	c.mu.RUnlock()
	if claimed && claim.Direction != Output {
		return fmt.Errorf("gpio: start pwm pin %d: pin is set up as %v: %w", pin, claim.Direction, ErrInvalidArgument)
	}
	if !claimed {
		if err := c.claimLocked(canonical, Output, PullNone); err != nil {
			return err
		}
	}

	t := newPWMTask(canonical, frequencyHz, dutyPercent)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return closedErr()
	}
	c.tasks[canonical] = t
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.runPWM(t)
	}()

	c.log.WithFields(logrus.Fields{
		"pin":          canonical,
		"frequency_hz": frequencyHz,
		"duty_percent": dutyPercent,
	}).Debug("pwm started")
	return nil
}

// runPWM toggles t.pin until t.stop is closed. Edges are scheduled against
// the cycle start so the time spent in a write does not add up across
// cycles. Parameter changes are picked up at the next cycle start.
func (c *Controller) runPWM(t *pwmTask) {
	defer close(t.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	wait := func(deadline time.Time) bool {
		d := time.Until(deadline)
		if d <= 0 {
			select {
			case <-t.stop:
				return false
			default:
				return true
			}
		}
		timer.Reset(d)
		select {
		case <-timer.C:
			return true
		case <-t.stop:
			return false
		}
	}

	start := time.Now()
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		p := t.snapshot()
		period := time.Duration(float64(time.Second) / p.frequency)
		on := time.Duration(float64(period) * p.duty / 100)

		if on > 0 {
			if err := c.writeLine(t.pin, High); err != nil {
				c.pwmFailed(t, err)
				return
			}
			if !wait(start.Add(on)) {
				return
			}
		}
		if on < period {
			if err := c.writeLine(t.pin, Low); err != nil {
				c.pwmFailed(t, err)
				return
			}
			if !wait(start.Add(period)) {
				return
			}
		}

		start = start.Add(period)
		// More than a whole period behind: resync rather than burst.
		if now := time.Now(); now.Sub(start) > period {
			start = now
		}
	}
}

func (c *Controller) pwmFailed(t *pwmTask, err error) {
	t.fail(err)
	c.log.WithField("pin", t.pin).WithError(err).Warn("pwm task stopped on write failure")
}

func (c *Controller) liveTask(op string, pin int) (*pwmTask, error) {
	canonical, err := c.mapPin(pin)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	t := c.tasks[canonical]
	c.mu.RUnlock()
	if t == nil {
		return nil, fmt.Errorf("gpio: %s pin %d: %w", op, pin, ErrNotRunning)
	}
	if t.exited() {
		return nil, fmt.Errorf("gpio: %s pin %d: %w (task failed: %v)", op, pin, ErrNotRunning, t.lastErr())
	}
	return t, nil
}

// SetPWMDuty changes the duty cycle of a running task from its next cycle.
func (c *Controller) SetPWMDuty(pin int, dutyPercent float64) error {
	if err := checkDuty("set pwm duty", pin, dutyPercent); err != nil {
		return err
	}
	t, err := c.liveTask("set pwm duty", pin)
	if err != nil {
		return err
	}
	t.update(func(p *pwmParams) { p.duty = dutyPercent })
	return nil
}

// SetPWMFrequency changes the frequency of a running task from its next
// cycle.
func (c *Controller) SetPWMFrequency(pin int, frequencyHz float64) error {
	if err := checkFrequency("set pwm frequency", pin, frequencyHz); err != nil {
		return err
	}
	t, err := c.liveTask("set pwm frequency", pin)
	if err != nil {
		return err
	}
	t.update(func(p *pwmParams) { p.frequency = frequencyHz })
	return nil
}

// StopPWM stops the PWM task on pin, waits for it to exit and leaves the pin
// LOW. Stopping a pin without a task is a no-op. The returned error carries
// any write failure that ended the task early.
func (c *Controller) StopPWM(pin int) error {
	canonical, err := c.mapPin(pin)
	if err != nil {
		return err
	}
	c.pwmMu.Lock()
	defer c.pwmMu.Unlock()
	return c.stopLocked(canonical)
}

// StopAllPWM stops every PWM task.
func (c *Controller) StopAllPWM() error {
	c.pwmMu.Lock()
	defer c.pwmMu.Unlock()
	return c.stopAllLocked()
}

func (c *Controller) stopAllLocked() error {
	c.mu.RLock()
	pins := make([]int, 0, len(c.tasks))
	for pin := range c.tasks {
		pins = append(pins, pin)
	}
	c.mu.RUnlock()
	sort.Ints(pins)

	var errs []error
	for _, pin := range pins {
		if err := c.stopLocked(pin); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// stopLocked must be called with pwmMu held and c.mu not held: the task
// needs c.mu to finish its last write.
func (c *Controller) stopLocked(pin int) error {
	c.mu.RLock()
	t := c.tasks[pin]
	c.mu.RUnlock()
	if t == nil {
		return nil
	}

	close(t.stop)
	<-t.done

	var errs []error
	if err := t.lastErr(); err != nil {
		errs = append(errs, err)
	}
	if err := c.writeLine(pin, Low); err != nil {
		errs = append(errs, err)
	}

	c.mu.Lock()
	delete(c.tasks, pin)
	c.mu.Unlock()

	c.log.WithField("pin", pin).Debug("pwm stopped")
	return errors.Join(errs...)
}

// PWMStatus reports the task running on pin, if any.
func (c *Controller) PWMStatus(pin int) (PWMStatus, bool) {
	canonical, err := c.mapPin(pin)
	if err != nil {
		return PWMStatus{}, false
	}
	c.mu.RLock()
	t := c.tasks[canonical]
	c.mu.RUnlock()
	if t == nil {
		return PWMStatus{}, false
	}
	return t.status(), true
}

// PWMTasks reports every PWM task, ordered by canonical pin.
func (c *Controller) PWMTasks() []PWMStatus {
	c.mu.RLock()
	tasks := make([]*pwmTask, 0, len(c.tasks))
	for _, t := range c.tasks {
		tasks = append(tasks, t)
	}
	c.mu.RUnlock()

	out := make([]PWMStatus, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pin < out[j].Pin })
	return out
}

// PWMErr returns the write failure that ended the task on pin, or nil if the
// task is healthy or absent.
func (c *Controller) PWMErr(pin int) error {
	canonical, err := c.mapPin(pin)
	if err != nil {
		return err
	}
	c.mu.RLock()
	t := c.tasks[canonical]
	c.mu.RUnlock()
	if t == nil {
		return nil
	}
	return t.lastErr()
}
