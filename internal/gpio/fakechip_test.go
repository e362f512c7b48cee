package gpio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeWrite struct {
	Pin   int
	Level Level
}

// fakeChip is an in-memory Chip. It rejects double claims like the GPIO
// character device does, and flags overlapping writes to one line.
type fakeChip struct {
	mu        sync.Mutex
	claims    map[int]Claim
	levels    map[int]Level
	writes    []fakeWrite
	calls     []string
	writeErr  map[int]error
	claimErr  error
	closed    bool
	badWrites int

	writeDelay time.Duration
	active     map[int]int
	overlap    atomic.Bool
}

func newFakeChip() *fakeChip {
	return &fakeChip{
		claims:   make(map[int]Claim),
		levels:   make(map[int]Level),
		writeErr: make(map[int]error),
		active:   make(map[int]int),
	}
}

func (f *fakeChip) ClaimOutput(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	if _, ok := f.claims[pin]; ok {
		return fmt.Errorf("line %d busy", pin)
	}
	f.claims[pin] = Claim{Direction: Output}
	f.levels[pin] = Low
	f.calls = append(f.calls, fmt.Sprintf("claim %d out", pin))
	return nil
}

func (f *fakeChip) ClaimInput(pin int, pull Pull) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	if _, ok := f.claims[pin]; ok {
		return fmt.Errorf("line %d busy", pin)
	}
	f.claims[pin] = Claim{Direction: Input, Pull: pull}
	f.levels[pin] = Level(pull == PullUp)
	f.calls = append(f.calls, fmt.Sprintf("claim %d in %v", pin, pull))
	return nil
}

func (f *fakeChip) Release(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claims[pin]; !ok {
		return fmt.Errorf("line %d not claimed", pin)
	}
	delete(f.claims, pin)
	f.calls = append(f.calls, fmt.Sprintf("release %d", pin))
	return nil
}

func (f *fakeChip) Write(pin int, level Level) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.New("chip closed")
	}
	if err := f.writeErr[pin]; err != nil {
		f.mu.Unlock()
		return err
	}
	if cl, ok := f.claims[pin]; !ok || cl.Direction != Output {
		f.badWrites++
		f.mu.Unlock()
		return fmt.Errorf("line %d is not an output", pin)
	}
	f.active[pin]++
	if f.active[pin] > 1 {
		f.overlap.Store(true)
	}
	delay := f.writeDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[pin]--
	f.levels[pin] = level
	f.writes = append(f.writes, fakeWrite{Pin: pin, Level: level})
	return nil
}

func (f *fakeChip) Read(pin int) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claims[pin]; !ok {
		return Low, fmt.Errorf("line %d not claimed", pin)
	}
	return f.levels[pin], nil
}

func (f *fakeChip) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.calls = append(f.calls, "close")
	return nil
}

func (f *fakeChip) setWriteErr(pin int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr[pin] = err
}

func (f *fakeChip) writesFor(pin int) []Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Level
	for _, w := range f.writes {
		if w.Pin == pin {
			out = append(out, w.Level)
		}
	}
	return out
}

func (f *fakeChip) lastWrite(pin int) (Level, bool) {
	ws := f.writesFor(pin)
	if len(ws) == 0 {
		return Low, false
	}
	return ws[len(ws)-1], true
}

func (f *fakeChip) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestController(t *testing.T) (*Controller, *fakeChip) {
	t.Helper()
	fc := newFakeChip()
	c := NewController(fc, WithLogger(quietLogger()))
	t.Cleanup(func() { _ = c.ReleaseAll() })
	return c, fc
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}
