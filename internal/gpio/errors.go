package gpio

import "errors"

// Error kinds. Every error returned by this package wraps exactly one of
// these, so callers can discriminate with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidPin      = errors.New("invalid pin")
	ErrNotRunning      = errors.New("pwm not running")
	ErrResource        = errors.New("gpio resource error")
)

var errClosed = errors.New("controller closed")
