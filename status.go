package kobj

import (
	"errors"
	"strconv"
)

var (
	// ErrTimeout is returned when a blocking down is ended by its timer
	// rather than by an up.
	ErrTimeout = errors.New("kobj: timeout")

	// ErrOverflow is returned by up on a saturated semaphore that has no
	// waiter.
	ErrOverflow = errors.New("kobj: counter overflow")

	// ErrBadHandle is returned for a handle that names no live object.
	ErrBadHandle = errors.New("kobj: bad handle")
)

// Status is the terminal status delivered to a context when it is
// resumed.
type Status uint32

const (
	StatusSuccess Status = iota
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusTimeout:
		return "TIMEOUT"
	}
	return "Status(" + strconv.FormatUint(uint64(s), 10) + ")"
}

// Err maps the status to the error a blocking call reports for it.
func (s Status) Err() error {
	if s == StatusTimeout {
		return ErrTimeout
	}
	return nil
}
