package argonone

import (
	"errors"
	"fmt"
)

// ErrSpeedOutOfRange is returned when a fan speed outside [0,100] is requested.
var ErrSpeedOutOfRange = errors.New("fan speed must be between 0 and 100")

var errSignalsClosed = errors.New("signal channel closed")

// ConnectionError means the daemon could not be reached at all.
// It is the only error that aborts the construction of a client.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("unable to connect to %s: %v", BusName, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError is a failed synchronous query.
type QueryError struct {
	Method string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed: %v", e.Method, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// CommandError is a control command that could not be delivered.
type CommandError struct {
	Method string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Method, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
