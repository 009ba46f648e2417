package handle

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/kolo/xmlrpc"
)

// ConnRefusedError is a transport-level connection-refused condition.
// It is distinguished from other transport failures so the console can
// print a specific diagnostic and keep going.
type ConnRefusedError struct {
	Addr string
	Err  error
}

func (e *ConnRefusedError) Error() string {
	return fmt.Sprintf("connection to %s refused", e.Addr)
}

func (e *ConnRefusedError) Unwrap() error { return e.Err }

// Fault is a well-formed remote error response.
type Fault struct {
	Code int
	Text string
}

func (e *Fault) Error() string {
	return fmt.Sprintf("fault %d: %s", e.Code, e.Text)
}

// TransportError is a lower-level transport failure: timeouts, broken
// connections, malformed responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// classifyCallError maps a raw transport error onto the console's error
// taxonomy.
func classifyCallError(addr, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &ConnRefusedError{Addr: addr, Err: err}
	}
	var fault xmlrpc.FaultError
	if errors.As(err, &fault) {
		return &Fault{Code: fault.Code, Text: fault.String}
	}
	return &TransportError{Op: op, Err: err}
}
