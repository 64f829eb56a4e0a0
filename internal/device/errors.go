package device

import (
	"errors"
	"fmt"
	"net"
)

// AppError is a well-formed device response carrying an "error" field: the
// device understood the request and refused it.
type AppError struct {
	Domain  string
	Message string
}

func (e *AppError) Error() string { return e.Message }

// TransportError means no usable response was produced. StatusText is the
// short text shown to the operator.
type TransportError struct {
	Op         string
	StatusCode int
	StatusText string
	Err        error
}

func (e *TransportError) Error() string { return e.StatusText }

func (e *TransportError) Unwrap() error { return e.Err }

// Detail is the full diagnostic form, for logs.
func (e *TransportError) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.StatusText, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.StatusText)
}

func networkError(op string, err error) *TransportError {
	text := "network error"
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		text = "timeout"
	} else {
		var oe *net.OpError
		if errors.As(err, &oe) && oe.Err != nil {
			text = oe.Err.Error()
		}
	}
	return &TransportError{Op: op, StatusText: text, Err: err}
}
