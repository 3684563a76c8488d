package pubsub

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// Error categories. Use errors.Is to classify a returned error:
//
//	switch {
//	case errors.Is(err, pubsub.ErrConnection):
//	    // reconnect and resume
//	case errors.Is(err, pubsub.ErrProtocol):
//	    // abandon and rebuild the subscriber
//	case errors.Is(err, pubsub.ErrUsage):
//	    // programming error
//	}
var (
	// ErrConnection indicates the connection could not send or read.
	ErrConnection = errors.New("pubsub: connection error")

	// ErrProtocol indicates a frame that does not match any known event
	// shape, or an acknowledgement that disagrees with the tracked state.
	ErrProtocol = errors.New("pubsub: protocol error")

	// ErrUsage indicates an invalid call. It has no side effects.
	ErrUsage = errors.New("pubsub: usage error")

	// ErrClosed is wrapped by ConnectionError after Close was called.
	ErrClosed = errors.New("pubsub: subscriber closed")

	// ErrNoDialer is returned by Reconnect when the Subscriber was built
	// without a dialer.
	ErrNoDialer = fmt.Errorf("%w: no dialer configured", ErrUsage)
)

// ConnectionError reports a failed send, flush, read or dial.
type ConnectionError struct {
	// Op is the failed operation: "dial", "send", "flush" or "receive".
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("pubsub: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConnection) true for every ConnectionError.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// Closed reports an orderly close: the broker ended the stream or the
// connection was closed locally.
func (e *ConnectionError) Closed() bool {
	return errors.Is(e.Err, io.EOF) ||
		errors.Is(e.Err, net.ErrClosed) ||
		errors.Is(e.Err, ErrClosed)
}

// Timeout reports a read or write deadline expiry.
func (e *ConnectionError) Timeout() bool {
	if errors.Is(e.Err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ProtocolError reports a frame that could not be turned into an event, or
// an acknowledgement count that disagrees with the registry.
type ProtocolError struct {
	Reason string
	// Frame is the raw reply, when one was read.
	Frame any
}

func (e *ProtocolError) Error() string {
	return "pubsub: protocol error: " + e.Reason
}

// Is makes errors.Is(err, ErrProtocol) true for every ProtocolError.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func protocolErrorf(frame any, format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...), Frame: frame}
}

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}
