package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gomodule/redigo/redis"
)

// Logger is the optional logging surface of a Subscriber.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Subscriber multiplexes channel and pattern subscriptions over one broker
// connection and turns the push stream into dispatched events.
//
// Thread Safety:
//   - Subscribe, PSubscribe, Unsubscribe, PUnsubscribe, Consume and
//     Reconnect must be called from one goroutine.
//   - Close may be called from any goroutine; it aborts a blocked Consume.
type Subscriber struct {
	// mu guards conn and closed. Close takes it from other goroutines.
	mu     sync.Mutex
	conn   Conn
	closed bool

	dialer    Dialer
	registry  *Registry
	callbacks Callbacks
	logger    Logger

	// poisoned holds the protocol error that invalidated the tracked state.
	// While set, every operation except Reconnect and Close is refused.
	poisoned *ProtocolError
}

// New returns a Subscriber bound to conn. A nil conn yields a Subscriber
// that refuses commands until Reconnect succeeds.
func New(conn Conn) *Subscriber {
	return &Subscriber{
		conn:     conn,
		registry: NewRegistry(),
	}
}

// Dial opens a connection with dialer and returns a Subscriber that can
// Reconnect through the same dialer.
//
// Parameters:
//   - ctx: Bounds the dial
//   - dialer: Opens broker connections
//
// Returns:
//   - *Subscriber: Connected subscriber with no subscriptions
//   - error: ErrNoDialer, or a *ConnectionError if the dial fails
func Dial(ctx context.Context, dialer Dialer) (*Subscriber, error) {
	if dialer == nil {
		return nil, ErrNoDialer
	}
	conn, err := dialer(ctx)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Err: err}
	}
	s := New(conn)
	s.dialer = dialer
	return s, nil
}

// SetDialer sets the dialer used by Reconnect.
func (s *Subscriber) SetDialer(dialer Dialer) {
	s.dialer = dialer
}

// SetLogger sets a logger for stray messages and recovery diagnostics.
func (s *Subscriber) SetLogger(logger Logger) {
	s.logger = logger
}

// Callbacks returns the handler registry. Handlers may be replaced between
// Consume calls.
func (s *Subscriber) Callbacks() *Callbacks {
	return &s.callbacks
}

// Registry exposes the subscription registry for inspection from the
// consuming goroutine.
func (s *Subscriber) Registry() *Registry {
	return s.registry
}

// Subscribe requests exact-match subscriptions to one or more channels.
// It returns once the command is written; the acknowledgement arrives as a
// Meta event from Consume.
func (s *Subscriber) Subscribe(channels ...string) error {
	return s.subscribe(KindChannel, channels)
}

// PSubscribe requests subscriptions to one or more glob patterns.
func (s *Subscriber) PSubscribe(patterns ...string) error {
	return s.subscribe(KindPattern, patterns)
}

// Unsubscribe removes channel subscriptions. With no arguments it removes
// every channel subscription; the broker then acknowledges each active
// channel, or sends a single nameless Meta if there were none.
func (s *Subscriber) Unsubscribe(channels ...string) error {
	return s.unsubscribe(KindChannel, channels)
}

// PUnsubscribe removes pattern subscriptions, or all of them when called
// with no arguments.
func (s *Subscriber) PUnsubscribe(patterns ...string) error {
	return s.unsubscribe(KindPattern, patterns)
}

func (s *Subscriber) subscribe(kind Kind, names []string) error {
	cmd := kind.subscribeCommand()
	if len(names) == 0 {
		return usageErrorf("%s requires at least one name", cmd)
	}
	if err := checkNames(cmd, names); err != nil {
		return err
	}

	conn, err := s.activeConn()
	if err != nil {
		return err
	}
	if err := s.send(conn, cmd, names); err != nil {
		return err
	}

	s.registry.Add(kind, names...)
	return nil
}

func (s *Subscriber) unsubscribe(kind Kind, names []string) error {
	cmd := kind.unsubscribeCommand()
	if err := checkNames(cmd, names); err != nil {
		return err
	}

	conn, err := s.activeConn()
	if err != nil {
		return err
	}
	if err := s.send(conn, cmd, names); err != nil {
		return err
	}

	if len(names) == 0 {
		s.registry.RemoveAll(kind)
	} else {
		s.registry.Remove(kind, names...)
	}
	return nil
}

// Consume blocks for the next push frame, applies it to the registry,
// dispatches it to the matching handler and returns it.
//
// Returns:
//   - Event: Meta, Message or PatternMessage
//   - error: *ConnectionError if the read fails, *ProtocolError if the
//     frame is malformed or its count disagrees with the registry
func (s *Subscriber) Consume() (Event, error) {
	conn, err := s.activeConn()
	if err != nil {
		return nil, err
	}

	reply, err := conn.Receive()
	if err != nil {
		var brokerErr redis.Error
		if errors.As(err, &brokerErr) {
			return nil, s.poison(protocolErrorf(nil, "broker error reply: %s", brokerErr.Error()))
		}
		return nil, s.connError("receive", err)
	}

	ev, err := decodeFrame(reply)
	if err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) {
			return nil, s.poison(pe)
		}
		return nil, err
	}

	switch e := ev.(type) {
	case Meta:
		if err := s.applyMeta(e, reply); err != nil {
			return nil, err
		}
	case Message:
		if s.registry.State(KindChannel, e.Channel) != StateSubscribed {
			s.debug("message for channel not in subscribed state", "channel", e.Channel)
		}
	case PatternMessage:
		if s.registry.State(KindPattern, e.Pattern) != StateSubscribed {
			s.debug("message for pattern not in subscribed state",
				"pattern", e.Pattern,
				"channel", e.Channel,
			)
		}
	}

	s.callbacks.Dispatch(ev)
	return ev, nil
}

// applyMeta moves the registry to the state the broker acknowledged and
// checks the broker's count against it. The count covers channels and
// patterns together.
func (s *Subscriber) applyMeta(meta Meta, frame any) error {
	kind := meta.Type.Kind()

	switch {
	case !meta.HasName:
		if n := len(s.registry.Confirmed(kind)); n != 0 {
			return s.poison(protocolErrorf(frame,
				"%s without a name while %d %s subscriptions are active", meta.Type, n, kind))
		}
	case meta.Type.IsSubscribe():
		s.registry.Confirm(kind, meta.Name)
	default:
		s.registry.Release(kind, meta.Name)
	}

	if tracked := int64(s.registry.ConfirmedCount()); meta.Count != tracked {
		return s.poison(protocolErrorf(frame,
			"%s %q reports %d active subscriptions, tracked %d", meta.Type, meta.Name, meta.Count, tracked))
	}
	return nil
}

// Reconnect replaces the connection with a fresh one from the dialer and
// re-issues SUBSCRIBE and PSUBSCRIBE for every requested name. It also
// clears a previous protocol error, since the new connection starts from
// a known empty state.
//
// The broker acknowledges the re-issued names again, so handlers see a
// second round of Meta events for the same names.
func (s *Subscriber) Reconnect(ctx context.Context) error {
	if s.dialer == nil {
		return ErrNoDialer
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: reconnect: %w", ErrUsage, ErrClosed)
	}
	old := s.conn
	s.conn = nil
	s.mu.Unlock()

	if old != nil {
		_ = old.Close() //nolint:errcheck // old connection is already failed or being replaced
	}

	conn, err := s.dialer(ctx)
	if err != nil {
		return &ConnectionError{Op: "dial", Err: err}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close() //nolint:errcheck // subscriber closed during dial
		return &ConnectionError{Op: "dial", Err: ErrClosed}
	}
	s.conn = conn
	s.mu.Unlock()

	s.registry.Reset()
	s.poisoned = nil

	for _, kind := range kinds {
		names := s.registry.Snapshot(kind)
		if len(names) == 0 {
			continue
		}
		if err := s.send(conn, kind.subscribeCommand(), names); err != nil {
			return err
		}
		s.debug("resubscribed", "kind", kind.String(), "count", len(names))
	}
	return nil
}

// Close releases the connection. It is safe to call from any goroutine and
// more than once. A Consume blocked in another goroutine returns a
// *ConnectionError wrapping ErrClosed.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Closed reports whether Close has been called.
func (s *Subscriber) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// activeConn returns the connection commands may use, or the error that
// prevents using it.
func (s *Subscriber) activeConn() (Conn, error) {
	s.mu.Lock()
	conn, closed := s.conn, s.closed
	s.mu.Unlock()

	switch {
	case closed:
		return nil, fmt.Errorf("%w: %w", ErrUsage, ErrClosed)
	case s.poisoned != nil:
		return nil, s.poisoned
	case conn == nil:
		return nil, usageErrorf("no connection")
	}
	return conn, nil
}

func (s *Subscriber) send(conn Conn, cmd string, names []string) error {
	args := make([]any, len(names))
	for i, name := range names {
		args[i] = name
	}
	if err := conn.Send(cmd, args...); err != nil {
		return s.connError("send", err)
	}
	if err := conn.Flush(); err != nil {
		return s.connError("flush", err)
	}
	return nil
}

// connError wraps a transport failure. Failures caused by a local Close
// are reported as ErrClosed so callers can tell shutdown from breakage.
func (s *Subscriber) connError(op string, err error) *ConnectionError {
	if s.Closed() {
		return &ConnectionError{Op: op, Err: fmt.Errorf("%w: %w", ErrClosed, err)}
	}
	return &ConnectionError{Op: op, Err: err}
}

func (s *Subscriber) poison(pe *ProtocolError) *ProtocolError {
	s.poisoned = pe
	if s.logger != nil {
		s.logger.Warn("pubsub state invalidated", "reason", pe.Reason)
	}
	return pe
}

func (s *Subscriber) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func checkNames(cmd string, names []string) error {
	for i, name := range names {
		if name == "" {
			return usageErrorf("%s: name %d is empty", cmd, i)
		}
	}
	return nil
}
