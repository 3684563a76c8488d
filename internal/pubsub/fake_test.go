package pubsub

import (
	"errors"
	"io"
	"path"
	"sort"
	"sync"
)

// fakeBroker models the subscription side of a Redis connection: it keeps
// the channel and pattern sets, answers commands with the frames Redis would
// push, and fans published payloads out to matching subscriptions.
type fakeBroker struct {
	channels map[string]bool
	patterns map[string]bool
	queue    []any
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		channels: make(map[string]bool),
		patterns: make(map[string]bool),
	}
}

func (b *fakeBroker) count() int64 {
	return int64(len(b.channels) + len(b.patterns))
}

func (b *fakeBroker) push(frame ...any) {
	b.queue = append(b.queue, frame)
}

func (b *fakeBroker) exec(cmd string, args []any) {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.(string)
	}

	switch cmd {
	case "SUBSCRIBE":
		b.add(b.channels, "subscribe", names)
	case "PSUBSCRIBE":
		b.add(b.patterns, "psubscribe", names)
	case "UNSUBSCRIBE":
		b.remove(b.channels, "unsubscribe", names)
	case "PUNSUBSCRIBE":
		b.remove(b.patterns, "punsubscribe", names)
	}
}

func (b *fakeBroker) add(set map[string]bool, verb string, names []string) {
	for _, name := range names {
		set[name] = true
		b.push([]byte(verb), []byte(name), b.count())
	}
}

func (b *fakeBroker) remove(set map[string]bool, verb string, names []string) {
	if len(names) == 0 {
		if len(set) == 0 {
			b.push([]byte(verb), nil, b.count())
			return
		}
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	for _, name := range names {
		delete(set, name)
		b.push([]byte(verb), []byte(name), b.count())
	}
}

// publish queues the frames a subscriber connection would receive for one
// PUBLISH and returns the number of receivers.
func (b *fakeBroker) publish(channel, payload string) int {
	n := 0
	if b.channels[channel] {
		b.push([]byte("message"), []byte(channel), []byte(payload))
		n++
	}
	patterns := make([]string, 0, len(b.patterns))
	for p := range b.patterns {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	for _, p := range patterns {
		if ok, _ := path.Match(p, channel); ok {
			b.push([]byte("pmessage"), []byte(p), []byte(channel), []byte(payload))
			n++
		}
	}
	return n
}

type sentCommand struct {
	name string
	args []string
}

// fakeConn is a scripted Conn backed by a fakeBroker. Commands reach the
// broker on Flush, like a buffered redigo connection.
type fakeConn struct {
	broker *fakeBroker

	buffered []sentCommand
	sent     []sentCommand

	sendErr    error
	flushErr   error
	receiveErr error

	// block makes Receive wait for Close when the queue is empty.
	// waiting, when set, is closed once Receive starts waiting.
	block   bool
	waiting chan struct{}
	closeMu sync.Mutex
	closed  bool
	done    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		broker: newFakeBroker(),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) Send(cmd string, args ...any) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	strs := make([]string, len(args))
	for i, a := range args {
		strs[i] = a.(string)
	}
	c.buffered = append(c.buffered, sentCommand{name: cmd, args: strs})
	return nil
}

func (c *fakeConn) Flush() error {
	if c.flushErr != nil {
		return c.flushErr
	}
	for _, cmd := range c.buffered {
		args := make([]any, len(cmd.args))
		for i, a := range cmd.args {
			args[i] = a
		}
		c.broker.exec(cmd.name, args)
	}
	c.sent = append(c.sent, c.buffered...)
	c.buffered = nil
	return nil
}

func (c *fakeConn) Receive() (any, error) {
	if c.receiveErr != nil {
		err := c.receiveErr
		c.receiveErr = nil
		return nil, err
	}
	if len(c.broker.queue) > 0 {
		frame := c.broker.queue[0]
		c.broker.queue = c.broker.queue[1:]
		return frame, nil
	}
	if c.isClosed() {
		return nil, errClosedConn
	}
	if c.block {
		if c.waiting != nil {
			close(c.waiting)
		}
		<-c.done
		return nil, errClosedConn
	}
	return nil, io.EOF
}

func (c *fakeConn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

var errClosedConn = errors.New("use of closed network connection")

// scriptedConn replays fixed frames and records nothing. It is used for
// malformed or contradictory broker output the fakeBroker never produces.
type scriptedConn struct {
	frames []any
	errs   []error
}

func (c *scriptedConn) Send(string, ...any) error { return nil }
func (c *scriptedConn) Flush() error              { return nil }
func (c *scriptedConn) Close() error              { return nil }

func (c *scriptedConn) Receive() (any, error) {
	if len(c.frames) == 0 {
		return nil, io.EOF
	}
	frame, err := c.frames[0], c.errs[0]
	c.frames, c.errs = c.frames[1:], c.errs[1:]
	return frame, err
}

func script(frames ...any) *scriptedConn {
	return &scriptedConn{frames: frames, errs: make([]error, len(frames))}
}

func frame(parts ...any) []any {
	return parts
}
