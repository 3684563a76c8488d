package bridge

import (
	"context"
	"errors"
	"net"
	"path"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/mqtt"
	"github.com/nerrad567/greenhome-proxy/internal/journal"
	"github.com/nerrad567/greenhome-proxy/internal/pubsub"
)

// fakeConn is a goroutine-safe broker connection. Acknowledgements and
// published messages are queued as frames; Receive blocks until one is
// available or the connection is closed.
type fakeConn struct {
	mu       sync.Mutex
	channels map[string]bool
	patterns map[string]bool
	pending  [][]string
	commands [][]string

	frames    chan any
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		channels: make(map[string]bool),
		patterns: make(map[string]bool),
		frames:   make(chan any, 256),
		done:     make(chan struct{}),
	}
}

func (c *fakeConn) Send(cmd string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := []string{cmd}
	for _, a := range args {
		line = append(line, a.(string))
	}
	c.pending = append(c.pending, line)
	return nil
}

func (c *fakeConn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return net.ErrClosed
	}
	for _, line := range c.pending {
		c.commands = append(c.commands, line)
		switch line[0] {
		case "SUBSCRIBE":
			c.ack(c.channels, "subscribe", line[1:], true)
		case "PSUBSCRIBE":
			c.ack(c.patterns, "psubscribe", line[1:], true)
		case "UNSUBSCRIBE":
			c.ack(c.channels, "unsubscribe", line[1:], false)
		case "PUNSUBSCRIBE":
			c.ack(c.patterns, "punsubscribe", line[1:], false)
		}
	}
	c.pending = nil
	return nil
}

// ack must be called with mu held.
func (c *fakeConn) ack(set map[string]bool, verb string, names []string, add bool) {
	for _, name := range names {
		if add {
			set[name] = true
		} else {
			delete(set, name)
		}
		c.frames <- []any{[]byte(verb), []byte(name), int64(len(c.channels) + len(c.patterns))}
	}
}

func (c *fakeConn) Receive() (any, error) {
	select {
	case f := <-c.frames:
		if err, ok := f.(error); ok {
			return nil, err
		}
		return f, nil
	case <-c.done:
		return nil, net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// publish queues the frames a PUBLISH to channel would produce.
func (c *fakeConn) publish(channel, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels[channel] {
		c.frames <- []any{[]byte("message"), []byte(channel), []byte(payload)}
	}
	patterns := make([]string, 0, len(c.patterns))
	for p := range c.patterns {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	for _, p := range patterns {
		if ok, _ := path.Match(p, channel); ok {
			c.frames <- []any{[]byte("pmessage"), []byte(p), []byte(channel), []byte(payload)}
		}
	}
}

// inject queues a raw frame or an error for Receive.
func (c *fakeConn) inject(f any) {
	c.frames <- f
}

func (c *fakeConn) sentCommands() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]string, len(c.commands))
	copy(out, c.commands)
	return out
}

// fakeDialer hands out fakeConns, failing the first failures dials.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	conns    []*fakeConn
}

func (d *fakeDialer) dial(_ context.Context) (pubsub.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("dial tcp 127.0.0.1:6379: connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

// failNext makes the next n dials fail.
func (d *fakeDialer) failNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type publishedCommand struct {
	deviceID string
	payload  []byte
}

type fakeHomeBus struct {
	mu        sync.Mutex
	err       error
	published []publishedCommand
	handlers  map[string]mqtt.MessageHandler
}

func (h *fakeHomeBus) PublishCommand(deviceID string, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.published = append(h.published, publishedCommand{deviceID: deviceID, payload: payload})
	return nil
}

func (h *fakeHomeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers == nil {
		h.handlers = make(map[string]mqtt.MessageHandler)
	}
	h.handlers[topic] = handler
	return nil
}

func (h *fakeHomeBus) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

func (h *fakeHomeBus) commands() []publishedCommand {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]publishedCommand(nil), h.published...)
}

type publishedAck struct {
	channel string
	payload []byte
}

type fakeAcks struct {
	mu   sync.Mutex
	acks []publishedAck
}

func (a *fakeAcks) Publish(_ context.Context, channel string, payload []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, publishedAck{channel: channel, payload: payload})
	return 1, nil
}

func (a *fakeAcks) all() []publishedAck {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]publishedAck(nil), a.acks...)
}

// fakeJournal keeps entries in memory.
type fakeJournal struct {
	mu      sync.Mutex
	entries []*journal.Entry
	nextID  int
}

func (j *fakeJournal) Record(_ context.Context, e *journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextID++
	e.ID = "cmd-" + strconv.Itoa(j.nextID)
	cp := *e
	j.entries = append(j.entries, &cp)
	return nil
}

func (j *fakeJournal) SetStatus(_ context.Context, id string, status journal.Status, errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.entries {
		if e.ID == id {
			e.Status = status
			e.Error = errMsg
			return nil
		}
	}
	return journal.ErrNotFound
}

func (j *fakeJournal) Acknowledge(_ context.Context, requestID string, result int) (*journal.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.entries) - 1; i >= 0; i-- {
		e := j.entries[i]
		if e.RequestID == requestID {
			e.Status = journal.StatusAcknowledged
			e.Result = &result
			cp := *e
			return &cp, nil
		}
	}
	return nil, journal.ErrNotFound
}

func (j *fakeJournal) statusOf(requestID string) journal.Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.entries) - 1; i >= 0; i-- {
		if j.entries[i].RequestID == requestID {
			return j.entries[i].Status
		}
	}
	return ""
}

type fakeMetrics struct {
	mu         sync.Mutex
	dispatches map[string]int
	commands   []string
	reports    map[string]map[string]float64
	reconnects []string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		dispatches: make(map[string]int),
		reports:    make(map[string]map[string]float64),
	}
}

func (m *fakeMetrics) WriteDispatch(eventType, _ string, _ int) {
	m.mu.Lock()
	m.dispatches[eventType]++
	m.mu.Unlock()
}

func (m *fakeMetrics) WriteCommandResult(deviceID, _, status string, _ time.Duration) {
	m.mu.Lock()
	m.commands = append(m.commands, deviceID+":"+status)
	m.mu.Unlock()
}

func (m *fakeMetrics) WriteDeviceReport(deviceID string, fields map[string]float64) {
	m.mu.Lock()
	m.reports[deviceID] = fields
	m.mu.Unlock()
}

func (m *fakeMetrics) WriteReconnect(mode string, _ int) {
	m.mu.Lock()
	m.reconnects = append(m.reconnects, mode)
	m.mu.Unlock()
}

func (m *fakeMetrics) reconnectModes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reconnects...)
}

type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (s *fakeSink) Broadcast(channel string, _ any) {
	s.mu.Lock()
	s.events = append(s.events, channel)
	s.mu.Unlock()
}

func (s *fakeSink) count(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e == channel {
			n++
		}
	}
	return n
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
