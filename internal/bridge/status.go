package bridge

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Status is a point-in-time view of the bridge.
type Status struct {
	Connected      bool      `json:"connected"`
	ConnectedSince time.Time `json:"connected_since,omitzero"`
	Channels       []string  `json:"channels"`
	Patterns       []string  `json:"patterns"`

	Reconnects int `json:"reconnects"`
	Rebuilds   int `json:"rebuilds"`

	// Events counts dispatched events by type (meta, message, pmessage).
	Events map[string]uint64 `json:"events"`
	// PatternMessages counts pattern messages by matching pattern.
	PatternMessages map[string]uint64 `json:"pattern_messages"`

	Commands CommandCounters `json:"commands"`

	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitzero"`
}

// CommandCounters counts command outcomes since start.
type CommandCounters struct {
	Received     uint64 `json:"received"`
	Forwarded    uint64 `json:"forwarded"`
	Failed       uint64 `json:"failed"`
	Invalid      uint64 `json:"invalid"`
	Duplicate    uint64 `json:"duplicate"`
	Acknowledged uint64 `json:"acknowledged"`
}

// statusTracker guards the live Status. Writers are the consume loop and
// MQTT handlers; readers are API requests.
type statusTracker struct {
	mu sync.RWMutex
	s  Status
}

func newStatusTracker() *statusTracker {
	return &statusTracker{s: Status{
		Channels:        []string{},
		Patterns:        []string{},
		Events:          make(map[string]uint64),
		PatternMessages: make(map[string]uint64),
	}}
}

func (t *statusTracker) update(fn func(s *Status)) {
	t.mu.Lock()
	fn(&t.s)
	t.mu.Unlock()
}

func (t *statusTracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.s
	out.Channels = slices.Clone(t.s.Channels)
	out.Patterns = slices.Clone(t.s.Patterns)
	out.Events = maps.Clone(t.s.Events)
	out.PatternMessages = maps.Clone(t.s.PatternMessages)
	return out
}

func (t *statusTracker) setConnected(connected bool) {
	t.update(func(s *Status) {
		if connected && !s.Connected {
			s.ConnectedSince = time.Now().UTC()
		}
		if !connected {
			s.ConnectedSince = time.Time{}
		}
		s.Connected = connected
	})
}

func (t *statusTracker) setError(err error) {
	t.update(func(s *Status) {
		s.LastError = err.Error()
		s.LastErrorAt = time.Now().UTC()
	})
}
