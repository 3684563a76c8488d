package pubsub

import "sort"

// State is the lifecycle position of one (kind, name) pair.
type State int

const (
	// StateUnsubscribed means the name is neither requested nor acknowledged.
	StateUnsubscribed State = iota

	// StatePendingSubscribe means the name was requested and the broker has
	// not acknowledged it yet.
	StatePendingSubscribe

	// StateSubscribed means the name is requested and acknowledged.
	StateSubscribed

	// StatePendingUnsubscribe means removal was requested but the broker
	// still reports the name as subscribed.
	StatePendingUnsubscribe
)

// String returns the state name used in logs and the status API.
func (s State) String() string {
	switch s {
	case StatePendingSubscribe:
		return "pending_subscribe"
	case StateSubscribed:
		return "subscribed"
	case StatePendingUnsubscribe:
		return "pending_unsubscribe"
	default:
		return "unsubscribed"
	}
}

// entry tracks one name. requested is the application's intent, confirmed
// is what the broker last acknowledged on the current connection.
type entry struct {
	requested bool
	confirmed bool
}

func (e *entry) state() State {
	switch {
	case e.requested && e.confirmed:
		return StateSubscribed
	case e.requested:
		return StatePendingSubscribe
	case e.confirmed:
		return StatePendingUnsubscribe
	default:
		return StateUnsubscribed
	}
}

// Registry is the Subscription Registry: per kind, the set of names the
// application asked for, together with which of them the broker has
// acknowledged. It performs no I/O.
//
// Registry is owned by a single Subscriber and is not safe for concurrent
// use.
type Registry struct {
	sets [len(kinds)]map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for _, k := range kinds {
		r.sets[k] = make(map[string]*entry)
	}
	return r
}

// Add marks names as requested. Adding a name twice is a no-op.
func (r *Registry) Add(kind Kind, names ...string) {
	set := r.sets[kind]
	for _, name := range names {
		e, ok := set[name]
		if !ok {
			e = &entry{}
			set[name] = e
		}
		e.requested = true
	}
}

// Remove withdraws the request for names. A name the broker still reports
// as subscribed stays tracked until its acknowledgement is released.
func (r *Registry) Remove(kind Kind, names ...string) {
	set := r.sets[kind]
	for _, name := range names {
		if e, ok := set[name]; ok {
			e.requested = false
			r.prune(kind, name, e)
		}
	}
}

// RemoveAll withdraws every request of the given kind.
func (r *Registry) RemoveAll(kind Kind) {
	for name, e := range r.sets[kind] {
		e.requested = false
		r.prune(kind, name, e)
	}
}

// Snapshot returns the requested names of a kind in sorted order.
// It is the list Reconnect re-issues.
func (r *Registry) Snapshot(kind Kind) []string {
	names := make([]string, 0, len(r.sets[kind]))
	for name, e := range r.sets[kind] {
		if e.requested {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of requested names of a kind.
func (r *Registry) Len(kind Kind) int {
	n := 0
	for _, e := range r.sets[kind] {
		if e.requested {
			n++
		}
	}
	return n
}

// Contains reports whether name is requested.
func (r *Registry) Contains(kind Kind, name string) bool {
	e, ok := r.sets[kind][name]
	return ok && e.requested
}

// State returns the lifecycle state of one name.
func (r *Registry) State(kind Kind, name string) State {
	e, ok := r.sets[kind][name]
	if !ok {
		return StateUnsubscribed
	}
	return e.state()
}

// Confirm records the broker's acknowledgement of a subscription.
func (r *Registry) Confirm(kind Kind, name string) {
	set := r.sets[kind]
	e, ok := set[name]
	if !ok {
		e = &entry{}
		set[name] = e
	}
	e.confirmed = true
}

// Release records the broker's acknowledgement of an unsubscription.
func (r *Registry) Release(kind Kind, name string) {
	if e, ok := r.sets[kind][name]; ok {
		e.confirmed = false
		r.prune(kind, name, e)
	}
}

// Confirmed returns the acknowledged names of a kind in sorted order.
func (r *Registry) Confirmed(kind Kind) []string {
	names := make([]string, 0, len(r.sets[kind]))
	for name, e := range r.sets[kind] {
		if e.confirmed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ConfirmedCount returns the number of acknowledged subscriptions across
// both kinds. This is the figure the broker reports in every Meta frame.
func (r *Registry) ConfirmedCount() int {
	n := 0
	for _, set := range r.sets {
		for _, e := range set {
			if e.confirmed {
				n++
			}
		}
	}
	return n
}

// Reset forgets every acknowledgement. It is used when the connection is
// replaced, since a new connection starts with no subscriptions.
func (r *Registry) Reset() {
	for _, k := range kinds {
		for name, e := range r.sets[k] {
			e.confirmed = false
			r.prune(k, name, e)
		}
	}
}

func (r *Registry) prune(kind Kind, name string, e *entry) {
	if !e.requested && !e.confirmed {
		delete(r.sets[kind], name)
	}
}
