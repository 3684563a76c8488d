package pubsub

import "fmt"

// Kind selects between exact channel subscriptions and glob patterns.
type Kind int

const (
	// KindChannel is an exact-match channel subscription.
	KindChannel Kind = iota

	// KindPattern is a glob-style pattern subscription.
	KindPattern
)

// kinds lists every Kind in resubscription order.
var kinds = [...]Kind{KindChannel, KindPattern}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindPattern:
		return "pattern"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// subscribeCommand returns the broker verb that adds subscriptions of this kind.
func (k Kind) subscribeCommand() string {
	if k == KindPattern {
		return "PSUBSCRIBE"
	}
	return "SUBSCRIBE"
}

// unsubscribeCommand returns the broker verb that removes subscriptions of this kind.
func (k Kind) unsubscribeCommand() string {
	if k == KindPattern {
		return "PUNSUBSCRIBE"
	}
	return "UNSUBSCRIBE"
}

// valid reports whether k is one of the declared kinds.
func (k Kind) valid() bool {
	return k == KindChannel || k == KindPattern
}

// MetaType is the transition reported by a Meta event.
// The values match the first element of the broker's reply frame.
type MetaType string

const (
	MetaSubscribe    MetaType = "subscribe"
	MetaUnsubscribe  MetaType = "unsubscribe"
	MetaPSubscribe   MetaType = "psubscribe"
	MetaPUnsubscribe MetaType = "punsubscribe"
)

// Kind returns the subscription kind the transition applies to.
func (t MetaType) Kind() Kind {
	if t == MetaPSubscribe || t == MetaPUnsubscribe {
		return KindPattern
	}
	return KindChannel
}

// IsSubscribe reports whether the transition adds a subscription.
func (t MetaType) IsSubscribe() bool {
	return t == MetaSubscribe || t == MetaPSubscribe
}

// parseMetaType maps a frame type string to a MetaType.
func parseMetaType(s string) (MetaType, bool) {
	switch MetaType(s) {
	case MetaSubscribe, MetaUnsubscribe, MetaPSubscribe, MetaPUnsubscribe:
		return MetaType(s), true
	default:
		return "", false
	}
}
