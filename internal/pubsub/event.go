package pubsub

// Event is one decoded push frame. The concrete type is Meta, Message or
// PatternMessage.
type Event interface {
	// EventType returns "meta", "message" or "pmessage".
	EventType() string

	isEvent()
}

// Meta acknowledges a subscription state change.
//
// HasName is false only for the reply to an unsubscribe-all request issued
// while nothing of that kind was subscribed; Count is then the number of
// remaining subscriptions on the connection.
type Meta struct {
	Type    MetaType
	Name    string
	HasName bool
	Count   int64
}

// Message is a payload published to a subscribed channel.
type Message struct {
	Channel string
	Payload []byte
}

// PatternMessage is a payload published to a channel matched by Pattern.
type PatternMessage struct {
	Pattern string
	Channel string
	Payload []byte
}

func (Meta) EventType() string           { return "meta" }
func (Message) EventType() string        { return "message" }
func (PatternMessage) EventType() string { return "pmessage" }

func (Meta) isEvent()           {}
func (Message) isEvent()        {}
func (PatternMessage) isEvent() {}
