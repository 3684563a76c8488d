package pubsub

// MetaHandler receives subscription state changes.
type MetaHandler func(meta Meta)

// MessageHandler receives payloads published to subscribed channels.
type MessageHandler func(channel string, payload []byte)

// PatternMessageHandler receives payloads matched by a pattern subscription.
type PatternMessageHandler func(pattern, channel string, payload []byte)

// Callbacks is the Callback Registry: at most one handler per event
// category. A nil handler turns dispatch of that category into a no-op.
//
// Handlers run synchronously on the goroutine that called Consume.
type Callbacks struct {
	onMeta           MetaHandler
	onMessage        MessageHandler
	onPatternMessage PatternMessageHandler
}

// SetMetaHandler replaces the Meta handler.
func (c *Callbacks) SetMetaHandler(fn MetaHandler) { c.onMeta = fn }

// SetMessageHandler replaces the Message handler.
func (c *Callbacks) SetMessageHandler(fn MessageHandler) { c.onMessage = fn }

// SetPatternMessageHandler replaces the PatternMessage handler.
func (c *Callbacks) SetPatternMessageHandler(fn PatternMessageHandler) { c.onPatternMessage = fn }

// Dispatch invokes the handler registered for the event's category.
func (c *Callbacks) Dispatch(ev Event) {
	switch e := ev.(type) {
	case Meta:
		if c.onMeta != nil {
			c.onMeta(e)
		}
	case Message:
		if c.onMessage != nil {
			c.onMessage(e.Channel, e.Payload)
		}
	case PatternMessage:
		if c.onPatternMessage != nil {
			c.onPatternMessage(e.Pattern, e.Channel, e.Payload)
		}
	}
}
