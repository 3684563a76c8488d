package pubsub

import (
	"github.com/gomodule/redigo/redis"
)

// decodeFrame turns one push frame into an Event.
//
// Frames arrive as arrays of bulk strings, with an integer in the count
// position of subscription acknowledgements:
//
//	subscribe|unsubscribe|psubscribe|punsubscribe  name|nil  count
//	message   channel  payload
//	pmessage  pattern  channel  payload
func decodeFrame(frame any) (Event, error) {
	values, err := redis.Values(frame, nil)
	if err != nil {
		return nil, protocolErrorf(frame, "frame is not an array: %v", err)
	}
	if len(values) == 0 {
		return nil, protocolErrorf(frame, "empty frame")
	}

	typ, err := redis.String(values[0], nil)
	if err != nil {
		return nil, protocolErrorf(frame, "frame type is not a string: %v", err)
	}

	switch typ {
	case "message":
		return decodeMessage(frame, values)
	case "pmessage":
		return decodePatternMessage(frame, values)
	}

	if mt, ok := parseMetaType(typ); ok {
		return decodeMeta(frame, mt, values)
	}
	return nil, protocolErrorf(frame, "unknown frame type %q", typ)
}

func decodeMeta(frame any, mt MetaType, values []any) (Event, error) {
	if len(values) != 3 {
		return nil, protocolErrorf(frame, "%s frame has %d elements, want 3", mt, len(values))
	}

	meta := Meta{Type: mt}
	if values[1] != nil {
		name, err := redis.String(values[1], nil)
		if err != nil {
			return nil, protocolErrorf(frame, "%s name: %v", mt, err)
		}
		meta.Name = name
		meta.HasName = true
	} else if mt.IsSubscribe() {
		return nil, protocolErrorf(frame, "%s frame without a name", mt)
	}

	count, err := redis.Int64(values[2], nil)
	if err != nil {
		return nil, protocolErrorf(frame, "%s count: %v", mt, err)
	}
	if count < 0 {
		return nil, protocolErrorf(frame, "%s count %d is negative", mt, count)
	}
	meta.Count = count
	return meta, nil
}

func decodeMessage(frame any, values []any) (Event, error) {
	if len(values) != 3 {
		return nil, protocolErrorf(frame, "message frame has %d elements, want 3", len(values))
	}
	channel, err := redis.String(values[1], nil)
	if err != nil {
		return nil, protocolErrorf(frame, "message channel: %v", err)
	}
	payload, err := redis.Bytes(values[2], nil)
	if err != nil {
		return nil, protocolErrorf(frame, "message payload: %v", err)
	}
	return Message{Channel: channel, Payload: payload}, nil
}

func decodePatternMessage(frame any, values []any) (Event, error) {
	if len(values) != 4 {
		return nil, protocolErrorf(frame, "pmessage frame has %d elements, want 4", len(values))
	}
	pattern, err := redis.String(values[1], nil)
	if err != nil {
		return nil, protocolErrorf(frame, "pmessage pattern: %v", err)
	}
	channel, err := redis.String(values[2], nil)
	if err != nil {
		return nil, protocolErrorf(frame, "pmessage channel: %v", err)
	}
	payload, err := redis.Bytes(values[3], nil)
	if err != nil {
		return nil, protocolErrorf(frame, "pmessage payload: %v", err)
	}
	return PatternMessage{Pattern: pattern, Channel: channel, Payload: payload}, nil
}
