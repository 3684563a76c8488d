package pubsub

import "context"

// Conn is the broker connection a Subscriber drives. Send buffers one
// command, Flush writes buffered commands, Receive blocks for exactly one
// reply or push frame.
//
// redis.Conn from github.com/gomodule/redigo satisfies this interface.
// Implementations need not be safe for concurrent use, except that Close
// must abort a Receive blocked in another goroutine.
type Conn interface {
	Send(commandName string, args ...any) error
	Flush() error
	Receive() (reply any, err error)
	Close() error
}

// Dialer opens a fresh connection for Dial and Reconnect.
type Dialer func(ctx context.Context) (Conn, error)
