package redis

import "errors"

// Domain-specific errors for Redis operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the broker cannot be reached or
	// does not answer PING.
	ErrConnectionFailed = errors.New("redis: connection failed")

	// ErrPublishFailed is returned when a PUBLISH command fails.
	ErrPublishFailed = errors.New("redis: publish failed")

	// ErrInvalidChannel is returned when an empty channel name is provided.
	ErrInvalidChannel = errors.New("redis: channel cannot be empty")

	// ErrClosed is returned when the publisher has been closed.
	ErrClosed = errors.New("redis: publisher closed")
)
