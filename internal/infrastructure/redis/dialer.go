package redis

import (
	"context"
	"fmt"

	"github.com/gomodule/redigo/redis"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/config"
	"github.com/nerrad567/greenhome-proxy/internal/pubsub"
)

// Dialer returns a pubsub.Dialer that opens dedicated subscriber
// connections to the configured broker.
//
// Each call opens a new TCP (or TLS) connection, authenticates and selects
// the database. The returned redis.Conn satisfies pubsub.Conn.
func Dialer(cfg config.RedisConfig) pubsub.Dialer {
	addr := address(cfg)
	opts := buildDialOptions(cfg)

	return func(ctx context.Context) (pubsub.Conn, error) {
		conn, err := redis.DialContext(ctx, "tcp", addr, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, addr, err)
		}
		return conn, nil
	}
}
