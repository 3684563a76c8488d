package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/config"
)

// Publisher sends PUBLISH commands over a pool of ordinary (non-subscribed)
// connections.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Publisher struct {
	pool *redis.Pool

	mu     sync.RWMutex
	closed bool
}

// Stats is a snapshot of the publisher's connection pool.
type Stats struct {
	ActiveCount int `json:"active_count"`
	IdleCount   int `json:"idle_count"`
}

// Connect creates a Publisher and verifies the broker answers PING.
//
// Parameters:
//   - ctx: Bounds the initial health check
//   - cfg: Redis configuration from config.yaml
//
// Returns:
//   - *Publisher: Ready publisher
//   - error: ErrConnectionFailed if the broker is unreachable
func Connect(ctx context.Context, cfg config.RedisConfig) (*Publisher, error) {
	addr := address(cfg)
	opts := buildDialOptions(cfg)

	p := newPublisher(cfg.Pool, func(ctx context.Context) (redis.Conn, error) {
		return redis.DialContext(ctx, "tcp", addr, opts...)
	})

	if err := p.HealthCheck(ctx); err != nil {
		p.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	return p, nil
}

// newPublisher builds the pool around dial. Split out so tests can supply
// an in-memory connection.
func newPublisher(cfg config.RedisPoolConfig, dial func(ctx context.Context) (redis.Conn, error)) *Publisher {
	return &Publisher{
		pool: &redis.Pool{
			DialContext: dial,
			MaxIdle:     cfg.MaxIdle,
			MaxActive:   cfg.MaxActive,
			IdleTimeout: time.Duration(cfg.IdleTimeout) * time.Second,
			Wait:        cfg.MaxActive > 0,
			TestOnBorrow: func(c redis.Conn, idleSince time.Time) error {
				if time.Since(idleSince) < time.Minute {
					return nil
				}
				_, err := c.Do("PING")
				return err
			},
		},
	}
}

// Publish sends payload to channel.
//
// Parameters:
//   - ctx: Bounds waiting for a pooled connection
//   - channel: Target channel (must not be empty)
//   - payload: Message body
//
// Returns:
//   - int: Number of subscribers that received the message
//   - error: ErrInvalidChannel, ErrClosed, or ErrPublishFailed wrapping the cause
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) (int, error) {
	if channel == "" {
		return 0, ErrInvalidChannel
	}

	conn, err := p.get(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrPublishFailed, channel, err)
	}
	defer conn.Close() //nolint:errcheck // Returns the connection to the pool

	receivers, err := redis.Int(conn.Do("PUBLISH", channel, payload))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrPublishFailed, channel, err)
	}
	return receivers, nil
}

// HealthCheck verifies the broker answers PING.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, ErrConnectionFailed wrapping the cause otherwise
func (p *Publisher) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	conn, err := p.get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer conn.Close() //nolint:errcheck // Returns the connection to the pool

	pong, err := redis.String(conn.Do("PING"))
	if err != nil {
		return fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}
	if pong != "PONG" {
		return fmt.Errorf("%w: unexpected ping reply %q", ErrConnectionFailed, pong)
	}
	return nil
}

// Stats returns the pool's active and idle connection counts.
func (p *Publisher) Stats() Stats {
	s := p.pool.Stats()
	return Stats{ActiveCount: s.ActiveCount, IdleCount: s.IdleCount}
}

// Close releases every pooled connection. Further calls return ErrClosed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pool.Close()
}

func (p *Publisher) get(ctx context.Context) (redis.Conn, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	return p.pool.GetContext(ctx)
}
