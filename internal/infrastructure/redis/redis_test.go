package redis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gomodule/redigo/redis"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/config"
)

// memConn is an in-memory redis.Conn answering PING and PUBLISH.
type memConn struct {
	mu        sync.Mutex
	published map[string][][]byte
	receivers int
	pingReply any
	err       error
}

func newMemConn() *memConn {
	return &memConn{published: make(map[string][][]byte), receivers: 1, pingReply: "PONG"}
}

func (c *memConn) Close() error { return nil }
func (c *memConn) Err() error   { return nil }

func (c *memConn) Do(cmd string, args ...any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	switch cmd {
	case "PING":
		return c.pingReply, nil
	case "PUBLISH":
		ch := args[0].(string)
		c.published[ch] = append(c.published[ch], args[1].([]byte))
		return int64(c.receivers), nil
	case "":
		return nil, nil
	}
	return nil, redis.Error("ERR unknown command")
}

func (c *memConn) Send(string, ...any) error { return nil }
func (c *memConn) Flush() error              { return nil }
func (c *memConn) Receive() (any, error)     { return nil, nil }

func memPublisher(conn *memConn) *Publisher {
	return newPublisher(config.RedisPoolConfig{MaxIdle: 1}, func(context.Context) (redis.Conn, error) {
		return conn, nil
	})
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildDialOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RedisConfig
		want int
	}{
		{"minimal", config.RedisConfig{}, 2},
		{"timeouts", config.RedisConfig{Timeouts: config.RedisTimeoutConfig{Connect: 1, Read: 5, Write: 5}}, 4},
		{"credentials", config.RedisConfig{Username: "u", Password: "p"}, 4},
		{"tls", config.RedisConfig{TLS: config.RedisTLSConfig{Enabled: true}}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(buildDialOptions(tt.cfg)); got != tt.want {
				t.Errorf("len(buildDialOptions()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuildTLSConfig(t *testing.T) {
	cfg := config.RedisConfig{Host: "redis.internal"}
	if got := buildTLSConfig(cfg).ServerName; got != "redis.internal" {
		t.Errorf("ServerName = %q, want host", got)
	}

	cfg.TLS.ServerName = "broker.example.com"
	tc := buildTLSConfig(cfg)
	if tc.ServerName != "broker.example.com" {
		t.Errorf("ServerName = %q, want override", tc.ServerName)
	}
	if tc.MinVersion != tlsMinVersion {
		t.Errorf("MinVersion = %x, want %x", tc.MinVersion, tlsMinVersion)
	}
}

func TestDialerUnreachable(t *testing.T) {
	dial := Dialer(config.RedisConfig{
		Host:     "127.0.0.1",
		Port:     1,
		Timeouts: config.RedisTimeoutConfig{Connect: 1},
	})

	_, err := dial(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("dial error = %v, want ErrConnectionFailed", err)
	}
}

// =============================================================================
// Publisher Tests
// =============================================================================

func TestPublish(t *testing.T) {
	conn := newMemConn()
	conn.receivers = 2
	p := memPublisher(conn)
	defer p.Close()

	n, err := p.Publish(context.Background(), config.ChannelDataReportRet, []byte(`{"result":0}`))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Publish() receivers = %d, want 2", n)
	}
	if got := conn.published[config.ChannelDataReportRet]; len(got) != 1 || string(got[0]) != `{"result":0}` {
		t.Errorf("published = %q", got)
	}
}

func TestPublishErrors(t *testing.T) {
	t.Run("empty channel", func(t *testing.T) {
		p := memPublisher(newMemConn())
		defer p.Close()
		if _, err := p.Publish(context.Background(), "", nil); !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("Publish() error = %v, want ErrInvalidChannel", err)
		}
	})

	t.Run("broker error", func(t *testing.T) {
		conn := newMemConn()
		conn.err = redis.Error("NOAUTH Authentication required")
		p := memPublisher(conn)
		defer p.Close()
		if _, err := p.Publish(context.Background(), "c", []byte("x")); !errors.Is(err, ErrPublishFailed) {
			t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		p := memPublisher(newMemConn())
		if err := p.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		_, err := p.Publish(context.Background(), "c", []byte("x"))
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Publish() error = %v, want ErrClosed", err)
		}
		if err := p.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})
}

func TestHealthCheck(t *testing.T) {
	conn := newMemConn()
	p := memPublisher(conn)
	defer p.Close()

	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	conn.pingReply = "LOADING"
	if err := p.HealthCheck(context.Background()); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("HealthCheck() error = %v, want ErrConnectionFailed", err)
	}
}
