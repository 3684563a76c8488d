//go:build integration

package redis

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/config"
	"github.com/nerrad567/greenhome-proxy/internal/pubsub"
)

// Integration tests against a live broker.
// These tests require a running Redis server at 127.0.0.1:6379.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/redis/...

func integrationConfig() config.RedisConfig {
	return config.RedisConfig{
		Host:     "127.0.0.1",
		Port:     6379,
		Timeouts: config.RedisTimeoutConfig{Connect: 2, Read: 5, Write: 2},
		Pool:     config.RedisPoolConfig{MaxIdle: 2, MaxActive: 4, IdleTimeout: 60},
	}
}

func setup(t *testing.T) (*pubsub.Subscriber, *Publisher) {
	t.Helper()
	ctx := context.Background()
	cfg := integrationConfig()

	pub, err := Connect(ctx, cfg)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { pub.Close() })

	sub, err := pubsub.Dial(ctx, Dialer(cfg))
	if err != nil {
		t.Fatalf("pubsub.Dial() error = %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return sub, pub
}

func consume(t *testing.T, sub *pubsub.Subscriber) pubsub.Event {
	t.Helper()
	ev, err := sub.Consume()
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	return ev
}

func TestIntegrationChannelScenario(t *testing.T) {
	sub, pub := setup(t)
	ctx := context.Background()
	channel := "greenhome-it-" + time.Now().Format("150405.000000")

	if err := sub.Subscribe(channel); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	want := pubsub.Meta{Type: pubsub.MetaSubscribe, Name: channel, HasName: true, Count: 1}
	if ev := consume(t, sub); !reflect.DeepEqual(ev, want) {
		t.Fatalf("Consume() = %#v, want %#v", ev, want)
	}

	for _, p := range []string{"msg1", "msg2"} {
		if n, err := pub.Publish(ctx, channel, []byte(p)); err != nil || n != 1 {
			t.Fatalf("Publish(%s) = %d, %v", p, n, err)
		}
	}
	for _, p := range []string{"msg1", "msg2"} {
		wantMsg := pubsub.Message{Channel: channel, Payload: []byte(p)}
		if ev := consume(t, sub); !reflect.DeepEqual(ev, wantMsg) {
			t.Fatalf("Consume() = %#v, want %#v", ev, wantMsg)
		}
	}

	if err := sub.Unsubscribe(channel); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	want = pubsub.Meta{Type: pubsub.MetaUnsubscribe, Name: channel, HasName: true, Count: 0}
	if ev := consume(t, sub); !reflect.DeepEqual(ev, want) {
		t.Fatalf("Consume() = %#v, want %#v", ev, want)
	}
}

func TestIntegrationPatternScenario(t *testing.T) {
	sub, pub := setup(t)
	prefix := "greenhome-it-p-" + time.Now().Format("150405.000000")

	if err := sub.PSubscribe(prefix + "*"); err != nil {
		t.Fatalf("PSubscribe() error = %v", err)
	}
	consume(t, sub)

	if _, err := pub.Publish(context.Background(), prefix+"1", []byte("x")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	want := pubsub.PatternMessage{Pattern: prefix + "*", Channel: prefix + "1", Payload: []byte("x")}
	if ev := consume(t, sub); !reflect.DeepEqual(ev, want) {
		t.Fatalf("Consume() = %#v, want %#v", ev, want)
	}
}

func TestIntegrationUnsubscribeAllWhenEmpty(t *testing.T) {
	sub, _ := setup(t)

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	want := pubsub.Meta{Type: pubsub.MetaUnsubscribe, Count: 0}
	if ev := consume(t, sub); !reflect.DeepEqual(ev, want) {
		t.Fatalf("Consume() = %#v, want %#v", ev, want)
	}
}

func TestIntegrationReconnect(t *testing.T) {
	sub, pub := setup(t)
	ctx := context.Background()
	channel := "greenhome-it-r-" + time.Now().Format("150405.000000")

	if err := sub.Subscribe(channel); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	consume(t, sub)

	if err := sub.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if ev, ok := consume(t, sub).(pubsub.Meta); !ok || ev.Name != channel || ev.Count != 1 {
		t.Fatalf("Consume() after Reconnect = %#v, want resubscribe ack", ev)
	}

	if _, err := pub.Publish(ctx, channel, []byte("after")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	want := pubsub.Message{Channel: channel, Payload: []byte("after")}
	if ev := consume(t, sub); !reflect.DeepEqual(ev, want) {
		t.Fatalf("Consume() = %#v, want %#v", ev, want)
	}
}

func TestIntegrationReadTimeout(t *testing.T) {
	cfg := integrationConfig()
	cfg.Timeouts.Read = 1

	sub, err := pubsub.Dial(context.Background(), Dialer(cfg))
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer sub.Close()

	_, err = sub.Consume()
	var ce *pubsub.ConnectionError
	if !errors.As(err, &ce) || !ce.Timeout() {
		t.Fatalf("Consume() error = %v, want timeout *ConnectionError", err)
	}
}
