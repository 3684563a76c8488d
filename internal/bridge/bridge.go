package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/mqtt"
	"github.com/nerrad567/greenhome-proxy/internal/journal"
	"github.com/nerrad567/greenhome-proxy/internal/pubsub"
)

const (
	defaultDedupSize    = 1024
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second

	// publishTimeout bounds one ack PUBLISH on the platform broker.
	publishTimeout = 5 * time.Second
)

// Live event channels broadcast to the EventSink.
const (
	EventMeta           = "pubsub.meta"
	EventMessage        = "pubsub.message"
	EventPatternMessage = "pubsub.pmessage"
	EventCommand        = "command.status"
	EventConnection     = "bridge.connection"
)

// Recovery modes reported to Metrics.WriteReconnect.
const (
	modeReconnect = "reconnect"
	modeRebuild   = "rebuild"
)

// HomeBus is the MQTT side of the bridge. Satisfied by *mqtt.Client.
type HomeBus interface {
	PublishCommand(deviceID string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// AckPublisher publishes acknowledgements and relayed reports on the
// platform broker. Satisfied by *redis.Publisher.
type AckPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int, error)
}

// Journal records command lifecycles. Satisfied by *journal.SQLiteRepository.
type Journal interface {
	Record(ctx context.Context, e *journal.Entry) error
	SetStatus(ctx context.Context, id string, status journal.Status, errMsg string) error
	Acknowledge(ctx context.Context, requestID string, result int) (*journal.Entry, error)
}

// Metrics receives telemetry. Satisfied by *influxdb.Client.
type Metrics interface {
	WriteDispatch(eventType, name string, payloadBytes int)
	WriteCommandResult(deviceID, method, status string, latency time.Duration)
	WriteDeviceReport(deviceID string, fields map[string]float64)
	WriteReconnect(mode string, attempts int)
}

// EventSink receives live events for observers. Satisfied by *api.Hub.
type EventSink interface {
	Broadcast(channel string, payload any)
}

// Logger is the bridge's logging surface. Compatible with logging.Logger
// and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds everything a Bridge needs. Dialer, HomeBus and Acks are
// required; the rest are optional.
type Options struct {
	// Dialer opens platform broker connections for the subscriber.
	Dialer pubsub.Dialer

	CommandChannel  string
	AckChannel      string
	ReportChannel   string // optional, relays device reports upstream
	MonitorPatterns []string

	// DedupSize is the number of recent request IDs remembered.
	DedupSize int

	// InitialDelay and MaxDelay bound the recovery backoff.
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// QoS for MQTT subscriptions to device acks and reports.
	QoS byte

	HomeBus HomeBus
	Acks    AckPublisher
	Journal Journal
	Metrics Metrics
	Events  EventSink
	Logger  Logger
}

// Bridge runs the platform-to-home-bus proxy.
//
// Thread Safety:
//   - Run must be called once, from one goroutine.
//   - Status and ForceRebuild are safe for concurrent use.
type Bridge struct {
	opts   Options
	dedup  *lru.Cache[string, struct{}]
	status *statusTracker

	// mu guards sub, stopped and rebuildRequested. ForceRebuild and the
	// shutdown watcher close sub from other goroutines.
	mu               sync.Mutex
	sub              *pubsub.Subscriber
	stopped          bool
	rebuildRequested bool
}

// New validates opts and returns a Bridge ready to Run.
func New(opts Options) (*Bridge, error) {
	switch {
	case opts.Dialer == nil:
		return nil, errors.New("bridge: dialer is required")
	case opts.HomeBus == nil:
		return nil, errors.New("bridge: home bus client is required")
	case opts.Acks == nil:
		return nil, errors.New("bridge: ack publisher is required")
	case opts.CommandChannel == "":
		return nil, errors.New("bridge: command channel is required")
	case opts.AckChannel == "":
		return nil, errors.New("bridge: ack channel is required")
	}

	if opts.DedupSize <= 0 {
		opts.DedupSize = defaultDedupSize
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultInitialDelay
	}
	if opts.MaxDelay < opts.InitialDelay {
		opts.MaxDelay = max(defaultMaxDelay, opts.InitialDelay)
	}

	dedup, err := lru.New[string, struct{}](opts.DedupSize)
	if err != nil {
		return nil, fmt.Errorf("bridge: dedup cache: %w", err)
	}

	return &Bridge{
		opts:   opts,
		dedup:  dedup,
		status: newStatusTracker(),
	}, nil
}

// Status returns a snapshot of the bridge state.
func (b *Bridge) Status() Status {
	return b.status.snapshot()
}

// ForceRebuild discards the current subscriber and builds a fresh one, as
// after a protocol error. It returns immediately; the consume loop does
// the work.
//
// A closed subscriber is already being replaced, so a request made while
// a rebuild is under way is absorbed by that rebuild.
func (b *Bridge) ForceRebuild() {
	b.mu.Lock()
	sub := b.sub
	if sub == nil || b.stopped || sub.Closed() {
		b.mu.Unlock()
		return
	}
	b.rebuildRequested = true
	b.mu.Unlock()

	_ = sub.Close() //nolint:errcheck // the loop observes the close
}

// Run subscribes the home bus topics, connects to the platform broker and
// consumes events until ctx is cancelled. Broker outages are retried
// indefinitely; Run returns nil on cancellation and an error only for
// failures recovery cannot address.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.subscribeHomeBus(); err != nil {
		return err
	}

	stopWatch := context.AfterFunc(ctx, b.shutdown)
	defer stopWatch()
	defer b.shutdown()

	sub, err := b.establish(ctx)
	if err != nil {
		return ignoreCancel(ctx, err)
	}

	for {
		_, err := sub.Consume()
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		b.status.setConnected(false)
		b.status.setError(err)

		var connErr *pubsub.ConnectionError
		var protoErr *pubsub.ProtocolError
		switch {
		case b.takeRebuildRequest():
			b.logInfo("rebuilding subscriber on request")
			sub, err = b.rebuild(ctx, sub)
		case errors.As(err, &protoErr):
			b.logError("protocol error, rebuilding subscriber", err)
			sub, err = b.rebuild(ctx, sub)
		case errors.As(err, &connErr):
			b.logWarn("connection lost, reconnecting", "error", err)
			err = b.reconnect(ctx, sub)
			// ForceRebuild may close sub while it reconnects.
			if errors.Is(err, pubsub.ErrClosed) && b.takeRebuildRequest() {
				sub, err = b.rebuild(ctx, sub)
			}
		default:
			return fmt.Errorf("bridge: consume: %w", err)
		}
		if err != nil {
			return ignoreCancel(ctx, err)
		}
	}
}

// subscribeHomeBus follows device acknowledgements and reports.
func (b *Bridge) subscribeHomeBus() error {
	topics := mqtt.Topics{}
	if err := b.opts.HomeBus.Subscribe(topics.AllDeviceAcks(), b.opts.QoS, b.handleDeviceAck); err != nil {
		return fmt.Errorf("bridge: subscribe device acks: %w", err)
	}
	if err := b.opts.HomeBus.Subscribe(topics.AllDeviceReports(), b.opts.QoS, b.handleDeviceReport); err != nil {
		return fmt.Errorf("bridge: subscribe device reports: %w", err)
	}
	return nil
}

// establish dials a subscriber and subscribes the configured names,
// retrying with backoff until it succeeds or ctx ends.
func (b *Bridge) establish(ctx context.Context) (*pubsub.Subscriber, error) {
	var sub *pubsub.Subscriber
	attempts, err := b.retry(ctx, "connect", func() error {
		s, err := b.newSubscriber(ctx)
		if err != nil {
			return err
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !b.install(sub) {
		return nil, context.Canceled
	}
	b.status.setConnected(true)
	b.broadcastConnection("connected", attempts)
	return sub, nil
}

// rebuild abandons old and establishes a fresh subscriber.
func (b *Bridge) rebuild(ctx context.Context, old *pubsub.Subscriber) (*pubsub.Subscriber, error) {
	_ = old.Close() //nolint:errcheck // state is already invalid

	b.broadcastConnection("rebuilding", 0)
	sub, err := b.establish(ctx)
	if err != nil {
		return nil, err
	}
	b.status.update(func(s *Status) { s.Rebuilds++ })
	b.metricsReconnect(modeRebuild, 1)
	return sub, nil
}

// reconnect restores the connection of sub, replaying its subscriptions.
func (b *Bridge) reconnect(ctx context.Context, sub *pubsub.Subscriber) error {
	b.broadcastConnection("reconnecting", 0)
	attempts, err := b.retry(ctx, "reconnect", func() error {
		return sub.Reconnect(ctx)
	})
	if err != nil {
		return err
	}
	b.status.setConnected(true)
	b.status.update(func(s *Status) { s.Reconnects++ })
	b.metricsReconnect(modeReconnect, attempts)
	b.broadcastConnection("connected", attempts)
	return nil
}

// retry calls fn until it succeeds, doubling the delay between attempts
// up to MaxDelay. Usage errors are not retried.
func (b *Bridge) retry(ctx context.Context, op string, fn func() error) (int, error) {
	delay := b.opts.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if errors.Is(err, pubsub.ErrUsage) {
			return attempt, fmt.Errorf("bridge: %s: %w", op, err)
		}

		b.status.setError(err)
		b.logWarn("platform broker unavailable, retrying",
			"op", op,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, b.opts.MaxDelay)
	}
}

// newSubscriber dials and issues the configured subscriptions.
func (b *Bridge) newSubscriber(ctx context.Context) (*pubsub.Subscriber, error) {
	sub, err := pubsub.Dial(ctx, b.opts.Dialer)
	if err != nil {
		return nil, err
	}
	if b.opts.Logger != nil {
		sub.SetLogger(b.opts.Logger)
	}
	b.installCallbacks(ctx, sub)

	if err := sub.Subscribe(b.opts.CommandChannel); err != nil {
		_ = sub.Close() //nolint:errcheck // discarding a failed subscriber
		return nil, err
	}
	if len(b.opts.MonitorPatterns) > 0 {
		if err := sub.PSubscribe(b.opts.MonitorPatterns...); err != nil {
			_ = sub.Close() //nolint:errcheck // discarding a failed subscriber
			return nil, err
		}
	}
	return sub, nil
}

// install makes sub the current subscriber and drops any rebuild request
// aimed at its predecessor. It returns false, closing sub, when shutdown
// already started.
func (b *Bridge) install(sub *pubsub.Subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		_ = sub.Close() //nolint:errcheck // shutting down
		return false
	}
	b.sub = sub
	b.rebuildRequested = false
	return true
}

// shutdown closes the current subscriber, aborting a blocked Consume.
func (b *Bridge) shutdown() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	sub := b.sub
	b.mu.Unlock()

	if sub != nil {
		_ = sub.Close() //nolint:errcheck // shutting down
	}
	b.status.setConnected(false)
}

func (b *Bridge) takeRebuildRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	requested := b.rebuildRequested
	b.rebuildRequested = false
	return requested
}

func ignoreCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (b *Bridge) broadcast(channel string, payload any) {
	if b.opts.Events != nil {
		b.opts.Events.Broadcast(channel, payload)
	}
}

func (b *Bridge) broadcastConnection(state string, attempts int) {
	b.broadcast(EventConnection, map[string]any{
		"link":     "platform",
		"state":    state,
		"attempts": attempts,
	})
}

func (b *Bridge) metricsReconnect(mode string, attempts int) {
	if b.opts.Metrics != nil {
		b.opts.Metrics.WriteReconnect(mode, attempts)
	}
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if b.opts.Logger != nil {
		b.opts.Logger.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if b.opts.Logger != nil {
		b.opts.Logger.Warn(msg, args...)
	}
}

func (b *Bridge) logDebug(msg string, args ...any) {
	if b.opts.Logger != nil {
		b.opts.Logger.Debug(msg, args...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if b.opts.Logger != nil {
		b.opts.Logger.Error(msg, "error", err)
	}
}
