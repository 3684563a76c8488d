package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the home bus: the proxy publishes
// device commands through it and follows device acknowledgements and
// reports.
//
// The session is clean, so the broker forgets subscriptions when the link
// drops. The client keeps its own list and replays it on every reconnect;
// a topic that cannot be restored is logged and counted in Stats, because
// a missing greenhome/ack/+ subscription silently drops device answers.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// stateMu guards the connection bookkeeping reported by Stats.
	stateMu           sync.RWMutex
	connected         bool
	awaitingReconnect bool
	reconnects        int
	disconnects       int
	failedRestores    int
	lastDisconnect    time.Time
	lastError         string

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Stats describes the home bus link for monitoring.
type Stats struct {
	Connected      bool      `json:"connected"`
	Subscriptions  int       `json:"subscriptions"`
	Reconnects     int       `json:"reconnects"`
	Disconnects    int       `json:"disconnects"`
	FailedRestores int       `json:"failed_restores"`
	LastDisconnect time.Time `json:"last_disconnect,omitzero"`
	LastError      string    `json:"last_error,omitempty"`
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library and
// should not block for long. A returned error is logged; the message is
// acknowledged either way.
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the home bus broker.
//
// The broker is told to publish a retained offline status if the proxy
// vanishes (LWT); an online status is published on every connect. Paho
// reconnects automatically with backoff between
// mqtt.reconnect.initial_delay and max_delay.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			c.stateMu.RLock()
			since := time.Since(c.lastDisconnect).Round(time.Second)
			c.stateMu.RUnlock()
			logger.Warn("home bus reconnecting",
				"broker", cfg.Broker.Host,
				"down_for", since,
			)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if err := waitToken(token, defaultConnectTimeout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have run yet.
	c.stateMu.Lock()
	c.connected = true
	c.stateMu.Unlock()

	return c, nil
}

// handleConnect runs on the initial connect and on every reconnect.
func (c *Client) handleConnect() {
	c.stateMu.Lock()
	c.connected = true
	reconnected := c.awaitingReconnect
	if reconnected {
		c.awaitingReconnect = false
		c.reconnects++
	}
	c.stateMu.Unlock()

	restored, failed := c.restoreSubscriptions()
	c.publishOnlineStatus()

	if reconnected {
		if logger := c.getLogger(); logger != nil {
			logger.Info("home bus reconnected",
				"subscriptions_restored", restored,
				"subscriptions_failed", failed,
			)
		}
	}

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect records why the link dropped and arms reconnect counting.
func (c *Client) handleDisconnect(err error) {
	c.stateMu.Lock()
	c.connected = false
	c.awaitingReconnect = true
	c.disconnects++
	c.lastDisconnect = time.Now().UTC()
	if err != nil {
		c.lastError = err.Error()
	}
	c.stateMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("home bus connection lost", "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions replays every tracked topic and waits for each
// SUBACK. Paho calls the connect handler on its own goroutine, so waiting
// here does not stall the network loop.
func (c *Client) restoreSubscriptions() (restored, failed int) {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		if err := waitToken(token, defaultPublishTimeout); err != nil {
			failed++
			if logger := c.getLogger(); logger != nil {
				logger.Error("restoring home bus subscription failed",
					"topic", sub.topic,
					"error", err,
				)
			}
			continue
		}
		restored++
	}

	if failed > 0 {
		c.stateMu.Lock()
		c.failedRestores += failed
		c.stateMu.Unlock()
	}
	return restored, failed
}

// publishOnlineStatus publishes the retained online status for this proxy.
func (c *Client) publishOnlineStatus() {
	topic := Topics{}.ProxyStatus(c.cfg.Broker.ClientID)
	c.client.Publish(topic, byte(c.cfg.QoS), true, statusPayload(c.cfg.Broker.ClientID, "online", ""))
}

// Close publishes a graceful offline status, distinct from the LWT crash
// status, and disconnects after letting pending publishes drain.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		topic := Topics{}.ProxyStatus(c.cfg.Broker.ClientID)
		payload := statusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown")
		token := c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.stateMu.Lock()
	c.connected = false
	c.stateMu.Unlock()

	return nil
}

// HealthCheck reports ErrNotConnected while the link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// Stats returns a snapshot of the link state.
func (c *Client) Stats() Stats {
	c.stateMu.RLock()
	s := Stats{
		Reconnects:     c.reconnects,
		Disconnects:    c.disconnects,
		FailedRestores: c.failedRestores,
		LastDisconnect: c.lastDisconnect,
		LastError:      c.lastError,
	}
	c.stateMu.RUnlock()

	s.Connected = c.IsConnected()
	s.Subscriptions = c.SubscriptionCount()
	return s
}

// SetOnConnect sets a callback invoked on the initial connect and on every
// reconnect, after subscriptions are restored.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for link events and handler failures.
// If not set, they are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}

// waitToken waits for a paho token and returns its error, or a timeout error.
func waitToken(token pahomqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timeout after %v", timeout)
	}
	return token.Error()
}
