package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqtt-device-gateway/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the gateway session.
//
// The client does not remember subscriptions: the owner re-subscribes from
// its OnConnect callback, which fires on the first connect and on every
// reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	connectTimeout time.Duration
	publishTimeout time.Duration

	onConnect        func()
	onConnectionLost func(err error)
	callbackMu       sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
// A returned error is logged; it does not affect acknowledgement.
type MessageHandler = func(topic string, payload []byte) error

// New validates cfg and prepares a client. It does not connect.
func New(cfg config.MQTTConfig, options ...Option) (*Client, error) {
	if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}

	opts := buildClientOptions(cfg)
	for _, apply := range options {
		apply(opts)
	}

	c := &Client{
		cfg:            cfg,
		connectTimeout: seconds(cfg.ConnectTimeout, defaultConnectTimeout),
		publishTimeout: seconds(cfg.PublishTimeout, defaultPublishTimeout),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.callbackMu.RLock()
		callback := c.onConnect
		c.callbackMu.RUnlock()
		if callback != nil {
			callback()
		}
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.callbackMu.RLock()
		callback := c.onConnectionLost
		c.callbackMu.RUnlock()
		if callback != nil {
			callback(err)
		}
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT reconnecting", "broker", brokerURL(cfg))
		}
	})

	c.client = pahomqtt.NewClient(opts)
	return c, nil
}

// Broker returns the broker URL the client connects to.
func (c *Client) Broker() string {
	return brokerURL(c.cfg)
}

// Connect makes one connection attempt bounded by the connect timeout and ctx.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()

	timer := time.NewTimer(c.connectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, c.connectTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// Reconnect restores a lost connection. With reconnect.auto paho is already
// retrying in the background, so this only reports success; OnConnect fires
// when the link is back.
func (c *Client) Reconnect(ctx context.Context) error {
	if c.cfg.Reconnect.Auto {
		return nil
	}
	return c.Connect(ctx)
}

// Disconnect closes the connection cleanly. The connection-lost callback
// is not invoked.
func (c *Client) Disconnect() {
	if c.client == nil {
		return
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
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

// IsConnected reports whether the connection is currently open.
// It is false while paho is reconnecting.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}

// SetOnConnect sets a callback invoked on every successful connect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnConnectionLost sets a callback invoked when the link drops unexpectedly.
func (c *Client) SetOnConnectionLost(callback func(err error)) {
	c.callbackMu.Lock()
	c.onConnectionLost = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
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
