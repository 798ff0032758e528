package gateway

import "context"

// MessageHandler processes one inbound broker message.
type MessageHandler = func(topic string, payload []byte) error

// Broker is the pub/sub client primitive the session drives.
//
// Implementations invoke the OnConnect callback after every successful
// connect, including automatic reconnects, and the OnConnectionLost callback
// only for unexpected drops. A nil error passed to OnConnectionLost means the
// drop was clean.
type Broker interface {
	Connect(ctx context.Context) error

	// Reconnect re-establishes a lost connection. Clients that reconnect on
	// their own may return nil immediately.
	Reconnect(ctx context.Context) error

	Disconnect()
	Subscribe(topic string, handler MessageHandler) error

	// Publish hands one message to the client's send buffer.
	Publish(topic string, payload []byte, retained bool) error

	IsConnected() bool
	SetOnConnect(callback func())
	SetOnConnectionLost(callback func(err error))
}

// Logger defines the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
