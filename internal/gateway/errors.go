package gateway

import (
	"errors"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
)

// Domain errors for the gateway package.
var (
	// ErrConfiguration is returned by NewSession when credentials or the
	// device list are missing. It is fatal at startup and never retried.
	ErrConfiguration = errors.New("gateway: invalid configuration")

	// ErrUnknownTopic is returned when a message arrives on a topic no
	// device is bound to. The message is discarded.
	ErrUnknownTopic = errors.New("gateway: no device bound to topic")

	// ErrDeviceNotFound is returned when a command names an unregistered device.
	ErrDeviceNotFound = errors.New("gateway: device not found")

	// ErrUnsupportedOperation is returned when a device family does not
	// accept the requested verb.
	ErrUnsupportedOperation = device.ErrUnsupportedOperation

	// ErrNotConnected is returned when publishing while the session is not connected.
	ErrNotConnected = errors.New("gateway: not connected to broker")

	// ErrConnection is returned when the initial broker connection fails.
	ErrConnection = errors.New("gateway: broker connection failed")

	// ErrSubscribe marks a status topic the broker refused.
	ErrSubscribe = errors.New("gateway: subscribe failed")

	// ErrStopped is returned by operations on a stopped session.
	ErrStopped = errors.New("gateway: session stopped")
)
