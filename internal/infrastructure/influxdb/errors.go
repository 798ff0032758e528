package influxdb

import "errors"

var (
	// ErrClosed is returned by reports written after Close.
	ErrClosed = errors.New("influxdb: sink closed")

	// ErrConnectionFailed indicates the server could not be reached at Open.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates InfluxDB integration is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
