// Package logging provides structured logging for the gateway.
//
// It wraps log/slog with JSON or text output, level filtering, and
// service/version attributes on every record:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("session").Info("connected", "broker", url)
//
// Never log broker passwords or InfluxDB tokens.
package logging
