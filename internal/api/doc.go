// Package api implements the HTTP and WebSocket surface of the gateway.
//
// This package provides:
//   - Health, device listing and current device reports
//   - Command submission routed through the gateway's command router
//   - Event journal queries
//   - The Prometheus scrape endpoint
//   - A WebSocket hub streaming state reports and transition events
//
// # Architecture
//
// The API is a supervisory collaborator. Reads come straight from the device
// registry. Commands go through the same router as MQTT supervisory commands,
// so an HTTP command and an MQTT command produce identical broker traffic.
// The Hub implements gateway.Reporter and is added to the reporter fan-out.
//
// # Graceful Degradation
//
// The server runs while the broker is down. Reads and WebSocket connections
// keep working; commands fail with 503 until the session reconnects.
package api
