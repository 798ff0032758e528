package gateway

import "time"

// HealthStatus represents the operational status of the gateway.
type HealthStatus string

const (
	// HealthHealthy indicates the broker link is up and every topic is subscribed.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the gateway is running with issues, such as a
	// lost broker connection or a refused subscription.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the gateway is gone (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the gateway is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the gateway is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports gateway status.
// Topic: {prefix}/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Gateway is the gateway identifier.
	Gateway string `json:"gateway"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	Status HealthStatus `json:"status"`

	Version string `json:"version,omitempty"`

	UptimeSeconds int64 `json:"uptime_seconds"`

	// Connection describes the broker link.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	Statistics *Statistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of registered devices.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the broker connection state.
type ConnectionStatus struct {
	// Status is "connected", "connecting" or "disconnected".
	Status string `json:"status"`

	ConnectedSince *time.Time `json:"connected_since,omitempty"`

	ReconnectAttempts int `json:"reconnect_attempts"`

	// FailedSubscriptions counts status topics the broker refused.
	FailedSubscriptions int `json:"failed_subscriptions"`
}

// Statistics contains inbound message counters.
type Statistics struct {
	MessagesReceived uint64 `json:"messages_received"`
	DecodeErrors     uint64 `json:"decode_errors"`
	UnknownTopics    uint64 `json:"unknown_topics"`
	ReportsDropped   uint64 `json:"reports_dropped"`
}

// NewHealthMessage builds a health message from a session snapshot.
func NewHealthMessage(gatewayID, version string, status HealthStatus, st Status, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Gateway:        gatewayID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		DevicesManaged: st.Devices,
		Connection: &ConnectionStatus{
			Status:              st.State.String(),
			ReconnectAttempts:   st.ReconnectAttempts,
			FailedSubscriptions: st.FailedSubscriptions(),
		},
		Statistics: &Statistics{
			MessagesReceived: st.MessagesReceived,
			DecodeErrors:     st.DecodeErrors,
			UnknownTopics:    st.UnknownTopics,
			ReportsDropped:   st.ReportsDropped,
		},
	}

	if !st.ConnectedSince.IsZero() {
		since := st.ConnectedSince
		msg.Connection.ConnectedSince = &since
	}

	return msg
}

// NewLWTMessage creates a Last Will and Testament message for MQTT.
// This message is published by the broker if the gateway disconnects unexpectedly.
func NewLWTMessage(gatewayID string) HealthMessage {
	return HealthMessage{
		Gateway:   gatewayID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// HealthTopic returns the retained health topic under prefix.
// Example: mqttgw/health
func HealthTopic(prefix string) string {
	return prefix + "/health"
}
