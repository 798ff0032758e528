// Package metrics exposes gateway counters to Prometheus.
//
// Every Record method is safe on a nil *Metrics, so components can run
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mqttgw"

// Metrics contains all gateway metrics.
type Metrics struct {
	registry *prometheus.Registry

	MessagesReceived  *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	UnknownTopics     prometheus.Counter
	Transitions       *prometheus.CounterVec
	DecodeDuration    prometheus.Histogram
	CommandsPublished *prometheus.CounterVec
	CommandErrors     *prometheus.CounterVec
	SubscribeFailures prometheus.Counter
	Reconnects        prometheus.Counter
	Connected         prometheus.Gauge
	ReportsDropped    prometheus.Counter
}

// New creates the metrics on a private registry that also carries Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "messages_received_total",
			Help:      "Status messages routed to a device, by family",
		}, []string{"family"}),

		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "decode_errors_total",
			Help:      "Status payloads rejected by the device decoder, by family",
		}, []string{"family"}),

		UnknownTopics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "unknown_topic_total",
			Help:      "Messages received on a topic no device is bound to",
		}),

		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "transitions_total",
			Help:      "Edge-triggered transition events, by kind",
		}, []string{"kind"}),

		DecodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "decode_duration_seconds",
			Help:      "Time spent decoding one status message",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),

		CommandsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "published_total",
			Help:      "Commands executed, by verb",
		}, []string{"verb"}),

		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "errors_total",
			Help:      "Commands refused or failed, by reason",
		}, []string{"reason"}),

		SubscribeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "subscribe_failures_total",
			Help:      "Status topic subscriptions refused by the broker",
		}),

		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnection attempts after an unclean disconnect",
		}),

		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "connected",
			Help:      "Broker connection status (0=disconnected, 1=connected)",
		}),

		ReportsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "dropped_total",
			Help:      "Reports dropped because the report queue was full",
		}),
	}

	m.registry.MustRegister(
		m.MessagesReceived,
		m.DecodeErrors,
		m.UnknownTopics,
		m.Transitions,
		m.DecodeDuration,
		m.CommandsPublished,
		m.CommandErrors,
		m.SubscribeFailures,
		m.Reconnects,
		m.Connected,
		m.ReportsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordMessage counts one status message routed to a device of family.
func (m *Metrics) RecordMessage(family string, took time.Duration) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(family).Inc()
	m.DecodeDuration.Observe(took.Seconds())
}

// RecordDecodeError counts one rejected payload.
func (m *Metrics) RecordDecodeError(family string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(family).Inc()
}

// RecordUnknownTopic counts one message on an unbound topic.
func (m *Metrics) RecordUnknownTopic() {
	if m == nil {
		return
	}
	m.UnknownTopics.Inc()
}

// RecordTransition counts one DON/DOF event.
func (m *Metrics) RecordTransition(kind string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(kind).Inc()
}

// RecordCommand counts one executed command.
func (m *Metrics) RecordCommand(verb string) {
	if m == nil {
		return
	}
	m.CommandsPublished.WithLabelValues(verb).Inc()
}

// RecordCommandError counts one refused or failed command.
func (m *Metrics) RecordCommandError(reason string) {
	if m == nil {
		return
	}
	m.CommandErrors.WithLabelValues(reason).Inc()
}

// RecordSubscribeFailure counts one refused subscription.
func (m *Metrics) RecordSubscribeFailure() {
	if m == nil {
		return
	}
	m.SubscribeFailures.Inc()
}

// RecordReconnect counts one reconnection attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// RecordConnected updates the connection gauge.
func (m *Metrics) RecordConnected(connected bool) {
	if m == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	m.Connected.Set(value)
}

// RecordReportDropped counts one report lost to a full queue.
func (m *Metrics) RecordReportDropped() {
	if m == nil {
		return
	}
	m.ReportsDropped.Inc()
}
