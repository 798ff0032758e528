package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// DefaultHealthInterval is used when HealthReporterConfig.Interval is zero.
const DefaultHealthInterval = 30 * time.Second

// HealthReporter manages periodic health status reporting.
// It publishes retained health messages through the session at a fixed
// interval and on every connection state change.
type HealthReporter struct {
	gatewayID string
	version   string
	topic     string
	startTime time.Time
	interval  time.Duration
	session   *Session

	stopping bool
	mu       sync.Mutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	GatewayID string
	Version   string

	// TopicPrefix is the gateway topic prefix; health goes to {prefix}/health.
	TopicPrefix string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	Session *Session
}

// NewHealthReporter creates a new health reporter and registers it for
// session state changes. Call Start to begin periodic reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultHealthInterval
	}

	h := &HealthReporter{
		gatewayID: cfg.GatewayID,
		version:   cfg.Version,
		topic:     HealthTopic(cfg.TopicPrefix),
		startTime: time.Now(),
		interval:  interval,
		session:   cfg.Session,
		done:      make(chan struct{}),
		logger:    noopLogger{},
	}

	if h.session != nil {
		h.session.OnStateChange(h.onStateChange)
	}
	return h
}

// Start begins periodic health reporting.
// Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop halts reporting and publishes a final "stopping" status.
// Call before the session stops so the message can still be sent.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.stopping = true
		h.mu.Unlock()

		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown, nothing we can do if it fails
		h.publish(h.message(HealthStopping, "gateway stopping"))
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// Topic returns the health topic.
func (h *HealthReporter) Topic() string {
	return h.topic
}

// Current returns the health message for the present session state.
func (h *HealthReporter) Current() HealthMessage {
	h.mu.Lock()
	stopping := h.stopping
	h.mu.Unlock()

	if stopping {
		return h.message(HealthStopping, "gateway stopping")
	}
	status, reason := h.determineStatus()
	return h.message(status, reason)
}

// PublishNow publishes the current health status immediately.
// Nothing is sent while the broker is unreachable; the LWT covers that case.
func (h *HealthReporter) PublishNow() error {
	if h.session == nil || h.session.State() != StateConnected {
		return nil
	}
	return h.publish(h.Current())
}

// GetLWTPayload returns the Last Will and Testament message payload.
func (h *HealthReporter) GetLWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage(h.gatewayID))
}

func (h *HealthReporter) onStateChange(State) {
	h.mu.Lock()
	stopping := h.stopping
	h.mu.Unlock()
	if stopping {
		return
	}

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish health", err)
	}
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current gateway status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.session == nil {
		return HealthStarting, "session not created"
	}

	st := h.session.Status()
	switch st.State {
	case StateConnecting:
		if st.ReconnectAttempts == 0 {
			return HealthStarting, "connecting to broker"
		}
		return HealthDegraded, fmt.Sprintf("reconnecting to broker (attempt %d)", st.ReconnectAttempts)
	case StateDisconnected:
		return HealthDegraded, "broker disconnected"
	}

	if failed := st.FailedSubscriptions(); failed > 0 {
		return HealthDegraded, fmt.Sprintf("%d status topics not subscribed", failed)
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	var st Status
	if h.session != nil {
		st = h.session.Status()
	}
	msg := NewHealthMessage(h.gatewayID, h.version, status, st, h.startTime)
	msg.Reason = reason
	return msg
}

// publish sends msg retained.
func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.session == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.session.Publish(h.topic, payload, true)
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()
	logger.Error(msg, "error", err)
}
