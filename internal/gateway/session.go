package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
	"github.com/nerrad567/mqtt-device-gateway/internal/metrics"
)

// State is the broker connection state of a Session.
type State int

// Session states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SessionConfig tunes the session lifecycle.
type SessionConfig struct {
	// ConnectTimeout bounds the initial connect and each reconnect attempt.
	// Zero leaves the bound to the broker client.
	ConnectTimeout time.Duration

	// RetryInterval is the delay before retrying a failed reconnect.
	// Zero leaves retrying to the broker client's own backoff.
	RetryInterval time.Duration

	// MaxReconnectAttempts caps consecutive reconnect attempts. Zero is unlimited.
	MaxReconnectAttempts int

	// ReportQueueSize is the capacity of the report queue.
	ReportQueueSize int
}

// SubscriptionResult is the outcome of one subscribe call.
type SubscriptionResult struct {
	Topic      string `json:"topic"`
	Subscribed bool   `json:"subscribed"`
	Error      string `json:"error,omitempty"`
}

// Status is a point-in-time snapshot of the session.
type Status struct {
	State             State                `json:"state"`
	ConnectedSince    time.Time            `json:"connected_since,omitzero"`
	ReconnectAttempts int                  `json:"reconnect_attempts"`
	Devices           int                  `json:"devices"`
	Subscriptions     []SubscriptionResult `json:"subscriptions"`
	MessagesReceived  uint64               `json:"messages_received"`
	DecodeErrors      uint64               `json:"decode_errors"`
	UnknownTopics     uint64               `json:"unknown_topics"`
	ReportsDropped    uint64               `json:"reports_dropped"`
}

// FailedSubscriptions counts topics the broker refused.
func (s Status) FailedSubscriptions() int {
	n := 0
	for _, sub := range s.Subscriptions {
		if !sub.Subscribed {
			n++
		}
	}
	return n
}

type subscription struct {
	topic   string
	handler MessageHandler
}

// Session owns the broker connection lifecycle and routes inbound status
// messages to device models.
//
// Lifecycle: NewSession → Start → (connect, subscribe, query pass, then
// message routing; unclean drops reconnect) → Stop.
type Session struct {
	registry *device.Registry
	broker   Broker
	cfg      SessionConfig
	dispatch *dispatcher

	mu             sync.Mutex
	state          State
	started        bool
	stopped        bool
	attempts       int
	connectedSince time.Time
	subscriptions  []SubscriptionResult
	extra          []subscription
	listeners      []func(State)
	retry          *time.Timer
	ctx            context.Context
	cancel         context.CancelFunc
	stopOnce       sync.Once

	received     atomic.Uint64
	decodeErrors atomic.Uint64
	unknown      atomic.Uint64
	dropped      atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
	metrics  *metrics.Metrics
}

// NewSession creates a session over registry and broker.
// Reports are delivered to reporter, which may be nil.
//
// Returns ErrConfiguration when the registry holds no devices or broker is nil.
func NewSession(registry *device.Registry, broker Broker, reporter Reporter, cfg SessionConfig) (*Session, error) {
	if broker == nil {
		return nil, fmt.Errorf("%w: broker client is required", ErrConfiguration)
	}
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("%w: no devices registered", ErrConfiguration)
	}

	s := &Session{
		registry: registry,
		broker:   broker,
		cfg:      cfg,
		logger:   noopLogger{},
	}
	s.dispatch = newDispatcher(reporter, cfg.ReportQueueSize, s.getLogger)
	return s, nil
}

// SetLogger sets the logger for this session.
func (s *Session) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// SetMetrics attaches Prometheus collectors. Call before Start.
func (s *Session) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Registry returns the device registry the session routes to.
func (s *Session) Registry() *device.Registry {
	return s.registry
}

// OnStateChange registers fn to run after every state transition.
// fn must not block.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// AddSubscription subscribes handler to topic on every connect, after the
// status topics. If the session is already connected it subscribes now.
func (s *Session) AddSubscription(topic string, handler MessageHandler) error {
	s.mu.Lock()
	s.extra = append(s.extra, subscription{topic: topic, handler: handler})
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected {
		return nil
	}
	if err := s.broker.Subscribe(topic, handler); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribe, topic, err)
	}
	return nil
}

// Start connects to the broker. Subscriptions and the query pass follow
// from the broker's connect callback.
//
// A failed initial connect is returned wrapped in ErrConnection and is not
// retried; the session is stopped.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.broker.SetOnConnect(s.HandleConnect)
	s.broker.SetOnConnectionLost(s.HandleConnectionLost)
	s.dispatch.run()

	s.setState(StateConnecting)
	s.getLogger().Info("connecting to broker", "devices", s.registry.Len(), "topics", len(s.registry.Topics()))

	connectCtx, cancel := s.attemptContext()
	defer cancel()

	if err := s.broker.Connect(connectCtx); err != nil {
		s.getLogger().Error("initial broker connection failed", "error", err)
		s.Stop()
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return nil
}

// HandleConnect runs after every successful connect: it resets the retry
// state, subscribes every status topic and replays every device.
func (s *Session) HandleConnect() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	reconnected := s.attempts > 0
	s.attempts = 0
	s.stopRetryLocked()
	s.connectedSince = time.Now().UTC()
	s.mu.Unlock()

	s.metrics.RecordConnected(true)
	s.setState(StateConnected)
	s.getLogger().Info("connected to broker", "reconnected", reconnected)

	s.subscribeAll()
	s.queryAll()
}

// HandleConnectionLost runs when the broker link drops. A nil err is a clean
// disconnect and is not followed by a reconnect.
func (s *Session) HandleConnectionLost(err error) {
	s.mu.Lock()
	stopped := s.stopped
	s.connectedSince = time.Time{}
	s.mu.Unlock()

	s.metrics.RecordConnected(false)
	s.setState(StateDisconnected)

	if stopped || err == nil {
		s.getLogger().Info("broker disconnected")
		return
	}

	s.getLogger().Warn("broker connection lost", "error", err)
	s.reconnect()
}

// reconnect makes one attempt and schedules the next on failure.
func (s *Session) reconnect() {
	s.mu.Lock()
	if s.stopped || s.state == StateConnected {
		s.mu.Unlock()
		return
	}
	if limit := s.cfg.MaxReconnectAttempts; limit > 0 && s.attempts >= limit {
		attempts := s.attempts
		s.mu.Unlock()
		s.getLogger().Error("reconnect attempts exhausted, session stays disconnected", "attempts", attempts)
		return
	}
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	s.metrics.RecordReconnect()
	s.setState(StateConnecting)
	s.getLogger().Info("reconnecting to broker", "attempt", attempt)

	ctx, cancel := s.attemptContext()
	defer cancel()

	if err := s.broker.Reconnect(ctx); err != nil {
		s.setState(StateDisconnected)
		s.getLogger().Error("reconnect failed", "attempt", attempt, "error", err)
		s.scheduleRetry()
	}
}

func (s *Session) scheduleRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.cfg.RetryInterval <= 0 || s.retry != nil {
		return
	}
	s.retry = time.AfterFunc(s.cfg.RetryInterval, func() {
		s.mu.Lock()
		s.retry = nil
		s.mu.Unlock()
		s.reconnect()
	})
}

// stopRetryLocked cancels a pending retry. Caller holds mu.
func (s *Session) stopRetryLocked() {
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

// attemptContext derives a context bounded by ConnectTimeout.
func (s *Session) attemptContext() (context.Context, context.CancelFunc) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if s.cfg.ConnectTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	}
	return context.WithCancel(ctx)
}

// subscribeAll subscribes each distinct status topic, then the extra topics.
// A refused topic is logged and recorded; the others still subscribe.
func (s *Session) subscribeAll() {
	logger := s.getLogger()
	topics := s.registry.Topics()
	results := make([]SubscriptionResult, 0, len(topics))
	failed := 0

	for _, topic := range topics {
		result := SubscriptionResult{Topic: topic, Subscribed: true}
		if err := s.broker.Subscribe(topic, s.onMessage); err != nil {
			failed++
			result.Subscribed = false
			result.Error = err.Error()
			s.metrics.RecordSubscribeFailure()
			logger.Error("status topic subscribe failed",
				"topic", topic,
				"error", fmt.Errorf("%w: %w", ErrSubscribe, err),
			)
		} else {
			logger.Debug("status topic subscribed", "topic", topic, "devices", len(s.registry.Lookup(topic)))
		}
		results = append(results, result)
	}

	s.mu.Lock()
	s.subscriptions = results
	extra := make([]subscription, len(s.extra))
	copy(extra, s.extra)
	s.mu.Unlock()

	for _, sub := range extra {
		if err := s.broker.Subscribe(sub.topic, sub.handler); err != nil {
			failed++
			s.metrics.RecordSubscribeFailure()
			logger.Error("subscribe failed", "topic", sub.topic, "error", err)
		}
	}

	logger.Info("subscriptions complete", "topics", len(topics)+len(extra), "failed", failed)
}

// queryAll replays every device so the supervisory side starts from current state.
func (s *Session) queryAll() {
	for _, m := range s.registry.Models() {
		if err := s.Query(m); err != nil {
			s.getLogger().Warn("device query failed", "device_id", m.Descriptor().ID, "error", err)
		}
	}
}

// Query replays the full current report of m and publishes its query
// command, if the family has one.
func (s *Session) Query(m device.Model) error {
	cmd, err := m.BuildCommand(device.VerbQuery, nil)
	if err != nil {
		return err
	}
	s.report(m, nil)
	if !cmd.Publishes() {
		return nil
	}
	return s.Publish(cmd.Topic, cmd.Payload, false)
}

// onMessage is the broker handler for status topics. Deliver logs every failure.
func (s *Session) onMessage(topic string, payload []byte) error {
	s.Deliver(topic, payload) //nolint:errcheck // logged inside Deliver
	return nil
}

// Deliver routes one inbound message to every device bound to topic.
//
// A message on an unbound topic is discarded and returns ErrUnknownTopic.
// Decode errors are isolated per device; the returned error joins them.
func (s *Session) Deliver(topic string, payload []byte) error {
	if s.isStopped() {
		return ErrStopped
	}

	models := s.registry.Lookup(topic)
	if len(models) == 0 {
		s.unknown.Add(1)
		s.metrics.RecordUnknownTopic()
		s.getLogger().Warn("message on unknown topic discarded", "topic", topic, "bytes", len(payload))
		return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	var errs []error
	for _, m := range models {
		if err := s.apply(m, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) apply(m device.Model, payload []byte) error {
	desc := m.Descriptor()
	logger := s.getLogger()

	start := time.Now()
	update, err := m.ApplyStatus(payload)
	s.received.Add(1)
	s.metrics.RecordMessage(string(desc.Family), time.Since(start))

	if err != nil {
		s.decodeErrors.Add(1)
		s.metrics.RecordDecodeError(string(desc.Family))
		logger.Error("status payload rejected",
			"device_id", desc.ID,
			"family", string(desc.Family),
			"topic", desc.StatusTopic,
			"error", err,
		)
		return err
	}

	for _, rec := range update.Recovered {
		logger.Error("status value substituted",
			"device_id", desc.ID,
			"family", string(desc.Family),
			"error", rec,
		)
	}
	for _, ev := range update.Events {
		s.metrics.RecordTransition(string(ev.Kind))
		logger.Debug("device transition", "device_id", desc.ID, "event", string(ev.Kind))
	}

	if len(update.Changed) > 0 || len(update.Events) > 0 {
		s.report(m, update.Events)
	}
	return nil
}

// report queues the full current report of m and any events.
func (s *Session) report(m device.Model, events []device.Event) {
	desc := m.Descriptor()
	if s.dispatch.enqueue(job{desc: desc, report: m.Report(), events: events}) {
		return
	}
	s.dropped.Add(1)
	s.metrics.RecordReportDropped()
	s.getLogger().Warn("report queue full, report dropped", "device_id", desc.ID, "events", len(events))
}

// Publish sends one message through the broker. Commands are never retained
// by callers; retained is used for supervisory state topics.
func (s *Session) Publish(topic string, payload []byte, retained bool) error {
	s.mu.Lock()
	stopped, state := s.stopped, s.state
	s.mu.Unlock()

	if stopped {
		return ErrStopped
	}
	if state != StateConnected {
		return ErrNotConnected
	}
	return s.broker.Publish(topic, payload, retained)
}

// Stop drains pending reports, then disconnects cleanly. Inbound messages
// are refused from the first call. Safe to call multiple times.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.stopRetryLocked()
		cancel := s.cancel
		s.mu.Unlock()

		s.dispatch.stop()
		s.broker.Disconnect()
		if cancel != nil {
			cancel()
		}

		s.metrics.RecordConnected(false)
		s.setState(StateDisconnected)
		s.getLogger().Info("session stopped")
	})
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		State:             s.state,
		ConnectedSince:    s.connectedSince,
		ReconnectAttempts: s.attempts,
		Devices:           s.registry.Len(),
		Subscriptions:     make([]SubscriptionResult, len(s.subscriptions)),
	}
	copy(st.Subscriptions, s.subscriptions)
	s.mu.Unlock()

	st.MessagesReceived = s.received.Load()
	st.DecodeErrors = s.decodeErrors.Load()
	st.UnknownTopics = s.unknown.Load()
	st.ReportsDropped = s.dropped.Load()
	return st
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Session) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}
