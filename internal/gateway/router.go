package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
	"github.com/nerrad567/mqtt-device-gateway/internal/metrics"
)

// Command error reasons, used as metric labels and in acknowledgements.
const (
	ReasonNotFound      = "not_found"
	ReasonUnsupported   = "unsupported"
	ReasonInvalidParams = "invalid_parameters"
	ReasonNotConnected  = "not_connected"
	ReasonPublish       = "publish_failed"
)

// Router executes supervisory commands against device models.
//
// Commands are fire-and-forget: Execute returns once the message is handed
// to the broker client. Device state is corrected by the next status payload.
type Router struct {
	session *Session
	journal device.HistoryRepository
	metrics *metrics.Metrics

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRouter creates a router that publishes through session.
func NewRouter(session *Session) *Router {
	return &Router{
		session: session,
		logger:  noopLogger{},
	}
}

// SetJournal records every executed command in repo.
func (r *Router) SetJournal(repo device.HistoryRepository) {
	r.journal = repo
}

// SetMetrics attaches Prometheus collectors.
func (r *Router) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// SetLogger sets the logger for this router.
func (r *Router) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

// Execute builds and publishes verb for device id.
//
// Errors:
//   - ErrDeviceNotFound when id is not registered
//   - ErrUnsupportedOperation when the family does not accept verb
//   - device.ErrInvalidParameters when params cannot be applied
//   - ErrNotConnected or a broker error when publishing fails
//
// The returned Command is what was published; its Topic is empty when the
// verb publishes nothing.
func (r *Router) Execute(ctx context.Context, id string, verb device.Verb, params device.Params) (device.Command, error) {
	logger := r.getLogger()

	m, ok := r.session.Registry().Get(id)
	if !ok {
		r.metrics.RecordCommandError(ReasonNotFound)
		logger.Warn("command for unknown device", "device_id", id, "verb", string(verb))
		return device.Command{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
	}

	desc := m.Descriptor()
	if !device.Supports(m, verb) {
		r.metrics.RecordCommandError(ReasonUnsupported)
		logger.Warn("unsupported command",
			"device_id", desc.ID,
			"family", string(desc.Family),
			"verb", string(verb),
		)
		return device.Command{}, fmt.Errorf("%w: %s does not accept %q", ErrUnsupportedOperation, desc.Family, verb)
	}

	if verb == device.VerbQuery {
		if err := r.session.Query(m); err != nil {
			r.metrics.RecordCommandError(Reason(err))
			return device.Command{}, err
		}
		r.metrics.RecordCommand(string(verb))
		return device.Command{DeviceID: desc.ID, Verb: verb}, nil
	}

	cmd, err := m.BuildCommand(verb, params)
	if err != nil {
		r.metrics.RecordCommandError(Reason(err))
		logger.Warn("command rejected", "device_id", desc.ID, "verb", string(verb), "error", err)
		return device.Command{}, err
	}

	if cmd.Publishes() {
		if err := r.session.Publish(cmd.Topic, cmd.Payload, false); err != nil {
			r.metrics.RecordCommandError(Reason(err))
			logger.Error("command publish failed",
				"device_id", desc.ID,
				"verb", string(verb),
				"topic", cmd.Topic,
				"error", err,
			)
			return cmd, err
		}
	}

	if c, ok := m.(device.Committer); ok {
		c.Commit(cmd)
		r.session.report(m, nil)
	}

	r.metrics.RecordCommand(string(verb))
	logger.Info("command published",
		"device_id", desc.ID,
		"verb", string(verb),
		"topic", cmd.Topic,
		"payload", string(cmd.Payload),
	)
	r.record(ctx, cmd)
	return cmd, nil
}

// record appends cmd to the journal. Failures are logged only.
func (r *Router) record(ctx context.Context, cmd device.Command) {
	if r.journal == nil {
		return
	}
	entry := device.HistoryEntry{
		DeviceID:  cmd.DeviceID,
		Event:     string(cmd.Verb),
		Detail:    string(cmd.Payload),
		Source:    device.HistorySourceCommand,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.journal.RecordEvent(ctx, entry); err != nil {
		r.getLogger().Error("journal write failed", "device_id", cmd.DeviceID, "error", err)
	}
}

func (r *Router) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// Reason maps a command error to its reason label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrUnsupportedOperation):
		return ReasonUnsupported
	case errors.Is(err, device.ErrInvalidParameters):
		return ReasonInvalidParams
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrStopped):
		return ReasonNotConnected
	default:
		return ReasonPublish
	}
}
