package device

import (
	"fmt"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Rejection records a descriptor that was skipped while building a Registry.
type Rejection struct {
	// Index is the position in the input list.
	Index      int
	Descriptor Descriptor
	Err        error
}

// Registry owns every device model, indexed by identifier and by status topic.
//
// A Registry is immutable after NewRegistry returns, so lookups need no locking.
// Concurrency on device state is handled by each Model.
type Registry struct {
	models  map[string]Model
	order   []string
	byTopic map[string][]Model
	topics  []string
}

// NewRegistry builds models for descs in order.
//
// Descriptors with an unknown family or a missing field are skipped. When two
// descriptors normalize to the same identifier the first one wins. Every skip
// is logged and returned as a Rejection; none of them is fatal.
func NewRegistry(descs []Descriptor, logger Logger) (*Registry, []Rejection) {
	if logger == nil {
		logger = noopLogger{}
	}

	r := &Registry{
		models:  make(map[string]Model, len(descs)),
		byTopic: make(map[string][]Model),
	}

	var rejected []Rejection
	reject := func(i int, desc Descriptor, err error) {
		logger.Error("device rejected",
			"index", i,
			"device_id", desc.ID,
			"type", string(desc.Family),
			"error", err,
		)
		rejected = append(rejected, Rejection{Index: i, Descriptor: desc, Err: err})
	}

	for i, raw := range descs {
		desc, err := Normalize(raw)
		if err != nil {
			reject(i, raw, err)
			continue
		}

		if existing, dup := r.models[desc.ID]; dup {
			reject(i, raw, fmt.Errorf("%w: %q normalizes to %q, already used by %q",
				ErrDuplicateID, raw.ID, desc.ID, existing.Descriptor().Name))
			continue
		}

		model, err := New(desc)
		if err != nil {
			reject(i, raw, err)
			continue
		}

		r.models[desc.ID] = model
		r.order = append(r.order, desc.ID)
		if _, seen := r.byTopic[desc.StatusTopic]; !seen {
			r.topics = append(r.topics, desc.StatusTopic)
		}
		r.byTopic[desc.StatusTopic] = append(r.byTopic[desc.StatusTopic], model)

		logger.Debug("device registered",
			"device_id", desc.ID,
			"type", string(desc.Family),
			"status_topic", desc.StatusTopic,
		)
	}

	logger.Info("device registry built", "devices", len(r.order), "rejected", len(rejected))
	return r, rejected
}

// Get returns the model for id. The identifier is normalized before lookup.
func (r *Registry) Get(id string) (Model, bool) {
	m, ok := r.models[NormalizeID(id)]
	return m, ok
}

// Lookup returns the models fed by an exact status topic, in registration order.
func (r *Registry) Lookup(topic string) []Model {
	return r.byTopic[topic]
}

// Topics returns every distinct status topic in registration order.
func (r *Registry) Topics() []string {
	out := make([]string, len(r.topics))
	copy(out, r.topics)
	return out
}

// Models returns every model in registration order.
func (r *Registry) Models() []Model {
	out := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	return len(r.order)
}
