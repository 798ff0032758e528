package device

import (
	"fmt"
	"slices"
	"sync"
)

// Model is the runtime state of one configured device.
//
// Implementations guard their own state; ApplyStatus, BuildCommand and
// Report may be called concurrently for the same device.
type Model interface {
	Descriptor() Descriptor

	// ApplyStatus decodes one inbound payload and updates state.
	// On error the state is unchanged.
	ApplyStatus(payload []byte) (Update, error)

	// BuildCommand produces the outbound message for verb without
	// touching state.
	BuildCommand(verb Verb, params Params) (Command, error)

	// Report returns a copy of every field in declaration order.
	Report() Report

	SupportedVerbs() []Verb
}

// Committer is implemented by families that track a command's effect
// before the device confirms it. Commit is called only after cmd was
// published.
type Committer interface {
	Commit(cmd Command)
}

// Supports reports whether m accepts verb.
func Supports(m Model, verb Verb) bool {
	return slices.Contains(m.SupportedVerbs(), verb)
}

// New builds the model for desc. The descriptor must already be validated.
func New(desc Descriptor) (Model, error) {
	if desc.Name == "" {
		desc.Name = desc.ID
	}

	switch desc.Family {
	case FamilySwitch:
		return newSwitch(desc), nil
	case FamilyFan:
		return newFan(desc), nil
	case FamilyFlag:
		return newFlag(desc), nil
	case FamilySensor:
		return newSensor(desc), nil
	case FamilyRaw:
		return newRaw(desc), nil
	case FamilyRGBW:
		return newStrip(desc), nil
	case FamilyTemp, FamilyTempHumid, FamilyTempHumidPress, FamilyDistance, FamilyAnalog, FamilyEnergy:
		return newTelemetry(desc), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, desc.Family)
	}
}

// base holds the descriptor and the ordered field table shared by every family.
type base struct {
	desc   Descriptor
	verbs  []Verb
	mu     sync.Mutex
	fields []Field
	index  map[string]int
}

func (b *base) init(desc Descriptor, verbs []Verb, layout ...Field) {
	b.desc = desc
	b.verbs = verbs
	b.fields = slices.Clone(layout)
	b.index = make(map[string]int, len(layout))
	for i, f := range layout {
		b.index[f.Driver] = i
	}
}

func (b *base) Descriptor() Descriptor {
	return b.desc
}

func (b *base) SupportedVerbs() []Verb {
	return slices.Clone(b.verbs)
}

func (b *base) Report() Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.fields)
}

// value returns the current value of driver. Caller holds mu.
func (b *base) value(driver string) float64 {
	return b.fields[b.index[driver]].Value
}

// commit writes staged values in report order and returns the written fields.
// Caller holds mu.
func (b *base) commit(staged map[string]float64) []Field {
	changed := make([]Field, 0, len(staged))
	for i := range b.fields {
		v, ok := staged[b.fields[i].Driver]
		if !ok {
			continue
		}
		b.fields[i].Value = v
		changed = append(changed, b.fields[i])
	}
	return changed
}

// param returns the clamped parameter, falling back to the current field. Caller holds mu.
func (b *base) param(params Params, driver string, keys ...string) int {
	if v, ok := params.Get(keys...); ok {
		return clamp(v, 0, 255)
	}
	return clamp(b.value(driver), 0, 255)
}

func (b *base) decodeError(format string, args ...any) error {
	return &DecodeError{
		DeviceID: b.desc.ID,
		Family:   b.desc.Family,
		Err:      fmt.Errorf(format, args...),
	}
}

func (b *base) transition(on bool) Event {
	kind := EventOff
	if on {
		kind = EventOn
	}
	return Event{DeviceID: b.desc.ID, Kind: kind}
}

// command addresses payload to the command topic.
func (b *base) command(verb Verb, payload string) Command {
	return Command{
		DeviceID: b.desc.ID,
		Verb:     verb,
		Topic:    b.desc.CommandTopic,
		Payload:  []byte(payload),
	}
}

// reportOnly is a command that publishes nothing.
func (b *base) reportOnly(verb Verb) Command {
	return Command{DeviceID: b.desc.ID, Verb: verb}
}

func (b *base) unsupported(verb Verb) error {
	return fmt.Errorf("%w: %s does not accept %q", ErrUnsupportedOperation, b.desc.Family, verb)
}

func onOffLevel(on bool) float64 {
	if on {
		return 100
	}
	return 0
}

func boolLevel(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
