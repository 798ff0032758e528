package device

import (
	"fmt"
	"strconv"
)

const maxFanSpeed = 3

// Fan is a ceiling fan controller reporting {"FanSpeed": n}.
type Fan struct {
	base
	speed     int
	lastSpeed int
}

func newFan(desc Descriptor) *Fan {
	f := &Fan{lastSpeed: 1}
	f.init(desc, []Verb{VerbQuery, VerbOn, VerbOff, VerbSetLevel, VerbSpeedUp, VerbSpeedDown},
		Field{Driver: DriverStatus, UOM: UOMIndex},
	)
	return f
}

func (f *Fan) ApplyStatus(payload []byte) (Update, error) {
	obj, err := parseObject(payload)
	if err != nil {
		return Update{}, f.decodeError("%v", err)
	}
	raw, ok := obj["FanSpeed"]
	if !ok {
		return Update{}, f.decodeError("missing FanSpeed")
	}
	speed, err := parseInteger(raw)
	if err != nil {
		return Update{}, f.decodeError("FanSpeed: %v", err)
	}
	if speed < 0 || speed > maxFanSpeed {
		return Update{}, f.decodeError("FanSpeed %d outside 0..%d", speed, maxFanSpeed)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var upd Update
	switch {
	case f.speed == 0 && speed > 0:
		upd.Events = append(upd.Events, f.transition(true))
	case f.speed > 0 && speed == 0:
		upd.Events = append(upd.Events, f.transition(false))
	}
	f.speed = speed
	if speed > 0 {
		f.lastSpeed = speed
	}
	upd.Changed = f.commit(map[string]float64{DriverStatus: float64(speed)})
	return upd, nil
}

// BuildCommand maps verbs onto the FanSpeed command syntax: a digit, "+" or "-".
// VerbOn without a speed restores the last non-zero speed.
func (f *Fan) BuildCommand(verb Verb, params Params) (Command, error) {
	switch verb {
	case VerbQuery:
		return f.command(verb, ""), nil
	case VerbOn:
		speed := f.rememberedSpeed()
		if v, ok := params.Get("speed", "level", "value"); ok {
			speed = clamp(v, 1, maxFanSpeed)
		}
		return f.command(verb, strconv.Itoa(speed)), nil
	case VerbOff:
		return f.command(verb, "0"), nil
	case VerbSetLevel:
		v, ok := params.Get("speed", "level", "value")
		if !ok {
			return Command{}, fmt.Errorf("%w: set_level requires speed", ErrInvalidParameters)
		}
		return f.command(verb, strconv.Itoa(clamp(v, 0, maxFanSpeed))), nil
	case VerbSpeedUp:
		return f.command(verb, "+"), nil
	case VerbSpeedDown:
		return f.command(verb, "-"), nil
	default:
		return Command{}, f.unsupported(verb)
	}
}

func (f *Fan) rememberedSpeed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSpeed
}
