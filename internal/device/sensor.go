package device

import "encoding/json"

// Sensor is a multi-sensor board: motion, climate, light level and an RGB status LED.
//
// A payload without "motion" means standby. Every other key is applied only
// when present.
type Sensor struct {
	base
	motion bool
}

func newSensor(desc Descriptor) *Sensor {
	s := &Sensor{}
	s.init(desc, []Verb{VerbQuery, VerbOn, VerbOff, VerbSetColor},
		Field{Driver: DriverStatus, UOM: UOMBoolean},
		Field{Driver: DriverTemperature, UOM: UOMFahrenheit},
		Field{Driver: DriverGeneric, UOM: UOMFahrenheit},
		Field{Driver: DriverHumidity, UOM: UOMHumidity},
		Field{Driver: DriverLuminance, UOM: UOMLux},
		Field{Driver: DriverGV0, UOM: UOMOnOff},
		Field{Driver: DriverGV1, UOM: UOMByte},
		Field{Driver: DriverGV2, UOM: UOMByte},
		Field{Driver: DriverGV3, UOM: UOMByte},
		Field{Driver: DriverGV4, UOM: UOMByte},
	)
	return s
}

var sensorNumbers = []struct {
	key    string
	driver string
}{
	{"temperature", DriverTemperature},
	{"heatIndex", DriverGeneric},
	{"humidity", DriverHumidity},
	{"ldr", DriverLuminance},
	{"brightness", DriverGV1},
}

var ledChannels = []struct {
	key    string
	driver string
}{
	{"r", DriverGV2},
	{"g", DriverGV3},
	{"b", DriverGV4},
}

func (s *Sensor) ApplyStatus(payload []byte) (Update, error) {
	obj, err := parseObject(payload)
	if err != nil {
		return Update{}, s.decodeError("%v", err)
	}

	staged := make(map[string]float64)

	motion := false
	if raw, ok := obj["motion"]; ok {
		motion = !isStandby(raw)
	}
	staged[DriverStatus] = boolLevel(motion)

	for _, n := range sensorNumbers {
		v, ok, err := obj.number(n.key)
		if err != nil {
			return Update{}, s.decodeError("%v", err)
		}
		if ok {
			staged[n.driver] = v
		}
	}

	if on, ok := obj.isOn("state"); ok {
		staged[DriverGV0] = onOffLevel(on)
	}

	color, ok, err := obj.child("color")
	if err != nil {
		return Update{}, s.decodeError("%v", err)
	}
	if ok {
		for _, ch := range ledChannels {
			v, ok, err := color.number(ch.key)
			if err != nil {
				return Update{}, s.decodeError("color.%v", err)
			}
			if ok {
				staged[ch.driver] = v
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var upd Update
	if motion != s.motion {
		s.motion = motion
		upd.Events = append(upd.Events, s.transition(motion))
	}
	upd.Changed = s.commit(staged)
	return upd, nil
}

func isStandby(raw json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == "standby"
}

type ledColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

type ledCommand struct {
	State      string    `json:"state"`
	Brightness *int      `json:"brightness,omitempty"`
	Color      *ledColor `json:"color,omitempty"`
	Transition int       `json:"transition,omitempty"`
	Flash      int       `json:"flash,omitempty"`
}

// BuildCommand drives the status LED. Missing colour channels and brightness
// keep their last reported value.
func (s *Sensor) BuildCommand(verb Verb, params Params) (Command, error) {
	var cmd ledCommand
	switch verb {
	case VerbQuery:
		return s.reportOnly(verb), nil
	case VerbOn:
		cmd.State = "ON"
	case VerbOff:
		cmd.State = "OFF"
	case VerbSetColor:
		s.mu.Lock()
		brightness := s.param(params, DriverGV1, "brightness", "i")
		color := ledColor{
			R: s.param(params, DriverGV2, "r"),
			G: s.param(params, DriverGV3, "g"),
			B: s.param(params, DriverGV4, "b"),
		}
		s.mu.Unlock()

		cmd.State = "ON"
		cmd.Brightness = &brightness
		cmd.Color = &color
		if v, ok := params.Get("transition", "d"); ok {
			cmd.Transition = clamp(v, 0, 3600)
		}
		if v, ok := params.Get("flash", "f"); ok {
			cmd.Flash = clamp(v, 0, 3600)
		}
	default:
		return Command{}, s.unsupported(verb)
	}

	out, err := json.Marshal(cmd)
	if err != nil {
		return Command{}, err
	}
	return s.command(verb, string(out)), nil
}
