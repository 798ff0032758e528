package device

import "encoding/json"

// Strip is an RGBW LED strip controller. Payload keys come in a short form
// (br, c, pgm) and a long form (brightness, color, program).
type Strip struct {
	base
	on bool
}

func newStrip(desc Descriptor) *Strip {
	s := &Strip{}
	s.init(desc, []Verb{VerbQuery, VerbOn, VerbOff, VerbSetColor},
		Field{Driver: DriverGV0, UOM: UOMOnOff},
		Field{Driver: DriverGV1, UOM: UOMByte},
		Field{Driver: DriverGV2, UOM: UOMByte},
		Field{Driver: DriverGV3, UOM: UOMByte},
		Field{Driver: DriverGV4, UOM: UOMByte},
		Field{Driver: DriverGV5, UOM: UOMByte},
		Field{Driver: DriverGV6, UOM: UOMByte},
	)
	return s
}

var stripChannels = []struct {
	key    string
	driver string
}{
	{"r", DriverGV2},
	{"g", DriverGV3},
	{"b", DriverGV4},
	{"w", DriverGV5},
}

func (s *Strip) ApplyStatus(payload []byte) (Update, error) {
	obj, err := parseObject(payload)
	if err != nil {
		return Update{}, s.decodeError("%v", err)
	}

	staged := make(map[string]float64)

	on, hasState := obj.isOn("state")
	if hasState {
		staged[DriverGV0] = onOffLevel(on)
	}

	if v, ok, err := obj.number("br", "brightness"); err != nil {
		return Update{}, s.decodeError("%v", err)
	} else if ok {
		staged[DriverGV1] = v
	}

	color, ok, err := obj.child("c", "color")
	if err != nil {
		return Update{}, s.decodeError("%v", err)
	}
	if ok {
		for _, ch := range stripChannels {
			v, ok, err := color.number(ch.key)
			if err != nil {
				return Update{}, s.decodeError("color.%v", err)
			}
			if ok {
				staged[ch.driver] = v
			}
		}
	}

	if v, ok, err := obj.number("pgm", "program"); err != nil {
		return Update{}, s.decodeError("%v", err)
	} else if ok {
		staged[DriverGV6] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var upd Update
	if hasState && on != s.on {
		s.on = on
		upd.Events = append(upd.Events, s.transition(on))
	}
	upd.Changed = s.commit(staged)
	return upd, nil
}

type stripColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
	W int `json:"w"`
}

type stripCommand struct {
	State      string      `json:"state"`
	Brightness *int        `json:"br,omitempty"`
	Color      *stripColor `json:"c,omitempty"`
	Program    *int        `json:"pgm,omitempty"`
}

// BuildCommand clamps every channel to 0..255. Missing channels and
// brightness keep their last reported value; program is sent only when given.
func (s *Strip) BuildCommand(verb Verb, params Params) (Command, error) {
	var cmd stripCommand
	switch verb {
	case VerbQuery:
		return s.reportOnly(verb), nil
	case VerbOn:
		cmd.State = "ON"
	case VerbOff:
		cmd.State = "OFF"
	case VerbSetColor:
		s.mu.Lock()
		brightness := s.param(params, DriverGV1, "brightness", "br", "i")
		color := stripColor{
			R: s.param(params, DriverGV2, "r"),
			G: s.param(params, DriverGV3, "g"),
			B: s.param(params, DriverGV4, "b"),
			W: s.param(params, DriverGV5, "w"),
		}
		s.mu.Unlock()

		cmd.State = "ON"
		cmd.Brightness = &brightness
		cmd.Color = &color
		if v, ok := params.Get("program", "pgm", "p"); ok {
			program := clamp(v, 0, 255)
			cmd.Program = &program
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
