package device

// Switch is a relay reporting plain ON/OFF tokens.
type Switch struct {
	base
	on bool
}

func newSwitch(desc Descriptor) *Switch {
	s := &Switch{}
	s.init(desc, []Verb{VerbQuery, VerbOn, VerbOff},
		Field{Driver: DriverStatus, UOM: UOMOnOff},
	)
	return s
}

// On returns the last known on/off state, including committed commands.
func (s *Switch) On() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

func (s *Switch) ApplyStatus(payload []byte) (Update, error) {
	var on bool
	switch token := string(payload); token {
	case "ON":
		on = true
	case "OFF":
		on = false
	default:
		return Update{}, s.decodeError("unexpected power token %q", token)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var upd Update
	if on != s.on {
		s.on = on
		upd.Events = append(upd.Events, s.transition(on))
	}
	upd.Changed = s.commit(map[string]float64{DriverStatus: onOffLevel(on)})
	return upd, nil
}

func (s *Switch) BuildCommand(verb Verb, _ Params) (Command, error) {
	switch verb {
	case VerbQuery:
		return s.command(verb, ""), nil
	case VerbOn:
		return s.command(verb, "ON"), nil
	case VerbOff:
		return s.command(verb, "OFF"), nil
	default:
		return Command{}, s.unsupported(verb)
	}
}

// Commit assumes a published on/off command took effect, so the confirming
// status payload is not announced as a second transition.
func (s *Switch) Commit(cmd Command) {
	if cmd.Verb != VerbOn && cmd.Verb != VerbOff {
		return
	}
	s.mu.Lock()
	s.on = cmd.Verb == VerbOn
	s.mu.Unlock()
}
