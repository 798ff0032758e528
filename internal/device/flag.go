package device

import (
	"bytes"
	"fmt"
)

// flagErr is substituted for any token outside flagCodes.
const flagErr = 4

var flagCodes = map[string]int{
	"OK":      0,
	"NOK":     1,
	"LO":      2,
	"HI":      3,
	"ERR":     flagErr,
	"IN":      5,
	"OUT":     6,
	"UP":      7,
	"DOWN":    8,
	"TRIGGER": 9,
	"ON":      10,
	"OFF":     11,
	"---":     12,
}

// Flag maps a fixed vocabulary of status tokens onto an index.
type Flag struct {
	base
}

func newFlag(desc Descriptor) *Flag {
	f := &Flag{}
	f.init(desc, []Verb{VerbQuery, VerbReset},
		Field{Driver: DriverStatus, UOM: UOMIndex},
	)
	return f
}

// ApplyStatus never rejects a payload: unknown tokens report ERR.
func (f *Flag) ApplyStatus(payload []byte) (Update, error) {
	token := string(bytes.TrimSpace(payload))

	var upd Update
	code, ok := flagCodes[token]
	if !ok {
		code = flagErr
		upd.Recovered = append(upd.Recovered, &DecodeError{
			DeviceID: f.desc.ID,
			Family:   f.desc.Family,
			Err:      fmt.Errorf("unknown flag token %q reported as ERR", token),
		})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	upd.Changed = f.commit(map[string]float64{DriverStatus: float64(code)})
	return upd, nil
}

func (f *Flag) BuildCommand(verb Verb, _ Params) (Command, error) {
	switch verb {
	case VerbQuery:
		return f.command(verb, ""), nil
	case VerbReset:
		return f.command(verb, "RESET"), nil
	default:
		return Command{}, f.unsupported(verb)
	}
}
