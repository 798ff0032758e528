package device

import (
	"bytes"
	"strconv"
)

// Raw reports a bare integer payload.
type Raw struct {
	base
}

func newRaw(desc Descriptor) *Raw {
	r := &Raw{}
	r.init(desc, []Verb{VerbQuery},
		Field{Driver: DriverStatus, UOM: UOMBoolean},
		Field{Driver: DriverGV1, UOM: UOMRaw},
	)
	return r
}

func (r *Raw) ApplyStatus(payload []byte) (Update, error) {
	n, err := strconv.Atoi(string(bytes.TrimSpace(payload)))
	if err != nil {
		return Update{}, r.decodeError("expected integer payload: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return Update{Changed: r.commit(map[string]float64{
		DriverStatus: 1,
		DriverGV1:    float64(n),
	})}, nil
}

func (r *Raw) BuildCommand(verb Verb, _ Params) (Command, error) {
	if verb != VerbQuery {
		return Command{}, r.unsupported(verb)
	}
	return r.reportOnly(verb), nil
}
