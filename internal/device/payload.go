package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errNotObject = errors.New("payload is not a JSON object")

// object is a decoded JSON object whose members are parsed on demand.
type object map[string]json.RawMessage

func parseObject(payload []byte) (object, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, errNotObject
	}
	var obj object
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// lookup returns the first present member among keys.
func (o object) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := o[k]; ok {
			return raw, true
		}
	}
	return nil, false
}

// number reads a numeric member. Numeric strings are accepted.
func (o object) number(keys ...string) (float64, bool, error) {
	raw, ok := o.lookup(keys...)
	if !ok {
		return 0, false, nil
	}
	v, err := parseNumber(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", keys[0], err)
	}
	return v, true, nil
}

// isOn reports whether the state member is present and is exactly "ON".
// Any other value, including a non-string, counts as off.
func (o object) isOn(keys ...string) (on, present bool) {
	raw, ok := o.lookup(keys...)
	if !ok {
		return false, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, true
	}
	return s == "ON", true
}

// child reads a nested object member.
func (o object) child(keys ...string) (object, bool, error) {
	raw, ok := o.lookup(keys...)
	if !ok {
		return nil, false, nil
	}
	nested, err := parseObject(raw)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", keys[0], err)
	}
	return nested, true, nil
}

func parseNumber(raw json.RawMessage) (float64, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, fmt.Errorf("expected number, got %s", raw)
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected number, got %s", raw)
	}
	return f, nil
}

// parseInteger accepts integral numbers only.
func parseInteger(raw json.RawMessage) (int, error) {
	f, err := parseNumber(raw)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %s", strconv.FormatFloat(f, 'f', -1, 64))
	}
	return int(f), nil
}

// clamp truncates v and limits it to [lo, hi].
func clamp(v float64, lo, hi int) int {
	if v < float64(lo) {
		return lo
	}
	if v > float64(hi) {
		return hi
	}
	return int(v)
}
