package device

import (
	"strings"
)

// Family selects the decoding and command rules of a device.
// Values match the "type" key of the device list.
type Family string

// Supported families.
const (
	FamilySwitch         Family = "switch"
	FamilySensor         Family = "sensor"
	FamilyFlag           Family = "flag"
	FamilyTempHumid      Family = "TempHumid"
	FamilyTemp           Family = "Temp"
	FamilyTempHumidPress Family = "TempHumidPress"
	FamilyDistance       Family = "distance"
	FamilyAnalog         Family = "analog"
	FamilyEnergy         Family = "s31"
	FamilyRaw            Family = "raw"
	FamilyRGBW           Family = "RGBW"
	FamilyFan            Family = "ifan"
)

// Families returns every supported family in a stable order.
func Families() []Family {
	return []Family{
		FamilySwitch, FamilySensor, FamilyFlag,
		FamilyTempHumid, FamilyTemp, FamilyTempHumidPress,
		FamilyDistance, FamilyAnalog, FamilyEnergy,
		FamilyRaw, FamilyRGBW, FamilyFan,
	}
}

// ParseFamily resolves a configured type name. Matching is exact first,
// then case-insensitive.
func ParseFamily(name string) (Family, bool) {
	for _, f := range Families() {
		if string(f) == name {
			return f, true
		}
	}
	for _, f := range Families() {
		if strings.EqualFold(string(f), name) {
			return f, true
		}
	}
	return "", false
}

// AcceptsCommands reports whether devices of this family have a command topic.
func (f Family) AcceptsCommands() bool {
	switch f {
	case FamilySwitch, FamilySensor, FamilyFlag, FamilyRGBW, FamilyFan:
		return true
	default:
		return false
	}
}

// Verb is a supervisory operation on a device.
type Verb string

// Verbs understood by at least one family.
const (
	VerbQuery     Verb = "query"
	VerbOn        Verb = "on"
	VerbOff       Verb = "off"
	VerbSetLevel  Verb = "set_level"
	VerbSetColor  Verb = "set_color"
	VerbSpeedUp   Verb = "speed_up"
	VerbSpeedDown Verb = "speed_down"
	VerbReset     Verb = "reset"
)

// legacyVerbs maps controller command names onto verbs.
var legacyVerbs = map[string]Verb{
	"QUERY":   VerbQuery,
	"DON":     VerbOn,
	"DOF":     VerbOff,
	"SETLVL":  VerbSetLevel,
	"SETLED":  VerbSetColor,
	"SETRGBW": VerbSetColor,
	"FDUP":    VerbSpeedUp,
	"FDDOWN":  VerbSpeedDown,
	"RESET":   VerbReset,
}

// ParseVerb accepts either a verb name or a controller command name (DON, FDUP, ...).
func ParseVerb(s string) (Verb, bool) {
	if v, ok := legacyVerbs[strings.ToUpper(s)]; ok {
		return v, true
	}
	v := Verb(strings.ToLower(s))
	switch v {
	case VerbQuery, VerbOn, VerbOff, VerbSetLevel, VerbSetColor, VerbSpeedUp, VerbSpeedDown, VerbReset:
		return v, true
	}
	return "", false
}

// Params carries numeric command arguments. Keys are case-insensitive.
type Params map[string]float64

// Get returns the first present value among keys.
func (p Params) Get(keys ...string) (float64, bool) {
	for _, k := range keys {
		for pk, v := range p {
			if strings.EqualFold(pk, k) {
				return v, true
			}
		}
	}
	return 0, false
}

// UOM is a unit-of-measure code attached to each reported field.
type UOM int

// Unit codes used by the device families.
const (
	UOMAmpere      UOM = 1
	UOMBoolean     UOM = 2
	UOMCentimeter  UOM = 5
	UOMFahrenheit  UOM = 17
	UOMHumidity    UOM = 22
	UOMInchesHg    UOM = 23
	UOMIndex       UOM = 25
	UOMKilowattHr  UOM = 33
	UOMLux         UOM = 36
	UOMPowerFactor UOM = 53
	UOMRaw         UOM = 56
	UOMVolt        UOM = 72
	UOMWatt        UOM = 73
	UOMOnOff       UOM = 78
	UOMByte        UOM = 100
)

// Driver names of reported fields.
const (
	DriverStatus      = "ST"
	DriverTemperature = "CLITEMP"
	DriverHumidity    = "CLIHUM"
	DriverPressure    = "BARPRES"
	DriverDistance    = "DISTANC"
	DriverGeneric     = "GPV"
	DriverLuminance   = "LUMIN"
	DriverCurrent     = "CC"
	DriverPower       = "CPW"
	DriverVoltage     = "CV"
	DriverFactor      = "PF"
	DriverEnergy      = "TPW"
	DriverGV0         = "GV0"
	DriverGV1         = "GV1"
	DriverGV2         = "GV2"
	DriverGV3         = "GV3"
	DriverGV4         = "GV4"
	DriverGV5         = "GV5"
	DriverGV6         = "GV6"
)

// Field is one reported value.
type Field struct {
	Driver string  `json:"driver"`
	Value  float64 `json:"value"`
	UOM    UOM     `json:"uom"`
}

// Report is the full ordered set of a device's fields.
type Report []Field

// Get returns the field with the given driver name.
func (r Report) Get(driver string) (Field, bool) {
	for _, f := range r {
		if f.Driver == driver {
			return f, true
		}
	}
	return Field{}, false
}

// Value returns the value of driver, or 0 when absent.
func (r Report) Value(driver string) float64 {
	f, _ := r.Get(driver)
	return f.Value
}

// EventKind is an edge-triggered transition.
type EventKind string

// Transition kinds.
const (
	EventOn  EventKind = "DON"
	EventOff EventKind = "DOF"
)

// Event is emitted once per boolean transition, never on a repeated value.
type Event struct {
	DeviceID string    `json:"device_id"`
	Kind     EventKind `json:"kind"`
}

// Update is the result of applying one status payload.
type Update struct {
	// Changed lists the fields written by this payload, in report order.
	Changed []Field
	// Events lists transitions caused by this payload.
	Events []Event
	// Recovered lists problems that were replaced by a substitute value
	// instead of rejecting the payload.
	Recovered []error
}

// Command is an outbound message. An empty Topic means nothing is published.
type Command struct {
	DeviceID string
	Verb     Verb
	Topic    string
	Payload  []byte
}

// Publishes reports whether the command produces a broker message.
func (c Command) Publishes() bool {
	return c.Topic != ""
}

// Descriptor is the static configuration of one device.
type Descriptor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Family       Family `json:"family"`
	StatusTopic  string `json:"status_topic"`
	CommandTopic string `json:"command_topic,omitempty"`
}
