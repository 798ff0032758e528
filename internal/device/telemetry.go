package device

import (
	"math"
)

// channel copies one numeric member of a sensor block into a field.
type channel struct {
	key     string
	driver  string
	uom     UOM
	convert func(float64) float64
}

// telemetryLayout describes a read-only sensor publishing under a named block,
// e.g. {"AM2301": {"Temperature": 21.5, "Humidity": 40}}.
type telemetryLayout struct {
	block    string
	channels []channel
	// zeroOnAbsent lists drivers reset to 0 when the block is missing.
	zeroOnAbsent []string
}

// hPaToInHg converts hectopascal to inches of mercury, rounded to two decimals.
func hPaToInHg(v float64) float64 {
	return math.Round(v*0.0295299875*100) / 100
}

var telemetryLayouts = map[Family]telemetryLayout{
	FamilyTemp: {
		block: "DS18B20",
		channels: []channel{
			{key: "Temperature", driver: DriverTemperature, uom: UOMFahrenheit},
		},
	},
	FamilyTempHumid: {
		block: "AM2301",
		channels: []channel{
			{key: "Temperature", driver: DriverTemperature, uom: UOMFahrenheit},
			{key: "Humidity", driver: DriverHumidity, uom: UOMHumidity},
		},
	},
	FamilyTempHumidPress: {
		block: "BME280",
		channels: []channel{
			{key: "Temperature", driver: DriverTemperature, uom: UOMFahrenheit},
			{key: "Humidity", driver: DriverHumidity, uom: UOMHumidity},
			{key: "Pressure", driver: DriverPressure, uom: UOMInchesHg, convert: hPaToInHg},
		},
	},
	FamilyDistance: {
		block: "SR04",
		channels: []channel{
			{key: "Distance", driver: DriverDistance, uom: UOMCentimeter},
		},
		zeroOnAbsent: []string{DriverDistance},
	},
	FamilyAnalog: {
		block: "ANALOG",
		channels: []channel{
			{key: "A0", driver: DriverGeneric, uom: UOMRaw},
		},
	},
	FamilyEnergy: {
		block: "ENERGY",
		channels: []channel{
			{key: "Current", driver: DriverCurrent, uom: UOMAmpere},
			{key: "Power", driver: DriverPower, uom: UOMWatt},
			{key: "Voltage", driver: DriverVoltage, uom: UOMVolt},
			{key: "Factor", driver: DriverFactor, uom: UOMPowerFactor},
			{key: "Total", driver: DriverEnergy, uom: UOMKilowattHr},
		},
	},
}

// Telemetry is a read-only sensor. ST is 1 while its block is present in the
// payload and 0 otherwise.
type Telemetry struct {
	base
	layout telemetryLayout
}

func newTelemetry(desc Descriptor) *Telemetry {
	layout := telemetryLayouts[desc.Family]
	fields := []Field{{Driver: DriverStatus, UOM: UOMBoolean}}
	for _, ch := range layout.channels {
		fields = append(fields, Field{Driver: ch.driver, UOM: ch.uom})
	}

	t := &Telemetry{layout: layout}
	t.init(desc, []Verb{VerbQuery}, fields...)
	return t
}

func (t *Telemetry) ApplyStatus(payload []byte) (Update, error) {
	obj, err := parseObject(payload)
	if err != nil {
		return Update{}, t.decodeError("%v", err)
	}

	staged := make(map[string]float64)

	block, ok, err := obj.child(t.layout.block)
	if err != nil {
		return Update{}, t.decodeError("%v", err)
	}
	if !ok {
		staged[DriverStatus] = 0
		for _, driver := range t.layout.zeroOnAbsent {
			staged[driver] = 0
		}
	} else {
		staged[DriverStatus] = 1
		for _, ch := range t.layout.channels {
			v, ok, err := block.number(ch.key)
			if err != nil {
				return Update{}, t.decodeError("%s.%v", t.layout.block, err)
			}
			if !ok {
				continue
			}
			if ch.convert != nil {
				v = ch.convert(v)
			}
			staged[ch.driver] = v
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return Update{Changed: t.commit(staged)}, nil
}

func (t *Telemetry) BuildCommand(verb Verb, _ Params) (Command, error) {
	if verb != VerbQuery {
		return Command{}, t.unsupported(verb)
	}
	return t.reportOnly(verb), nil
}
