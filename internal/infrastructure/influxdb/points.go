package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
)

// Measurement names.
const (
	MeasurementMetrics = "device_metrics"
	MeasurementEvents  = "device_events"
)

// reportPoints builds one device_metrics point per field.
//
// Example line:
//
//	device_metrics,device_id=tele1,family=TempHumidPress,field=BARPRES uom=23i,value=29.92
func reportPoints(desc device.Descriptor, report device.Report, ts time.Time) []*write.Point {
	points := make([]*write.Point, 0, len(report))
	for _, f := range report {
		points = append(points, write.NewPoint(
			MeasurementMetrics,
			map[string]string{
				"device_id": desc.ID,
				"family":    string(desc.Family),
				"field":     f.Driver,
			},
			map[string]interface{}{
				"value": f.Value,
				"uom":   int64(f.UOM),
			},
			ts,
		))
	}
	return points
}

// eventPoint builds the device_events point for a transition. The on field
// is 1 for DON and 0 for DOF so transitions can be graphed.
func eventPoint(desc device.Descriptor, event device.Event, ts time.Time) *write.Point {
	on := int64(0)
	if event.Kind == device.EventOn {
		on = 1
	}
	return write.NewPoint(
		MeasurementEvents,
		map[string]string{
			"device_id": desc.ID,
			"family":    string(desc.Family),
		},
		map[string]interface{}{
			"event": string(event.Kind),
			"on":    on,
		},
		ts,
	)
}
