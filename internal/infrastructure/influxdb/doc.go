// Package influxdb writes device telemetry to InfluxDB v2.
//
// Sink implements gateway.Reporter: every state report is written to the
// device_metrics measurement (tags device_id, family, field; fields value,
// uom) and every DON/DOF transition to device_events.
//
//	sink, err := influxdb.Open(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
//
// Writes are batched according to batch_size and flush_interval.
package influxdb
