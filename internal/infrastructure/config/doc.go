// Package config handles loading and validating gateway configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with MQTTGW_* environment variables
//   - Assembling the device list from inline YAML, a devices file, or a JSON devlist
//   - Validation of required fields
//
// Broker credentials are mandatory. They should be supplied through
// MQTTGW_MQTT_USERNAME and MQTTGW_MQTT_PASSWORD rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
