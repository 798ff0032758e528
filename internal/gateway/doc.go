// Package gateway connects the device registry to an MQTT broker.
//
// A Session owns the broker connection. On every connect it subscribes each
// distinct status topic, replays every device to the supervisory side and then
// routes inbound messages to the device models bound to their topic. Decode
// failures stay with the device that produced them. An unclean disconnect
// triggers a reconnect; a clean one does not.
//
// State reports and transition events leave the broker dispatch path through
// a bounded queue drained by one worker, so a slow Reporter never stalls
// inbound messages. When the queue is full the report is dropped and counted.
//
// A Router executes supervisory commands. It validates the device and verb,
// lets the model build the broker message and publishes it without waiting
// for the device to confirm.
//
// HealthReporter publishes a retained {prefix}/health message; the broker
// publishes NewLWTMessage on the same topic if the gateway vanishes.
package gateway
