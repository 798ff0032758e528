package supervisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
)

// CommandMessage is sent by the controller to execute a device command.
// Topic: {prefix}/command/{device_id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgment.
	// Generated when absent.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp,omitzero"`

	// Command is a verb ("on", "set_color") or a controller command name ("DON", "SETRGBW").
	Command string `json:"command"`

	// Parameters contains numeric command arguments.
	// Examples:
	//   {"level": 2} for set_level on a fan
	//   {"r": 255, "g": 128, "b": 0, "brightness": 200} for set_color
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was handed to the broker.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage acknowledges a command.
// Topic: {prefix}/ack/{device_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Command   string    `json:"command,omitempty"`
	Status    AckStatus `json:"status"`

	// Topic and Payload are what was published, if anything.
	Topic   string `json:"topic,omitempty"`
	Payload string `json:"payload,omitempty"`

	// Error contains details if status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "DEVICE_NOT_FOUND", "INVALID_COMMAND").
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeDeviceNotFound    = "DEVICE_NOT_FOUND"
	ErrCodeUnsupported       = "UNSUPPORTED_OPERATION"
	ErrCodeNotConnected      = "NOT_CONNECTED"
	ErrCodeGatewayError      = "GATEWAY_ERROR"
)

// StateMessage carries the full ordered report of a device.
// Topic: {prefix}/state/{device_id}
// QoS: broker default, Retained: Yes
type StateMessage struct {
	DeviceID  string        `json:"device_id"`
	Name      string        `json:"name"`
	Family    device.Family `json:"family"`
	Timestamp time.Time     `json:"timestamp"`
	Fields    device.Report `json:"fields"`
}

// EventMessage carries one DON/DOF transition.
// Topic: {prefix}/event/{device_id}
type EventMessage struct {
	DeviceID  string           `json:"device_id"`
	Timestamp time.Time        `json:"timestamp"`
	Event     device.EventKind `json:"event"`
}

// NewStateMessage creates a state message for a device.
func NewStateMessage(desc device.Descriptor, report device.Report) StateMessage {
	return StateMessage{
		DeviceID:  desc.ID,
		Name:      desc.Name,
		Family:    desc.Family,
		Timestamp: time.Now().UTC(),
		Fields:    report,
	}
}

// NewAckMessage creates an acknowledgment for an accepted command.
func NewAckMessage(cmd CommandMessage, deviceID string, published device.Command) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Command:   cmd.Command,
		Status:    AckAccepted,
		Topic:     published.Topic,
		Payload:   string(published.Payload),
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, deviceID, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Command:   cmd.Command,
		Status:    AckFailed,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// Topic helpers

// StateTopic returns the retained state topic of a device.
// Example: mqttgw/state/sw1
func StateTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/state/%s", prefix, deviceID)
}

// EventTopic returns the transition event topic of a device.
// Example: mqttgw/event/sw1
func EventTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/event/%s", prefix, deviceID)
}

// CommandTopic returns the command topic of a device.
// Example: mqttgw/command/sw1
func CommandTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/command/%s", prefix, deviceID)
}

// AckTopic returns the acknowledgment topic of a device.
// Example: mqttgw/ack/sw1
func AckTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s", prefix, deviceID)
}

// CommandSubscribeTopic returns the subscription pattern for all commands.
// Example: mqttgw/command/+
func CommandSubscribeTopic(prefix string) string {
	return prefix + "/command/+"
}

// deviceFromCommandTopic extracts the device segment of a command topic.
func deviceFromCommandTopic(prefix, topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, prefix+"/command/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
