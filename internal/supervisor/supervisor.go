// Package supervisor is the MQTT side of the supervisory controller.
//
// It publishes every device report retained on {prefix}/state/{id}, every
// transition on {prefix}/event/{id}, and executes JSON commands received on
// {prefix}/command/{id}, answering each on {prefix}/ack/{id}.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
	"github.com/nerrad567/mqtt-device-gateway/internal/gateway"
)

// commandTimeout bounds one command execution.
const commandTimeout = 5 * time.Second

// Publisher sends one message to the broker.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// Executor runs a device command. Implemented by gateway.Router.
type Executor interface {
	Execute(ctx context.Context, id string, verb device.Verb, params device.Params) (device.Command, error)
}

// Supervisor implements gateway.Reporter over MQTT and consumes commands.
type Supervisor struct {
	prefix    string
	publisher Publisher
	executor  Executor

	logger   gateway.Logger
	loggerMu sync.RWMutex
}

// New creates a supervisor publishing under prefix.
func New(prefix string, publisher Publisher, executor Executor) *Supervisor {
	return &Supervisor{
		prefix:    prefix,
		publisher: publisher,
		executor:  executor,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for this supervisor.
func (s *Supervisor) SetLogger(logger gateway.Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// SubscribeTopic returns the command subscription pattern.
func (s *Supervisor) SubscribeTopic() string {
	return CommandSubscribeTopic(s.prefix)
}

// ReportState publishes the full report retained.
//
// While the broker is unreachable reports are skipped; the query pass after
// reconnect republishes every device.
func (s *Supervisor) ReportState(_ context.Context, desc device.Descriptor, report device.Report) error {
	payload, err := json.Marshal(NewStateMessage(desc, report))
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return s.publish(StateTopic(s.prefix, desc.ID), payload, true)
}

// ReportEvent publishes one transition.
func (s *Supervisor) ReportEvent(_ context.Context, desc device.Descriptor, event device.Event) error {
	payload, err := json.Marshal(EventMessage{
		DeviceID:  desc.ID,
		Timestamp: time.Now().UTC(),
		Event:     event.Kind,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.publish(EventTopic(s.prefix, desc.ID), payload, false)
}

func (s *Supervisor) publish(topic string, payload []byte, retained bool) error {
	err := s.publisher.Publish(topic, payload, retained)
	if errors.Is(err, gateway.ErrNotConnected) {
		// The next report after reconnect supersedes this one.
		s.getLogger().Debug("supervisor publish skipped, broker disconnected", "topic", topic)
		return nil
	}
	return err
}

// HandleCommand is the broker handler for the command topics.
// Every command is answered on the ack topic; failures are never returned
// to the broker client.
func (s *Supervisor) HandleCommand(topic string, payload []byte) error {
	logger := s.getLogger()

	deviceID, ok := deviceFromCommandTopic(s.prefix, topic)
	if !ok {
		logger.Warn("command on malformed topic ignored", "topic", topic)
		return nil
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		s.ack(NewAckError(cmd, deviceID, ErrCodeInvalidCommand, fmt.Sprintf("invalid command JSON: %v", err)))
		return nil
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	verb, ok := device.ParseVerb(cmd.Command)
	if !ok {
		s.ack(NewAckError(cmd, deviceID, ErrCodeInvalidCommand, fmt.Sprintf("unknown command %q", cmd.Command)))
		return nil
	}

	params, err := ConvertParameters(cmd.Parameters)
	if err != nil {
		s.ack(NewAckError(cmd, deviceID, ErrCodeInvalidParameters, err.Error()))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	published, err := s.executor.Execute(ctx, deviceID, verb, params)
	if err != nil {
		logger.Warn("command failed",
			"command_id", cmd.ID,
			"device_id", deviceID,
			"command", cmd.Command,
			"error", err,
		)
		s.ack(NewAckError(cmd, deviceID, errorCode(err), err.Error()))
		return nil
	}

	logger.Debug("command accepted", "command_id", cmd.ID, "device_id", deviceID, "command", cmd.Command)
	s.ack(NewAckMessage(cmd, deviceID, published))
	return nil
}

func (s *Supervisor) ack(msg AckMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.getLogger().Error("marshal ack failed", "command_id", msg.CommandID, "error", err)
		return
	}
	if err := s.publisher.Publish(AckTopic(s.prefix, msg.DeviceID), payload, false); err != nil {
		s.getLogger().Error("ack publish failed",
			"command_id", msg.CommandID,
			"device_id", msg.DeviceID,
			"error", err,
		)
	}
}

func (s *Supervisor) getLogger() gateway.Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// ConvertParameters converts decoded JSON command parameters. It accepts
// numbers, numeric strings and booleans.
func ConvertParameters(in map[string]any) (device.Params, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(device.Params, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case float64:
			out[k] = val
		case bool:
			if val {
				out[k] = 1
			} else {
				out[k] = 0
			}
		case string:
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %q is not a number", k, val)
			}
			out[k] = f
		default:
			return nil, fmt.Errorf("parameter %q: unsupported type %T", k, v)
		}
	}
	return out, nil
}

// errorCode maps an execution error to an ack error code.
func errorCode(err error) string {
	switch gateway.Reason(err) {
	case gateway.ReasonNotFound:
		return ErrCodeDeviceNotFound
	case gateway.ReasonUnsupported:
		return ErrCodeUnsupported
	case gateway.ReasonInvalidParams:
		return ErrCodeInvalidParameters
	case gateway.ReasonNotConnected:
		return ErrCodeNotConnected
	default:
		return ErrCodeGatewayError
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
