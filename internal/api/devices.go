package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
	"github.com/nerrad567/mqtt-device-gateway/internal/gateway"
	"github.com/nerrad567/mqtt-device-gateway/internal/supervisor"
)

// maxQueryParamLen bounds identifiers and filters taken from the URL.
const maxQueryParamLen = 128

// DeviceView is a device as returned by the API.
type DeviceView struct {
	device.Descriptor
	Verbs  []device.Verb `json:"verbs"`
	Fields device.Report `json:"fields"`
}

// DeviceCommand is the body of POST /devices/{id}/commands.
type DeviceCommand struct {
	// ID is optional; one is generated when empty.
	ID         string         `json:"id,omitempty"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// CommandResponse acknowledges an accepted command.
type CommandResponse struct {
	CommandID string      `json:"command_id"`
	DeviceID  string      `json:"device_id"`
	Command   device.Verb `json:"command"`
	Status    string      `json:"status"`
	Topic     string      `json:"topic,omitempty"`
	Payload   string      `json:"payload,omitempty"`
}

func newDeviceView(m device.Model) DeviceView {
	return DeviceView{
		Descriptor: m.Descriptor(),
		Verbs:      m.SupportedVerbs(),
		Fields:     m.Report(),
	}
}

// handleListDevices returns every registered device, optionally filtered by ?type=.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var family device.Family
	if raw := r.URL.Query().Get("type"); raw != "" {
		f, ok := device.ParseFamily(raw)
		if !ok {
			writeBadRequest(w, "unknown device type")
			return
		}
		family = f
	}

	models := s.registry.Models()
	views := make([]DeviceView, 0, len(models))
	for _, m := range models {
		if family != "" && m.Descriptor().Family != family {
			continue
		}
		views = append(views, newDeviceView(m))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

// handleGetDevice returns one device with its current report.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newDeviceView(m))
}

// handleGetDeviceReport returns the current report in the same shape as the
// retained MQTT state message.
func (s *Server) handleGetDeviceReport(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, supervisor.NewStateMessage(m.Descriptor(), m.Report()))
}

// handleDeviceCommand routes a command to the device.
//
// Commands are fire-and-forget. 202 means the message was handed to the
// broker client; the device confirms through its next status payload.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	id := m.Descriptor().ID

	var cmd DeviceCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Command == "" {
		writeBadRequest(w, "command field is required")
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	verb, ok := device.ParseVerb(cmd.Command)
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown command: "+cmd.Command)
		return
	}

	params, err := supervisor.ConvertParameters(cmd.Parameters)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	published, err := s.commands.Execute(r.Context(), id, verb, params)
	if err != nil {
		s.logger.Warn("device command failed",
			"device_id", id,
			"command", string(verb),
			"command_id", cmd.ID,
			"error", err,
		)
		writeCommandError(w, err)
		return
	}

	s.logger.Info("device command accepted",
		"device_id", id,
		"command", string(verb),
		"command_id", cmd.ID,
		"topic", published.Topic,
	)

	writeJSON(w, http.StatusAccepted, CommandResponse{
		CommandID: cmd.ID,
		DeviceID:  id,
		Command:   verb,
		Status:    "accepted",
		Topic:     published.Topic,
		Payload:   string(published.Payload),
	})
}

// lookupDevice resolves {id} or writes the error response.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (device.Model, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return nil, false
	}
	m, ok := s.registry.Get(id)
	if !ok {
		writeNotFound(w, "device not found")
		return nil, false
	}
	return m, true
}

// writeCommandError maps router errors onto HTTP statuses.
func writeCommandError(w http.ResponseWriter, err error) {
	switch gateway.Reason(err) {
	case gateway.ReasonNotFound:
		writeNotFound(w, "device not found")
	case gateway.ReasonUnsupported:
		writeError(w, http.StatusUnprocessableEntity, ErrCodeUnsupported, err.Error())
	case gateway.ReasonInvalidParams:
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case gateway.ReasonNotConnected:
		writeUnavailable(w, "broker not connected")
	default:
		writeError(w, http.StatusBadGateway, gateway.ReasonPublish, err.Error())
	}
}
