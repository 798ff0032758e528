package device

import (
	"context"
	"time"
)

// Event history source values.
const (
	HistorySourceMQTT    = "mqtt"
	HistorySourceCommand = "command"
)

// HistoryEntry is one journaled transition event or issued command.
//
// The journal is an audit trail. It is never read back into device state.
type HistoryEntry struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"device_id"`

	// Event is a transition kind (DON, DOF) or a command verb.
	Event string `json:"event"`

	// Detail carries the published payload for commands.
	Detail string `json:"detail,omitempty"`

	// Source is HistorySourceMQTT or HistorySourceCommand.
	Source string `json:"source"`

	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves device event history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// RecordEvent appends one entry.
	RecordEvent(ctx context.Context, entry HistoryEntry) error

	// GetHistory returns the newest entries for a device, newest first.
	// Implementations may clamp limit.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]HistoryEntry, error)
}
