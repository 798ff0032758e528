package gateway

import (
	"context"
	"time"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
)

// JournalReporter appends transition events to the event history.
// State reports are not journaled.
type JournalReporter struct {
	repo device.HistoryRepository
}

// NewJournalReporter creates a reporter writing to repo.
func NewJournalReporter(repo device.HistoryRepository) *JournalReporter {
	return &JournalReporter{repo: repo}
}

// ReportState implements Reporter.
func (j *JournalReporter) ReportState(context.Context, device.Descriptor, device.Report) error {
	return nil
}

// ReportEvent implements Reporter.
func (j *JournalReporter) ReportEvent(ctx context.Context, desc device.Descriptor, event device.Event) error {
	return j.repo.RecordEvent(ctx, device.HistoryEntry{
		DeviceID:  desc.ID,
		Event:     string(event.Kind),
		Source:    device.HistorySourceMQTT,
		CreatedAt: time.Now().UTC(),
	})
}
