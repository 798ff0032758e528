package gateway

import (
	"context"
	"errors"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
)

// Reporter is the supervisory collaborator that receives device state.
//
// ReportState always carries the full ordered report. ReportEvent carries one
// edge-triggered transition. Both are called from a single worker goroutine in
// the order the inbound messages were decoded.
type Reporter interface {
	ReportState(ctx context.Context, desc device.Descriptor, report device.Report) error
	ReportEvent(ctx context.Context, desc device.Descriptor, event device.Event) error
}

// MultiReporter fans every report out to each member in order.
// A failing member does not stop the others.
type MultiReporter []Reporter

// ReportState implements Reporter.
func (m MultiReporter) ReportState(ctx context.Context, desc device.Descriptor, report device.Report) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportState(ctx, desc, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReportEvent implements Reporter.
func (m MultiReporter) ReportEvent(ctx context.Context, desc device.Descriptor, event device.Event) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportEvent(ctx, desc, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
