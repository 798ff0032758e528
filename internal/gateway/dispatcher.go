package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
)

// DefaultReportQueueSize is used when SessionConfig.ReportQueueSize is zero.
const DefaultReportQueueSize = 256

// reportTimeout bounds one call into the Reporter.
const reportTimeout = 10 * time.Second

// job is one report handed from the inbound path to the report worker.
type job struct {
	desc   device.Descriptor
	report device.Report
	events []device.Event
}

// dispatcher moves reports off the broker dispatch path onto a single
// ordered worker. enqueue never blocks; a full queue drops the report.
type dispatcher struct {
	reporter Reporter
	queue    chan job
	logger   func() Logger

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once
}

func newDispatcher(reporter Reporter, size int, logger func() Logger) *dispatcher {
	if size <= 0 {
		size = DefaultReportQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &dispatcher{
		reporter: reporter,
		queue:    make(chan job, size),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (d *dispatcher) run() {
	d.start.Do(func() {
		d.wg.Add(1)
		go d.loop()
	})
}

// enqueue reports whether the job was accepted.
func (d *dispatcher) enqueue(j job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- j:
		return true
	default:
		return false
	}
}

// stop closes the queue and waits for queued reports to drain.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.run() // drain even if never started
	d.wg.Wait()
	d.cancel()
}

func (d *dispatcher) loop() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *dispatcher) deliver(j job) {
	if d.reporter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, reportTimeout)
	defer cancel()

	if j.report != nil {
		if err := d.reporter.ReportState(ctx, j.desc, j.report); err != nil {
			d.logger().Error("state report failed", "device_id", j.desc.ID, "error", err)
		}
	}
	for _, ev := range j.events {
		if err := d.reporter.ReportEvent(ctx, j.desc, ev); err != nil {
			d.logger().Error("event report failed",
				"device_id", j.desc.ID,
				"event", string(ev.Kind),
				"error", err,
			)
		}
	}
}
