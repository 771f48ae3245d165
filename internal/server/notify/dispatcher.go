package notify

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/sporthack/internal/logging"
	"github.com/dmitrijs2005/sporthack/internal/server/metrics"
)

// Dispatcher is a bounded in-process queue feeding every registered sink.
type Dispatcher struct {
	queue   chan Notification
	sinks   []Sink
	logger  logging.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(buffer int, logger logging.Logger, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		queue:   make(chan Notification, buffer),
		sinks:   sinks,
		logger:  logger,
		metrics: m,
	}
}

// Publish enqueues n. When the queue is full or the dispatcher has stopped,
// the notification is dropped and counted.
func (d *Dispatcher) Publish(ctx context.Context, n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, n, "dispatcher stopped")
		return
	}

	select {
	case d.queue <- n:
	default:
		d.drop(ctx, n, "queue full")
	}
}

func (d *Dispatcher) drop(ctx context.Context, n Notification, reason string) {
	d.metrics.IncNotificationDropped()
	d.logger.Warn(ctx, "notification dropped", "id", n.ID, "kind", n.Kind, "reason", reason)
}

// Run delivers queued notifications until ctx is cancelled, then drains what
// is left using a fresh context.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		case <-ctx.Done():
			d.mu.Lock()
			d.closed = true
			d.mu.Unlock()
			close(d.queue)

			drainCtx := context.WithoutCancel(ctx)
			for n := range d.queue {
				d.deliver(drainCtx, n)
			}
			return nil
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, n); err != nil {
			d.metrics.IncNotificationDelivered(s.Name(), "error")
			d.logger.Error(ctx, "notification delivery failed",
				"sink", s.Name(), "id", n.ID, "kind", n.Kind, "error", err)
			continue
		}
		d.metrics.IncNotificationDelivered(s.Name(), "ok")
	}
}
