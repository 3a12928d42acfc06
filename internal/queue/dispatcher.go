package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher decouples event publication from the request path.  Notify
// never blocks: when the buffer is full the event is dropped and logged.
type Dispatcher struct {
	pub     Publisher
	events  chan Event
	logger  *slog.Logger
	timeout time.Duration

	dropped atomic.Int64
	wg      sync.WaitGroup
}

// NewDispatcher returns a dispatcher with room for buffer pending events.
func NewDispatcher(pub Publisher, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pub:     pub,
		events:  make(chan Event, buffer),
		logger:  logger.With("component", "notify-dispatcher"),
		timeout: 5 * time.Second,
	}
}

// Notify queues ev for publication.
func (d *Dispatcher) Notify(ev Event) {
	select {
	case d.events <- ev:
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("notification dropped, buffer full",
			"event_type", ev.Type, "event_id", ev.ID, "session_id", ev.SessionID, "dropped_total", n)
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Start runs the publishing loop until ctx is done.  Events still queued
// at that point are flushed before the loop exits.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case ev := <-d.events:
				d.publish(ev)
			case <-ctx.Done():
				d.drain()
				return
			}
		}
	}()
}

// Wait blocks until the loop started by Start has exited.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.events:
			d.publish(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.pub.Publish(ctx, ev); err != nil {
		d.logger.Warn("notification publish failed",
			"event_type", ev.Type, "event_id", ev.ID, "error", err)
	}
}
