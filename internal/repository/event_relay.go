package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
	applogger "PanelSync/pkg/logger"
)

// BatchPublisher is a sink that can take several events in one write.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []*models.CanvasEvent) error
}

// EventRelay decouples event emission from delivery. Publish copies the
// event into a bounded queue and returns at once; one goroutine hands each
// event to every sink in order. Events that do not fit are dropped.
// Events already queued together go to a BatchPublisher in one call.
type EventRelay struct {
	sinks   []drepo.EventPublisher
	log     *applogger.Logger
	metrics drepo.Metrics
	timeout time.Duration
	batch   int

	ch      chan *models.CanvasEvent
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewEventRelay starts a relay with the given queue capacity.
func NewEventRelay(queue int, log *applogger.Logger, metrics drepo.Metrics, sinks ...drepo.EventPublisher) *EventRelay {
	if queue <= 0 {
		queue = 1024
	}
	if log == nil {
		log = applogger.NewNop()
	}
	r := &EventRelay{
		sinks:   sinks,
		log:     log,
		metrics: metrics,
		timeout: 5 * time.Second,
		batch:   64,
		ch:      make(chan *models.CanvasEvent, queue),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Publish never blocks on delivery.
func (r *EventRelay) Publish(_ context.Context, ev *models.CanvasEvent) error {
	cp := *ev
	if ev.Affected != nil {
		cp.Affected = append([]string(nil), ev.Affected...)
	}
	if ev.Rect != nil {
		rect := *ev.Rect
		cp.Rect = &rect
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrStoreClosed
	}
	select {
	case r.ch <- &cp:
	default:
		r.dropped.Add(1)
		if r.metrics != nil {
			r.metrics.RecordError("event_dropped")
		}
	}
	return nil
}

// Dropped returns the number of events discarded because the queue was full.
func (r *EventRelay) Dropped() int64 {
	return r.dropped.Load()
}

func (r *EventRelay) run() {
	defer r.wg.Done()
	buf := make([]*models.CanvasEvent, 0, r.batch)
	for ev := range r.ch {
		buf = append(buf[:0], ev)
	fill:
		for len(buf) < r.batch {
			select {
			case next, ok := <-r.ch:
				if !ok {
					break fill
				}
				buf = append(buf, next)
			default:
				break fill
			}
		}
		for _, s := range r.sinks {
			r.deliver(s, buf)
		}
	}
}

func (r *EventRelay) deliver(s drepo.EventPublisher, events []*models.CanvasEvent) {
	if bp, ok := s.(BatchPublisher); ok {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := bp.PublishBatch(ctx, events)
		cancel()
		if err != nil {
			r.sinkFailed(events[0], len(events), err)
		}
		return
	}
	for _, ev := range events {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := s.Publish(ctx, ev)
		cancel()
		if err != nil {
			r.sinkFailed(ev, 1, err)
		}
	}
}

func (r *EventRelay) sinkFailed(ev *models.CanvasEvent, n int, err error) {
	if r.metrics != nil {
		r.metrics.RecordError("event_sink")
	}
	r.log.Warn("event sink failed",
		applogger.String("type", string(ev.Type)),
		applogger.String("canvas", ev.CanvasID),
		applogger.Int("events", n),
		applogger.Error(err),
	)
}

// Close drains queued events and closes every sink.
func (r *EventRelay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	r.wg.Wait()

	var first error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ drepo.EventPublisher = (*EventRelay)(nil)
