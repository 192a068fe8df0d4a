package services

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/go-messenger-bot/internal/messenger"
	"github.com/tbourn/go-messenger-bot/internal/observability"
)

// HandlerFunc processes one messaging event.
type HandlerFunc func(ctx context.Context, pageID string, m messenger.Messaging) error

type job struct {
	ctx    context.Context
	pageID string
	m      messenger.Messaging
}

// Dispatcher runs event handling on a bounded worker pool so the webhook
// can acknowledge immediately. When the queue is full, or after Stop, Submit
// handles the event on the caller's goroutine instead of dropping it.
type Dispatcher struct {
	handle  HandlerFunc
	workers int
	timeout time.Duration
	queue   chan job

	mu      sync.RWMutex
	stopped bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher returns a dispatcher with the given pool and queue sizes.
// timeout bounds each event (0 = no limit).
func NewDispatcher(handle HandlerFunc, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Dispatcher{
		handle:  handle,
		workers: workers,
		timeout: timeout,
		queue:   make(chan job, queueSize),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Submit queues the event. ctx values (logger, trace) are kept but its
// cancellation is not, so handling outlives the HTTP request.
func (d *Dispatcher) Submit(ctx context.Context, pageID string, m messenger.Messaging) {
	j := job{ctx: context.WithoutCancel(ctx), pageID: pageID, m: m}

	d.mu.RLock()
	if d.started && !d.stopped {
		select {
		case d.queue <- j:
			observability.DispatchQueueDepth.Set(float64(len(d.queue)))
			d.mu.RUnlock()
			return
		default:
		}
	}
	d.mu.RUnlock()

	observability.DispatchInline.Inc()
	d.run(j)
}

// Stop closes the queue and waits for queued events to finish or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		observability.DispatchQueueDepth.Set(float64(len(d.queue)))
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx := j.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			observability.Errors.WithLabelValues("dispatcher").Inc()
			loggerFrom(ctx).Error().Interface("panic", r).Msg("event handler panicked")
		}
	}()
	if err := d.handle(ctx, j.pageID, j.m); err != nil {
		loggerFrom(ctx).Error().Err(err).
			Str("sender_id", j.m.Sender.ID).
			Str("mid", j.m.MID()).
			Msg("event handling failed")
	}
}
