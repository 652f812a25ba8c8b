package events

import (
	"context"
	"errors"
	"sync"

	"github.com/bl791/chat-logger/internal/observability"
	"github.com/bl791/chat-logger/internal/tracing"
	"github.com/rs/zerolog"
)

// DefaultQueueSize is used when DispatcherConfig.QueueSize is not positive.
const DefaultQueueSize = 256

var ErrDispatcherClosed = errors.New("dispatcher closed")

// DispatcherConfig configures a Dispatcher
type DispatcherConfig struct {
	QueueSize           int
	FallbackDestination string
	Logger              zerolog.Logger
}

type envelope struct {
	ctx   context.Context
	event Event
	// call, when set, runs on the loop instead of delivering event.
	call func()
}

// Dispatcher serializes events from many producers onto one Handler.
type Dispatcher struct {
	handler  Handler
	fallback string
	logger   zerolog.Logger

	queue chan envelope

	mu        sync.RWMutex
	closed    bool
	stop      chan struct{}
	sealed    chan struct{}
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher delivering to handler
func NewDispatcher(handler Handler, cfg DispatcherConfig) *Dispatcher {
	observability.EnsureRegistered()

	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	return &Dispatcher{
		handler:  handler,
		fallback: cfg.FallbackDestination,
		logger:   cfg.Logger.With().Str("component", "dispatcher").Logger(),
		queue:    make(chan envelope, size),
		stop:     make(chan struct{}),
		sealed:   make(chan struct{}),
	}
}

// Publish validates ev and queues it for the Run loop. It blocks while the
// queue is full until ctx is done or the dispatcher closes.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	return d.enqueue(ctx, envelope{ctx: ctx, event: ev})
}

// Call runs fn on the Run loop, serialized with event delivery, and waits for
// it to finish. Use it to read handler state from other goroutines. It returns
// ErrDispatcherClosed once the dispatcher is closed, including after Run exits.
func (d *Dispatcher) Call(ctx context.Context, fn func()) error {
	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrDispatcherClosed
	}
	err := d.enqueue(ctx, envelope{ctx: ctx, call: wrapped})
	d.mu.RUnlock()
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue must be called with d.mu read-locked.
func (d *Dispatcher) enqueue(ctx context.Context, env envelope) error {
	select {
	case d.queue <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stop:
		return ErrDispatcherClosed
	}
}

// Run delivers queued events until ctx is done or Close is called, then
// delivers whatever is still queued and returns. Run exactly once.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info().Int("queue_size", cap(d.queue)).Msg("Dispatcher started")

	for {
		select {
		case env := <-d.queue:
			d.handle(env)

		case <-ctx.Done():
			d.Close()
			d.drain()
			return

		case <-d.stop:
			<-d.sealed
			d.drain()
			return
		}
	}
}

// Close stops accepting events. Publishers blocked on a full queue return
// ErrDispatcherClosed. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.stop)

		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.sealed)
	})
}

// Deliver validates ev and hands it to the handler on the caller's goroutine.
// Must not be mixed with a running Run loop.
func (d *Dispatcher) Deliver(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	d.deliver(ctx, ev)
	return nil
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

func (d *Dispatcher) drain() {
	drained := 0
	for {
		select {
		case env := <-d.queue:
			d.handle(env)
			drained++
		default:
			d.logger.Info().Int("drained", drained).Msg("Dispatcher stopped")
			return
		}
	}
}

func (d *Dispatcher) handle(env envelope) {
	if env.call != nil {
		env.call()
		return
	}
	d.deliver(env.ctx, env.event)
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	if ctx == nil {
		ctx = context.Background()
	}
	// Producers may have gone away; the write still has to happen.
	ctx = tracing.NewEventContext(context.WithoutCancel(ctx))

	switch ev.Type {
	case ConnectionEstablished:
		d.handler.HandleConnectionEstablished(ctx, ev.Destination(d.fallback))

	case MessageReceived:
		if dest := ev.Destination(d.fallback); dest != "" {
			d.handler.HandleConnectionEstablished(ctx, dest)
		}
		d.handler.HandleMessageReceived(ctx, ev.Message())

	case ConnectionLost:
		d.handler.HandleConnectionLost(ctx)
	}

	observability.RecordEventDispatched(string(ev.Type))
	logger := tracing.LoggerFromContext(ctx, d.logger)
	logger.Debug().
		Str("type", string(ev.Type)).
		Msg("Event dispatched")
}
