package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"gamebus/internal/registry"
	gamebus_errors "gamebus/pkg/errors"
	"gamebus/pkg/logger"

	"go.uber.org/zap"
)

const DefaultBufferSize = 256

type inbound struct {
	channel string
	payload string
}

// Dispatcher delivers inbound messages to registered handlers on its own
// goroutine, so a slow handler never stalls the socket reader. Messages are
// delivered one at a time in arrival order.
type Dispatcher struct {
	registry *registry.Registry
	logger   *logger.Logger

	queue chan inbound
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	dropped atomic.Uint64
}

type Option func(*Dispatcher)

func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithBufferSize sets how many messages may wait for delivery before new
// ones are dropped.
func WithBufferSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan inbound, n)
		}
	}
}

func New(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   logger.GetGlobalLogger(),
		queue:    make(chan inbound, DefaultBufferSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the delivery goroutine. Further calls are no-ops.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run()
	})
}

// Enqueue hands a message to the delivery goroutine without blocking. It
// reports false when the message was dropped because the queue is full or the
// dispatcher is stopped.
func (d *Dispatcher) Enqueue(channel, payload string) bool {
	select {
	case <-d.done:
		return false
	default:
	}

	select {
	case d.queue <- inbound{channel: channel, payload: payload}:
		return true
	case <-d.done:
		return false
	default:
		n := d.dropped.Add(1)
		d.logger.Warnf("dispatch queue full, dropping message on %s (dropped=%d)", channel, n)
		return false
	}
}

// Dropped returns how many messages were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Stop halts delivery. It waits for the handler currently running, if any,
// until ctx expires. Queued messages that have not started are discarded.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.done)
	})

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop dispatcher: %w", ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case msg := <-d.queue:
			d.dispatch(msg)
		}
	}
}

func (d *Dispatcher) dispatch(msg inbound) {
	handler, ok := d.registry.Lookup(msg.channel)
	if !ok {
		d.logger.Debugf("no handler for channel %s, dropping message", msg.channel)
		return
	}

	if err := invoke(handler, msg); err != nil {
		herr := &gamebus_errors.HandlerError{Channel: msg.channel, Err: err}
		d.logger.Logger.Error("message handler failed",
			zap.String("channel", msg.channel),
			zap.Error(herr),
		)
	}
}

func invoke(handler registry.Handler, msg inbound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler.ProcessMessage(msg.channel, msg.payload)
}
