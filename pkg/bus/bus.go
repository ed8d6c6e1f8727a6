// Package bus is the entry point for game servers: it connects one
// publish/subscribe session to the broker, publishes values as JSON and
// delivers inbound messages on the subscribed channels to a Handler.
//
// At most one Bus is live per process. Connect returns an owned handle;
// Shutdown releases it and allows a new Connect.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"gamebus/internal/dispatch"
	"gamebus/internal/redis"
	"gamebus/internal/registry"
	gamebus_errors "gamebus/pkg/errors"
	"gamebus/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	Config      = redis.Config
	State       = redis.State
	Event       = redis.Event
	EventKind   = redis.EventKind
	Observer    = redis.Observer
	Handler     = registry.Handler
	HandlerFunc = registry.HandlerFunc
)

const (
	StateDisconnected = redis.StateDisconnected
	StateConnecting   = redis.StateConnecting
	StateConnected    = redis.StateConnected
	StateReconnecting = redis.StateReconnecting

	EventConnected    = redis.EventConnected
	EventDisconnected = redis.EventDisconnected
	EventError        = redis.EventError
)

// live guards the one-Bus-per-process rule.
var live atomic.Bool

type Bus struct {
	id         uuid.UUID
	logger     *logger.Logger
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	conn       *redis.Manager
	publisher  *redis.Publisher

	mu     sync.Mutex
	closed bool
}

type options struct {
	logger         *logger.Logger
	observers      []Observer
	dispatchBuffer int
}

type Option func(*options)

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver registers a lifecycle observer. Observers run on the
// connection supervisor and must not block.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithDispatchBuffer bounds how many inbound messages may wait for the
// handler before new ones are dropped.
func WithDispatchBuffer(n int) Option {
	return func(o *options) { o.dispatchBuffer = n }
}

// Connect opens the broker session and subscribes handler to channels. A nil
// handler or an empty channel list yields a publish-only Bus. It fails with
// ErrAlreadyConnected while another Bus is live, and with a ConnectionError
// when the broker cannot be reached.
func Connect(ctx context.Context, cfg Config, handler Handler, channels []string, opts ...Option) (*Bus, error) {
	for _, ch := range channels {
		if ch == "" {
			return nil, fmt.Errorf("%w: empty channel name", gamebus_errors.ErrInvalidChannel)
		}
	}

	if !live.CompareAndSwap(false, true) {
		return nil, gamebus_errors.ErrAlreadyConnected
	}

	o := options{logger: logger.GetGlobalLogger(), dispatchBuffer: dispatch.DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.GetGlobalLogger()
	}

	if handler == nil {
		handler = HandlerFunc(func(string, string) error { return nil })
	}

	id := uuid.New()
	l := o.logger.With(zap.String(string(logger.BusIdKey), id.String()))

	reg := registry.New()
	for _, ch := range channels {
		reg.Register(ch, handler)
	}

	d := dispatch.New(reg, dispatch.WithLogger(l), dispatch.WithBufferSize(o.dispatchBuffer))

	managerOpts := []redis.ManagerOption{redis.WithLogger(l)}
	for _, obs := range o.observers {
		managerOpts = append(managerOpts, redis.WithObserver(obs))
	}
	if reg.Len() > 0 {
		managerOpts = append(managerOpts, redis.WithSubscriptions(reg.Channels(), func(channel, payload string) {
			d.Enqueue(channel, payload)
		}))
	}
	conn := redis.NewManager(cfg, managerOpts...)

	d.Start()
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		_ = d.Stop(ctx)
		live.Store(false)
		return nil, err
	}

	l.Infof("bus connected to %s, subscribed to %v", conn.Endpoint(), reg.Channels())
	return &Bus{
		id:         id,
		logger:     l,
		registry:   reg,
		dispatcher: d,
		conn:       conn,
		publisher:  redis.NewPublisher(conn),
	}, nil
}

// Publish encodes value as JSON and sends it on channel. It fails with
// ErrNotConnected on a nil or shut down Bus and while the session is down.
func (b *Bus) Publish(ctx context.Context, channel string, value any) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	return b.publisher.Publish(ctx, channel, value)
}

// PublishAsync is Publish with the send performed in the background; done,
// if not nil, receives the send result. Encoding errors are returned directly.
func (b *Bus) PublishAsync(ctx context.Context, channel string, value any, done func(error)) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	return b.publisher.PublishAsync(ctx, channel, value, done)
}

// Shutdown closes the session, stops message delivery and frees the process
// slot for a new Connect. Calling it again is a no-op.
func (b *Bus) Shutdown(ctx context.Context) error {
	if b == nil {
		return gamebus_errors.ErrNotConnected
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	connErr := b.conn.Close()
	stopErr := b.dispatcher.Stop(ctx)
	live.Store(false)

	b.logger.Infof("bus shut down")
	return errors.Join(connErr, stopErr)
}

// State reports the session state; a nil Bus is disconnected.
func (b *Bus) State() State {
	if b == nil {
		return StateDisconnected
	}
	return b.conn.State()
}

func (b *Bus) ID() string {
	if b == nil {
		return ""
	}
	return b.id.String()
}

// Channels returns the subscribed channel names.
func (b *Bus) Channels() []string {
	if b == nil {
		return nil
	}
	return b.registry.Channels()
}

// Subscribed reports whether channel is one of the subscribed channels.
func (b *Bus) Subscribed(channel string) bool {
	if b == nil {
		return false
	}
	_, ok := b.registry.Lookup(channel)
	return ok
}

// Dropped returns how many inbound messages were discarded because the
// handler fell behind.
func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dispatcher.Dropped()
}

func (b *Bus) checkLive() error {
	if b == nil {
		return gamebus_errors.ErrNotConnected
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return gamebus_errors.ErrNotConnected
	}
	return nil
}
