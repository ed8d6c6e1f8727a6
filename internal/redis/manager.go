package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	gamebus_errors "gamebus/pkg/errors"
	"gamebus/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink receives inbound messages from the read loop. It must not block.
type Sink func(channel, payload string)

// session is one established connection: a client for commands and, when
// channels were requested, a dedicated pub/sub connection.
type session struct {
	client *redis.Client
	pubsub *redis.PubSub
}

func (s *session) close() error {
	var errs []error
	if s.pubsub != nil {
		if err := s.pubsub.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Manager owns the single broker session. It performs the handshake,
// supervises the session on a background goroutine and re-establishes it
// after a drop when AutoReconnect is set.
//
// Disconnected -> Connecting -> Connected -> Reconnecting -> Connected ...
// Close moves any state to Disconnected, permanently.
type Manager struct {
	cfg       Config
	logger    *logger.Logger
	channels  []string
	sink      Sink
	observers []Observer

	state atomic.Int32

	mu     sync.RWMutex
	sess   *session
	closed bool

	dropped chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ManagerOption func(*Manager)

func WithLogger(l *logger.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithSubscriptions subscribes the session to channels and feeds every
// inbound message to sink.
func WithSubscriptions(channels []string, sink Sink) ManagerOption {
	return func(m *Manager) {
		m.channels = append([]string(nil), channels...)
		m.sink = sink
	}
}

func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg.withDefaults(),
		logger:  logger.GetGlobalLogger(),
		dropped: make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sink == nil {
		m.sink = func(string, string) {}
	}
	m.logger = m.logger.With(zap.String("endpoint", m.cfg.Addr()))
	return m
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) Endpoint() string {
	return m.cfg.Addr()
}

// Connect establishes the session. A failed handshake is reported as a
// ConnectionError and is not retried.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return gamebus_errors.ErrClosed
	}
	if !m.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return gamebus_errors.ErrAlreadyConnected
	}

	hctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-m.ctx.Done():
			stop()
		case <-hctx.Done():
		}
	}()

	sess, err := m.handshake(hctx)
	if err != nil {
		m.setState(StateDisconnected)
		m.logger.Errorf("Failed to connect to Redis: %v", err)
		return &gamebus_errors.ConnectionError{Endpoint: m.cfg.Addr(), Err: err}
	}
	if !m.install(sess, true) {
		_ = sess.close()
		return gamebus_errors.ErrClosed
	}
	m.notify(Event{Kind: EventConnected})

	go m.supervise(sess)
	return nil
}

// Send publishes payload on channel. It fails with ErrNotConnected unless the
// session is up. A transport failure is reported the same way and tells the
// supervisor the session dropped.
func (m *Manager) Send(ctx context.Context, channel, payload string) error {
	if m.State() != StateConnected {
		return gamebus_errors.ErrNotConnected
	}
	m.mu.RLock()
	sess := m.sess
	m.mu.RUnlock()
	if sess == nil {
		return gamebus_errors.ErrNotConnected
	}

	err := sess.client.Publish(ctx, channel, payload).Err()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("publish to %s: %w", channel, ctx.Err())
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	m.signalDrop(err)
	return fmt.Errorf("%w: publish to %s: %v", gamebus_errors.ErrNotConnected, channel, err)
}

// Close releases the session and stops the supervisor. It is safe to call
// more than once and while a reconnect is in progress.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sess := m.sess
	m.sess = nil
	m.mu.Unlock()

	wasUp := m.State() == StateConnected
	m.cancel()

	var err error
	if sess != nil {
		err = sess.close()
	}
	m.wg.Wait()
	m.setState(StateDisconnected)

	if wasUp {
		m.notify(Event{Kind: EventDisconnected})
	}
	return err
}

func (m *Manager) handshake(ctx context.Context) (*session, error) {
	hctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	client := NewClient(m.cfg)
	if err := client.Ping(hctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	sess := &session{client: client}
	if len(m.channels) == 0 {
		return sess, nil
	}

	sess.pubsub = client.Subscribe(hctx, m.channels...)
	if _, err := sess.pubsub.ReceiveTimeout(hctx, m.cfg.HandshakeTimeout); err != nil {
		_ = sess.close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return sess, nil
}

// install makes sess current unless the manager was closed meanwhile. With
// supervise set it also accounts for the supervisor goroutine the caller is
// about to start, so Close cannot miss it.
func (m *Manager) install(sess *session, supervise bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.sess = sess
	m.setState(StateConnected)
	if supervise {
		m.wg.Add(1)
	}
	return true
}

// release detaches sess if it is still the current session.
func (m *Manager) release(sess *session) {
	m.mu.Lock()
	current := m.sess == sess
	if current {
		m.sess = nil
	}
	m.mu.Unlock()
	if current {
		_ = sess.close()
	}
}

func (m *Manager) supervise(sess *session) {
	defer m.wg.Done()
	for {
		err := m.watch(sess)
		if m.ctx.Err() != nil {
			return
		}

		if m.cfg.AutoReconnect {
			m.setState(StateReconnecting)
		} else {
			m.setState(StateDisconnected)
		}
		m.release(sess)
		m.notify(Event{Kind: EventDisconnected, Err: err})

		if !m.cfg.AutoReconnect {
			return
		}
		next, ok := m.reconnect()
		if !ok {
			return
		}
		sess = next
	}
}

// watch blocks until the session drops or the manager closes.
func (m *Manager) watch(sess *session) error {
	m.drainDropped()
	if sess.pubsub == nil {
		return m.watchPing(sess)
	}

	for {
		msg, err := sess.pubsub.ReceiveTimeout(m.ctx, m.cfg.HealthCheckInterval)
		if err != nil {
			if m.ctx.Err() != nil {
				return m.ctx.Err()
			}
			if !isTimeout(err) {
				return err
			}
			if err := m.ping(sess); err != nil {
				return err
			}
		}

		switch msg := msg.(type) {
		case *redis.Message:
			m.sink(msg.Channel, msg.Payload)
		case *redis.Subscription:
			m.logger.Debugf("%s %s (%d active)", msg.Kind, msg.Channel, msg.Count)
		}

		select {
		case err := <-m.dropped:
			return err
		default:
		}
	}
}

func (m *Manager) watchPing(sess *session) error {
	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		case err := <-m.dropped:
			return err
		case <-ticker.C:
			if err := m.ping(sess); err != nil {
				return err
			}
		}
	}
}

func (m *Manager) ping(sess *session) error {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.HandshakeTimeout)
	defer cancel()
	return sess.client.Ping(ctx).Err()
}

func (m *Manager) reconnect() (*session, bool) {
	b := newBackoff(m.cfg.ReconnectInitialBackoff, m.cfg.ReconnectMaxBackoff)
	for attempt := 1; ; attempt++ {
		sess, err := m.handshake(m.ctx)
		if err == nil {
			if !m.install(sess, false) {
				_ = sess.close()
				return nil, false
			}
			m.notify(Event{Kind: EventConnected, Attempt: attempt})
			return sess, true
		}
		if m.ctx.Err() != nil {
			return nil, false
		}
		m.notify(Event{Kind: EventError, Attempt: attempt, Err: err})

		select {
		case <-m.ctx.Done():
			return nil, false
		case <-time.After(b.Next()):
		}
	}
}

func (m *Manager) signalDrop(err error) {
	select {
	case m.dropped <- err:
	default:
	}
}

func (m *Manager) drainDropped() {
	select {
	case <-m.dropped:
	default:
	}
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

func (m *Manager) notify(ev Event) {
	ev.Endpoint = m.cfg.Addr()
	ev.State = m.State()
	ev.At = time.Now()

	switch ev.Kind {
	case EventConnected:
		m.logger.Infof("Successfully established connection with Redis")
	case EventDisconnected:
		if ev.Err != nil {
			m.logger.Warnf("Redis has been disconnected: %v", ev.Err)
		} else {
			m.logger.Infof("Redis has been disconnected")
		}
	case EventError:
		m.logger.Errorf("An error has occurred with Redis (attempt %d): %v", ev.Attempt, ev.Err)
	}

	for _, o := range m.observers {
		o(ev)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
