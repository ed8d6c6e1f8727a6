package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gamebus_errors "gamebus/pkg/errors"
	"gamebus/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second
const tick = 5 * time.Millisecond

type delivery struct {
	channel string
	message string
}

type recorder struct {
	mu    sync.Mutex
	calls map[string][]delivery
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string][]delivery)}
}

func (r *recorder) handler(name string) HandlerFunc {
	return func(channel, message string) error {
		r.mu.Lock()
		r.calls[name] = append(r.calls[name], delivery{channel: channel, message: message})
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) get(name string) []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.calls[name]...)
}

func testConfig(s *miniredis.Miniredis) Config {
	return Config{
		Host:                    s.Host(),
		Port:                    s.Port(),
		AutoReconnect:           true,
		HandshakeTimeout:        500 * time.Millisecond,
		ReconnectInitialBackoff: 10 * time.Millisecond,
		ReconnectMaxBackoff:     50 * time.Millisecond,
		HealthCheckInterval:     50 * time.Millisecond,
	}
}

func connect(t *testing.T, s *miniredis.Miniredis, handler Handler, channels ...string) *Bus {
	t.Helper()
	b, err := Connect(context.Background(), testConfig(s), handler, channels, WithLogger(logger.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Shutdown(context.Background()) })
	return b
}

func TestPublishBeforeConnect(t *testing.T) {
	var b *Bus
	err := b.Publish(context.Background(), "lobby.start", map[string]string{"matchId": "m1"})
	require.ErrorIs(t, err, gamebus_errors.ErrNotConnected)
	require.ErrorIs(t, b.Shutdown(context.Background()), gamebus_errors.ErrNotConnected)
	assert.Equal(t, StateDisconnected, b.State())
}

func TestConnectTwice(t *testing.T) {
	s := miniredis.RunT(t)
	rec := newRecorder()
	first := connect(t, s, rec.handler("lobby"), "lobby.start")

	second, err := Connect(context.Background(), testConfig(s), nil, nil, WithLogger(logger.NewNop()))
	require.ErrorIs(t, err, gamebus_errors.ErrAlreadyConnected)
	assert.Nil(t, second)

	assert.Equal(t, StateConnected, first.State())
	require.NoError(t, first.Publish(context.Background(), "lobby.start", "still here"))
	require.Eventually(t, func() bool { return len(rec.get("lobby")) == 1 }, waitFor, tick)
}

func TestConnectFailureFreesSlot(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig(s)
	s.Close()

	_, err := Connect(context.Background(), cfg, nil, nil, WithLogger(logger.NewNop()))
	var connErr *gamebus_errors.ConnectionError
	require.ErrorAs(t, err, &connErr)

	require.NoError(t, s.Restart())
	b := connect(t, s, nil)
	assert.Equal(t, StateConnected, b.State())
}

func TestConnectRejectsEmptyChannel(t *testing.T) {
	s := miniredis.RunT(t)
	_, err := Connect(context.Background(), testConfig(s), nil, []string{"lobby.start", ""}, WithLogger(logger.NewNop()))
	require.ErrorIs(t, err, gamebus_errors.ErrInvalidChannel)

	b := connect(t, s, nil)
	assert.NotEmpty(t, b.ID())
}

func TestDeliveryByChannel(t *testing.T) {
	s := miniredis.RunT(t)
	rec := newRecorder()
	handler := HandlerFunc(func(channel, message string) error {
		switch channel {
		case "lobby.start":
			return rec.handler("start")(channel, message)
		default:
			return rec.handler("other")(channel, message)
		}
	})
	b := connect(t, s, handler, "lobby.start", "lobby.prepare")
	assert.Equal(t, []string{"lobby.prepare", "lobby.start"}, b.Channels())
	assert.True(t, b.Subscribed("lobby.start"))
	assert.False(t, b.Subscribed("match.end"))

	require.NoError(t, b.Publish(context.Background(), "lobby.start", map[string]string{"matchId": "m1"}))

	require.Eventually(t, func() bool { return len(rec.get("start")) == 1 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []delivery{{channel: "lobby.start", message: `{"matchId":"m1"}`}}, rec.get("start"))
	assert.Empty(t, rec.get("other"))
}

func TestUnsubscribedChannelNotDelivered(t *testing.T) {
	s := miniredis.RunT(t)
	rec := newRecorder()
	b := connect(t, s, rec.handler("lobby"), "lobby.start")

	require.NoError(t, b.Publish(context.Background(), "match.end", "ignored"))
	require.NoError(t, b.Publish(context.Background(), "lobby.start", "seen"))

	require.Eventually(t, func() bool { return len(rec.get("lobby")) == 1 }, waitFor, tick)
	assert.Equal(t, `"seen"`, rec.get("lobby")[0].message)
}

func TestFailingHandlerDoesNotBlockDelivery(t *testing.T) {
	s := miniredis.RunT(t)
	rec := newRecorder()
	handler := HandlerFunc(func(channel, message string) error {
		if message == `"bad"` {
			return errors.New("cannot process")
		}
		if message == `"worse"` {
			panic("handler bug")
		}
		return rec.handler("ok")(channel, message)
	})
	b := connect(t, s, handler, "lobby.start", "match.end")
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "lobby.start", "bad"))
	require.NoError(t, b.Publish(ctx, "lobby.start", "good"))
	require.NoError(t, b.Publish(ctx, "match.end", "worse"))
	require.NoError(t, b.Publish(ctx, "match.end", "fine"))

	require.Eventually(t, func() bool { return len(rec.get("ok")) == 2 }, waitFor, tick)
	assert.Equal(t, []delivery{
		{channel: "lobby.start", message: `"good"`},
		{channel: "match.end", message: `"fine"`},
	}, rec.get("ok"))
	assert.Equal(t, StateConnected, b.State())
}

func TestDropAndReconnect(t *testing.T) {
	s := miniredis.RunT(t)
	rec := newRecorder()
	var mu sync.Mutex
	var kinds []EventKind
	b, err := Connect(context.Background(), testConfig(s), rec.handler("lobby"), []string{"lobby.start"},
		WithLogger(logger.NewNop()),
		WithObserver(func(ev Event) {
			mu.Lock()
			kinds = append(kinds, ev.Kind)
			mu.Unlock()
		}),
	)
	require.NoError(t, err)
	defer b.Shutdown(context.Background())
	ctx := context.Background()

	s.Close()
	require.Eventually(t, func() bool { return b.State() == StateReconnecting }, waitFor, tick)
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, b.Publish(ctx, "lobby.start", "during outage"), gamebus_errors.ErrNotConnected)
	}

	require.NoError(t, s.Restart())
	require.Eventually(t, func() bool { return b.State() == StateConnected }, waitFor, tick)

	require.NoError(t, b.Publish(ctx, "lobby.start", map[string]string{"matchId": "m2"}))
	require.Eventually(t, func() bool { return len(rec.get("lobby")) == 1 }, waitFor, tick)
	assert.Equal(t, `{"matchId":"m2"}`, rec.get("lobby")[0].message)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, EventDisconnected)
	assert.Equal(t, EventConnected, kinds[0])
}

func TestShutdownIdempotent(t *testing.T) {
	s := miniredis.RunT(t)
	b, err := Connect(context.Background(), testConfig(s), nil, []string{"lobby.start"}, WithLogger(logger.NewNop()))
	require.NoError(t, err)

	require.NoError(t, b.Shutdown(context.Background()))
	require.NoError(t, b.Shutdown(context.Background()))

	assert.Equal(t, StateDisconnected, b.State())
	require.ErrorIs(t, b.Publish(context.Background(), "lobby.start", "late"), gamebus_errors.ErrNotConnected)
	require.ErrorIs(t, b.PublishAsync(context.Background(), "lobby.start", "late", nil), gamebus_errors.ErrNotConnected)

	again := connect(t, s, nil)
	assert.Equal(t, StateConnected, again.State())
}

func TestPublishAsync(t *testing.T) {
	s := miniredis.RunT(t)
	rec := newRecorder()
	b := connect(t, s, rec.handler("lobby"), "lobby.start")

	done := make(chan error, 1)
	require.NoError(t, b.PublishAsync(context.Background(), "lobby.start", []int{1, 2, 3}, func(err error) { done <- err }))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("publish callback not called")
	}
	require.Eventually(t, func() bool { return len(rec.get("lobby")) == 1 }, waitFor, tick)
	assert.Equal(t, "[1,2,3]", rec.get("lobby")[0].message)
}

func TestPublishEncodingError(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig(s)
	cfg.HealthCheckInterval = time.Minute
	b, err := Connect(context.Background(), cfg, nil, nil, WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer b.Shutdown(context.Background())
	before := s.CommandCount()

	err = b.Publish(context.Background(), "lobby.start", map[string]any{"bad": make(chan int)})
	var encErr *gamebus_errors.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, before, s.CommandCount())
}
