package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string, calls *[]string) HandlerFunc {
	return func(channel, message string) error {
		*calls = append(*calls, name+":"+channel)
		return nil
	}
}

func TestRegistry(t *testing.T) {
	t.Run("lookup of unknown channel", func(t *testing.T) {
		r := New()
		_, ok := r.Lookup("lobby.start")
		assert.False(t, ok)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("last registration wins", func(t *testing.T) {
		var calls []string
		r := New()
		r.Register("lobby.start", named("first", &calls))
		r.Register("lobby.start", named("second", &calls))

		h, ok := r.Lookup("lobby.start")
		require.True(t, ok)
		require.NoError(t, h.ProcessMessage("lobby.start", "{}"))
		assert.Equal(t, []string{"second:lobby.start"}, calls)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("channels are sorted", func(t *testing.T) {
		r := New()
		noop := HandlerFunc(func(string, string) error { return nil })
		r.Register("match.end", noop)
		r.Register("lobby.start", noop)
		r.Register("lobby.prepare", noop)
		assert.Equal(t, []string{"lobby.prepare", "lobby.start", "match.end"}, r.Channels())
	})
}

func TestRegistryConcurrentLookup(t *testing.T) {
	r := New()
	noop := HandlerFunc(func(string, string) error { return nil })
	r.Register("lobby.start", noop)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("channel-%d", i), noop)
		}(i)
		go func() {
			defer wg.Done()
			_, ok := r.Lookup("lobby.start")
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Equal(t, 51, r.Len())
}
