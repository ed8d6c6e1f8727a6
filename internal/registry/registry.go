package registry

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Handler processes one inbound message.
type Handler interface {
	ProcessMessage(channel, message string) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(channel, message string) error

func (f HandlerFunc) ProcessMessage(channel, message string) error {
	return f(channel, message)
}

// Registry maps channel names to handlers. Lookups read an immutable snapshot,
// so they never block on, or race with, a concurrent Register.
type Registry struct {
	mu       sync.Mutex // serializes writers
	snapshot atomic.Pointer[map[string]Handler]
}

func New() *Registry {
	r := &Registry{}
	empty := make(map[string]Handler)
	r.snapshot.Store(&empty)
	return r
}

// Register binds handler to channel. The last registration for a channel wins.
func (r *Registry) Register(channel string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	next := make(map[string]Handler, len(current)+1)
	for ch, h := range current {
		next[ch] = h
	}
	next[channel] = handler
	r.snapshot.Store(&next)
}

// Lookup returns the handler bound to channel, if any.
func (r *Registry) Lookup(channel string) (Handler, bool) {
	h, ok := (*r.snapshot.Load())[channel]
	return h, ok
}

// Channels returns the registered channel names in sorted order.
func (r *Registry) Channels() []string {
	current := *r.snapshot.Load()
	channels := make([]string, 0, len(current))
	for ch := range current {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}

func (r *Registry) Len() int {
	return len(*r.snapshot.Load())
}
