package events

import "sync"

// Listener receives events from a Bus. Implementations must be comparable
// (typically pointer receivers) because removal is by identity.
type Listener interface {
	OnEvent(WatchEvent)
}

// ListenerFunc adapts a function to a Listener. It is not comparable; use
// Bus.Subscribe, which wraps it in a removable handle.
type ListenerFunc func(WatchEvent)

type funcListener struct {
	fn ListenerFunc
}

func (l *funcListener) OnEvent(e WatchEvent) {
	l.fn(e)
}

// Bus is a fan-out publish/subscribe channel scoped to one workspace.
//
// Emit delivers synchronously to every listener registered at the moment of
// the call, in registration order. The listener list is snapshotted before
// delivery, so listeners added or removed during an emission only affect
// later emissions.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{}
}

// AddListener registers l. Adding a listener that is already registered is a no-op.
func (b *Bus) AddListener(l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.listeners {
		if existing == l {
			return
		}
	}
	// copy-on-write keeps snapshots handed out by Emit immutable
	next := make([]Listener, len(b.listeners), len(b.listeners)+1)
	copy(next, b.listeners)
	b.listeners = append(next, l)
}

// RemoveListener unregisters l. Removing an unknown listener is a no-op.
func (b *Bus) RemoveListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.listeners {
		if existing == l {
			next := make([]Listener, 0, len(b.listeners)-1)
			next = append(next, b.listeners[:i]...)
			next = append(next, b.listeners[i+1:]...)
			b.listeners = next
			return
		}
	}
}

// Subscribe registers fn and returns a function that removes it again. The
// returned function is safe to call more than once.
func (b *Bus) Subscribe(fn ListenerFunc) (unsubscribe func()) {
	l := &funcListener{fn: fn}
	b.AddListener(l)
	return func() { b.RemoveListener(l) }
}

// Emit delivers e to every currently registered listener.
func (b *Bus) Emit(e WatchEvent) {
	b.mu.RLock()
	snapshot := b.listeners
	b.mu.RUnlock()

	for _, l := range snapshot {
		l.OnEvent(e)
	}
}

// ListenerCount returns the number of registered listeners.
func (b *Bus) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
