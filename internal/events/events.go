// Package events carries controller notifications to whichever presentation
// layer is attached.
package events

import (
	"sync"
	"time"

	"shadowdeck/internal/core/types"
)

// Event is implemented by every payload published on a Bus.
type Event interface {
	eventName() string
}

// Started is published once the backend process has been spawned.
type Started struct {
	PID         int
	ProfileName string
	Server      string
	Local       string // host:port of the SOCKS listener
	Path        string
	Type        types.BackendType
	At          time.Time
}

// Stopped is published when the backend exits, whether requested or not.
type Stopped struct {
	PID       int
	ExitCode  int // -1 when killed by a signal
	Requested bool
	Err       error
	At        time.Time
}

// SpawnFailed is published when the backend could not be started.
type SpawnFailed struct {
	Path string
	Type types.BackendType
	Err  error
}

// Output carries a chunk of backend stdout/stderr. Chunk boundaries follow
// the pipe, not line boundaries.
type Output struct {
	Data []byte
}

// ConfigChanged reports the profile dirty flag: Saved is false after an edit.
type ConfigChanged struct {
	Saved bool
}

// MiscChanged reports the misc settings dirty flag.
type MiscChanged struct {
	Saved bool
}

// EmptyStore is published when no profile exists; the presentation layer is
// expected to ask for a new one.
type EmptyStore struct{}

// DebugChanged is published whenever the debug misc flag is switched.
type DebugChanged struct {
	Enabled bool
}

// ProfileSelected is published after the current profile changed.
type ProfileSelected struct {
	Index int
	Name  string
}

func (Started) eventName() string         { return "started" }
func (Stopped) eventName() string         { return "stopped" }
func (SpawnFailed) eventName() string     { return "spawn_failed" }
func (Output) eventName() string          { return "output" }
func (ConfigChanged) eventName() string   { return "config_changed" }
func (MiscChanged) eventName() string     { return "misc_changed" }
func (EmptyStore) eventName() string      { return "empty_store" }
func (ProfileSelected) eventName() string { return "profile_selected" }
func (DebugChanged) eventName() string    { return "debug_changed" }

// Name returns a short identifier for e, used in logs.
func Name(e Event) string {
	return e.eventName()
}

// Handler receives events.
type Handler func(Event)

// Bus is a synchronous callback registry. Publish delivers to handlers in
// subscription order and serializes concurrent publishers, so every handler
// sees events one at a time in publish order.
type Bus struct {
	mu       sync.RWMutex
	deliver  sync.Mutex
	handlers map[int]Handler
	order    []int
	nextID   int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function removing it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		for i, o := range b.order {
			if o == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers e to all handlers. Handlers must not publish on the same
// bus.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	hs := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		hs = append(hs, b.handlers[id])
	}
	b.mu.RUnlock()

	b.deliver.Lock()
	defer b.deliver.Unlock()
	for _, h := range hs {
		h(e)
	}
}

// Channel subscribes a buffered channel for a single consumer. Events are
// dropped only if the consumer falls more than size events behind.
func (b *Bus) Channel(size int) (<-chan Event, func()) {
	ch := make(chan Event, size)
	var once sync.Once
	var closed bool
	var mu sync.Mutex

	unsub := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})

	return ch, func() {
		once.Do(func() {
			unsub()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
}
