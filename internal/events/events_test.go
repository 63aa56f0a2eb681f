package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []string

	bus.Subscribe(func(e Event) { got = append(got, "a:"+Name(e)) })
	bus.Subscribe(func(e Event) { got = append(got, "b:"+Name(e)) })

	bus.Publish(Started{PID: 1})
	bus.Publish(Stopped{PID: 1})

	assert.Equal(t, []string{"a:started", "b:started", "a:stopped", "b:stopped"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	count := 0
	unsub := bus.Subscribe(func(Event) { count++ })

	bus.Publish(EmptyStore{})
	unsub()
	bus.Publish(EmptyStore{})

	assert.Equal(t, 1, count)
}

func TestBus_SerializesConcurrentPublishers(t *testing.T) {
	bus := NewBus()
	var inHandler, overlaps int
	var mu sync.Mutex

	bus.Subscribe(func(Event) {
		mu.Lock()
		inHandler++
		if inHandler > 1 {
			overlaps++
		}
		mu.Unlock()

		mu.Lock()
		inHandler--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Output{Data: []byte("x")})
		}()
	}
	wg.Wait()

	assert.Zero(t, overlaps)
}

func TestBus_Channel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Channel(4)

	bus.Publish(ConfigChanged{Saved: false})
	bus.Publish(MiscChanged{Saved: true})

	require.Equal(t, ConfigChanged{Saved: false}, <-ch)
	require.Equal(t, MiscChanged{Saved: true}, <-ch)

	cancel()
	bus.Publish(EmptyStore{})
	_, ok := <-ch
	assert.False(t, ok)
}

func TestBus_NilPublishIsNoop(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(EmptyStore{}) })
}
