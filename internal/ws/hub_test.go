package ws

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	received [][]byte
	sendErr  error
	closed   bool
}

func (f *fakeSubscriber) Send(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received = append(f.received, p)
	return nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.received))
	for i, p := range f.received {
		out[i] = string(p)
	}
	return out
}

func TestHub_PublishAndSubscribe(t *testing.T) {
	t.Run("subscriber_receives_published_events", func(t *testing.T) {
		hub := NewHub()
		sub := &fakeSubscriber{}
		hub.Subscribe("gen-1", sub)

		hub.Publish("gen-1", []byte("one"))
		hub.Publish("gen-1", []byte("two"))

		assert.Equal(t, []string{"one", "two"}, sub.messages())
	})

	t.Run("late_subscriber_gets_replay", func(t *testing.T) {
		hub := NewHub()
		hub.Publish("gen-1", []byte("early"))

		sub := &fakeSubscriber{}
		hub.Subscribe("gen-1", sub)

		assert.Equal(t, []string{"early"}, sub.messages())
	})

	t.Run("events_are_scoped_by_generation", func(t *testing.T) {
		hub := NewHub()
		sub := &fakeSubscriber{}
		hub.Subscribe("gen-1", sub)

		hub.Publish("gen-2", []byte("other"))

		assert.Empty(t, sub.messages())
	})

	t.Run("failed_send_drops_subscriber", func(t *testing.T) {
		hub := NewHub()
		sub := &fakeSubscriber{sendErr: errors.New("gone")}
		hub.Subscribe("gen-1", sub)

		hub.Publish("gen-1", []byte("x"))

		assert.True(t, sub.closed)
	})

	t.Run("forget_clears_replay_history", func(t *testing.T) {
		hub := NewHub()
		hub.Publish("gen-1", []byte("early"))
		hub.Forget("gen-1")

		sub := &fakeSubscriber{}
		hub.Subscribe("gen-1", sub)
		assert.Empty(t, sub.messages())
	})

	t.Run("forget_releases_history_without_subscribers", func(t *testing.T) {
		hub := NewHub()
		for i := 0; i < 1000; i++ {
			id := fmt.Sprintf("gen-%d", i)
			hub.Publish(id, []byte("stage"))
			hub.Publish(id, []byte("done"))
		}
		assert.Len(t, hub.history, 1000)

		for i := 0; i < 1000; i++ {
			hub.Forget(fmt.Sprintf("gen-%d", i))
		}
		assert.Empty(t, hub.history)
	})
}
