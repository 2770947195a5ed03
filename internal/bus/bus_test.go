package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New(nil)
	s1 := b.Subscribe(4)
	s2 := b.Subscribe(4)
	defer s1.Close()
	defer s2.Close()

	b.Publish(Event{Type: EventTaskCreated, Ts: 100})

	assert.Equal(t, EventTaskCreated, (<-s1.C).Type)
	assert.Equal(t, EventTaskCreated, (<-s2.C).Type)
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe(2)
	defer sub.Close()

	b.Publish(Event{Type: "a", Ts: 1})
	b.Publish(Event{Type: "b", Ts: 2})
	b.Publish(Event{Type: "c", Ts: 3})

	assert.Equal(t, "b", (<-sub.C).Type)
	assert.Equal(t, "c", (<-sub.C).Type)
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %q", ev.Type)
	default:
	}
}

func TestCloseUnregisters(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe(1)
	require.Equal(t, 1, b.SubscriberCount())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub.C
	assert.False(t, open)

	b.Publish(Event{Type: "x", Ts: 1})
}

func TestPublishWithNoSubscribers(t *testing.T) {
	b := New(nil)
	b.Publish(Event{Type: EventClaimCreated, Ts: 1})
	assert.Equal(t, 0, b.SubscriberCount())
}
