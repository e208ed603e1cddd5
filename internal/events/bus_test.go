package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	b := NewBus()
	var got []Message
	b.Subscribe(Subscription{
		Topic: "plugins.analytics.load",
		Func:  func(m Message) { got = append(got, m) },
	})

	b.Publish(Message{
		Topic: "plugins.analytics.load",
		Data:  map[string]any{"name": "analytics"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "analytics", got[0].Data["name"])
}

func TestBus_TopicIsolation(t *testing.T) {
	t.Parallel()

	b := NewBus()
	calls := 0
	b.Subscribe(Subscription{Topic: "a", Func: func(Message) { calls++ }})

	b.Publish(Message{Topic: "b"})
	assert.Zero(t, calls)

	b.Publish(Message{Topic: "a"})
	assert.Equal(t, 1, calls)
}

func TestBus_RunIfAlreadyPublished(t *testing.T) {
	t.Parallel()

	b := NewBus()
	b.Publish(Message{Topic: "late", Data: map[string]any{"n": 1}})
	b.Publish(Message{Topic: "late", Data: map[string]any{"n": 2}})

	var got []Message
	b.Subscribe(Subscription{
		Topic:                 "late",
		Func:                  func(m Message) { got = append(got, m) },
		RunIfAlreadyPublished: true,
	})

	// Only the most recent message replays.
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Data["n"])
}

func TestBus_NoReplayWithoutFlag(t *testing.T) {
	t.Parallel()

	b := NewBus()
	b.Publish(Message{Topic: "late"})

	calls := 0
	b.Subscribe(Subscription{Topic: "late", Func: func(Message) { calls++ }})
	assert.Zero(t, calls)
}

func TestBus_HasPublished(t *testing.T) {
	t.Parallel()

	b := NewBus()
	assert.False(t, b.HasPublished("x"))

	b.Publish(Message{Topic: "x"})
	assert.True(t, b.HasPublished("x"))

	msg, ok := b.LastPublished("x")
	require.True(t, ok)
	assert.Equal(t, "x", msg.Topic)
}

func TestBus_PanickingSubscriber(t *testing.T) {
	t.Parallel()

	b := NewBus()
	b.Subscribe(Subscription{Topic: "t", Func: func(Message) { panic("boom") }})

	reached := false
	b.Subscribe(Subscription{Topic: "t", Func: func(Message) { reached = true }})

	b.Publish(Message{Topic: "t"})
	assert.True(t, reached)
}

func TestBus_IgnoresInvalidSubscription(t *testing.T) {
	t.Parallel()

	b := NewBus()
	b.Subscribe(Subscription{Topic: "", Func: func(Message) {}})
	b.Subscribe(Subscription{Topic: "t", Func: nil})
	b.Publish(Message{Topic: ""})

	assert.False(t, b.HasPublished(""))
}
