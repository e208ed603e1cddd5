// Package events provides the pub/sub bus the loader publishes lifecycle
// events onto. The bus is an explicitly constructed, injected instance; there
// is no package-level singleton.
package events

import (
	"log/slog"
	"sync"
)

// Message is one published event.
type Message struct {
	Topic string
	Data  map[string]any
}

// Subscription registers interest in a topic. When RunIfAlreadyPublished is
// set and the topic has already been published, Func is invoked immediately
// with the most recent message.
type Subscription struct {
	Topic                 string
	Func                  func(Message)
	RunIfAlreadyPublished bool
}

// Publisher is the subset of the bus the loader needs.
type Publisher interface {
	Publish(Message)
}

// Bus is a topic-keyed fan-out with last-message retention. Subscriber
// callbacks run synchronously on the publishing goroutine inside an error
// boundary, so a panicking subscriber cannot take down the publisher.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]func(Message)
	published map[string]Message
	logger    *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used when a subscriber panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:      make(map[string][]func(Message)),
		published: make(map[string]Message),
		logger:    slog.Default().WithGroup("events"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish records the message as the topic's most recent and fans it out to
// every current subscriber.
func (b *Bus) Publish(msg Message) {
	if msg.Topic == "" {
		return
	}

	b.mu.Lock()
	b.published[msg.Topic] = msg
	funcs := make([]func(Message), len(b.subs[msg.Topic]))
	copy(funcs, b.subs[msg.Topic])
	b.mu.Unlock()

	for _, fn := range funcs {
		b.invoke(fn, msg)
	}
}

// Subscribe registers a callback for a topic.
func (b *Bus) Subscribe(sub Subscription) {
	if sub.Topic == "" || sub.Func == nil {
		return
	}

	b.mu.Lock()
	b.subs[sub.Topic] = append(b.subs[sub.Topic], sub.Func)
	last, replay := b.published[sub.Topic]
	b.mu.Unlock()

	if sub.RunIfAlreadyPublished && replay {
		b.invoke(sub.Func, last)
	}
}

// HasPublished reports whether at least one message was published on the topic.
func (b *Bus) HasPublished(topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.published[topic]
	return ok
}

// LastPublished returns the most recent message on a topic, if any.
func (b *Bus) LastPublished(topic string) (Message, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msg, ok := b.published[topic]
	return msg, ok
}

func (b *Bus) invoke(fn func(Message), msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked", "topic", msg.Topic, "panic", r)
		}
	}()
	fn(msg)
}
