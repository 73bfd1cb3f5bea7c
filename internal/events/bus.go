package events

import (
	"fmt"
	"log/slog"
	"sync"
)

// Handler receives a published payload
type Handler func(topic string, payload any)

type subscription struct {
	id      uint64
	topic   string // empty matches every topic
	handler Handler
}

// Bus is an in-process publish/subscribe hub. Publish runs handlers
// synchronously in subscription order; a panicking handler is logged and
// does not stop the others.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
}

// NewBus creates an empty bus
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers h for topic and returns its unsubscribe func
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	if topic == "" {
		panic("events: Subscribe requires a topic, use SubscribeAll")
	}
	return b.add(topic, h)
}

// SubscribeAll registers h for every topic
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.add("", h)
}

func (b *Bus) add(topic string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, topic: topic, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to the subscribers of topic.
// Handlers may subscribe, unsubscribe or publish from inside a delivery.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	targets := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topic == "" || s.topic == topic {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(s, topic, payload)
	}
}

func (b *Bus) deliver(s subscription, topic string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"topic", topic,
				"subscription", s.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	s.handler(topic, payload)
}

// Len returns the number of live subscriptions
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
