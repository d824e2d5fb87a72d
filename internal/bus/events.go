// Package bus is the in-process pub/sub used to announce connection state
// changes and config reloads to interested components.
package bus

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// Topics published by wabot
const (
	TopicConnected      = "connection.connected"
	TopicDisconnected   = "connection.disconnected"
	TopicReconnecting   = "connection.reconnecting"
	TopicLoggedOut      = "connection.logged_out"
	TopicStopped        = "connection.stopped"
	TopicConfigReloaded = "config.reloaded"
)

// Event represents a notification broadcast to subscribers
type Event struct {
	Topic     string
	Data      any
	Timestamp time.Time
	Source    string // "whatsapp", "config", "system", ...
}

// EventHandler processes an event (fire and forget)
type EventHandler func(Event)

// SubscriptionID uniquely identifies an event subscription
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// Bus fans events out to subscribers. The zero value is not usable; use New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	wg     sync.WaitGroup
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, handler EventHandler) SubscriptionID {
	id := SubscriptionID(atomic.AddUint64(&b.nextID, 1))

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	L_debug("bus: subscribed", "topic", topic, "subscriptionID", id)
	return id
}

// Unsubscribe removes a subscription. Returns false if it was not found.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subs {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			return true
		}
	}
	return false
}

// Publish broadcasts data on topic with source "system".
func (b *Bus) Publish(topic string, data any) {
	b.PublishFrom(topic, data, "system")
}

// PublishFrom broadcasts an event. Handlers run in their own goroutines and
// a panicking handler is logged, not propagated.
func (b *Bus) PublishFrom(topic string, data any, source string) {
	event := Event{
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.RUnlock()

	if len(subs) == 0 {
		L_debug("bus: published (no subscribers)", "topic", topic)
		return
	}
	L_debug("bus: published", "topic", topic, "subscribers", len(subs), "source", source)

	for _, sub := range subs {
		b.wg.Add(1)
		go func(s subscription) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					L_error("bus: handler panic", "topic", topic, "subscriptionID", s.id, "panic", r)
				}
			}()
			s.handler(event)
		}(sub)
	}
}

// Wait blocks until every handler started so far has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Count returns the number of subscribers for a topic
func (b *Bus) Count(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
