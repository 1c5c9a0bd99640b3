// Package event implements plugin.EventBus in memory.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/solarwatch/pkg/plugin"
)

var _ plugin.EventBus = (*Bus)(nil)

// Bus delivers events to subscribers of the event's topic and to wildcard
// subscribers. Publish runs handlers on the caller's goroutine; PublishAsync
// runs each handler on its own goroutine. A panicking handler is logged and
// does not affect other handlers.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	wg     sync.WaitGroup
	logger *zap.Logger
}

type subscription struct {
	id      uint64
	topic   string // empty matches every topic
	handler plugin.EventHandler
}

// NewBus returns an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Publish delivers event synchronously. Topic subscribers run before
// wildcard subscribers, each group in subscription order.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	event = stamp(event)
	for _, h := range b.matching(event) {
		b.call(ctx, h, event)
	}
	return nil
}

// PublishAsync delivers event on background goroutines and returns at once.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	event = stamp(event)
	for _, h := range b.matching(event) {
		b.wg.Add(1)
		go func(h plugin.EventHandler) {
			defer b.wg.Done()
			b.call(ctx, h, event)
		}(h)
	}
}

// Wait blocks until every handler started by PublishAsync has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Subscribe registers handler for topic.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	return b.add(topic, handler)
}

// SubscribeAll registers handler for every topic.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	return b.add("", handler)
}

func (b *Bus) add(topic string, handler plugin.EventHandler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, topic: topic, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// matching snapshots the handlers for event so delivery happens without the lock.
func (b *Bus) matching(event plugin.Event) []plugin.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var topic, wildcard []plugin.EventHandler
	for _, s := range b.subs {
		switch s.topic {
		case event.Topic:
			topic = append(topic, s.handler)
		case "":
			wildcard = append(wildcard, s.handler)
		}
	}
	return append(topic, wildcard...)
}

func (b *Bus) call(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}

func stamp(event plugin.Event) plugin.Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}
