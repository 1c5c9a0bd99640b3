package plugin

import (
	"context"
	"time"
)

// Event is a message on the bus. The Payload type is fixed per topic.
type Event struct {
	Topic     string
	Source    string // emitting module
	Timestamp time.Time
	Payload   any
}

// EventHandler consumes events.
type EventHandler func(ctx context.Context, event Event)

// Publisher is the emitting half of the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber is the listening half of the bus.
type Subscriber interface {
	Subscribe(topic string, handler EventHandler) (unsubscribe func())
}

// EventBus is an in-process publish/subscribe hub shared by all modules.
type EventBus interface {
	Publisher
	Subscriber
	PublishAsync(ctx context.Context, event Event)
	SubscribeAll(handler EventHandler) (unsubscribe func())
}

// Subscription pairs a topic with its handler.
type Subscription struct {
	Topic   string
	Handler EventHandler
}

// EventSubscriber is implemented by modules that listen on the bus. The
// server wires the returned subscriptions after Init.
type EventSubscriber interface {
	Subscriptions() []Subscription
}
