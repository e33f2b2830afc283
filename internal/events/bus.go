package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a serialized event addressed to a topic.
type Message struct {
	// ID is the identifier of the event carried in Data
	ID string `json:"id"`

	// Topic is the bus topic the message is published on
	Topic string `json:"topic"`

	// Data is the JSON encoded event
	Data json.RawMessage `json:"data"`
}

// NewMessage encodes the event as the body of a message on topic.
func NewMessage(topic, id string, event any) (*Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return &Message{ID: id, Topic: topic, Data: data}, nil
}

// Bus carries messages to their subscribers.
type Bus interface {
	// Publish sends the message on its topic. It returns an error if the
	// message could not be handed to the transport.
	Publish(ctx context.Context, msg *Message) error
}

// Handler defines an interface for components that consume messages.
type Handler interface {
	// HandleMessage processes the given message within the provided context.
	// Returns an error if the message cannot be handled successfully.
	HandleMessage(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) error

// HandleMessage calls f(ctx, msg).
func (f HandlerFunc) HandleMessage(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// InMemoryBus is a Bus that stores subscribed handlers per topic in memory
// and dispatches messages to them synchronously.
type InMemoryBus struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryBus creates a new instance of InMemoryBus.
func NewInMemoryBus(logger *slog.Logger) *InMemoryBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		logger:   logger.With("component", "in_memory_bus"),
	}
}

var _ Bus = (*InMemoryBus)(nil)

// Subscribe registers a handler for messages on topic.
func (b *InMemoryBus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	b.logger.Debug("registered handler",
		"topic", topic,
		"handler_count", len(b.handlers[topic]))
}

// Publish delivers the message to every handler subscribed to its topic.
// If any handler returns an error, the message is still sent to all other
// handlers, and the first error encountered is returned.
func (b *InMemoryBus) Publish(ctx context.Context, msg *Message) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[msg.Topic]))
	copy(handlers, b.handlers[msg.Topic])
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no handlers subscribed to topic",
			"topic", msg.Topic,
			"message_id", msg.ID)
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleMessage(ctx, msg); err != nil {
			b.logger.Error("handler failed to process message",
				"error", err,
				"handler_index", i,
				"topic", msg.Topic,
				"message_id", msg.ID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
