package eventing

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// EventHandler processes one delivered event.
type EventHandler func(ctx context.Context, event any) error

// EventBus delivers events to subscribed handlers.
type EventBus interface {
	Publish(ctx context.Context, event any) error
	Subscribe(eventType string, handler EventHandler)
}

// InProcessBus is a synchronous in-process event bus. Handler errors
// propagate to the publisher so the outbox can retry the delivery.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// NewInProcessBus constructs an empty bus.
func NewInProcessBus() *InProcessBus {
	return &InProcessBus{handlers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for an event type name.
func (b *InProcessBus) Subscribe(eventType string, handler EventHandler) {
	if eventType == "" || handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// Publish delivers the event to every handler for its type.
func (b *InProcessBus) Publish(ctx context.Context, event any) error {
	if event == nil {
		return nil
	}
	eventType := TypeName(event)

	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[eventType]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			return fmt.Errorf("handle %s: %w", eventType, err)
		}
	}
	return nil
}

// TypeName returns the registry name of an event value.
func TypeName(event any) string {
	t := reflect.TypeOf(event)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
