// Package dispatch routes claimed deliveries to the handler registered
// for their event type.
package dispatch

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-webhooks/core"
)

// HandlerFunc adapts a plain function to core.DeliveryHandler.
type HandlerFunc func(ctx context.Context, record core.DeliveryRecord) error

func (f HandlerFunc) Handle(ctx context.Context, record core.DeliveryRecord) error {
	return f(ctx, record)
}

// Registry maps event types to handlers. Registration normally happens
// during startup, but the registry is safe for concurrent mutation so
// tests and hot-reload setups can swap handlers at runtime.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]core.DeliveryHandler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: map[string]core.DeliveryHandler{},
	}
}

// Register binds a handler to an event type. Later registrations for
// the same type replace earlier ones.
func (r *Registry) Register(eventType string, handler core.DeliveryHandler) *Registry {
	eventType = normalizeEventType(eventType)
	if r == nil || eventType == "" || handler == nil {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = map[string]core.DeliveryHandler{}
	}
	r.handlers[eventType] = handler
	return r
}

// RegisterFunc is Register for bare functions.
func (r *Registry) RegisterFunc(eventType string, handler HandlerFunc) *Registry {
	return r.Register(eventType, handler)
}

func (r *Registry) Resolve(eventType string) (core.DeliveryHandler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[normalizeEventType(eventType)]
	return handler, ok
}

// EventTypes returns the registered event types, useful for diagnostics.
func (r *Registry) EventTypes() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for eventType := range r.handlers {
		types = append(types, eventType)
	}
	return types
}

func normalizeEventType(eventType string) string {
	return strings.TrimSpace(eventType)
}

var _ core.HandlerResolver = (*Registry)(nil)
