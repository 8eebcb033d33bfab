package dispatch

import (
	"context"
	"testing"

	"github.com/goliatone/go-webhooks/core"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	registry := NewRegistry()
	called := false
	registry.RegisterFunc("invoice.paid", func(context.Context, core.DeliveryRecord) error {
		called = true
		return nil
	})

	handler, ok := registry.Resolve("invoice.paid")
	if !ok {
		t.Fatal("expected handler for registered event type")
	}
	if err := handler.Handle(context.Background(), core.DeliveryRecord{}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !called {
		t.Fatal("expected registered handler to run")
	}
}

func TestRegistry_ResolveUnknownType(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("invoice.paid", func(context.Context, core.DeliveryRecord) error {
		return nil
	})

	if _, ok := registry.Resolve("user.created"); ok {
		t.Fatal("expected no handler for unregistered event type")
	}
}

func TestRegistry_NormalizesEventType(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("  invoice.paid  ", func(context.Context, core.DeliveryRecord) error {
		return nil
	})

	if _, ok := registry.Resolve("invoice.paid"); !ok {
		t.Fatal("expected whitespace around event types to be trimmed")
	}
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("invoice.paid", func(context.Context, core.DeliveryRecord) error {
		t.Fatal("expected replaced handler to never run")
		return nil
	})
	replaced := false
	registry.RegisterFunc("invoice.paid", func(context.Context, core.DeliveryRecord) error {
		replaced = true
		return nil
	})

	handler, ok := registry.Resolve("invoice.paid")
	if !ok {
		t.Fatal("expected handler")
	}
	if err := handler.Handle(context.Background(), core.DeliveryRecord{}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !replaced {
		t.Fatal("expected later registration to win")
	}
}
