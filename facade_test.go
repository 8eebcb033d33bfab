package webhooks

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"

	webhookcommand "github.com/goliatone/go-webhooks/command"
	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/dispatch"
	webhookquery "github.com/goliatone/go-webhooks/query"
)

func newFacadeEngine(t *testing.T) *Engine {
	t.Helper()

	registry := dispatch.NewRegistry()
	registry.RegisterFunc("invoice.paid", func(context.Context, DeliveryRecord) error {
		return nil
	})

	engine, err := NewEngine(Config{},
		WithVerifier(allowAllVerifier{}),
		WithHandlerResolver(registry),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestNewFacadeRequiresEngine(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected missing engine error")
	}
}

func TestFacadeCommandsAndQueriesShareEngine(t *testing.T) {
	engine := newFacadeEngine(t)
	facade, err := NewFacade(engine)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[Result]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err = facade.Commands().ProcessDelivery.Execute(ctx, webhookcommand.ProcessDeliveryMessage{
		Delivery: InboundDelivery{DeliveryID: "d-1", EventType: "invoice.paid"},
	})
	if err != nil {
		t.Fatalf("execute process: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected process result")
	}
	if result.Record.Status != core.DeliveryStatusSucceeded {
		t.Fatalf("expected succeeded, got %q", result.Record.Status)
	}

	record, err := facade.Queries().GetDelivery.Query(context.Background(), webhookquery.GetDeliveryMessage{DeliveryID: "d-1"})
	if err != nil {
		t.Fatalf("query get delivery: %v", err)
	}
	if record.Status != core.DeliveryStatusSucceeded {
		t.Fatalf("unexpected record: %#v", record)
	}

	if _, err := facade.Queries().ListDeadLetters.Query(context.Background(), webhookquery.ListDeadLettersMessage{}); err != nil {
		t.Fatalf("query list dead letters: %v", err)
	}
}

func TestFacadeDeadLetterReaderOverride(t *testing.T) {
	engine := newFacadeEngine(t)
	override := &countingDeadLetterReader{}

	facade, err := NewFacade(engine, WithDeadLetterReader(override))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if _, err := facade.Queries().ListDeadLetters.Query(context.Background(), webhookquery.ListDeadLettersMessage{}); err != nil {
		t.Fatalf("query list dead letters: %v", err)
	}
	if override.calls != 1 {
		t.Fatalf("expected override reader to serve the query, got %d calls", override.calls)
	}
}

type allowAllVerifier struct{}

func (allowAllVerifier) Verify(context.Context, core.InboundDelivery) error { return nil }

type countingDeadLetterReader struct {
	calls int
}

func (r *countingDeadLetterReader) ListDeadLetters(context.Context, core.DeadLetterFilter) (core.DeliveryPage, error) {
	r.calls++
	return core.DeliveryPage{}, nil
}
