package gocommand

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	webhookcommand "github.com/goliatone/go-webhooks/command"
	"github.com/goliatone/go-webhooks/core"
	webhookquery "github.com/goliatone/go-webhooks/query"
)

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type queueMessage struct{}

func (queueMessage) Type() string { return "webhooks.command.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(webhookcommand.ReplayDeliveryMessage{DeliveryID: "d-1"}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(webhookcommand.ReplayDeliveryMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegisterEngineWiresDispatcher(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	engine := &stubEngineSurface{}

	subscriptions, err := RegisterEngine(adapter, engine)
	if err != nil {
		t.Fatalf("register engine: %v", err)
	}
	defer func() {
		for _, subscription := range subscriptions {
			subscription.Unsubscribe()
		}
	}()
	if len(subscriptions) != 7 {
		t.Fatalf("expected 7 subscriptions, got %d", len(subscriptions))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if err := Dispatch(context.Background(), webhookcommand.ReplayDeliveryMessage{DeliveryID: "d-1"}); err != nil {
		t.Fatalf("dispatch replay: %v", err)
	}
	if engine.lastReplayID != "d-1" {
		t.Fatalf("expected replay of d-1, got %q", engine.lastReplayID)
	}

	record, err := Query[webhookquery.GetDeliveryMessage, core.DeliveryRecord](
		context.Background(),
		webhookquery.GetDeliveryMessage{DeliveryID: "d-1"},
	)
	if err != nil {
		t.Fatalf("query get delivery: %v", err)
	}
	if record.DeliveryID != "d-1" {
		t.Fatalf("unexpected record: %#v", record)
	}
}

func TestRegisterEngineRequiresDependencies(t *testing.T) {
	if _, err := RegisterEngine(nil, &stubEngineSurface{}); err == nil {
		t.Fatalf("expected missing registry error")
	}
	if _, err := RegisterEngine(NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected missing engine error")
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("webhooks.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

type stubEngineSurface struct {
	lastReplayID string
}

func (s *stubEngineSurface) Process(_ context.Context, delivery core.InboundDelivery) (core.Result, error) {
	return core.Result{StatusCode: 200, Record: core.DeliveryRecord{DeliveryID: delivery.DeliveryID}}, nil
}

func (s *stubEngineSurface) Replay(_ context.Context, deliveryID string) (core.DeliveryRecord, error) {
	s.lastReplayID = deliveryID
	return core.DeliveryRecord{DeliveryID: deliveryID, Status: core.DeliveryStatusPending}, nil
}

func (s *stubEngineSurface) Purge(_ context.Context, deliveryID string) error {
	if deliveryID == "" {
		return errors.New("delivery id required")
	}
	return nil
}

func (s *stubEngineSurface) ReleaseStaleClaims(context.Context) (int, error) { return 0, nil }

func (s *stubEngineSurface) DispatchOutbox(context.Context, int) (core.DispatchStats, error) {
	return core.DispatchStats{}, nil
}

func (s *stubEngineSurface) Get(_ context.Context, deliveryID string) (core.DeliveryRecord, error) {
	if deliveryID == "" {
		return core.DeliveryRecord{}, fmt.Errorf("delivery id required")
	}
	return core.DeliveryRecord{DeliveryID: deliveryID, Status: core.DeliveryStatusSucceeded}, nil
}

func (s *stubEngineSurface) ListDeadLetters(context.Context, core.DeadLetterFilter) (core.DeliveryPage, error) {
	return core.DeliveryPage{}, nil
}

var _ EngineSurface = (*stubEngineSurface)(nil)
