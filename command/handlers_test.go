package command

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-webhooks/core"
)

func TestProcessDeliveryCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.Result{StatusCode: 200, Record: core.DeliveryRecord{DeliveryID: "d-1"}}
	called := false

	engine := stubMutatingEngine{
		processFn: func(_ context.Context, delivery core.InboundDelivery) (core.Result, error) {
			called = true
			if delivery.DeliveryID != "d-1" {
				t.Fatalf("expected delivery d-1, got %q", delivery.DeliveryID)
			}
			return expected, nil
		},
	}

	cmd := NewProcessDeliveryCommand(engine)
	collector := gocmd.NewResult[core.Result]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, ProcessDeliveryMessage{Delivery: core.InboundDelivery{
		DeliveryID: "d-1",
		EventType:  "invoice.paid",
	}})
	if err != nil {
		t.Fatalf("execute process: %v", err)
	}
	if !called {
		t.Fatalf("expected process invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.StatusCode != expected.StatusCode || result.Record.DeliveryID != "d-1" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMutationCommands_DelegateToEngine(t *testing.T) {
	t.Run("replay", func(t *testing.T) {
		called := false
		engine := stubMutatingEngine{
			replayFn: func(_ context.Context, deliveryID string) (core.DeliveryRecord, error) {
				called = true
				if deliveryID != "d-1" {
					t.Fatalf("unexpected replay id: %q", deliveryID)
				}
				return core.DeliveryRecord{DeliveryID: deliveryID, Status: core.DeliveryStatusPending}, nil
			},
		}
		cmd := NewReplayDeliveryCommand(engine)
		collector := gocmd.NewResult[core.DeliveryRecord]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, ReplayDeliveryMessage{DeliveryID: "d-1"}); err != nil {
			t.Fatalf("execute replay: %v", err)
		}
		if !called {
			t.Fatalf("expected replay invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected replay result")
		}
		if stored.Status != core.DeliveryStatusPending {
			t.Fatalf("unexpected replay result: %#v", stored)
		}
	})

	t.Run("purge", func(t *testing.T) {
		called := false
		engine := stubMutatingEngine{
			purgeFn: func(_ context.Context, deliveryID string) error {
				called = true
				if deliveryID != "d-1" {
					t.Fatalf("unexpected purge id: %q", deliveryID)
				}
				return nil
			},
		}
		if err := NewPurgeDeliveryCommand(engine).Execute(context.Background(), PurgeDeliveryMessage{DeliveryID: "d-1"}); err != nil {
			t.Fatalf("execute purge: %v", err)
		}
		if !called {
			t.Fatalf("expected purge invocation")
		}
	})

	t.Run("release stale claims", func(t *testing.T) {
		engine := stubMutatingEngine{
			releaseStaleFn: func(context.Context) (int, error) { return 3, nil },
		}
		collector := gocmd.NewResult[int]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewReleaseStaleClaimsCommand(engine).Execute(ctx, ReleaseStaleClaimsMessage{}); err != nil {
			t.Fatalf("execute release stale: %v", err)
		}
		released, ok := collector.Load()
		if !ok {
			t.Fatalf("expected released count")
		}
		if released != 3 {
			t.Fatalf("expected 3 released, got %d", released)
		}
	})

	t.Run("dispatch outbox", func(t *testing.T) {
		engine := stubMutatingEngine{
			dispatchOutboxFn: func(_ context.Context, batchSize int) (core.DispatchStats, error) {
				if batchSize != 25 {
					t.Fatalf("unexpected batch size: %d", batchSize)
				}
				return core.DispatchStats{Claimed: 25, Delivered: 24, Failed: 1}, nil
			},
		}
		collector := gocmd.NewResult[core.DispatchStats]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewDispatchOutboxCommand(engine).Execute(ctx, DispatchOutboxMessage{BatchSize: 25}); err != nil {
			t.Fatalf("execute dispatch outbox: %v", err)
		}
		stats, ok := collector.Load()
		if !ok {
			t.Fatalf("expected dispatch stats")
		}
		if stats.Delivered != 24 || stats.Failed != 1 {
			t.Fatalf("unexpected dispatch stats: %#v", stats)
		}
	})
}

func TestCommands_RequireEngine(t *testing.T) {
	if err := NewProcessDeliveryCommand(nil).Execute(context.Background(), ProcessDeliveryMessage{}); err == nil {
		t.Fatalf("expected missing engine error")
	}
	if err := NewReplayDeliveryCommand(nil).Execute(context.Background(), ReplayDeliveryMessage{DeliveryID: "d-1"}); err == nil {
		t.Fatalf("expected missing engine error")
	}
}

func TestMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{
			name: "process valid",
			msg: ProcessDeliveryMessage{Delivery: core.InboundDelivery{
				DeliveryID: "d-1",
				EventType:  "invoice.paid",
			}},
			wantErr: false,
		},
		{
			name:    "process missing delivery id",
			msg:     ProcessDeliveryMessage{Delivery: core.InboundDelivery{EventType: "invoice.paid"}},
			wantErr: true,
		},
		{
			name:    "process missing event type",
			msg:     ProcessDeliveryMessage{Delivery: core.InboundDelivery{DeliveryID: "d-1"}},
			wantErr: true,
		},
		{
			name:    "replay valid",
			msg:     ReplayDeliveryMessage{DeliveryID: "d-1"},
			wantErr: false,
		},
		{
			name:    "replay missing delivery id",
			msg:     ReplayDeliveryMessage{},
			wantErr: true,
		},
		{
			name:    "purge missing delivery id",
			msg:     PurgeDeliveryMessage{DeliveryID: "  "},
			wantErr: true,
		},
		{
			name:    "release stale always valid",
			msg:     ReleaseStaleClaimsMessage{},
			wantErr: false,
		},
		{
			name:    "dispatch outbox zero batch uses default",
			msg:     DispatchOutboxMessage{},
			wantErr: false,
		},
		{
			name:    "dispatch outbox negative batch",
			msg:     DispatchOutboxMessage{BatchSize: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubMutatingEngine struct {
	processFn        func(ctx context.Context, delivery core.InboundDelivery) (core.Result, error)
	replayFn         func(ctx context.Context, deliveryID string) (core.DeliveryRecord, error)
	purgeFn          func(ctx context.Context, deliveryID string) error
	releaseStaleFn   func(ctx context.Context) (int, error)
	dispatchOutboxFn func(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

func (s stubMutatingEngine) Process(ctx context.Context, delivery core.InboundDelivery) (core.Result, error) {
	if s.processFn == nil {
		return core.Result{}, fmt.Errorf("process not configured")
	}
	return s.processFn(ctx, delivery)
}

func (s stubMutatingEngine) Replay(ctx context.Context, deliveryID string) (core.DeliveryRecord, error) {
	if s.replayFn == nil {
		return core.DeliveryRecord{}, fmt.Errorf("replay not configured")
	}
	return s.replayFn(ctx, deliveryID)
}

func (s stubMutatingEngine) Purge(ctx context.Context, deliveryID string) error {
	if s.purgeFn == nil {
		return fmt.Errorf("purge not configured")
	}
	return s.purgeFn(ctx, deliveryID)
}

func (s stubMutatingEngine) ReleaseStaleClaims(ctx context.Context) (int, error) {
	if s.releaseStaleFn == nil {
		return 0, fmt.Errorf("release stale not configured")
	}
	return s.releaseStaleFn(ctx)
}

func (s stubMutatingEngine) DispatchOutbox(ctx context.Context, batchSize int) (core.DispatchStats, error) {
	if s.dispatchOutboxFn == nil {
		return core.DispatchStats{}, fmt.Errorf("dispatch outbox not configured")
	}
	return s.dispatchOutboxFn(ctx, batchSize)
}

var _ MutatingEngine = stubMutatingEngine{}
