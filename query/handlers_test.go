package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-webhooks/core"
)

func TestGetDeliveryQuery_DelegatesToReader(t *testing.T) {
	called := false
	reader := stubDeliveryReader{
		getFn: func(_ context.Context, deliveryID string) (core.DeliveryRecord, error) {
			called = true
			if deliveryID != "d-1" {
				t.Fatalf("unexpected delivery id: %q", deliveryID)
			}
			return core.DeliveryRecord{DeliveryID: deliveryID, Status: core.DeliveryStatusSucceeded}, nil
		},
	}

	record, err := NewGetDeliveryQuery(reader).Query(context.Background(), GetDeliveryMessage{DeliveryID: "d-1"})
	if err != nil {
		t.Fatalf("query get delivery: %v", err)
	}
	if !called {
		t.Fatalf("expected reader invocation")
	}
	if record.Status != core.DeliveryStatusSucceeded {
		t.Fatalf("unexpected record: %#v", record)
	}
}

func TestGetDeliveryQuery_RequiresReader(t *testing.T) {
	if _, err := NewGetDeliveryQuery(nil).Query(context.Background(), GetDeliveryMessage{DeliveryID: "d-1"}); err == nil {
		t.Fatalf("expected missing reader error")
	}
}

func TestListDeadLettersQuery_DelegatesFilter(t *testing.T) {
	reader := stubDeadLetterReader{
		listFn: func(_ context.Context, filter core.DeadLetterFilter) (core.DeliveryPage, error) {
			if filter.EventType != "invoice.paid" || filter.PerPage != 10 {
				t.Fatalf("unexpected filter: %#v", filter)
			}
			return core.DeliveryPage{Total: 2, Page: 1, PerPage: 10}, nil
		},
	}

	page, err := NewListDeadLettersQuery(reader).Query(context.Background(), ListDeadLettersMessage{
		Filter: core.DeadLetterFilter{EventType: "invoice.paid", PerPage: 10},
	})
	if err != nil {
		t.Fatalf("query list dead letters: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("unexpected page: %#v", page)
	}
}

func TestQueryMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "get valid", msg: GetDeliveryMessage{DeliveryID: "d-1"}, wantErr: false},
		{name: "get missing id", msg: GetDeliveryMessage{}, wantErr: true},
		{name: "list valid", msg: ListDeadLettersMessage{Filter: core.DeadLetterFilter{Page: 1, PerPage: 25}}, wantErr: false},
		{name: "list negative page", msg: ListDeadLettersMessage{Filter: core.DeadLetterFilter{Page: -1}}, wantErr: true},
		{name: "list negative per page", msg: ListDeadLettersMessage{Filter: core.DeadLetterFilter{PerPage: -1}}, wantErr: true},
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

type stubDeliveryReader struct {
	getFn func(ctx context.Context, deliveryID string) (core.DeliveryRecord, error)
}

func (s stubDeliveryReader) Get(ctx context.Context, deliveryID string) (core.DeliveryRecord, error) {
	if s.getFn == nil {
		return core.DeliveryRecord{}, fmt.Errorf("get not configured")
	}
	return s.getFn(ctx, deliveryID)
}

type stubDeadLetterReader struct {
	listFn func(ctx context.Context, filter core.DeadLetterFilter) (core.DeliveryPage, error)
}

func (s stubDeadLetterReader) ListDeadLetters(ctx context.Context, filter core.DeadLetterFilter) (core.DeliveryPage, error) {
	if s.listFn == nil {
		return core.DeliveryPage{}, fmt.Errorf("list not configured")
	}
	return s.listFn(ctx, filter)
}

var (
	_ DeliveryReader   = stubDeliveryReader{}
	_ DeadLetterReader = stubDeadLetterReader{}
)
