// Package query exposes the engine's read operations as go-command
// query messages.
package query

import (
	"context"

	"github.com/goliatone/go-webhooks/core"
)

type DeliveryReader interface {
	Get(ctx context.Context, deliveryID string) (core.DeliveryRecord, error)
}

type DeadLetterReader interface {
	ListDeadLetters(ctx context.Context, filter core.DeadLetterFilter) (core.DeliveryPage, error)
}

type GetDeliveryQuery struct {
	reader DeliveryReader
}

func NewGetDeliveryQuery(reader DeliveryReader) *GetDeliveryQuery {
	return &GetDeliveryQuery{reader: reader}
}

func (q *GetDeliveryQuery) Query(ctx context.Context, msg GetDeliveryMessage) (core.DeliveryRecord, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryRecord{}, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.Get(ctx, msg.DeliveryID)
}

type ListDeadLettersQuery struct {
	reader DeadLetterReader
}

func NewListDeadLettersQuery(reader DeadLetterReader) *ListDeadLettersQuery {
	return &ListDeadLettersQuery{reader: reader}
}

func (q *ListDeadLettersQuery) Query(
	ctx context.Context,
	msg ListDeadLettersMessage,
) (core.DeliveryPage, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryPage{}, queryDependencyError("query: dead letter reader is required")
	}
	return q.reader.ListDeadLetters(ctx, msg.Filter)
}
