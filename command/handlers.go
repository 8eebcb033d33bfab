// Package command exposes the engine's mutating operations as
// go-command messages so callers can route them through a dispatcher
// or a job queue instead of holding the engine directly.
package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-webhooks/core"
)

// MutatingEngine is the slice of the engine the commands need.
type MutatingEngine interface {
	Process(ctx context.Context, delivery core.InboundDelivery) (core.Result, error)
	Replay(ctx context.Context, deliveryID string) (core.DeliveryRecord, error)
	Purge(ctx context.Context, deliveryID string) error
	ReleaseStaleClaims(ctx context.Context) (int, error)
	DispatchOutbox(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

type ProcessDeliveryCommand struct {
	engine MutatingEngine
}

func NewProcessDeliveryCommand(engine MutatingEngine) *ProcessDeliveryCommand {
	return &ProcessDeliveryCommand{engine: engine}
}

func (c *ProcessDeliveryCommand) Execute(ctx context.Context, msg ProcessDeliveryMessage) error {
	if c == nil || c.engine == nil {
		return commandDependencyError("command: delivery engine is required")
	}
	out, err := c.engine.Process(ctx, msg.Delivery)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReplayDeliveryCommand struct {
	engine MutatingEngine
}

func NewReplayDeliveryCommand(engine MutatingEngine) *ReplayDeliveryCommand {
	return &ReplayDeliveryCommand{engine: engine}
}

func (c *ReplayDeliveryCommand) Execute(ctx context.Context, msg ReplayDeliveryMessage) error {
	if c == nil || c.engine == nil {
		return commandDependencyError("command: delivery engine is required")
	}
	out, err := c.engine.Replay(ctx, msg.DeliveryID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PurgeDeliveryCommand struct {
	engine MutatingEngine
}

func NewPurgeDeliveryCommand(engine MutatingEngine) *PurgeDeliveryCommand {
	return &PurgeDeliveryCommand{engine: engine}
}

func (c *PurgeDeliveryCommand) Execute(ctx context.Context, msg PurgeDeliveryMessage) error {
	if c == nil || c.engine == nil {
		return commandDependencyError("command: delivery engine is required")
	}
	return c.engine.Purge(ctx, msg.DeliveryID)
}

type ReleaseStaleClaimsCommand struct {
	engine MutatingEngine
}

func NewReleaseStaleClaimsCommand(engine MutatingEngine) *ReleaseStaleClaimsCommand {
	return &ReleaseStaleClaimsCommand{engine: engine}
}

func (c *ReleaseStaleClaimsCommand) Execute(ctx context.Context, msg ReleaseStaleClaimsMessage) error {
	if c == nil || c.engine == nil {
		return commandDependencyError("command: delivery engine is required")
	}
	released, err := c.engine.ReleaseStaleClaims(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, released)
	return nil
}

type DispatchOutboxCommand struct {
	engine MutatingEngine
}

func NewDispatchOutboxCommand(engine MutatingEngine) *DispatchOutboxCommand {
	return &DispatchOutboxCommand{engine: engine}
}

func (c *DispatchOutboxCommand) Execute(ctx context.Context, msg DispatchOutboxMessage) error {
	if c == nil || c.engine == nil {
		return commandDependencyError("command: delivery engine is required")
	}
	stats, err := c.engine.DispatchOutbox(ctx, msg.BatchSize)
	if err != nil {
		return err
	}
	storeResult(ctx, stats)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
