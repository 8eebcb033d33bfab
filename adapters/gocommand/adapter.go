// Package gocommand wires the webhook command and query handlers into
// the go-command registry and dispatcher.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	webhookcommand "github.com/goliatone/go-webhooks/command"
	webhookquery "github.com/goliatone/go-webhooks/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// EngineSurface is everything the full command and query set needs.
type EngineSurface interface {
	webhookcommand.MutatingEngine
	webhookquery.DeliveryReader
	webhookquery.DeadLetterReader
}

// RegisterEngine registers the whole webhook command and query surface
// on the registry and subscribes each handler on the dispatcher. The
// returned subscriptions let the caller unwind on shutdown.
func RegisterEngine(
	adapter *RegistryAdapter,
	engine EngineSurface,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if engine == nil {
		return nil, fmt.Errorf("gocommand: engine is required")
	}

	subscriptions := make([]commanddispatcher.Subscription, 0, 7)
	unwind := func() {
		for _, subscription := range subscriptions {
			if subscription != nil {
				subscription.Unsubscribe()
			}
		}
	}

	register := func(handler any, subscription commanddispatcher.Subscription) error {
		subscriptions = append(subscriptions, subscription)
		if err := adapter.RegisterCommand(handler); err != nil {
			unwind()
			return err
		}
		return nil
	}

	processCmd := webhookcommand.NewProcessDeliveryCommand(engine)
	if err := register(processCmd, SubscribeCommand(processCmd, runnerOpts...)); err != nil {
		return nil, err
	}
	replayCmd := webhookcommand.NewReplayDeliveryCommand(engine)
	if err := register(replayCmd, SubscribeCommand(replayCmd, runnerOpts...)); err != nil {
		return nil, err
	}
	purgeCmd := webhookcommand.NewPurgeDeliveryCommand(engine)
	if err := register(purgeCmd, SubscribeCommand(purgeCmd, runnerOpts...)); err != nil {
		return nil, err
	}
	releaseCmd := webhookcommand.NewReleaseStaleClaimsCommand(engine)
	if err := register(releaseCmd, SubscribeCommand(releaseCmd, runnerOpts...)); err != nil {
		return nil, err
	}
	dispatchCmd := webhookcommand.NewDispatchOutboxCommand(engine)
	if err := register(dispatchCmd, SubscribeCommand(dispatchCmd, runnerOpts...)); err != nil {
		return nil, err
	}
	getQry := webhookquery.NewGetDeliveryQuery(engine)
	if err := register(getQry, SubscribeQuery(getQry, runnerOpts...)); err != nil {
		return nil, err
	}
	listQry := webhookquery.NewListDeadLettersQuery(engine)
	if err := register(listQry, SubscribeQuery(listQry, runnerOpts...)); err != nil {
		return nil, err
	}

	return subscriptions, nil
}
