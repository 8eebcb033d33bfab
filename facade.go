package webhooks

import (
	"fmt"

	webhookcommand "github.com/goliatone/go-webhooks/command"
	"github.com/goliatone/go-webhooks/core"
	webhookquery "github.com/goliatone/go-webhooks/query"
)

// CommandQueryEngine is the surface the facade wraps: every mutating
// operation plus the read side.
type CommandQueryEngine interface {
	webhookcommand.MutatingEngine
	webhookquery.DeliveryReader
}

type Commands struct {
	ProcessDelivery    *webhookcommand.ProcessDeliveryCommand
	ReplayDelivery     *webhookcommand.ReplayDeliveryCommand
	PurgeDelivery      *webhookcommand.PurgeDeliveryCommand
	ReleaseStaleClaims *webhookcommand.ReleaseStaleClaimsCommand
	DispatchOutbox     *webhookcommand.DispatchOutboxCommand
}

type Queries struct {
	GetDelivery     *webhookquery.GetDeliveryQuery
	ListDeadLetters *webhookquery.ListDeadLettersQuery
}

// Facade bundles the command and query handlers built around one
// engine so callers register them as a unit.
type Facade struct {
	engine   CommandQueryEngine
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	deadLetterReader webhookquery.DeadLetterReader
}

// WithDeadLetterReader overrides the DLQ read side, for callers that
// route listing through a replica or a cached reader.
func WithDeadLetterReader(reader webhookquery.DeadLetterReader) FacadeOption {
	return func(options *facadeOptions) {
		options.deadLetterReader = reader
	}
}

func NewFacade(engine CommandQueryEngine, opts ...FacadeOption) (*Facade, error) {
	if engine == nil {
		return nil, fmt.Errorf("webhooks: command/query engine is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.deadLetterReader
	if reader == nil {
		reader = resolveDeadLetterReader(engine)
	}

	facade := &Facade{engine: engine}
	facade.commands = Commands{
		ProcessDelivery:    webhookcommand.NewProcessDeliveryCommand(engine),
		ReplayDelivery:     webhookcommand.NewReplayDeliveryCommand(engine),
		PurgeDelivery:      webhookcommand.NewPurgeDeliveryCommand(engine),
		ReleaseStaleClaims: webhookcommand.NewReleaseStaleClaimsCommand(engine),
		DispatchOutbox:     webhookcommand.NewDispatchOutboxCommand(engine),
	}
	facade.queries = Queries{
		GetDelivery:     webhookquery.NewGetDeliveryQuery(engine),
		ListDeadLetters: webhookquery.NewListDeadLettersQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Engine() CommandQueryEngine {
	if f == nil {
		return nil
	}
	return f.engine
}

func resolveDeadLetterReader(engine CommandQueryEngine) webhookquery.DeadLetterReader {
	if engine == nil {
		return nil
	}
	if reader, ok := engine.(webhookquery.DeadLetterReader); ok {
		return reader
	}
	provider, ok := engine.(interface {
		Dependencies() core.EngineDependencies
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if deps.DeadLetters == nil {
		return nil
	}
	if reader, ok := deps.DeadLetters.(webhookquery.DeadLetterReader); ok {
		return reader
	}
	return nil
}
