// Package webhooks is the root facade: it re-exports the engine types
// and options so callers can assemble an ingestion pipeline with a
// single import.
package webhooks

import "github.com/goliatone/go-webhooks/core"

type Config = core.Config

type SigningConfig = core.SigningConfig
type RetryConfig = core.RetryConfig
type ClaimsConfig = core.ClaimsConfig
type DeadLetterConfig = core.DeadLetterConfig

type Option = core.Option

type Engine = core.Engine

type EngineDependencies = core.EngineDependencies
type Verifier = core.Verifier
type DeliveryHandler = core.DeliveryHandler
type HandlerResolver = core.HandlerResolver
type DeliveryLedger = core.DeliveryLedger
type DeadLetterStore = core.DeadLetterStore
type EventOutbox = core.EventOutbox
type EventSink = core.EventSink
type SinkRegistry = core.SinkRegistry

type InboundDelivery = core.InboundDelivery
type DeliveryRecord = core.DeliveryRecord
type Result = core.Result
type DomainEvent = core.DomainEvent
type DeadLetterFilter = core.DeadLetterFilter
type DeliveryPage = core.DeliveryPage
type DispatchStats = core.DispatchStats

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithVerifier          = core.WithVerifier
	WithDeliveryLedger    = core.WithDeliveryLedger
	WithDeadLetterStore   = core.WithDeadLetterStore
	WithHandlerResolver   = core.WithHandlerResolver
	WithEventOutbox       = core.WithEventOutbox
	WithSinkRegistry      = core.WithSinkRegistry
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	return core.NewEngine(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Engine, error) {
	return core.Setup(cfg, opts...)
}
