package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Engine runs the inbound delivery pipeline: verify, record, claim,
// dispatch, commit. One Engine instance is safe for concurrent use;
// cross-process exclusion comes from the ledger's conditional writes,
// never from in-process locking.
type Engine struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	verifier          Verifier
	ledger            DeliveryLedger
	deadLetters       DeadLetterStore
	handlers          HandlerResolver
	outbox            EventOutbox
	sinks             SinkRegistry
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	now               func() time.Time
}

// EngineDependencies exposes the resolved collaborators so transports
// and command handlers can share them without re-running setup.
type EngineDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	Verifier        Verifier
	Ledger          DeliveryLedger
	DeadLetters     DeadLetterStore
	Handlers        HandlerResolver
	Outbox          EventOutbox
	Sinks           SinkRegistry
}

// LedgerStoreFactory builds the persistence-backed stores from a
// database client. store/sql provides the canonical implementation.
type LedgerStoreFactory interface {
	BuildStores(client any) (LedgerStoreProvider, error)
}

type LedgerStoreProvider interface {
	DeliveryLedger() DeliveryLedger
	DeadLetterStore() DeadLetterStore
	EventOutbox() EventOutbox
}

func NewEngine(cfg Config, options ...Option) (*Engine, error) {
	builder := defaultEngineBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("webhooks", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("webhooks"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil &&
		(builder.ledger == nil || builder.deadLetters == nil || builder.outbox == nil) {
		var storeProvider LedgerStoreProvider
		if factory, ok := builder.repositoryFactory.(LedgerStoreFactory); ok {
			built, buildErr := factory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			storeProvider = built
		} else if ready, ok := builder.repositoryFactory.(LedgerStoreProvider); ok {
			storeProvider = ready
		}
		if storeProvider != nil {
			if builder.ledger == nil {
				builder.ledger = storeProvider.DeliveryLedger()
			}
			if builder.deadLetters == nil {
				builder.deadLetters = storeProvider.DeadLetterStore()
			}
			if builder.outbox == nil {
				builder.outbox = storeProvider.EventOutbox()
			}
		}
	}

	if builder.ledger == nil {
		builder.ledger = NewMemoryDeliveryLedger(builder.now)
	}
	if builder.deadLetters == nil {
		if dlq, ok := builder.ledger.(DeadLetterStore); ok {
			builder.deadLetters = dlq
		}
	}
	if builder.outbox == nil {
		builder.outbox = NewMemoryOutbox(builder.now)
	}

	return &Engine{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		verifier:          builder.verifier,
		ledger:            builder.ledger,
		deadLetters:       builder.deadLetters,
		handlers:          builder.handlers,
		outbox:            builder.outbox,
		sinks:             builder.sinks,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		now:               builder.now,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Engine, error) {
	return NewEngine(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.config
}

func (e *Engine) Dependencies() EngineDependencies {
	if e == nil {
		return EngineDependencies{}
	}
	return EngineDependencies{
		Logger:          e.logger,
		LoggerProvider:  e.loggerProvider,
		MetricsRecorder: e.metricsRecorder,
		ErrorFactory:    e.errorFactory,
		ErrorMapper:     e.errorMapper,
		Verifier:        e.verifier,
		Ledger:          e.ledger,
		DeadLetters:     e.deadLetters,
		Handlers:        e.handlers,
		Outbox:          e.outbox,
		Sinks:           e.sinks,
	}
}

// Process runs one inbound delivery through the full pipeline. The
// returned Result carries the HTTP status the transport should answer
// with; err is non-nil only when the caller must surface a failure body.
func (e *Engine) Process(ctx context.Context, delivery InboundDelivery) (result Result, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"delivery_id": delivery.DeliveryID,
	}
	defer func() {
		e.observeOperation(ctx, startedAt, "process_delivery", err, fields)
	}()

	if e == nil || e.ledger == nil {
		return Result{}, errors.New("core: engine is not configured")
	}

	delivery.DeliveryID = strings.TrimSpace(delivery.DeliveryID)
	delivery.EventType = strings.TrimSpace(delivery.EventType)
	fields["event_type"] = delivery.EventType

	if e.verifier != nil {
		if verifyErr := e.verifier.Verify(ctx, delivery); verifyErr != nil {
			mapped := e.mapError(verifyErr)
			if IsAuthFailure(mapped) {
				err = mapped
				return Result{StatusCode: http.StatusUnauthorized}, err
			}
			err = mapped
			return Result{StatusCode: mapped.Code}, err
		}
	}

	if delivery.DeliveryID == "" {
		err = newWebhookError("core: delivery id is required", goerrors.CategoryBadInput, WebhookErrorBadInput)
		return Result{StatusCode: http.StatusBadRequest}, err
	}
	if delivery.EventType == "" {
		err = newWebhookError("core: event type is required", goerrors.CategoryBadInput, WebhookErrorBadInput)
		return Result{StatusCode: http.StatusBadRequest}, err
	}

	record, created, lookupErr := e.ledger.LookupOrCreate(ctx, delivery.DeliveryID, delivery.EventType, delivery.Body)
	if lookupErr != nil {
		err = e.mapError(lookupErr)
		return Result{StatusCode: http.StatusInternalServerError}, err
	}
	fields["created"] = created
	fields["status"] = record.Status

	switch record.Status {
	case DeliveryStatusSucceeded:
		return Result{
			Processed:  false,
			StatusCode: http.StatusAccepted,
			Record:     record,
			Metadata:   map[string]any{"reason": "already_succeeded"},
		}, nil
	case DeliveryStatusDeadLettered:
		return Result{
			Processed:  false,
			StatusCode: http.StatusAccepted,
			Record:     record,
			Metadata:   map[string]any{"reason": "dead_lettered"},
		}, nil
	}

	claimed, ok, claimErr := e.ledger.Claim(ctx, delivery.DeliveryID)
	if claimErr != nil {
		err = e.mapError(claimErr)
		return Result{StatusCode: http.StatusInternalServerError}, err
	}
	if !ok {
		// Another worker holds the claim or resolved the record between
		// lookup and claim. Either way this request has nothing to do.
		return Result{
			Processed:  false,
			StatusCode: http.StatusAccepted,
			Record:     record,
			Metadata:   map[string]any{"reason": "in_flight"},
		}, nil
	}
	record = claimed
	fields["attempts"] = record.Attempts

	handler, found := e.resolveHandler(delivery.EventType)
	if !found {
		// Structurally undeliverable. Redelivery cannot heal an
		// unregistered event type, so the budget is not consumed.
		cause := newWebhookError(
			"core: no handler registered for event type "+delivery.EventType,
			goerrors.CategoryBadInput,
			WebhookErrorUnknownEventType,
		)
		if dlErr := e.ledger.CommitDeadLetter(ctx, delivery.DeliveryID, cause); dlErr != nil {
			err = e.mapError(dlErr)
			return Result{StatusCode: http.StatusInternalServerError}, err
		}
		record.Status = DeliveryStatusDeadLettered
		record.LastError = cause.Error()
		return Result{
			Processed:  false,
			StatusCode: http.StatusAccepted,
			Record:     record,
			Metadata:   map[string]any{"reason": "unknown_event_type"},
		}, nil
	}

	handleErr := e.runHandler(ctx, handler, record)
	if handleErr == nil {
		handleErr = e.emitSuccessEvent(ctx, record)
	}

	if handleErr != nil {
		return e.commitFailure(ctx, record, handleErr, fields)
	}

	if commitErr := e.ledger.CommitSuccess(ctx, delivery.DeliveryID); commitErr != nil {
		// The side effects ran but the commit did not land. Report a
		// retryable failure so the sender redelivers and the handler's
		// idempotency absorbs the duplicate.
		err = e.mapError(commitErr)
		return Result{StatusCode: http.StatusInternalServerError, Record: record}, err
	}
	record.Status = DeliveryStatusSucceeded
	return Result{
		Processed:  true,
		StatusCode: http.StatusOK,
		Record:     record,
	}, nil
}

func (e *Engine) resolveHandler(eventType string) (DeliveryHandler, bool) {
	if e.handlers == nil {
		return nil, false
	}
	return e.handlers.Resolve(eventType)
}

func (e *Engine) runHandler(ctx context.Context, handler DeliveryHandler, record DeliveryRecord) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = e.errorFactory(
				"core: handler panicked",
				goerrors.CategoryInternal,
			).WithTextCode(WebhookErrorHandlerFailed).WithMetadata(map[string]any{
				"panic":       recovered,
				"delivery_id": record.DeliveryID,
			})
		}
	}()
	return handler.Handle(ctx, record)
}

func (e *Engine) emitSuccessEvent(ctx context.Context, record DeliveryRecord) error {
	if e.outbox == nil {
		return nil
	}
	event := DomainEvent{
		ID:         uuid.NewString(),
		Name:       "webhooks.delivery.succeeded",
		DeliveryID: record.DeliveryID,
		EventType:  record.EventType,
		Payload:    record.Payload,
		OccurredAt: e.now(),
	}
	if err := e.outbox.Enqueue(ctx, event); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "core: event emission failed").
			WithTextCode(WebhookErrorEmitFailed)
	}
	return nil
}

func (e *Engine) commitFailure(
	ctx context.Context,
	record DeliveryRecord,
	handleErr error,
	fields map[string]any,
) (Result, error) {
	mapped := e.mapError(handleErr)
	fields["handler_error"] = mapped.Error()

	if IsPermanentFailure(mapped) {
		if dlErr := e.ledger.CommitDeadLetter(ctx, record.DeliveryID, mapped); dlErr != nil {
			return Result{StatusCode: http.StatusInternalServerError}, e.mapError(dlErr)
		}
		record.Status = DeliveryStatusDeadLettered
		record.LastError = mapped.Error()
		return Result{
			Processed:  false,
			StatusCode: http.StatusAccepted,
			Record:     record,
			Metadata:   map[string]any{"reason": "permanent_failure"},
		}, nil
	}

	updated, commitErr := e.ledger.CommitFailure(ctx, record.DeliveryID, mapped, e.config.maxAttempts())
	if commitErr != nil {
		return Result{StatusCode: http.StatusInternalServerError}, e.mapError(commitErr)
	}
	if updated.Status == DeliveryStatusDeadLettered {
		// Budget exhausted. Answer accepted so the sender stops
		// redelivering; the record now waits on the operator surface.
		return Result{
			Processed:  false,
			StatusCode: http.StatusAccepted,
			Record:     updated,
			Metadata:   map[string]any{"reason": "attempts_exhausted"},
		}, nil
	}
	return Result{
		Processed:  false,
		StatusCode: http.StatusInternalServerError,
		Record:     updated,
	}, mapped
}

// Get returns the ledger record for a delivery id.
func (e *Engine) Get(ctx context.Context, deliveryID string) (record DeliveryRecord, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"delivery_id": deliveryID}
	defer func() {
		e.observeOperation(ctx, startedAt, "get_delivery", err, fields)
	}()

	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		err = newWebhookError("core: delivery id is required", goerrors.CategoryBadInput, WebhookErrorBadInput)
		return DeliveryRecord{}, err
	}
	record, err = e.ledger.Get(ctx, deliveryID)
	if err != nil {
		err = e.mapError(err)
		return DeliveryRecord{}, err
	}
	return record, nil
}

// ListDeadLetters pages through dead lettered deliveries, newest first.
func (e *Engine) ListDeadLetters(ctx context.Context, filter DeadLetterFilter) (page DeliveryPage, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"event_type": filter.EventType}
	defer func() {
		e.observeOperation(ctx, startedAt, "list_dead_letters", err, fields)
	}()

	if e.deadLetters == nil {
		err = newWebhookError("core: dead letter store is not configured", goerrors.CategoryInternal, WebhookErrorInternal)
		return DeliveryPage{}, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = e.config.dlqPerPage()
	}
	page, err = e.deadLetters.ListDeadLetters(ctx, filter)
	if err != nil {
		err = e.mapError(err)
		return DeliveryPage{}, err
	}
	return page, nil
}

// Replay moves a dead lettered delivery back to pending. The attempt
// count is preserved so the audit trail reflects real executions; the
// replayed run is an operator grant of one extra attempt.
func (e *Engine) Replay(ctx context.Context, deliveryID string) (record DeliveryRecord, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"delivery_id": deliveryID}
	defer func() {
		e.observeOperation(ctx, startedAt, "replay_delivery", err, fields)
	}()

	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		err = newWebhookError("core: delivery id is required", goerrors.CategoryBadInput, WebhookErrorBadInput)
		return DeliveryRecord{}, err
	}
	if e.deadLetters == nil {
		err = newWebhookError("core: dead letter store is not configured", goerrors.CategoryInternal, WebhookErrorInternal)
		return DeliveryRecord{}, err
	}
	record, err = e.deadLetters.Replay(ctx, deliveryID)
	if err != nil {
		err = e.mapError(err)
		return DeliveryRecord{}, err
	}
	return record, nil
}

// Purge permanently removes a dead lettered delivery. Records in any
// other status are protected; purging them would break idempotency.
func (e *Engine) Purge(ctx context.Context, deliveryID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"delivery_id": deliveryID}
	defer func() {
		e.observeOperation(ctx, startedAt, "purge_delivery", err, fields)
	}()

	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		err = newWebhookError("core: delivery id is required", goerrors.CategoryBadInput, WebhookErrorBadInput)
		return err
	}
	if e.deadLetters == nil {
		err = newWebhookError("core: dead letter store is not configured", goerrors.CategoryInternal, WebhookErrorInternal)
		return err
	}
	if err = e.deadLetters.Purge(ctx, deliveryID); err != nil {
		err = e.mapError(err)
		return err
	}
	return nil
}

// ReleaseStaleClaims reverts processing claims older than the configured
// window back to a retry-eligible status so crashed workers cannot
// strand deliveries.
func (e *Engine) ReleaseStaleClaims(ctx context.Context) (released int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["released"] = released
		e.observeOperation(ctx, startedAt, "release_stale_claims", err, fields)
	}()

	cutoff := e.now().Add(-e.config.Claims.StaleAfter())
	released, err = e.ledger.ReleaseStale(ctx, cutoff)
	if err != nil {
		err = e.mapError(err)
		return 0, err
	}
	return released, nil
}

func (e *Engine) mapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	mapper := e.errorMapper
	if mapper == nil {
		mapper = defaultErrorMapper
	}
	mapped := mapper(err)
	if mapped == nil {
		return defaultErrorMapper(err)
	}
	return mapped
}
