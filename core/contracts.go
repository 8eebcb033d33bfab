package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Verifier authenticates a raw inbound request before any ledger write.
type Verifier interface {
	Verify(ctx context.Context, delivery InboundDelivery) error
}

// DeliveryHandler executes the business side effects for one delivery.
// Handlers must tolerate re-execution for the same delivery id: the engine
// guarantees at-most-one concurrent execution, but worker crashes between
// handler completion and ledger commit make at-least-once the real contract.
type DeliveryHandler interface {
	Handle(ctx context.Context, record DeliveryRecord) error
}

// HandlerResolver maps an event type to its registered handler.
type HandlerResolver interface {
	Resolve(eventType string) (DeliveryHandler, bool)
}

// DeliveryLedger is the durable idempotency store. Implementations must
// provide atomic conditional writes: LookupOrCreate is a single conditional
// insert, Claim is a compare-and-swap on the status column. In-process
// locking is never sufficient because workers span processes.
type DeliveryLedger interface {
	LookupOrCreate(
		ctx context.Context,
		deliveryID string,
		eventType string,
		payload []byte,
	) (DeliveryRecord, bool, error)
	Claim(ctx context.Context, deliveryID string) (DeliveryRecord, bool, error)
	Get(ctx context.Context, deliveryID string) (DeliveryRecord, error)
	CommitSuccess(ctx context.Context, deliveryID string) error
	CommitFailure(
		ctx context.Context,
		deliveryID string,
		cause error,
		maxAttempts int,
	) (DeliveryRecord, error)
	CommitDeadLetter(ctx context.Context, deliveryID string, cause error) error
	ReleaseStale(ctx context.Context, olderThan time.Time) (int, error)
}

// DeadLetterStore is the operator surface over exhausted deliveries.
type DeadLetterStore interface {
	ListDeadLetters(ctx context.Context, filter DeadLetterFilter) (DeliveryPage, error)
	Replay(ctx context.Context, deliveryID string) (DeliveryRecord, error)
	Purge(ctx context.Context, deliveryID string) error
}

// EventOutbox buffers domain events emitted on delivery success so that
// emission shares the delivery attempt's at-least-once envelope.
type EventOutbox interface {
	Enqueue(ctx context.Context, event DomainEvent) error
	ClaimBatch(ctx context.Context, limit int) ([]DomainEvent, error)
	Ack(ctx context.Context, eventID string) error
	Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error
}

// EventSink receives dispatched domain events (the downstream bus side).
type EventSink interface {
	Handle(ctx context.Context, event DomainEvent) error
}

type SinkRegistry interface {
	Sinks() []EventSink
}

type DispatchStats struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
}

// Job contracts mirror the queue surface the schedule package maps onto
// go-job. Kept local so core stays decoupled from the queue library.

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
