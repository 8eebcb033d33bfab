// Package schedule drives the engine's background maintenance: releasing
// stale claims and pumping the event outbox. The Scheduler enqueues
// periodic job messages; the Worker consumes them and executes the
// matching engine operation. Both sides speak the core job contracts so
// any queue adapter can sit in between.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-webhooks/adapters/gojob"
	"github.com/goliatone/go-webhooks/core"
)

const (
	DefaultReapInterval     = time.Minute
	DefaultDispatchInterval = 5 * time.Second
	DefaultOutboxBatchSize  = 50
	DefaultRetryDelay       = 10 * time.Second
)

// MaintenanceEngine is the slice of the engine the background jobs need.
type MaintenanceEngine interface {
	ReleaseStaleClaims(ctx context.Context) (int, error)
	DispatchOutbox(ctx context.Context, batchSize int) (core.DispatchStats, error)
	Replay(ctx context.Context, deliveryID string) (core.DeliveryRecord, error)
}

type Config struct {
	ReapInterval     time.Duration
	DispatchInterval time.Duration
	OutboxBatchSize  int
	RetryDelay       time.Duration
}

func (c Config) reapInterval() time.Duration {
	if c.ReapInterval <= 0 {
		return DefaultReapInterval
	}
	return c.ReapInterval
}

func (c Config) dispatchInterval() time.Duration {
	if c.DispatchInterval <= 0 {
		return DefaultDispatchInterval
	}
	return c.DispatchInterval
}

func (c Config) outboxBatchSize() int {
	if c.OutboxBatchSize <= 0 {
		return DefaultOutboxBatchSize
	}
	return c.OutboxBatchSize
}

func (c Config) retryDelay() time.Duration {
	if c.RetryDelay <= 0 {
		return DefaultRetryDelay
	}
	return c.RetryDelay
}

// Scheduler enqueues the periodic maintenance messages. It does not run
// the work itself so multiple schedulers can coexist behind queue
// deduplication.
type Scheduler struct {
	enqueuer core.JobEnqueuer
	logger   core.Logger
	config   Config
	now      func() time.Time
}

func NewScheduler(enqueuer core.JobEnqueuer, logger core.Logger, config Config) *Scheduler {
	return &Scheduler{
		enqueuer: enqueuer,
		logger:   logger,
		config:   config,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Run blocks until the context is cancelled, enqueueing a reap message
// every ReapInterval and a dispatch message every DispatchInterval.
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("schedule: scheduler requires an enqueuer")
	}

	reapTicker := time.NewTicker(s.config.reapInterval())
	defer reapTicker.Stop()
	dispatchTicker := time.NewTicker(s.config.dispatchInterval())
	defer dispatchTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reapTicker.C:
			s.enqueue(ctx, s.ReapMessage())
		case <-dispatchTicker.C:
			s.enqueue(ctx, s.DispatchMessage())
		}
	}
}

// ReapMessage builds the stale claim release job message.
func (s *Scheduler) ReapMessage() *core.JobExecutionMessage {
	return &core.JobExecutionMessage{
		JobID:          gojob.JobIDReleaseStaleClaims,
		Parameters:     map[string]any{},
		IdempotencyKey: fmt.Sprintf("%s:%d", gojob.JobIDReleaseStaleClaims, s.nowUnix()),
		DedupPolicy:    "drop",
	}
}

// DispatchMessage builds the outbox pump job message.
func (s *Scheduler) DispatchMessage() *core.JobExecutionMessage {
	return &core.JobExecutionMessage{
		JobID: gojob.JobIDOutboxDispatch,
		Parameters: map[string]any{
			"batch_size": s.config.outboxBatchSize(),
		},
		IdempotencyKey: fmt.Sprintf("%s:%d", gojob.JobIDOutboxDispatch, s.nowUnix()),
		DedupPolicy:    "drop",
	}
}

func (s *Scheduler) enqueue(ctx context.Context, msg *core.JobExecutionMessage) {
	if err := s.enqueuer.Enqueue(ctx, msg); err != nil && s.logger != nil {
		s.logger.Error("schedule: enqueue failed", "job_id", msg.JobID, "error", err)
	}
}

func (s *Scheduler) nowUnix() int64 {
	if s != nil && s.now != nil {
		return s.now().Unix()
	}
	return time.Now().Unix()
}

// Worker consumes maintenance job messages and executes them against
// the engine. Unknown job ids are dead lettered rather than requeued.
type Worker struct {
	engine   MaintenanceEngine
	dequeuer core.JobDequeuer
	logger   core.Logger
	config   Config
}

func NewWorker(engine MaintenanceEngine, dequeuer core.JobDequeuer, logger core.Logger, config Config) *Worker {
	return &Worker{
		engine:   engine,
		dequeuer: dequeuer,
		logger:   logger,
		config:   config,
	}
}

// Run blocks, pulling one delivery at a time until the context is
// cancelled or the dequeuer fails.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.engine == nil || w.dequeuer == nil {
		return fmt.Errorf("schedule: worker requires an engine and a dequeuer")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			return err
		}
		w.handle(ctx, delivery)
	}
}

func (w *Worker) handle(ctx context.Context, delivery core.JobDelivery) {
	if delivery == nil {
		return
	}
	msg := delivery.Message()
	if msg == nil {
		_ = delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "empty job message",
		})
		return
	}

	if err := w.Execute(ctx, msg); err != nil {
		if w.logger != nil {
			w.logger.Error("schedule: job failed", "job_id", msg.JobID, "error", err)
		}
		_ = delivery.Nack(ctx, core.JobNackOptions{
			Delay:      w.config.retryDelay(),
			Requeue:    !isUnknownJob(err),
			DeadLetter: isUnknownJob(err),
			Reason:     err.Error(),
		})
		return
	}
	_ = delivery.Ack(ctx)
}

// Execute runs a single maintenance job message against the engine.
func (w *Worker) Execute(ctx context.Context, msg *core.JobExecutionMessage) error {
	if w == nil || w.engine == nil {
		return fmt.Errorf("schedule: worker engine is required")
	}
	if msg == nil {
		return fmt.Errorf("schedule: job message is required")
	}

	switch strings.TrimSpace(msg.JobID) {
	case gojob.JobIDReleaseStaleClaims:
		released, err := w.engine.ReleaseStaleClaims(ctx)
		if err != nil {
			return err
		}
		if released > 0 && w.logger != nil {
			w.logger.Info("schedule: released stale claims", "count", released)
		}
		return nil
	case gojob.JobIDOutboxDispatch:
		batchSize := intParameter(msg.Parameters, "batch_size", w.config.outboxBatchSize())
		_, err := w.engine.DispatchOutbox(ctx, batchSize)
		return err
	case gojob.JobIDReplayDelivery:
		deliveryID := stringParameter(msg.Parameters, "delivery_id")
		if deliveryID == "" {
			return unknownJobError("schedule: replay job requires a delivery id")
		}
		_, err := w.engine.Replay(ctx, deliveryID)
		return err
	default:
		return unknownJobError(fmt.Sprintf("schedule: unknown job id %q", msg.JobID))
	}
}

type unknownJobError string

func (e unknownJobError) Error() string { return string(e) }

func isUnknownJob(err error) bool {
	_, ok := err.(unknownJobError)
	return ok
}

func intParameter(params map[string]any, key string, fallback int) int {
	if params == nil {
		return fallback
	}
	switch value := params[key].(type) {
	case int:
		if value > 0 {
			return value
		}
	case int64:
		if value > 0 {
			return int(value)
		}
	case float64:
		if value > 0 {
			return int(value)
		}
	}
	return fallback
}

func stringParameter(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	value, _ := params[key].(string)
	return strings.TrimSpace(value)
}
