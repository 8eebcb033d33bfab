package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDeliveryLedger is a process-local ledger for tests and single
// node deployments. It honors the same conditional-write semantics as
// the SQL ledger but cannot coordinate workers across processes.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	records map[string]*DeliveryRecord
	now     func() time.Time
}

func NewMemoryDeliveryLedger(now func() time.Time) *MemoryDeliveryLedger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryDeliveryLedger{
		records: map[string]*DeliveryRecord{},
		now:     now,
	}
}

func (l *MemoryDeliveryLedger) LookupOrCreate(
	_ context.Context,
	deliveryID string,
	eventType string,
	payload []byte,
) (DeliveryRecord, bool, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("core: delivery id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.records[deliveryID]; ok {
		return *existing, false, nil
	}

	now := l.now()
	record := &DeliveryRecord{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		EventType:  strings.TrimSpace(eventType),
		Payload:    append([]byte(nil), payload...),
		Status:     DeliveryStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.records[deliveryID] = record
	return *record, true, nil
}

func (l *MemoryDeliveryLedger) Claim(_ context.Context, deliveryID string) (DeliveryRecord, bool, error) {
	deliveryID = strings.TrimSpace(deliveryID)

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[deliveryID]
	if !ok {
		return DeliveryRecord{}, false, fmt.Errorf("core: delivery %q not found", deliveryID)
	}
	if record.Status != DeliveryStatusPending && record.Status != DeliveryStatusFailed {
		return *record, false, nil
	}
	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.UpdatedAt = l.now()
	return *record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, deliveryID string) (DeliveryRecord, error) {
	deliveryID = strings.TrimSpace(deliveryID)

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[deliveryID]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("core: delivery %q not found", deliveryID)
	}
	return *record, nil
}

func (l *MemoryDeliveryLedger) CommitSuccess(_ context.Context, deliveryID string) error {
	deliveryID = strings.TrimSpace(deliveryID)

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[deliveryID]
	if !ok {
		return fmt.Errorf("core: delivery %q not found", deliveryID)
	}
	if record.Status != DeliveryStatusProcessing {
		return fmt.Errorf("core: delivery %q is not processing", deliveryID)
	}
	record.Status = DeliveryStatusSucceeded
	record.LastError = ""
	record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) CommitFailure(
	_ context.Context,
	deliveryID string,
	cause error,
	maxAttempts int,
) (DeliveryRecord, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[deliveryID]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("core: delivery %q not found", deliveryID)
	}
	if record.Status != DeliveryStatusProcessing {
		return DeliveryRecord{}, fmt.Errorf("core: delivery %q is not processing", deliveryID)
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	if record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDeadLettered
	} else {
		record.Status = DeliveryStatusFailed
	}
	record.UpdatedAt = l.now()
	return *record, nil
}

func (l *MemoryDeliveryLedger) CommitDeadLetter(_ context.Context, deliveryID string, cause error) error {
	deliveryID = strings.TrimSpace(deliveryID)

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[deliveryID]
	if !ok {
		return fmt.Errorf("core: delivery %q not found", deliveryID)
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	record.Status = DeliveryStatusDeadLettered
	record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) ReleaseStale(_ context.Context, olderThan time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	released := 0
	for _, record := range l.records {
		if record.Status != DeliveryStatusProcessing {
			continue
		}
		if !record.UpdatedAt.Before(olderThan) {
			continue
		}
		record.Status = DeliveryStatusFailed
		record.UpdatedAt = l.now()
		released++
	}
	return released, nil
}

func (l *MemoryDeliveryLedger) ListDeadLetters(_ context.Context, filter DeadLetterFilter) (DeliveryPage, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = DefaultDLQPerPage
	}
	eventType := strings.TrimSpace(filter.EventType)

	l.mu.Lock()
	defer l.mu.Unlock()

	matched := make([]DeliveryRecord, 0)
	for _, record := range l.records {
		if record.Status != DeliveryStatusDeadLettered {
			continue
		}
		if eventType != "" && record.EventType != eventType {
			continue
		}
		if filter.From != nil && record.UpdatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && record.UpdatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, *record)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return DeliveryPage{
		Items:   matched[start:end],
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: end < total,
	}, nil
}

func (l *MemoryDeliveryLedger) Replay(_ context.Context, deliveryID string) (DeliveryRecord, error) {
	deliveryID = strings.TrimSpace(deliveryID)

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[deliveryID]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("core: delivery %q not found", deliveryID)
	}
	if record.Status != DeliveryStatusDeadLettered {
		return DeliveryRecord{}, fmt.Errorf("core: delivery %q is not dead lettered", deliveryID)
	}
	record.Status = DeliveryStatusPending
	record.UpdatedAt = l.now()
	return *record, nil
}

func (l *MemoryDeliveryLedger) Purge(_ context.Context, deliveryID string) error {
	deliveryID = strings.TrimSpace(deliveryID)

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[deliveryID]
	if !ok {
		return fmt.Errorf("core: delivery %q not found", deliveryID)
	}
	if record.Status != DeliveryStatusDeadLettered {
		return fmt.Errorf("core: delivery %q is not dead lettered", deliveryID)
	}
	delete(l.records, deliveryID)
	return nil
}

var (
	_ DeliveryLedger  = (*MemoryDeliveryLedger)(nil)
	_ DeadLetterStore = (*MemoryDeliveryLedger)(nil)
)

type memoryOutboxEntry struct {
	event         DomainEvent
	claimed       bool
	failed        bool
	nextAttemptAt time.Time
	enqueuedAt    time.Time
	sequence      int
}

// MemoryOutbox buffers domain events in memory. Same caveat as the
// memory ledger: single process only.
type MemoryOutbox struct {
	mu      sync.Mutex
	entries map[string]*memoryOutboxEntry
	seq     int
	now     func() time.Time
}

func NewMemoryOutbox(now func() time.Time) *MemoryOutbox {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryOutbox{
		entries: map[string]*memoryOutboxEntry{},
		now:     now,
	}
}

func (o *MemoryOutbox) Enqueue(_ context.Context, event DomainEvent) error {
	event.ID = strings.TrimSpace(event.ID)
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.entries[event.ID]; ok {
		return fmt.Errorf("core: outbox event %q already enqueued", event.ID)
	}
	o.seq++
	o.entries[event.ID] = &memoryOutboxEntry{
		event:      event,
		enqueuedAt: o.now(),
		sequence:   o.seq,
	}
	return nil
}

func (o *MemoryOutbox) ClaimBatch(_ context.Context, limit int) ([]DomainEvent, error) {
	if limit <= 0 {
		limit = DefaultOutboxDispatcherConfig().BatchSize
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	ready := make([]*memoryOutboxEntry, 0)
	for _, entry := range o.entries {
		if entry.claimed || entry.failed {
			continue
		}
		if !entry.nextAttemptAt.IsZero() && entry.nextAttemptAt.After(now) {
			continue
		}
		ready = append(ready, entry)
	}
	sort.Slice(ready, func(i, j int) bool {
		return ready[i].sequence < ready[j].sequence
	})
	if len(ready) > limit {
		ready = ready[:limit]
	}

	events := make([]DomainEvent, 0, len(ready))
	for _, entry := range ready {
		entry.claimed = true
		events = append(events, entry.event)
	}
	return events, nil
}

func (o *MemoryOutbox) Ack(_ context.Context, eventID string) error {
	eventID = strings.TrimSpace(eventID)

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.entries[eventID]; !ok {
		return fmt.Errorf("core: outbox event %q not found", eventID)
	}
	delete(o.entries, eventID)
	return nil
}

func (o *MemoryOutbox) Retry(_ context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	eventID = strings.TrimSpace(eventID)

	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.entries[eventID]
	if !ok {
		return fmt.Errorf("core: outbox event %q not found", eventID)
	}
	entry.claimed = false
	if entry.event.Metadata == nil {
		entry.event.Metadata = map[string]any{}
	}
	attempts := 0
	if raw, ok := entry.event.Metadata[MetadataKeyOutboxAttempts].(int); ok {
		attempts = raw
	}
	entry.event.Metadata[MetadataKeyOutboxAttempts] = attempts + 1
	if cause != nil {
		entry.event.Metadata["_outbox_last_error"] = cause.Error()
	}
	if nextAttemptAt.IsZero() {
		entry.failed = true
		return nil
	}
	entry.nextAttemptAt = nextAttemptAt
	return nil
}

var _ EventOutbox = (*MemoryOutbox)(nil)
