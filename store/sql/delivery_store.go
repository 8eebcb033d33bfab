package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-webhooks/core"
)

// DeliveryStore is the SQL-backed ledger. Every state change is a
// conditional UPDATE keyed on the current status, so concurrent workers
// race on the database row instead of in-process locks.
type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryRecord]
	now  func() time.Time
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryRecord](db, deliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *DeliveryStore) LookupOrCreate(
	ctx context.Context,
	deliveryID string,
	eventType string,
	payload []byte,
) (core.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	eventType = strings.TrimSpace(eventType)
	if deliveryID == "" {
		return core.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery id is required")
	}

	now := s.now()
	record := &deliveryRecord{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		EventType:  eventType,
		Payload:    append([]byte(nil), payload...),
		Status:     core.DeliveryStatusPending,
		Attempts:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			// Lost the insert race to a concurrent redelivery; the
			// winner's row is the canonical one.
			existing, getErr := s.Get(ctx, deliveryID)
			if getErr != nil {
				return core.DeliveryRecord{}, false, getErr
			}
			return existing, false, nil
		}
		return core.DeliveryRecord{}, false, err
	}
	return deliveryToDomain(record), true, nil
}

func (s *DeliveryStore) Get(ctx context.Context, deliveryID string) (core.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return core.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record := &deliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery %q not found", deliveryID)
		}
		return core.DeliveryRecord{}, err
	}
	return deliveryToDomain(record), nil
}

// Claim is the distributed lock: exactly one of any number of
// concurrent callers flips the row to processing.
func (s *DeliveryStore) Claim(ctx context.Context, deliveryID string) (core.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)

	result, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", core.DeliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("updated_at = ?", s.now()).
		Where("delivery_id = ?", deliveryID).
		Where("status IN (?, ?)", core.DeliveryStatusPending, core.DeliveryStatusFailed).
		Exec(ctx)
	if err != nil {
		return core.DeliveryRecord{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.DeliveryRecord{}, false, err
	}

	record, getErr := s.Get(ctx, deliveryID)
	if getErr != nil {
		return core.DeliveryRecord{}, false, getErr
	}
	return record, affected == 1, nil
}

func (s *DeliveryStore) CommitSuccess(ctx context.Context, deliveryID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)

	result, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", core.DeliveryStatusSucceeded).
		Set("last_error = ?", "").
		Set("updated_at = ?", s.now()).
		Where("delivery_id = ?", deliveryID).
		Where("status = ?", core.DeliveryStatusProcessing).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: delivery %q is not processing", deliveryID)
	}
	return nil
}

func (s *DeliveryStore) CommitFailure(
	ctx context.Context,
	deliveryID string,
	cause error,
	maxAttempts int,
) (core.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return core.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if maxAttempts <= 0 {
		maxAttempts = core.DefaultMaxAttempts
	}
	lastError := ""
	if cause != nil {
		lastError = strings.TrimSpace(cause.Error())
	}
	now := s.now()

	// One conditional update per outcome. The attempts column was
	// already incremented at claim time, so >= maxAttempts means the
	// budget is spent.
	result, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", core.DeliveryStatusDeadLettered).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", now).
		Where("delivery_id = ?", deliveryID).
		Where("status = ?", core.DeliveryStatusProcessing).
		Where("attempts >= ?", maxAttempts).
		Exec(ctx)
	if err != nil {
		return core.DeliveryRecord{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.DeliveryRecord{}, err
	}
	if affected == 0 {
		result, err = s.db.NewUpdate().
			Model((*deliveryRecord)(nil)).
			Set("status = ?", core.DeliveryStatusFailed).
			Set("last_error = ?", lastError).
			Set("updated_at = ?", now).
			Where("delivery_id = ?", deliveryID).
			Where("status = ?", core.DeliveryStatusProcessing).
			Exec(ctx)
		if err != nil {
			return core.DeliveryRecord{}, err
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return core.DeliveryRecord{}, err
		}
		if affected == 0 {
			return core.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery %q is not processing", deliveryID)
		}
	}
	return s.Get(ctx, deliveryID)
}

func (s *DeliveryStore) CommitDeadLetter(ctx context.Context, deliveryID string, cause error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	lastError := ""
	if cause != nil {
		lastError = strings.TrimSpace(cause.Error())
	}

	result, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", core.DeliveryStatusDeadLettered).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", s.now()).
		Where("delivery_id = ?", deliveryID).
		Where("status = ?", core.DeliveryStatusProcessing).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: delivery %q is not processing", deliveryID)
	}
	return nil
}

func (s *DeliveryStore) ReleaseStale(ctx context.Context, olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", core.DeliveryStatusFailed).
		Set("updated_at = ?", s.now()).
		Where("status = ?", core.DeliveryStatusProcessing).
		Where("updated_at < ?", olderThan.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *DeliveryStore) ListDeadLetters(
	ctx context.Context,
	filter core.DeadLetterFilter,
) (core.DeliveryPage, error) {
	if s == nil || s.db == nil {
		return core.DeliveryPage{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = core.DefaultDLQPerPage
	}

	query := s.db.NewSelect().
		Model((*deliveryRecord)(nil)).
		Where("?TableAlias.status = ?", core.DeliveryStatusDeadLettered)
	if eventType := strings.TrimSpace(filter.EventType); eventType != "" {
		query = query.Where("?TableAlias.event_type = ?", eventType)
	}
	if filter.From != nil {
		query = query.Where("?TableAlias.updated_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("?TableAlias.updated_at <= ?", filter.To.UTC())
	}

	total, err := query.Count(ctx)
	if err != nil {
		return core.DeliveryPage{}, err
	}

	var records []deliveryRecord
	err = query.
		Order("updated_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Scan(ctx, &records)
	if err != nil {
		return core.DeliveryPage{}, err
	}

	items := make([]core.DeliveryRecord, 0, len(records))
	for i := range records {
		items = append(items, deliveryToDomain(&records[i]))
	}
	return core.DeliveryPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: page*perPage < total,
	}, nil
}

func (s *DeliveryStore) Replay(ctx context.Context, deliveryID string) (core.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return core.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)

	result, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", core.DeliveryStatusPending).
		Set("updated_at = ?", s.now()).
		Where("delivery_id = ?", deliveryID).
		Where("status = ?", core.DeliveryStatusDeadLettered).
		Exec(ctx)
	if err != nil {
		return core.DeliveryRecord{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.DeliveryRecord{}, err
	}
	if affected == 0 {
		record, getErr := s.Get(ctx, deliveryID)
		if getErr != nil {
			return core.DeliveryRecord{}, getErr
		}
		return core.DeliveryRecord{}, fmt.Errorf(
			"sqlstore: delivery %q is not dead lettered, status is %q",
			deliveryID,
			record.Status,
		)
	}
	return s.Get(ctx, deliveryID)
}

func (s *DeliveryStore) Purge(ctx context.Context, deliveryID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)

	result, err := s.db.NewDelete().
		Model((*deliveryRecord)(nil)).
		Where("delivery_id = ?", deliveryID).
		Where("status = ?", core.DeliveryStatusDeadLettered).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		record, getErr := s.Get(ctx, deliveryID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf(
			"sqlstore: delivery %q is not dead lettered, status is %q",
			deliveryID,
			record.Status,
		)
	}
	return nil
}

func deliveryToDomain(record *deliveryRecord) core.DeliveryRecord {
	if record == nil {
		return core.DeliveryRecord{}
	}
	return core.DeliveryRecord{
		ID:         record.ID,
		DeliveryID: record.DeliveryID,
		EventType:  record.EventType,
		Payload:    append([]byte(nil), record.Payload...),
		Status:     record.Status,
		Attempts:   record.Attempts,
		LastError:  record.LastError,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var (
	_ core.DeliveryLedger  = (*DeliveryStore)(nil)
	_ core.DeadLetterStore = (*DeliveryStore)(nil)
)
