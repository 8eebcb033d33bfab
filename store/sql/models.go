package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type deliveryRecord struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:wd"`

	ID         string    `bun:"id,pk"`
	DeliveryID string    `bun:"delivery_id,notnull"`
	EventType  string    `bun:"event_type,notnull"`
	Payload    []byte    `bun:"payload"`
	Status     string    `bun:"status,notnull"`
	Attempts   int       `bun:"attempts,notnull"`
	LastError  string    `bun:"last_error"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type outboxEventRecord struct {
	bun.BaseModel `bun:"table:webhook_event_outbox,alias:weo"`

	ID            string         `bun:"id,pk"`
	EventID       string         `bun:"event_id,notnull"`
	EventName     string         `bun:"event_name,notnull"`
	DeliveryID    string         `bun:"delivery_id,notnull"`
	EventType     string         `bun:"event_type,notnull"`
	Payload       []byte         `bun:"payload"`
	Metadata      map[string]any `bun:"metadata,type:jsonb"`
	Status        string         `bun:"status,notnull"`
	Attempts      int            `bun:"attempts,notnull"`
	NextAttemptAt *time.Time     `bun:"next_attempt_at,nullzero"`
	LastError     string         `bun:"last_error"`
	OccurredAt    time.Time      `bun:"occurred_at,nullzero,notnull"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
