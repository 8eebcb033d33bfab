package core

import (
	"strings"
	"time"
)

const (
	DeliveryStatusPending      = "pending"
	DeliveryStatusProcessing   = "processing"
	DeliveryStatusSucceeded    = "succeeded"
	DeliveryStatusFailed       = "failed"
	DeliveryStatusDeadLettered = "dead_lettered"
)

// DeliveryRecord is the ledger row for one delivery id. All redeliveries
// carrying the same DeliveryID resolve to the same record.
type DeliveryRecord struct {
	ID         string
	DeliveryID string
	EventType  string
	Payload    []byte
	Status     string
	Attempts   int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InboundDelivery is the transport-agnostic shape of one webhook request.
type InboundDelivery struct {
	DeliveryID      string
	EventType       string
	SignatureHeader string
	Body            []byte
	Headers         map[string]string
	Metadata        map[string]any
}

// Result reports what Process did with a delivery. StatusCode follows the
/// inbound contract: 200 processed, 202 idempotent no-op, 401 rejected,
// 500 failed with retry budget remaining.
type Result struct {
	Processed  bool
	StatusCode int
	Record     DeliveryRecord
	Metadata   map[string]any
}

// DomainEvent is emitted downstream exactly once per succeeded delivery.
type DomainEvent struct {
	ID         string
	Name       string
	DeliveryID string
	EventType  string
	Payload    []byte
	Metadata   map[string]any
	OccurredAt time.Time
}

type DeadLetterFilter struct {
	EventType string
	From      *time.Time
	To        *time.Time
	Page      int
	PerPage   int
}

type DeliveryPage struct {
	Items   []DeliveryRecord
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

var deliveryTransitions = map[string]map[string]struct{}{
	DeliveryStatusPending: {
		DeliveryStatusProcessing: {},
	},
	DeliveryStatusFailed: {
		DeliveryStatusProcessing: {},
	},
	DeliveryStatusProcessing: {
		DeliveryStatusSucceeded:    {},
		DeliveryStatusFailed:       {},
		DeliveryStatusPending:      {},
		DeliveryStatusDeadLettered: {},
	},
	DeliveryStatusDeadLettered: {
		DeliveryStatusPending: {},
	},
}

// CanTransition reports whether the delivery state machine allows moving
// from one status to another. succeeded is terminal; dead_lettered exits
// only through replay.
func CanTransition(from string, to string) bool {
	allowed, ok := deliveryTransitions[normalizeStatus(from)]
	if !ok {
		return false
	}
	_, ok = allowed[normalizeStatus(to)]
	return ok
}

func IsTerminalStatus(status string) bool {
	return normalizeStatus(status) == DeliveryStatusSucceeded
}

func IsValidStatus(status string) bool {
	switch normalizeStatus(status) {
	case DeliveryStatusPending,
		DeliveryStatusProcessing,
		DeliveryStatusSucceeded,
		DeliveryStatusFailed,
		DeliveryStatusDeadLettered:
		return true
	default:
		return false
	}
}

func normalizeStatus(status string) string {
	return strings.TrimSpace(strings.ToLower(status))
}
