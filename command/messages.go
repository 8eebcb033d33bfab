package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-webhooks/core"
)

const (
	TypeProcessDelivery    = "webhooks.command.delivery.process"
	TypeReplayDelivery     = "webhooks.command.dlq.replay"
	TypePurgeDelivery      = "webhooks.command.dlq.purge"
	TypeReleaseStaleClaims = "webhooks.command.claims.release_stale"
	TypeDispatchOutbox     = "webhooks.command.outbox.dispatch"
)

type ProcessDeliveryMessage struct {
	Delivery core.InboundDelivery
}

func (ProcessDeliveryMessage) Type() string { return TypeProcessDelivery }

func (m ProcessDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.Delivery.DeliveryID) == "" {
		return fmt.Errorf("command: delivery id is required")
	}
	if strings.TrimSpace(m.Delivery.EventType) == "" {
		return fmt.Errorf("command: event type is required")
	}
	return nil
}

type ReplayDeliveryMessage struct {
	DeliveryID string
}

func (ReplayDeliveryMessage) Type() string { return TypeReplayDelivery }

func (m ReplayDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("command: delivery id is required")
	}
	return nil
}

type PurgeDeliveryMessage struct {
	DeliveryID string
}

func (PurgeDeliveryMessage) Type() string { return TypePurgeDelivery }

func (m PurgeDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("command: delivery id is required")
	}
	return nil
}

type ReleaseStaleClaimsMessage struct{}

func (ReleaseStaleClaimsMessage) Type() string { return TypeReleaseStaleClaims }

func (ReleaseStaleClaimsMessage) Validate() error { return nil }

type DispatchOutboxMessage struct {
	BatchSize int
}

func (DispatchOutboxMessage) Type() string { return TypeDispatchOutbox }

func (m DispatchOutboxMessage) Validate() error {
	if m.BatchSize < 0 {
		return fmt.Errorf("command: batch size must not be negative")
	}
	return nil
}
