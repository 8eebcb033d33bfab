package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-webhooks/core"
)

var (
	_ gocmd.Querier[GetDeliveryMessage, core.DeliveryRecord]   = (*GetDeliveryQuery)(nil)
	_ gocmd.Querier[ListDeadLettersMessage, core.DeliveryPage] = (*ListDeadLettersQuery)(nil)
)
