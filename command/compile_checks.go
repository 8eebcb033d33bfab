package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProcessDeliveryMessage]    = (*ProcessDeliveryCommand)(nil)
	_ gocmd.Commander[ReplayDeliveryMessage]     = (*ReplayDeliveryCommand)(nil)
	_ gocmd.Commander[PurgeDeliveryMessage]      = (*PurgeDeliveryCommand)(nil)
	_ gocmd.Commander[ReleaseStaleClaimsMessage] = (*ReleaseStaleClaimsCommand)(nil)
	_ gocmd.Commander[DispatchOutboxMessage]     = (*DispatchOutboxCommand)(nil)
)
