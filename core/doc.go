// Package core contains the webhook delivery engine and its contracts.
//
// Delivery processing is driven by a claim lifecycle:
// pending/failed -> processing -> succeeded|dead_lettered.
// The ledger's atomic claim is the only cross-process mutual exclusion;
// the engine never self-schedules retries, it relies on upstream
// redelivery or operator replay.
package core
