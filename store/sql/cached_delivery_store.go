package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-webhooks/core"
)

const deliveryCacheKeyPrefix = "go-webhooks::delivery::v1"

// CachedDeliveryReader fronts ledger reads with a cache for operator
// surfaces that poll delivery state. Writes stay on the base ledger;
// the pipeline itself never reads through the cache because claim
// decisions must see the live row.
type CachedDeliveryReader struct {
	base  core.DeliveryLedger
	cache repositorycache.CacheService
}

func NewCachedDeliveryReader(
	base core.DeliveryLedger,
	cacheService repositorycache.CacheService,
) (*CachedDeliveryReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base delivery ledger is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: delivery cache service is required")
	}
	return &CachedDeliveryReader{base: base, cache: cacheService}, nil
}

// DeliveryCacheKey is the deterministic cache key contract for delivery
// reads: go-webhooks::delivery::v1::<delivery_id> with the id URL-path
// escaped.
func DeliveryCacheKey(deliveryID string) (string, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return "", fmt.Errorf("sqlstore: delivery id is required")
	}
	return strings.Join([]string{deliveryCacheKeyPrefix, url.PathEscape(deliveryID)}, "::"), nil
}

func (r *CachedDeliveryReader) Get(ctx context.Context, deliveryID string) (core.DeliveryRecord, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.DeliveryRecord{}, fmt.Errorf("sqlstore: cached delivery reader is not configured")
	}
	cacheKey, err := DeliveryCacheKey(deliveryID)
	if err != nil {
		return core.DeliveryRecord{}, err
	}
	record, err := repositorycache.GetOrFetch(ctx, r.cache, cacheKey, func(ctx context.Context) (core.DeliveryRecord, error) {
		return r.base.Get(ctx, strings.TrimSpace(deliveryID))
	})
	if err != nil {
		return core.DeliveryRecord{}, err
	}
	return record, nil
}

// Invalidate drops the cached row after a write path mutates it.
func (r *CachedDeliveryReader) Invalidate(ctx context.Context, deliveryID string) error {
	if r == nil || r.cache == nil {
		return fmt.Errorf("sqlstore: cached delivery reader is not configured")
	}
	cacheKey, err := DeliveryCacheKey(deliveryID)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, cacheKey)
}
