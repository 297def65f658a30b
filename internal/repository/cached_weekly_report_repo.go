package repository

import (
	"context"
	"errors"
	"log"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
)

// CachedLedgerStore wraps a domain.LedgerStore with a Redis read-through
// cache for weekly reports. Reports are derived and only change when the
// generator upserts them, which invalidates the owner's pages. Every package
// and lesson call passes straight through: counters are never served from
// cache.
type CachedLedgerStore struct {
	domain.LedgerStore
	cache *RedisReportCache
}

// NewCachedLedgerStore creates a new cached ledger store
func NewCachedLedgerStore(store domain.LedgerStore, cache *RedisReportCache) *CachedLedgerStore {
	return &CachedLedgerStore{
		LedgerStore: store,
		cache:       cache,
	}
}

// ListWeeklyReports returns an owner's latest reports with caching
func (r *CachedLedgerStore) ListWeeklyReports(ctx context.Context, ownerID string, limit int) ([]*domain.WeeklyReport, error) {
	reports, gen, err := r.cache.Load(ctx, ownerID, limit)
	if err == nil {
		return reports, nil
	}
	fill := errors.Is(err, ErrCacheMiss)

	// Cache miss - fetch from the store
	result, err := r.LedgerStore.ListWeeklyReports(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}

	// Fill under the generation seen before the read (ignore cache errors)
	if fill {
		_ = r.cache.Store(ctx, ownerID, gen, limit, result)
	}

	return result, nil
}

// UpsertWeeklyReport writes the report and invalidates the owner's pages
func (r *CachedLedgerStore) UpsertWeeklyReport(ctx context.Context, report *domain.WeeklyReport) error {
	if err := r.LedgerStore.UpsertWeeklyReport(ctx, report); err != nil {
		return err
	}

	if err := r.cache.Invalidate(ctx, report.OwnerID); err != nil {
		// A stale page lives at most one TTL.
		log.Printf("[ReportCache] Invalidate %s failed: %v", report.OwnerID, err)
	}
	return nil
}
