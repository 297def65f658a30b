package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	reportCacheKeyPrefix = "weekly_reports:owner:"
	reportCacheTTL       = 6 * time.Hour
)

var ErrCacheMiss = errors.New("cache miss")

// RedisReportCache keeps pages of an owner's weekly reports in Redis.
//
// Every owner has a generation counter that is part of each page key.
// Invalidate bumps the counter, which orphans all cached pages of that owner
// in one command; orphaned pages expire on their TTL.
type RedisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReportCache(client *redis.Client) *RedisReportCache {
	return &RedisReportCache{
		client: client,
		ttl:    reportCacheTTL,
	}
}

func generationKey(ownerID string) string {
	return reportCacheKeyPrefix + ownerID + ":gen"
}

func pageKey(ownerID string, generation int64, limit int) string {
	return fmt.Sprintf("%s%s:g%d:limit:%d", reportCacheKeyPrefix, ownerID, generation, limit)
}

func (r *RedisReportCache) generation(ctx context.Context, ownerID string) (int64, error) {
	raw, err := r.client.Get(ctx, generationKey(ownerID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// Load returns a cached page or ErrCacheMiss, together with the generation
// the page was looked up under. A filler must store under that generation so
// a page read before an Invalidate is never published after it.
func (r *RedisReportCache) Load(ctx context.Context, ownerID string, limit int) ([]*domain.WeeklyReport, int64, error) {
	tracer := otel.Tracer("report-cache")
	ctx, span := tracer.Start(ctx, "ReportCache.Load",
		trace.WithAttributes(
			attribute.String("member.id", ownerID),
			attribute.Int("page.limit", limit),
		),
	)
	defer span.End()

	gen, err := r.generation(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("redis get generation: %w", err)
	}
	span.SetAttributes(attribute.Int64("cache.generation", gen))

	data, err := r.client.Get(ctx, pageKey(ownerID, gen, limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.String("cache.result", "miss"))
			return nil, gen, ErrCacheMiss
		}
		span.RecordError(err)
		return nil, gen, fmt.Errorf("redis get error: %w", err)
	}

	var reports []*domain.WeeklyReport
	if err := json.Unmarshal(data, &reports); err != nil {
		span.RecordError(err)
		return nil, gen, fmt.Errorf("unmarshal error: %w", err)
	}
	span.SetAttributes(attribute.String("cache.result", "hit"))
	return reports, gen, nil
}

// Store caches a page under generation gen, as returned by Load. Once the
// owner has been invalidated past gen the page lands on an orphaned key and
// is never served.
func (r *RedisReportCache) Store(ctx context.Context, ownerID string, gen int64, limit int, reports []*domain.WeeklyReport) error {
	tracer := otel.Tracer("report-cache")
	ctx, span := tracer.Start(ctx, "ReportCache.Store",
		trace.WithAttributes(
			attribute.String("member.id", ownerID),
			attribute.Int64("cache.generation", gen),
			attribute.Int("page.size", len(reports)),
		),
	)
	defer span.End()

	data, err := json.Marshal(reports)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := r.client.Set(ctx, pageKey(ownerID, gen, limit), data, r.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Invalidate drops every cached page of ownerID
func (r *RedisReportCache) Invalidate(ctx context.Context, ownerID string) error {
	tracer := otel.Tracer("report-cache")
	ctx, span := tracer.Start(ctx, "ReportCache.Invalidate",
		trace.WithAttributes(attribute.String("member.id", ownerID)),
	)
	defer span.End()

	if err := r.client.Incr(ctx, generationKey(ownerID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis incr error: %w", err)
	}
	return nil
}
