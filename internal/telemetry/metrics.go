package telemetry

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "lesson-ledger"

// LedgerMetrics holds the ledger's OTel instruments. A nil *LedgerMetrics is
// valid and records nothing.
type LedgerMetrics struct {
	meter            metric.Meter
	lessonsRecorded  metric.Int64Counter
	lessonsUndone    metric.Int64Counter
	lowCreditNotices metric.Int64Counter
	reportsGenerated metric.Int64Counter
	reportsFailed    metric.Int64Counter
	batchDuration    metric.Float64Histogram
}

// NewLedgerMetrics registers instruments on the global meter provider.
// Without Initialize the global provider is a no-op.
func NewLedgerMetrics() *LedgerMetrics {
	return newLedgerMetrics(otel.Meter(meterName))
}

func newLedgerMetrics(meter metric.Meter) *LedgerMetrics {
	m := &LedgerMetrics{meter: meter}

	var err error
	if m.lessonsRecorded, err = meter.Int64Counter("ledger.lessons.recorded",
		metric.WithDescription("Lessons committed against a package")); err != nil {
		log.Printf("Warning: metric ledger.lessons.recorded: %v", err)
	}
	if m.lessonsUndone, err = meter.Int64Counter("ledger.lessons.undone",
		metric.WithDescription("Lessons removed by undo")); err != nil {
		log.Printf("Warning: metric ledger.lessons.undone: %v", err)
	}
	if m.lowCreditNotices, err = meter.Int64Counter("ledger.notifications.low_credit",
		metric.WithDescription("Low-credit notifications handed to the sink")); err != nil {
		log.Printf("Warning: metric ledger.notifications.low_credit: %v", err)
	}
	if m.reportsGenerated, err = meter.Int64Counter("reports.weekly.generated",
		metric.WithDescription("Weekly reports upserted")); err != nil {
		log.Printf("Warning: metric reports.weekly.generated: %v", err)
	}
	if m.reportsFailed, err = meter.Int64Counter("reports.weekly.failed",
		metric.WithDescription("Members whose weekly report failed")); err != nil {
		log.Printf("Warning: metric reports.weekly.failed: %v", err)
	}
	if m.batchDuration, err = meter.Float64Histogram("reports.weekly.run_duration",
		metric.WithDescription("Weekly report run duration"),
		metric.WithUnit("s")); err != nil {
		log.Printf("Warning: metric reports.weekly.run_duration: %v", err)
	}
	return m
}

func (m *LedgerMetrics) LessonRecorded(ctx context.Context, level string) {
	if m == nil || m.lessonsRecorded == nil {
		return
	}
	m.lessonsRecorded.Add(ctx, 1, metric.WithAttributes(attribute.String("credit.level", level)))
}

func (m *LedgerMetrics) LessonUndone(ctx context.Context) {
	if m == nil || m.lessonsUndone == nil {
		return
	}
	m.lessonsUndone.Add(ctx, 1)
}

func (m *LedgerMetrics) LowCreditNotified(ctx context.Context, remaining int) {
	if m == nil || m.lowCreditNotices == nil {
		return
	}
	m.lowCreditNotices.Add(ctx, 1, metric.WithAttributes(attribute.Int("credit.remaining", remaining)))
}

func (m *LedgerMetrics) BatchFinished(ctx context.Context, succeeded, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if m.reportsGenerated != nil {
		m.reportsGenerated.Add(ctx, int64(succeeded))
	}
	if m.reportsFailed != nil {
		m.reportsFailed.Add(ctx, int64(failed))
	}
	if m.batchDuration != nil {
		m.batchDuration.Record(ctx, elapsed.Seconds())
	}
}

// ObserveOutboxDepth reports depth as the notification backlog gauge on
// every collection.
func (m *LedgerMetrics) ObserveOutboxDepth(depth func(context.Context) (int64, error)) error {
	if m == nil || m.meter == nil {
		return nil
	}
	_, err := m.meter.Int64ObservableGauge("ledger.notifications.outbox_depth",
		metric.WithDescription("Notifications waiting for delivery"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			n, err := depth(ctx)
			if err != nil {
				// No data point for this collection
				return nil
			}
			o.Observe(n)
			return nil
		}),
	)
	return err
}
