package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestBasicAuthHeaders(t *testing.T) {
	assert.Nil(t, BasicAuthHeaders("", "token"))
	assert.Equal(t,
		map[string]string{"Authorization": "Basic MTIzOmFiYw=="},
		BasicAuthHeaders("123", "abc"),
	)
}

func TestDisabledTelemetryIsNoop(t *testing.T) {
	p, err := Initialize(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, p.Shutdown(context.Background()))

	// Instruments on the no-op provider and a nil *LedgerMetrics are safe.
	m := NewLedgerMetrics()
	m.LessonRecorded(context.Background(), "low")
	m.BatchFinished(context.Background(), 3, 1, time.Second)

	var none *LedgerMetrics
	none.LessonUndone(context.Background())
	assert.NoError(t, none.ObserveOutboxDepth(func(context.Context) (int64, error) { return 0, nil }))
}

func TestResourceNamespace(t *testing.T) {
	res, err := newResource(context.Background(), Config{ServiceName: "ledger-api"})
	require.NoError(t, err)
	ns, ok := res.Set().Value("service.namespace")
	require.True(t, ok)
	assert.Equal(t, defaultNamespace, ns.AsString())

	res, err = newResource(context.Background(), Config{ServiceName: "ledger-api", Namespace: "studio-eu"})
	require.NoError(t, err)
	ns, _ = res.Set().Value("service.namespace")
	assert.Equal(t, "studio-eu", ns.AsString())
}

func outboxDepthPoints(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.DataPoint[int64] {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "ledger.notifications.outbox_depth" {
				gauge, ok := m.Data.(metricdata.Gauge[int64])
				require.True(t, ok)
				return gauge.DataPoints
			}
		}
	}
	return nil
}

func TestObserveOutboxDepth(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var (
		depth int64 = 7
		fail  error
	)
	m := newLedgerMetrics(provider.Meter(meterName))
	require.NoError(t, m.ObserveOutboxDepth(func(context.Context) (int64, error) {
		return depth, fail
	}))

	points := outboxDepthPoints(t, reader)
	require.Len(t, points, 1)
	assert.Equal(t, int64(7), points[0].Value)

	depth = 2
	points = outboxDepthPoints(t, reader)
	require.Len(t, points, 1)
	assert.Equal(t, int64(2), points[0].Value)

	// A failed read leaves the collection without a point
	fail = errors.New("redis down")
	assert.Empty(t, outboxDepthPoints(t, reader))
}
