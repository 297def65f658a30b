package telemetry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	defaultNamespace      = "lesson-ledger"
	defaultMetricInterval = 30 * time.Second
	spanBatchTimeout      = 5 * time.Second
)

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Namespace      string        // service.namespace, defaults to "lesson-ledger"
	OTLPEndpoint   string        // host[:port], e.g. "otlp-gateway-prod-eu-west-2.grafana.net"
	PathPrefix     string        // Grafana Cloud serves OTLP under "/otlp"
	OTLPHeaders    map[string]string
	MetricInterval time.Duration // defaults to 30s
	Enabled        bool
}

// BasicAuthHeaders builds the Authorization header Grafana Cloud expects
// (instanceID:token, base64 encoded). Empty credentials yield no headers.
func BasicAuthHeaders(instanceID, token string) map[string]string {
	if instanceID == "" || token == "" {
		return nil
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(instanceID + ":" + token))
	return map[string]string{"Authorization": "Basic " + encoded}
}

// Provider holds the initialized OTEL providers
type Provider struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// Initialize installs OTLP/HTTP trace and metric export as the global
// providers. Disabled telemetry returns nil, nil: the globals stay no-op and
// every instrument created from them records nothing.
func Initialize(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		log.Println("📊 OpenTelemetry disabled")
		return nil, nil
	}
	log.Printf("📊 Initializing OpenTelemetry for %s...", cfg.ServiceName)

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetMeterProvider(mp)

	log.Printf("✓ OpenTelemetry initialized (endpoint: %s)", cfg.OTLPEndpoint)
	return &Provider{TracerProvider: tp, MeterProvider: mp}, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
			attribute.String("service.namespace", namespace),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithURLPath(cfg.PathPrefix+"/v1/traces"),
		otlptracehttp.WithHeaders(cfg.OTLPHeaders),
	)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}

	// Requests arriving with a sampled parent keep their caller's decision
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter, trace.WithBatchTimeout(spanBatchTimeout)),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.AlwaysSample())),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetrichttp.WithURLPath(cfg.PathPrefix+"/v1/metrics"),
		otlpmetrichttp.WithHeaders(cfg.OTLPHeaders),
	)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	// Shutdown flushes the reader, so a batch run shorter than one interval
	// still exports its counters.
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))),
		metric.WithResource(res),
	), nil
}

// Shutdown flushes pending spans and metrics. Both providers are stopped
// even when the first one fails.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	log.Println("📊 Shutting down OpenTelemetry...")

	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
