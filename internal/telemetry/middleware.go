package telemetry

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName        = "lesson-ledger-api"
	correlationHeader = "X-Correlation-ID"
)

// FiberMiddleware traces each request as a server span. The span is renamed
// to the matched route once routing is done so that ids stay out of span
// names. Only 5xx responses mark the span as failed; 4xx are the caller's.
func FiberMiddleware() fiber.Handler {
	tracer := otel.Tracer(tracerName)
	propagator := otel.GetTextMapPropagator()

	return func(c *fiber.Ctx) error {
		// Extract trace context from incoming headers
		ctx := propagator.Extract(c.Context(), propagation.HeaderCarrier(c.GetReqHeaders()))

		attrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(c.Method()),
			semconv.URLPath(c.Path()),
			semconv.UserAgentOriginal(c.Get(fiber.HeaderUserAgent)),
			semconv.ClientAddress(c.IP()),
		}
		if id := c.Get(correlationHeader); id != "" {
			attrs = append(attrs, attribute.String("ledger.correlation_id", id))
		}

		ctx, span := tracer.Start(ctx, "HTTP "+c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		c.SetUserContext(ctx)
		if span.SpanContext().HasTraceID() {
			c.Set("X-Trace-ID", span.SpanContext().TraceID().String())
		}

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(semconv.HTTPRoute(route))
		if id := c.Params("id"); id != "" {
			span.SetAttributes(attribute.String("ledger.resource_id", id))
		}

		statusCode := c.Response().StatusCode()
		if err != nil {
			// The error handler has not run yet; take its status.
			if fe, ok := err.(*fiber.Error); ok {
				statusCode = fe.Code
			} else {
				statusCode = fiber.StatusInternalServerError
			}
			span.RecordError(err)
		}
		span.SetAttributes(semconv.HTTPResponseStatusCode(statusCode))
		if statusCode >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
		}

		return err
	}
}
