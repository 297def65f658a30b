package telemetry

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestFiberMiddleware_NamesSpansByRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	app := fiber.New()
	app.Use(FiberMiddleware())
	app.Get("/v1/packages/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "boom" {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendStatus(fiber.StatusNotFound)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/packages/abc", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	_, err = app.Test(httptest.NewRequest("GET", "/v1/packages/boom", nil))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "GET /v1/packages/:id", spans[0].Name())
	// A 404 is the caller's problem, not the server's
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "GET /v1/packages/:id", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
