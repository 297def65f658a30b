package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronSecret(t *testing.T) {
	app := fiber.New()
	app.Get("/run", CronSecret("s3cret"), func(c *fiber.Ctx) error {
		return c.SendString("ran")
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", fiber.StatusUnauthorized},
		{"wrong secret", "Bearer nope", fiber.StatusUnauthorized},
		{"prefix of secret", "Bearer s3c", fiber.StatusUnauthorized},
		{"valid", "Bearer s3cret", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/run", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestCronSecret_EmptySecretRejectsEverything(t *testing.T) {
	app := fiber.New()
	app.Get("/run", CronSecret(""), func(c *fiber.Ctx) error {
		return c.SendString("ran")
	})

	req := httptest.NewRequest("GET", "/run", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func newIdempotentApp(t *testing.T, status int) (*fiber.App, *atomic.Int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	var calls atomic.Int32
	app := fiber.New()
	app.Use(IdempotencyMiddleware(client, time.Hour))
	handler := func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(status).JSON(fiber.Map{"call": n})
	}
	app.Post("/lessons", handler)
	app.Post("/other", handler)
	app.Get("/lessons", handler)
	return app, &calls
}

func send(t *testing.T, app *fiber.App, method, path, correlationID string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header.Get("X-Idempotent-Replay")
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	app, calls := newIdempotentApp(t, fiber.StatusCreated)

	status, body, replay := send(t, app, "POST", "/lessons", "abc")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, `{"call":1}`, body)
	assert.Empty(t, replay)

	status, body, replay = send(t, app, "POST", "/lessons", "abc")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, `{"call":1}`, body)
	assert.Equal(t, "true", replay)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotency_ScopedToRoute(t *testing.T) {
	app, calls := newIdempotentApp(t, fiber.StatusCreated)

	send(t, app, "POST", "/lessons", "abc")
	_, body, replay := send(t, app, "POST", "/other", "abc")
	assert.JSONEq(t, `{"call":2}`, body)
	assert.Empty(t, replay)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotency_Passthrough(t *testing.T) {
	app, calls := newIdempotentApp(t, fiber.StatusCreated)

	// No correlation id
	send(t, app, "POST", "/lessons", "")
	send(t, app, "POST", "/lessons", "")
	assert.Equal(t, int32(2), calls.Load())

	// Reads are never cached
	send(t, app, "GET", "/lessons", "abc")
	send(t, app, "GET", "/lessons", "abc")
	assert.Equal(t, int32(4), calls.Load())
}

func TestIdempotency_FailuresAreNotStored(t *testing.T) {
	app, calls := newIdempotentApp(t, fiber.StatusConflict)

	status, _, _ := send(t, app, "POST", "/lessons", "abc")
	assert.Equal(t, fiber.StatusConflict, status)
	_, _, replay := send(t, app, "POST", "/lessons", "abc")
	assert.Empty(t, replay)
	assert.Equal(t, int32(2), calls.Load())
}
