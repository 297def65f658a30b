package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const idempotencyHeader = "X-Correlation-ID"

type cachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// IdempotencyMiddleware replays the stored response of a mutating request
// whose X-Correlation-ID was already seen within ttl. Keys are scoped to the
// route so one correlation id cannot replay another endpoint's answer. Only
// 2xx responses are stored; a rejected request can be retried.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Only apply to mutating methods
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(idempotencyHeader)
		if correlationID == "" {
			return c.Next()
		}

		key := fmt.Sprintf("idempotency:%s:%s:%s", c.Method(), c.Path(), correlationID)
		ctx := c.UserContext()

		if raw, err := redisClient.Get(ctx, key).Bytes(); err == nil {
			var cached cachedResponse
			if json.Unmarshal(raw, &cached) == nil {
				c.Set("X-Idempotent-Replay", "true")
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				return c.Status(cached.Status).Send(cached.Body)
			}
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			return nil
		}

		// Body is reused by fasthttp after the handler returns
		body := append([]byte(nil), c.Response().Body()...)
		raw, err := json.Marshal(cachedResponse{Status: status, Body: body})
		if err != nil {
			return nil
		}

		setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisClient.Set(setCtx, key, raw, ttl).Err(); err != nil {
			log.Printf("[Idempotency] Failed to store response for %s: %v", key, err)
		}
		return nil
	}
}
