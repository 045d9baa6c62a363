package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/algogenius-api/internal/middleware"
)

func TestRateLimitKeysByUser(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-User"); id != "" {
			c.Locals(middleware.LocalUserID, id)
		}
		return c.Next()
	})
	app.Post("/generate", middleware.RateLimit("generation", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(user string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	require.Equal(t, fiber.StatusCreated, send("edu-1").StatusCode)
	require.Equal(t, fiber.StatusCreated, send("edu-1").StatusCode)

	limited := send("edu-1")
	require.Equal(t, fiber.StatusTooManyRequests, limited.StatusCode)
	require.NotEmpty(t, limited.Header.Get("Retry-After"))
	var payload struct {
		Success bool           `json:"success"`
		Details map[string]any `json:"details"`
	}
	decodeBody(t, limited, &payload)
	require.False(t, payload.Success)
	require.Equal(t, "generation", payload.Details["limiter"])

	require.Equal(t, fiber.StatusCreated, send("edu-2").StatusCode, "other users keep their own budget")
}
