package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/algogenius-api/internal/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func TestResponseEnvelopes(t *testing.T) {
	cases := []struct {
		name    string
		handler fiber.Handler
		status  int
		success bool
		message string
		data    string
		meta    string
		details string
	}{
		{
			name: "success defaults message",
			handler: func(c *fiber.Ctx) error {
				return utils.SendSuccess(c, "", map[string]string{"id": "a-1"})
			},
			status: fiber.StatusOK, success: true, message: "success", data: `{"id":"a-1"}`,
		},
		{
			name: "created status",
			handler: func(c *fiber.Ctx) error {
				return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "scenario generated", map[string]int{"hints": 3})
			},
			status: fiber.StatusCreated, success: true, message: "scenario generated", data: `{"hints":3}`,
		},
		{
			name: "list with pagination meta",
			handler: func(c *fiber.Ctx) error {
				return utils.OK(c, []string{"a-1", "a-2"}, "assignments retrieved", map[string]int{"page": 1, "total_items": 2})
			},
			status: fiber.StatusOK, success: true, message: "assignments retrieved",
			data: `["a-1","a-2"]`, meta: `{"page":1,"total_items":2}`,
		},
		{
			name: "error without details",
			handler: func(c *fiber.Ctx) error {
				return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
			},
			status: fiber.StatusNotFound, message: "assignment not found",
		},
		{
			name: "failure with stage details",
			handler: func(c *fiber.Ctx) error {
				return utils.Fail(c, fiber.StatusBadGateway, "", map[string]string{"stage": "goal_update"})
			},
			status: fiber.StatusBadGateway, message: "error", details: `{"stage":"goal_update"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", tc.handler)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.status, resp.StatusCode)

			var body envelope
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, tc.success, body.Success)
			require.Equal(t, tc.message, body.Message)
			assertJSON(t, tc.data, body.Data)
			assertJSON(t, tc.meta, body.Meta)
			assertJSON(t, tc.details, body.Details)
		})
	}
}

func assertJSON(t *testing.T, expected string, actual json.RawMessage) {
	t.Helper()
	if expected == "" {
		require.Empty(t, actual)
		return
	}
	require.JSONEq(t, expected, string(actual))
}
