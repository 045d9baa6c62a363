package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
	Meta    any    `json:"meta,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respond(c *fiber.Ctx, status int, body APIResponse) error {
	if body.Message == "" {
		body.Message = "success"
		if !body.Success {
			body.Message = "error"
		}
	}
	if status == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(body)
}

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data any) error {
	return respond(c, fiber.StatusOK, APIResponse{Success: true, Data: data, Message: message})
}

// SendSuccessWithStatus is SendSuccess with an explicit status, e.g. 201 or 202.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data any) error {
	return respond(c, status, APIResponse{Success: true, Data: data, Message: message})
}

// OK answers 200 with a list and its pagination metadata.
func OK(c *fiber.Ctx, data any, message string, meta any) error {
	return respond(c, fiber.StatusOK, APIResponse{Success: true, Data: data, Message: message, Meta: meta})
}

// SendError answers with a bare error message.
func SendError(c *fiber.Ctx, status int, message string) error {
	return respond(c, status, APIResponse{Message: message})
}

// Fail answers with an error message and structured details such as a failing stage.
func Fail(c *fiber.Ctx, status int, message string, details any) error {
	return respond(c, status, APIResponse{Message: message, Details: details})
}
