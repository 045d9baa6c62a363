package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/flows"
	"github.com/noah-isme/algogenius-api/internal/middleware"
	"github.com/noah-isme/algogenius-api/internal/service"
	"github.com/noah-isme/algogenius-api/internal/utils"
	"github.com/noah-isme/algogenius-api/pkg/ai"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// handleError maps service and flow errors onto the response envelope.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	status, message := errorStatus(err)

	var details interface{}
	var pipelineErr *service.PipelineError
	if errors.As(err, &pipelineErr) {
		details = fiber.Map{
			"stage":          pipelineErr.Stage,
			"last_completed": pipelineErr.LastCompleted,
		}
	}

	if status >= fiber.StatusInternalServerError {
		requestLogger(logger, c).Error().Err(err).Int("status", status).Msg("request failed")
	}

	return utils.Fail(c, status, message, details)
}

func errorStatus(err error) (int, string) {
	var validationErrors validator.ValidationErrors
	var outputErr *ai.ValidationError
	var generationErr *ai.GenerationError

	switch {
	case errors.As(err, &validationErrors):
		return fiber.StatusBadRequest, validationErrors.Error()
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, flows.ErrInvalidInput):
		return fiber.StatusBadRequest, err.Error()
	case errors.As(err, &outputErr):
		return fiber.StatusUnprocessableEntity, outputErr.Error()
	case errors.As(err, &generationErr):
		return fiber.StatusBadGateway, "content generation failed, try again"
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrConflict):
		return fiber.StatusConflict, err.Error()
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}
