package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/middleware"
	"github.com/noah-isme/algogenius-api/internal/service"
	"github.com/noah-isme/algogenius-api/internal/utils"
)

// ActivityHandler exposes the audit trail.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches activity routes to the router group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/", middleware.WithAuth(h.list, middleware.AuthOptions{Role: middleware.AuthRoleMember}))
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	var query dto.ActivityListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	items, meta, err := h.service.ListForUser(requestContext(c), middleware.UserID(c), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.OK(c, items, "activity retrieved", meta)
}
