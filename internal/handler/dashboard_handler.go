package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/middleware"
	"github.com/noah-isme/algogenius-api/internal/service"
	"github.com/noah-isme/algogenius-api/internal/utils"
)

// DashboardHandler serves the cached per-role dashboards.
type DashboardHandler struct {
	service service.DashboardService
	logger  zerolog.Logger
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(service service.DashboardService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		logger:  logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// Register binds dashboard routes.
func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("/student", middleware.WithAuth(h.student, middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
	router.Get("/educator", middleware.WithAuth(h.educator, middleware.AuthOptions{Role: middleware.AuthRoleEducator}))
}

func (h *DashboardHandler) student(c *fiber.Ctx) error {
	dashboard, err := h.service.Student(requestContext(c), middleware.UserID(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "student dashboard", dashboard)
}

func (h *DashboardHandler) educator(c *fiber.Ctx) error {
	dashboard, err := h.service.Educator(requestContext(c), middleware.UserID(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "educator dashboard", dashboard)
}
