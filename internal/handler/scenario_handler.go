package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/middleware"
	"github.com/noah-isme/algogenius-api/internal/service"
	"github.com/noah-isme/algogenius-api/internal/utils"
)

// ScenarioHandler exposes scenario generation and lookup.
type ScenarioHandler struct {
	service service.ScenarioService
	logger  zerolog.Logger
}

// NewScenarioHandler constructs a scenario handler.
func NewScenarioHandler(service service.ScenarioService, logger zerolog.Logger) *ScenarioHandler {
	return &ScenarioHandler{
		service: service,
		logger:  logger.With().Str("component", "scenario_handler").Logger(),
	}
}

// Register binds scenario routes. generate is the handler for POST / so callers can rate limit it.
func (h *ScenarioHandler) Register(router fiber.Router, generateLimit fiber.Handler) {
	educator := middleware.AuthOptions{Role: middleware.AuthRoleEducator}
	if generateLimit == nil {
		generateLimit = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Post("/", generateLimit, middleware.WithAuth(h.generate, educator))
	router.Get("/", middleware.WithAuth(h.list, educator))
	router.Get("/:id", middleware.WithAuth(h.get, middleware.AuthOptions{RequireUser: true}))
}

func (h *ScenarioHandler) generate(c *fiber.Ctx) error {
	var payload dto.ScenarioGenerateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	scenario, err := h.service.Generate(requestContext(c), middleware.UserID(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "scenario generated", scenario)
}

func (h *ScenarioHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	items, meta, err := h.service.List(requestContext(c), middleware.UserID(c), page, pageSize)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.OK(c, items, "scenarios retrieved", meta)
}

func (h *ScenarioHandler) get(c *fiber.Ctx) error {
	scenario, err := h.service.Get(requestContext(c), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "scenario retrieved", scenario)
}
