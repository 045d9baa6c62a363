package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/middleware"
	"github.com/noah-isme/algogenius-api/internal/service"
	"github.com/noah-isme/algogenius-api/internal/utils"
)

// UserHandler exposes profile and roster endpoints.
type UserHandler struct {
	users  service.UserService
	roster service.RosterService
	logger zerolog.Logger
}

// NewUserHandler constructs a user handler.
func NewUserHandler(users service.UserService, roster service.RosterService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		roster: roster,
		logger: logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register binds profile routes.
func (h *UserHandler) Register(router fiber.Router) {
	router.Post("/", middleware.WithAuth(h.register, middleware.AuthOptions{RequireUser: true}))
	router.Get("/me", middleware.WithAuth(h.me, middleware.AuthOptions{RequireUser: true}))
	router.Patch("/me", middleware.WithAuth(h.update, middleware.AuthOptions{RequireUser: true}))
}

// RegisterRoster binds the educator roster routes.
func (h *UserHandler) RegisterRoster(router fiber.Router) {
	educator := middleware.AuthOptions{Role: middleware.AuthRoleEducator}
	router.Get("/", middleware.WithAuth(h.listRoster, educator))
	router.Post("/", middleware.WithAuth(h.addToRoster, educator))
	router.Delete("/:studentId", middleware.WithAuth(h.removeFromRoster, educator))
}

func (h *UserHandler) register(c *fiber.Ctx) error {
	var payload dto.UserRegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	identity := service.Identity{
		Subject: middleware.UserID(c),
		Email:   middleware.UserEmail(c),
	}

	user, err := h.users.Register(requestContext(c), identity, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "profile created", user)
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	user, err := h.users.Get(requestContext(c), userID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	h.users.RecordLogin(requestContext(c), userID)

	return utils.SendSuccess(c, "profile retrieved", user)
}

func (h *UserHandler) update(c *fiber.Ctx) error {
	var payload dto.UserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.users.UpdateProfile(requestContext(c), middleware.UserID(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "profile updated", user)
}

func (h *UserHandler) listRoster(c *fiber.Ctx) error {
	entries, err := h.roster.List(requestContext(c), middleware.UserID(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "roster retrieved", entries)
}

func (h *UserHandler) addToRoster(c *fiber.Ctx) error {
	var payload dto.RosterAddRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	entry, err := h.roster.AddStudent(requestContext(c), middleware.UserID(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student added", entry)
}

func (h *UserHandler) removeFromRoster(c *fiber.Ctx) error {
	if err := h.roster.RemoveStudent(requestContext(c), middleware.UserID(c), c.Params("studentId")); err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "student removed", nil)
}
