package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/middleware"
	"github.com/noah-isme/algogenius-api/internal/service"
	"github.com/noah-isme/algogenius-api/internal/utils"
)

// LearningHandler exposes practice quizzes and study plans.
type LearningHandler struct {
	service service.LearningService
	logger  zerolog.Logger
}

// NewLearningHandler constructs a learning handler.
func NewLearningHandler(service service.LearningService, logger zerolog.Logger) *LearningHandler {
	return &LearningHandler{
		service: service,
		logger:  logger.With().Str("component", "learning_handler").Logger(),
	}
}

// Register binds learning routes behind the supplied limiter.
func (h *LearningHandler) Register(router fiber.Router, limit fiber.Handler) {
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}
	router.Post("/quiz", limit, middleware.WithAuth(h.quiz, middleware.AuthOptions{RequireUser: true}))
	router.Post("/study-plan", limit, middleware.WithAuth(h.studyPlan, middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
}

func (h *LearningHandler) quiz(c *fiber.Ctx) error {
	var payload dto.QuizRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	quiz, err := h.service.Quiz(requestContext(c), middleware.UserID(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "quiz generated", quiz)
}

func (h *LearningHandler) studyPlan(c *fiber.Ctx) error {
	var payload dto.StudyPlanRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	plan, err := h.service.StudyPlan(requestContext(c), middleware.UserID(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "study plan generated", plan)
}
