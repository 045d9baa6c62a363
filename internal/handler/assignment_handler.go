package handler

import (
	"errors"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/middleware"
	"github.com/noah-isme/algogenius-api/internal/service"
	"github.com/noah-isme/algogenius-api/internal/utils"
)

// AssignmentHandler exposes the assignment lifecycle, including submission and the pipeline that follows it.
type AssignmentHandler struct {
	assignments service.AssignmentService
	pipeline    service.PipelineService
	logger      zerolog.Logger
}

// NewAssignmentHandler constructs an assignment handler.
func NewAssignmentHandler(assignments service.AssignmentService, pipeline service.PipelineService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assignments: assignments,
		pipeline:    pipeline,
		logger:      logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register binds assignment routes. submitLimit guards the endpoints that call the generative backend.
func (h *AssignmentHandler) Register(router fiber.Router, submitLimit fiber.Handler) {
	educator := middleware.AuthOptions{Role: middleware.AuthRoleEducator}
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}
	member := middleware.AuthOptions{Role: middleware.AuthRoleMember}
	if submitLimit == nil {
		submitLimit = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Post("/", middleware.WithAuth(h.create, educator))
	router.Get("/", middleware.WithAuth(h.list, member))
	router.Get("/:id", middleware.WithAuth(h.get, member))
	router.Post("/:id/assign", middleware.WithAuth(h.assign, educator))
	router.Post("/:id/submit", submitLimit, middleware.WithAuth(h.submit, student))
	router.Post("/:id/resume", submitLimit, middleware.WithAuth(h.resume, student))
	router.Get("/:id/pipeline", middleware.WithAuth(h.pipelineStatus, member))
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.assignments.CreateDraft(requestContext(c), middleware.UserID(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) assign(c *fiber.Ctx) error {
	var payload dto.AssignmentAssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.assignments.Assign(requestContext(c), middleware.UserID(c), c.Params("id"), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment assigned", assignment)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	var query dto.AssignmentListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	var (
		items []dto.AssignmentResponse
		meta  dto.PaginationMeta
		err   error
	)
	switch middleware.UserRole(c) {
	case middleware.AuthRoleEducator:
		items, meta, err = h.assignments.ListForEducator(requestContext(c), middleware.UserID(c), query)
	case middleware.AuthRoleStudent:
		items, meta, err = h.assignments.ListForStudent(requestContext(c), middleware.UserID(c), query)
	default:
		return utils.SendError(c, fiber.StatusForbidden, "profile required")
	}
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.OK(c, items, "assignments retrieved", meta)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	assignment, err := h.assignments.Get(requestContext(c), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	var file *multipart.FileHeader
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		upload, err := c.FormFile("file")
		if err != nil && !errors.Is(err, fasthttp.ErrMissingFile) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid file upload")
		}
		file = upload
	}

	result, err := h.pipeline.Submit(requestContext(c), middleware.UserID(c), c.Params("id"), payload, file)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission evaluated", result)
}

func (h *AssignmentHandler) resume(c *fiber.Ctx) error {
	result, err := h.pipeline.Resume(requestContext(c), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "pipeline resumed", result)
}

func (h *AssignmentHandler) pipelineStatus(c *fiber.Ctx) error {
	run, err := h.pipeline.Status(requestContext(c), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "pipeline status", run)
}
