package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/internal/repository"
)

// AssignmentService exposes assignment domain use cases.
type AssignmentService interface {
	CreateDraft(ctx context.Context, educatorID string, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Assign(ctx context.Context, educatorID, assignmentID string, payload dto.AssignmentAssignRequest) (dto.AssignmentResponse, error)
	ListForEducator(ctx context.Context, educatorID string, query dto.AssignmentListQuery) ([]dto.AssignmentResponse, dto.PaginationMeta, error)
	ListForStudent(ctx context.Context, studentID string, query dto.AssignmentListQuery) ([]dto.AssignmentResponse, dto.PaginationMeta, error)
	Get(ctx context.Context, userID, assignmentID string) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	scenarios   repository.ScenarioRepository
	roster      repository.RosterRepository
	users       repository.UserRepository
	notifier    Notifier
	cache       DashboardInvalidator
	activity    ActivityRecorder
	validator   *validator.Validate
	defaultDue  time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// AssignmentServiceDeps groups the collaborators of the assignment service.
type AssignmentServiceDeps struct {
	Assignments repository.AssignmentRepository
	Scenarios   repository.ScenarioRepository
	Roster      repository.RosterRepository
	Users       repository.UserRepository
	Notifier    Notifier
	Cache       DashboardInvalidator
	Activity    ActivityRecorder
	Validator   *validator.Validate
	DefaultDue  time.Duration
	Logger      zerolog.Logger
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(deps AssignmentServiceDeps) AssignmentService {
	due := deps.DefaultDue
	if due <= 0 {
		due = 7 * 24 * time.Hour
	}
	return &assignmentService{
		assignments: deps.Assignments,
		scenarios:   deps.Scenarios,
		roster:      deps.Roster,
		users:       deps.Users,
		notifier:    deps.Notifier,
		cache:       deps.Cache,
		activity:    deps.Activity,
		validator:   deps.Validator,
		defaultDue:  due,
		logger:      deps.Logger.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentService) CreateDraft(ctx context.Context, educatorID string, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := requireRole(ctx, s.users, educatorID, models.RoleEducator); err != nil {
		return dto.AssignmentResponse{}, err
	}

	scenario, err := s.scenarios.GetByID(ctx, payload.ScenarioID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrScenarioNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	assignment := models.Assignment{
		EducatorID: educatorID,
		ScenarioID: scenario.ID,
		Status:     models.AssignmentStatusDraft,
		Concept:    scenario.PrimaryConcept,
		Difficulty: scenario.Difficulty,
		Notes:      cleanText(payload.Notes),
	}
	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}
	assignment.Scenario = &scenario

	s.invalidateEducator(ctx, educatorID)
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    educatorID,
		ActorRole:  models.RoleEducator,
		Action:     models.ActivityAssignmentCreated,
		EntityType: "assignment",
		EntityID:   assignment.ID,
		Metadata:   map[string]interface{}{"scenario_id": scenario.ID},
	})
	s.logger.Info().Str("assignment_id", assignment.ID).Str("scenario_id", scenario.ID).Msg("draft assignment created")
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Assign(ctx context.Context, educatorID, assignmentID string, payload dto.AssignmentAssignRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := requireRole(ctx, s.users, educatorID, models.RoleEducator); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if assignment.EducatorID != educatorID {
		return dto.AssignmentResponse{}, forbidden("assignment %s belongs to another educator", assignment.ID)
	}
	if !models.CanTransition(assignment.Status, models.AssignmentStatusAssigned) {
		return dto.AssignmentResponse{}, ErrInvalidTransition
	}

	onRoster, err := s.roster.Contains(ctx, educatorID, payload.StudentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !onRoster {
		return dto.AssignmentResponse{}, forbidden("student %s is not on your roster", payload.StudentID)
	}

	now := s.now()
	due, err := payload.ParseDueDate()
	if err != nil {
		return dto.AssignmentResponse{}, invalidRequest("invalid due date: %v", err)
	}
	if due == nil {
		at := now.Add(s.defaultDue)
		due = &at
	}
	if !due.After(now) {
		return dto.AssignmentResponse{}, invalidRequest("due date must be in the future")
	}

	applied, err := s.assignments.Assign(ctx, assignment.ID, educatorID, payload.StudentID, due.UTC())
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !applied {
		return dto.AssignmentResponse{}, ErrInvalidTransition
	}

	assigned, err := s.load(ctx, assignment.ID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	notifyAsync(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		UserID:      payload.StudentID,
		Type:        models.NotificationAssignmentGiven,
		Message:     fmt.Sprintf("New %s %s assignment is waiting for you.", assigned.Difficulty, assigned.Concept),
		ReferenceID: assigned.ID,
	})
	s.invalidateEducator(ctx, educatorID)
	if s.cache != nil {
		s.cache.InvalidateStudent(ctx, payload.StudentID)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    educatorID,
		ActorRole:  models.RoleEducator,
		Action:     models.ActivityAssignmentAssigned,
		EntityType: "assignment",
		EntityID:   assigned.ID,
		StudentID:  payload.StudentID,
		Metadata:   map[string]interface{}{"due_date": due.UTC().Format(time.RFC3339)},
	})
	s.logger.Info().Str("assignment_id", assigned.ID).Str("student_id", payload.StudentID).Msg("assignment assigned")
	return dto.NewAssignmentResponse(assigned), nil
}

func (s *assignmentService) ListForEducator(ctx context.Context, educatorID string, query dto.AssignmentListQuery) ([]dto.AssignmentResponse, dto.PaginationMeta, error) {
	if err := requireRole(ctx, s.users, educatorID, models.RoleEducator); err != nil {
		return nil, dto.PaginationMeta{}, err
	}
	return s.list(ctx, repository.AssignmentFilter{EducatorID: educatorID}, query)
}

func (s *assignmentService) ListForStudent(ctx context.Context, studentID string, query dto.AssignmentListQuery) ([]dto.AssignmentResponse, dto.PaginationMeta, error) {
	if err := requireRole(ctx, s.users, studentID, models.RoleStudent); err != nil {
		return nil, dto.PaginationMeta{}, err
	}
	return s.list(ctx, repository.AssignmentFilter{StudentID: studentID}, query)
}

func (s *assignmentService) list(ctx context.Context, filter repository.AssignmentFilter, query dto.AssignmentListQuery) ([]dto.AssignmentResponse, dto.PaginationMeta, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, dto.PaginationMeta{}, err
	}
	filter.Status = query.Status
	filter.Page, filter.PageSize = normalizePage(query.Page, query.PageSize)

	items, total, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}
	return dto.NewAssignmentResponseSlice(items), dto.NewPaginationMeta(filter.Page, filter.PageSize, total), nil
}

func (s *assignmentService) Get(ctx context.Context, userID, assignmentID string) (dto.AssignmentResponse, error) {
	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := canViewAssignment(ctx, s.roster, userID, assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) load(ctx context.Context, id string) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (s *assignmentService) invalidateEducator(ctx context.Context, educatorID string) {
	if s.cache != nil {
		s.cache.InvalidateEducator(ctx, educatorID)
	}
}

// canViewAssignment allows the bound student, the owning educator, and
// educators who have the bound student on their roster.
func canViewAssignment(ctx context.Context, roster repository.RosterRepository, userID string, assignment models.Assignment) error {
	if assignment.BelongsTo(userID) || assignment.EducatorID == userID {
		return nil
	}
	if assignment.StudentID != nil {
		onRoster, err := roster.Contains(ctx, userID, *assignment.StudentID)
		if err != nil {
			return err
		}
		if onRoster {
			return nil
		}
	}
	return forbidden("assignment %s is not visible to you", assignment.ID)
}
