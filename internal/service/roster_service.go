package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/internal/repository"
)

// RosterService manages an educator's students.
type RosterService interface {
	AddStudent(ctx context.Context, educatorID string, payload dto.RosterAddRequest) (dto.RosterEntryResponse, error)
	RemoveStudent(ctx context.Context, educatorID, studentID string) error
	List(ctx context.Context, educatorID string) ([]dto.RosterEntryResponse, error)
}

type rosterService struct {
	roster    repository.RosterRepository
	users     repository.UserRepository
	cache     DashboardInvalidator
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRosterService builds the roster service.
func NewRosterService(roster repository.RosterRepository, users repository.UserRepository, cache DashboardInvalidator, validate *validator.Validate, logger zerolog.Logger) RosterService {
	return &rosterService{
		roster:    roster,
		users:     users,
		cache:     cache,
		validator: validate,
		logger:    logger.With().Str("component", "roster_service").Logger(),
	}
}

func (s *rosterService) AddStudent(ctx context.Context, educatorID string, payload dto.RosterAddRequest) (dto.RosterEntryResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RosterEntryResponse{}, err
	}
	if err := requireRole(ctx, s.users, educatorID, models.RoleEducator); err != nil {
		return dto.RosterEntryResponse{}, err
	}

	student, err := s.users.GetByID(ctx, payload.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RosterEntryResponse{}, ErrUserNotFound
		}
		return dto.RosterEntryResponse{}, err
	}
	if !student.IsStudent() {
		return dto.RosterEntryResponse{}, invalidRequest("user %s is not a student", student.ID)
	}

	entry := models.RosterEntry{EducatorID: educatorID, StudentID: student.ID}
	if err := s.roster.Add(ctx, &entry); err != nil {
		return dto.RosterEntryResponse{}, err
	}
	entry.Student = student

	s.invalidate(ctx, educatorID)
	s.logger.Info().Str("educator_id", educatorID).Str("student_id", student.ID).Msg("student added to roster")
	return dto.NewRosterEntryResponse(entry), nil
}

func (s *rosterService) RemoveStudent(ctx context.Context, educatorID, studentID string) error {
	if err := requireRole(ctx, s.users, educatorID, models.RoleEducator); err != nil {
		return err
	}
	removed, err := s.roster.Remove(ctx, educatorID, studentID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrRosterEntryNotFound
	}
	s.invalidate(ctx, educatorID)
	return nil
}

func (s *rosterService) List(ctx context.Context, educatorID string) ([]dto.RosterEntryResponse, error) {
	if err := requireRole(ctx, s.users, educatorID, models.RoleEducator); err != nil {
		return nil, err
	}
	entries, err := s.roster.List(ctx, educatorID)
	if err != nil {
		return nil, err
	}
	return dto.NewRosterResponseSlice(entries), nil
}

func (s *rosterService) invalidate(ctx context.Context, educatorID string) {
	if s.cache != nil {
		s.cache.InvalidateEducator(ctx, educatorID)
	}
}

// requireRole loads the caller's stored profile and checks its role.
func requireRole(ctx context.Context, users repository.UserRepository, userID, role string) error {
	user, err := loadUser(ctx, users, userID)
	if err != nil {
		return err
	}
	if user.Role != role {
		return forbidden("%s role required", role)
	}
	return nil
}

func loadUser(ctx context.Context, users repository.UserRepository, userID string) (models.User, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
