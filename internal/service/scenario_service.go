package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/flows"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/internal/repository"
)

// ScenarioGenerator is the generation step used by scenario creation paths.
type ScenarioGenerator interface {
	Generate(ctx context.Context, input flows.ScenarioInput) (*flows.ScenarioOutput, error)
}

// ScenarioService generates and serves scenarios.
type ScenarioService interface {
	Generate(ctx context.Context, educatorID string, payload dto.ScenarioGenerateRequest) (dto.ScenarioResponse, error)
	Get(ctx context.Context, userID, id string) (dto.ScenarioResponse, error)
	List(ctx context.Context, educatorID string, page, pageSize int) ([]dto.ScenarioResponse, dto.PaginationMeta, error)
}

type scenarioService struct {
	scenarios   repository.ScenarioRepository
	assignments repository.AssignmentRepository
	roster      repository.RosterRepository
	users       repository.UserRepository
	generator   ScenarioGenerator
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewScenarioService builds the scenario service.
func NewScenarioService(
	scenarios repository.ScenarioRepository,
	assignments repository.AssignmentRepository,
	roster repository.RosterRepository,
	users repository.UserRepository,
	generator ScenarioGenerator,
	validate *validator.Validate,
	logger zerolog.Logger,
) ScenarioService {
	return &scenarioService{
		scenarios:   scenarios,
		assignments: assignments,
		roster:      roster,
		users:       users,
		generator:   generator,
		validator:   validate,
		logger:      logger.With().Str("component", "scenario_service").Logger(),
	}
}

func (s *scenarioService) Generate(ctx context.Context, educatorID string, payload dto.ScenarioGenerateRequest) (dto.ScenarioResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ScenarioResponse{}, err
	}
	if err := requireRole(ctx, s.users, educatorID, models.RoleEducator); err != nil {
		return dto.ScenarioResponse{}, err
	}

	guidance := cleanText(payload.Guidance)
	output, err := s.generator.Generate(ctx, flows.ScenarioInput{
		Theme:      payload.Theme,
		Concepts:   payload.Concepts,
		Difficulty: payload.Difficulty,
		Guidance:   guidance,
	})
	if err != nil {
		return dto.ScenarioResponse{}, err
	}

	scenario := newScenarioModel(educatorID, output, guidance)
	if err := s.scenarios.Create(ctx, &scenario); err != nil {
		return dto.ScenarioResponse{}, err
	}

	s.logger.Info().
		Str("scenario_id", scenario.ID).
		Str("educator_id", educatorID).
		Str("concept", scenario.PrimaryConcept).
		Str("difficulty", scenario.Difficulty).
		Msg("scenario generated")
	return dto.NewScenarioResponse(scenario), nil
}

func (s *scenarioService) Get(ctx context.Context, userID, id string) (dto.ScenarioResponse, error) {
	scenario, err := s.scenarios.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ScenarioResponse{}, ErrScenarioNotFound
		}
		return dto.ScenarioResponse{}, err
	}

	if scenario.CreatedBy != userID {
		allowed, err := s.canRead(ctx, userID, scenario.ID)
		if err != nil {
			return dto.ScenarioResponse{}, err
		}
		if !allowed {
			return dto.ScenarioResponse{}, forbidden("scenario %s is not shared with you", scenario.ID)
		}
	}

	return dto.NewScenarioResponse(scenario), nil
}

// canRead allows students assigned the scenario, and educators who own an
// assignment of it or have the assigned student on their roster.
func (s *scenarioService) canRead(ctx context.Context, userID, scenarioID string) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}

	if user.IsStudent() {
		_, total, err := s.assignments.List(ctx, repository.AssignmentFilter{ScenarioID: scenarioID, StudentID: userID, PageSize: 1})
		return total > 0, err
	}

	assignments, _, err := s.assignments.List(ctx, repository.AssignmentFilter{ScenarioID: scenarioID})
	if err != nil {
		return false, err
	}
	for _, assignment := range assignments {
		if assignment.EducatorID == userID {
			return true, nil
		}
		if assignment.StudentID != nil {
			onRoster, err := s.roster.Contains(ctx, userID, *assignment.StudentID)
			if err != nil {
				return false, err
			}
			if onRoster {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *scenarioService) List(ctx context.Context, educatorID string, page, pageSize int) ([]dto.ScenarioResponse, dto.PaginationMeta, error) {
	if err := requireRole(ctx, s.users, educatorID, models.RoleEducator); err != nil {
		return nil, dto.PaginationMeta{}, err
	}
	page, pageSize = normalizePage(page, pageSize)

	items, total, err := s.scenarios.ListByCreator(ctx, educatorID, page, pageSize)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}
	return dto.NewScenarioResponseSlice(items), dto.NewPaginationMeta(page, pageSize, total), nil
}

func newScenarioModel(createdBy string, output *flows.ScenarioOutput, guidance string) models.Scenario {
	hints := make([]models.ScenarioHint, len(output.Hints))
	for i, hint := range output.Hints {
		hints[i] = models.ScenarioHint{Position: i, Text: hint}
	}
	cases := make([]models.ScenarioTestCase, len(output.TestCases))
	for i, tc := range output.TestCases {
		cases[i] = models.ScenarioTestCase{
			Position:    i,
			Input:       tc.Input,
			Output:      tc.Output,
			IsEdgeCase:  tc.IsEdgeCase,
			Explanation: tc.Explanation,
		}
	}
	return models.Scenario{
		CreatedBy:      createdBy,
		Theme:          output.Theme,
		Difficulty:     output.Difficulty,
		PrimaryConcept: output.PrimaryConcept,
		Concepts:       output.Concepts,
		Guidance:       guidance,
		Content:        output.Content,
		Hints:          hints,
		TestCases:      cases,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
