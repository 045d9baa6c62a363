package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/flows"
	"github.com/noah-isme/algogenius-api/internal/repository"
)

// QuizGenerator produces practice quizzes.
type QuizGenerator interface {
	Generate(ctx context.Context, input flows.QuizInput) (*flows.Quiz, error)
}

// StudyPlanGenerator produces weekly study plans.
type StudyPlanGenerator interface {
	Generate(ctx context.Context, input flows.StudyPlanInput) (*flows.StudyPlan, error)
}

// LearningService serves practice material that is not stored.
type LearningService interface {
	Quiz(ctx context.Context, userID string, payload dto.QuizRequest) (dto.QuizResponse, error)
	StudyPlan(ctx context.Context, studentID string, payload dto.StudyPlanRequest) (dto.StudyPlanResponse, error)
}

type learningService struct {
	users     repository.UserRepository
	quizzes   QuizGenerator
	plans     StudyPlanGenerator
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewLearningService wires the quiz and study plan flows.
func NewLearningService(users repository.UserRepository, quizzes QuizGenerator, plans StudyPlanGenerator, validate *validator.Validate, logger zerolog.Logger) LearningService {
	return &learningService{
		users:     users,
		quizzes:   quizzes,
		plans:     plans,
		validator: validate,
		logger:    logger.With().Str("component", "learning_service").Logger(),
	}
}

func (s *learningService) Quiz(ctx context.Context, userID string, payload dto.QuizRequest) (dto.QuizResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuizResponse{}, err
	}
	if _, err := loadUser(ctx, s.users, userID); err != nil {
		return dto.QuizResponse{}, err
	}

	quiz, err := s.quizzes.Generate(ctx, flows.QuizInput{
		Concept:    cleanText(payload.Concept),
		Difficulty: payload.Difficulty,
		Count:      payload.Count,
	})
	if err != nil {
		return dto.QuizResponse{}, err
	}

	s.logger.Info().Str("user_id", userID).Str("concept", quiz.Concept).Int("questions", len(quiz.Questions)).Msg("quiz generated")
	return dto.QuizResponse{
		Concept:    quiz.Concept,
		Difficulty: quiz.Difficulty,
		Questions:  quiz.Questions,
	}, nil
}

func (s *learningService) StudyPlan(ctx context.Context, studentID string, payload dto.StudyPlanRequest) (dto.StudyPlanResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudyPlanResponse{}, err
	}
	student, err := loadUser(ctx, s.users, studentID)
	if err != nil {
		return dto.StudyPlanResponse{}, err
	}
	if !student.IsStudent() {
		return dto.StudyPlanResponse{}, forbidden("study plans are only available to students")
	}

	goal := cleanText(payload.Goal)
	if goal == "" {
		goal = strings.TrimSpace(student.CurrentGoal)
	}
	if goal == "" {
		goal = flows.DefaultGoal().NextGoal
	}

	concepts := make([]string, 0, len(payload.Concepts))
	for _, concept := range payload.Concepts {
		if cleaned := cleanText(concept); cleaned != "" {
			concepts = append(concepts, cleaned)
		}
	}

	plan, err := s.plans.Generate(ctx, flows.StudyPlanInput{
		Goal:     goal,
		Concepts: concepts,
		Weeks:    payload.Weeks,
	})
	if err != nil {
		return dto.StudyPlanResponse{}, err
	}

	s.logger.Info().Str("student_id", studentID).Int("weeks", len(plan.Weeks)).Msg("study plan generated")
	return dto.StudyPlanResponse{
		Goal:    goal,
		Summary: plan.Summary,
		Weeks:   plan.Weeks,
	}, nil
}
