package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/flows"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/internal/observability"
	"github.com/noah-isme/algogenius-api/internal/repository"
)

const upcomingLimit = 5

// DashboardService aggregates progress views and caches them in Redis.
type DashboardService interface {
	Student(ctx context.Context, studentID string) (dto.StudentDashboardResponse, error)
	Educator(ctx context.Context, educatorID string) (dto.EducatorDashboardResponse, error)
	DashboardInvalidator
}

type dashboardService struct {
	users       repository.UserRepository
	roster      repository.RosterRepository
	assignments repository.AssignmentRepository
	goals       repository.LearningGoalRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewDashboardService builds the dashboard aggregator. A nil cache disables caching.
func NewDashboardService(
	users repository.UserRepository,
	roster repository.RosterRepository,
	assignments repository.AssignmentRepository,
	goals repository.LearningGoalRepository,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) DashboardService {
	return &dashboardService{
		users:       users,
		roster:      roster,
		assignments: assignments,
		goals:       goals,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "dashboard_service").Logger(),
		now:         time.Now,
	}
}

func studentDashboardKey(id string) string  { return fmt.Sprintf("dashboard:student:%s", id) }
func educatorDashboardKey(id string) string { return fmt.Sprintf("dashboard:educator:%s", id) }

func (s *dashboardService) Student(ctx context.Context, studentID string) (dto.StudentDashboardResponse, error) {
	var response dto.StudentDashboardResponse
	if s.fromCache(ctx, "student", studentDashboardKey(studentID), &response) {
		return response, nil
	}

	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response, ErrUserNotFound
		}
		return response, err
	}
	if !student.IsStudent() {
		return response, forbidden("student dashboard is only available to students")
	}

	assignments, _, err := s.assignments.List(ctx, repository.AssignmentFilter{StudentID: studentID})
	if err != nil {
		return response, err
	}

	response = s.buildStudent(student, assignments)

	goal, err := s.goals.LatestForStudent(ctx, studentID)
	switch {
	case err == nil:
		latest := dto.NewLearningGoalResponse(goal)
		response.LatestGoal = &latest
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.StudentDashboardResponse{}, err
	}

	s.toCache(ctx, studentDashboardKey(studentID), response)
	return response, nil
}

func (s *dashboardService) buildStudent(student models.User, assignments []models.Assignment) dto.StudentDashboardResponse {
	counts := map[string]int{
		models.AssignmentStatusAssigned:  0,
		models.AssignmentStatusSubmitted: 0,
		models.AssignmentStatusCompleted: 0,
	}
	var (
		records  []flows.PerformanceRecord
		upcoming []models.Assignment
	)
	for _, assignment := range assignments {
		counts[assignment.Status]++
		if assignment.Status == models.AssignmentStatusCompleted && assignment.Score != nil {
			records = append(records, flows.PerformanceRecord{
				Concept:    assignment.Concept,
				Score:      *assignment.Score,
				Difficulty: assignment.Difficulty,
			})
		}
		if assignment.Status == models.AssignmentStatusAssigned {
			upcoming = append(upcoming, assignment)
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return dueBefore(upcoming[i], upcoming[j])
	})
	if len(upcoming) > upcomingLimit {
		upcoming = upcoming[:upcomingLimit]
	}

	return dto.StudentDashboardResponse{
		StatusCounts: counts,
		AverageScore: averageScore(records),
		Concepts:     conceptProgress(records),
		CurrentGoal:  student.CurrentGoal,
		Upcoming:     dto.NewAssignmentResponseSlice(upcoming),
		GeneratedAt:  s.now().UTC(),
	}
}

func (s *dashboardService) Educator(ctx context.Context, educatorID string) (dto.EducatorDashboardResponse, error) {
	var response dto.EducatorDashboardResponse
	if s.fromCache(ctx, "educator", educatorDashboardKey(educatorID), &response) {
		return response, nil
	}

	if err := requireRole(ctx, s.users, educatorID, models.RoleEducator); err != nil {
		return response, err
	}

	entries, err := s.roster.List(ctx, educatorID)
	if err != nil {
		return response, err
	}

	students := make([]dto.StudentProgress, 0, len(entries))
	for _, entry := range entries {
		assignments, _, err := s.assignments.List(ctx, repository.AssignmentFilter{StudentID: entry.StudentID})
		if err != nil {
			return response, err
		}
		students = append(students, studentProgress(entry.Student, assignments))
	}

	_, drafts, err := s.assignments.List(ctx, repository.AssignmentFilter{
		EducatorID: educatorID,
		Status:     models.AssignmentStatusDraft,
		PageSize:   1,
	})
	if err != nil {
		return response, err
	}

	response = dto.EducatorDashboardResponse{
		Students:    students,
		Drafts:      int(drafts),
		GeneratedAt: s.now().UTC(),
	}
	s.toCache(ctx, educatorDashboardKey(educatorID), response)
	return response, nil
}

func studentProgress(student models.User, assignments []models.Assignment) dto.StudentProgress {
	progress := dto.StudentProgress{
		StudentID:   student.ID,
		Name:        student.Name,
		Email:       student.Email,
		CurrentGoal: student.CurrentGoal,
	}
	var records []flows.PerformanceRecord
	for _, assignment := range assignments {
		progress.Assigned++
		if assignment.Status == models.AssignmentStatusCompleted && assignment.Score != nil {
			progress.Completed++
			records = append(records, flows.PerformanceRecord{Concept: assignment.Concept, Score: *assignment.Score})
		}
	}
	progress.AverageScore = averageScore(records)
	return progress
}

func (s *dashboardService) InvalidateStudent(ctx context.Context, studentID string) {
	s.invalidate(ctx, studentDashboardKey(studentID))
}

func (s *dashboardService) InvalidateEducator(ctx context.Context, educatorID string) {
	s.invalidate(ctx, educatorDashboardKey(educatorID))
}

func (s *dashboardService) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to invalidate dashboard cache")
	}
}

func (s *dashboardService) fromCache(ctx context.Context, dashboard, key string, target any) bool {
	if s.cache == nil {
		return false
	}

	cached, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observability.DashboardCache().WithLabelValues(dashboard, "miss").Inc()
		} else {
			observability.DashboardCache().WithLabelValues(dashboard, "error").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read dashboard cache")
		}
		return false
	}

	if err := json.Unmarshal(cached, target); err != nil {
		observability.DashboardCache().WithLabelValues(dashboard, "error").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding unreadable dashboard cache entry")
		return false
	}

	observability.DashboardCache().WithLabelValues(dashboard, "hit").Inc()
	s.logger.Debug().Str("key", key).Msg("dashboard cache hit")
	return true
}

func (s *dashboardService) toCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store dashboard cache")
	}
}

func averageScore(records []flows.PerformanceRecord) *float64 {
	if len(records) == 0 {
		return nil
	}
	total := 0
	for _, record := range records {
		total += record.Score
	}
	avg := float64(total) / float64(len(records))
	return &avg
}

func conceptProgress(records []flows.PerformanceRecord) []dto.ConceptProgress {
	stats := flows.AggregateHistory(records)
	out := make([]dto.ConceptProgress, 0, len(stats))
	for _, stat := range stats {
		out = append(out, dto.ConceptProgress{
			Concept:      stat.Concept,
			Attempts:     stat.Attempts,
			AverageScore: stat.Average(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AverageScore < out[j].AverageScore
	})
	return out
}

// dueBefore orders by due date, undated last.
func dueBefore(a, b models.Assignment) bool {
	switch {
	case a.DueDate == nil:
		return false
	case b.DueDate == nil:
		return true
	default:
		return a.DueDate.Before(*b.DueDate)
	}
}
