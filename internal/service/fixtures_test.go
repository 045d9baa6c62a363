package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/database"
	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/internal/repository"
)

type testRepos struct {
	db          *gorm.DB
	users       repository.UserRepository
	roster      repository.RosterRepository
	scenarios   repository.ScenarioRepository
	assignments repository.AssignmentRepository
	goals       repository.LearningGoalRepository
	runs        repository.PipelineRunRepository
}

func setupRepos(t *testing.T) testRepos {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return testRepos{
		db:          db,
		users:       repository.NewUserRepository(db),
		roster:      repository.NewRosterRepository(db),
		scenarios:   repository.NewScenarioRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		goals:       repository.NewLearningGoalRepository(db),
		runs:        repository.NewPipelineRunRepository(db),
	}
}

func seedUser(t *testing.T, repos testRepos, id, role string) models.User {
	t.Helper()
	user := models.User{ID: id, Role: role, Email: id + "@example.com", Name: strings.ToUpper(id)}
	require.NoError(t, repos.users.Create(context.Background(), &user))
	return user
}

func seedRoster(t *testing.T, repos testRepos, educatorID, studentID string) {
	t.Helper()
	require.NoError(t, repos.roster.Add(context.Background(), &models.RosterEntry{EducatorID: educatorID, StudentID: studentID}))
}

func seedScenario(t *testing.T, repos testRepos, createdBy, concept string) models.Scenario {
	t.Helper()
	scenario := models.Scenario{
		CreatedBy:      createdBy,
		Theme:          "space",
		Difficulty:     models.DifficultyEasy,
		PrimaryConcept: concept,
		Concepts:       []string{concept},
		Content:        "Count the asteroids larger than the shield limit.",
		Hints: []models.ScenarioHint{
			{Position: 0, Text: "Visit each asteroid once."},
			{Position: 1, Text: "Keep a counter."},
			{Position: 2, Text: "Increment when size > limit."},
		},
		TestCases: []models.ScenarioTestCase{
			{Position: 0, Input: "[3,9,1] 2", Output: "2"},
			{Position: 1, Input: "[] 4", Output: "0", IsEdgeCase: true},
		},
	}
	require.NoError(t, repos.scenarios.Create(context.Background(), &scenario))
	return scenario
}

func seedAssigned(t *testing.T, repos testRepos, educatorID, studentID string, scenario models.Scenario) models.Assignment {
	t.Helper()
	due := time.Now().Add(48 * time.Hour)
	assignment := models.Assignment{
		EducatorID: educatorID,
		ScenarioID: scenario.ID,
		StudentID:  &studentID,
		DueDate:    &due,
		Status:     models.AssignmentStatusAssigned,
		Concept:    scenario.PrimaryConcept,
		Difficulty: scenario.Difficulty,
	}
	require.NoError(t, repos.assignments.Create(context.Background(), &assignment))
	return assignment
}

func seedCompleted(t *testing.T, repos testRepos, scenarioID, studentID, concept string, score int, evaluatedAt time.Time) {
	t.Helper()
	correct := score >= 60
	assignment := models.Assignment{
		EducatorID:  "edu-1",
		ScenarioID:  scenarioID,
		StudentID:   &studentID,
		Status:      models.AssignmentStatusCompleted,
		Concept:     concept,
		Difficulty:  models.DifficultyMedium,
		Score:       &score,
		IsCorrect:   &correct,
		EvaluatedAt: &evaluatedAt,
	}
	require.NoError(t, repos.assignments.Create(context.Background(), &assignment))
}

type stubNotifier struct {
	mu       sync.Mutex
	payloads []dto.NotificationCreateRequest
}

func (n *stubNotifier) Publish(_ context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
	return dto.NotificationResponse{UserID: payload.UserID, Type: payload.Type, Message: payload.Message}, nil
}

func (n *stubNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.payloads))
	for _, p := range n.payloads {
		out = append(out, p.Type)
	}
	return out
}

type recordingCache struct {
	mu        sync.Mutex
	students  []string
	educators []string
}

func (c *recordingCache) InvalidateStudent(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.students = append(c.students, id)
}

func (c *recordingCache) InvalidateEducator(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.educators = append(c.educators, id)
}

func newValidator() *validator.Validate {
	return validator.New()
}

func scenarioResponse(concept string) map[string]any {
	return map[string]any{
		"content":         "Pilots log fuel readings. Find the first reading that repeats.",
		"primary_concept": concept,
		"hints": []string{
			"Remember what you have already seen.",
			"A set gives constant-time lookups.",
			"Return the first value already in the set.",
		},
		"test_cases": []map[string]any{
			{"input": "[1,2,1]", "output": "1", "is_edge_case": false, "explanation": "1 repeats"},
			{"input": "[4,5,5,4]", "output": "5", "is_edge_case": false, "explanation": "5 repeats first"},
			{"input": "[7,8,9,7]", "output": "7", "is_edge_case": false, "explanation": "7 repeats at the end"},
			{"input": "[]", "output": "-1", "is_edge_case": true, "explanation": "nothing repeats"},
		},
	}
}

func assessmentResponse(correct bool, score int) map[string]any {
	return map[string]any{
		"is_correct": correct,
		"score":      score,
		"feedback":   "The loop works but the empty input crashes.",
	}
}

func goalResponse(text, concept, difficulty string) map[string]any {
	return map[string]any{
		"next_goal":              text,
		"weakest_concept":        concept,
		"recommended_difficulty": difficulty,
	}
}
