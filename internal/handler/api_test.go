package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/config"
	"github.com/noah-isme/algogenius-api/internal/database"
	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/flows"
	"github.com/noah-isme/algogenius-api/internal/handler"
	"github.com/noah-isme/algogenius-api/internal/middleware"
	"github.com/noah-isme/algogenius-api/internal/repository"
	"github.com/noah-isme/algogenius-api/internal/router"
	"github.com/noah-isme/algogenius-api/internal/service"
	"github.com/noah-isme/algogenius-api/pkg/ai"
)

const testUserHeader = "X-Test-User"

type apiFixture struct {
	app           *fiber.App
	provider      *ai.MockProvider
	notifications service.NotificationService
}

func setupAPI(t *testing.T) apiFixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	validate := validator.New()
	logger := zerolog.New(io.Discard)
	provider := ai.NewMockProvider()

	users := repository.NewUserRepository(db)
	roster := repository.NewRosterRepository(db)
	scenarios := repository.NewScenarioRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	goals := repository.NewLearningGoalRepository(db)
	runs := repository.NewPipelineRunRepository(db)

	dashboards := service.NewDashboardService(users, roster, assignments, goals, nil, 0, logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validate, logger)
	userService := service.NewUserService(users, validate, logger)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), users, roster, validate, logger)
	rosterService := service.NewRosterService(roster, users, dashboards, validate, logger)
	scenarioFlow := flows.NewScenarioFlow(provider, logger)
	scenarioService := service.NewScenarioService(scenarios, assignments, roster, users, scenarioFlow, validate, logger)
	assignmentService := service.NewAssignmentService(service.AssignmentServiceDeps{
		Assignments: assignments,
		Scenarios:   scenarios,
		Roster:      roster,
		Users:       users,
		Notifier:    notifications,
		Cache:       dashboards,
		Activity:    activity,
		Validator:   validate,
		Logger:      logger,
	})
	pipeline := service.NewPipelineService(service.PipelineDeps{
		Users:       users,
		Roster:      roster,
		Scenarios:   scenarios,
		Assignments: assignments,
		Goals:       goals,
		Runs:        runs,
		Assessor:    flows.NewAssessmentFlow(provider, logger),
		GoalAgent:   flows.NewGoalAgent(provider, logger),
		Generator:   scenarioFlow,
		Notifier:    notifications,
		Cache:       dashboards,
		Activity:    activity,
		Validator:   validate,
		Logger:      logger,
	})
	learning := service.NewLearningService(users, flows.NewQuizFlow(provider, logger), flows.NewStudyPlanFlow(provider, logger), validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		UserHandler:         handler.NewUserHandler(userService, rosterService, logger),
		ScenarioHandler:     handler.NewScenarioHandler(scenarioService, logger),
		AssignmentHandler:   handler.NewAssignmentHandler(assignmentService, pipeline, logger),
		DashboardHandler:    handler.NewDashboardHandler(dashboards, logger),
		LearningHandler:     handler.NewLearningHandler(learning, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, 0),
		ActivityHandler:     handler.NewActivityHandler(activity, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if id := c.Get(testUserHeader); id != "" {
				c.Locals(middleware.LocalUserID, id)
				c.Locals(middleware.LocalUserEmail, id+"@example.com")
			}
			return c.Next()
		},
		RoleMiddleware: middleware.LoadRole(userService.Role),
		HealthProbes:   map[string]database.Probe{"database": database.SQLProbe(db)},
	})

	return apiFixture{app: app, provider: provider, notifications: notifications}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details map[string]any  `json:"details"`
}

func (f apiFixture) do(t *testing.T, method, path, user string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	}
	return resp.StatusCode, payload
}

func decodeData(t *testing.T, env envelope, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}

func (f apiFixture) register(t *testing.T, id, role string) {
	t.Helper()
	status, _ := f.do(t, http.MethodPost, "/api/v1/users", id, dto.UserRegisterRequest{Role: role, Name: strings.ToUpper(id)})
	require.Equal(t, fiber.StatusCreated, status)
}

func scenarioPayload(concept string) map[string]any {
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

func TestHealth(t *testing.T) {
	fx := setupAPI(t)

	status, body := fx.do(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, body.Success)
	require.Equal(t, "service healthy", body.Message)

	var health handler.HealthResponse
	require.NoError(t, json.Unmarshal(body.Data, &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, map[string]string{"database": "ok"}, health.Dependencies)
}

func TestProfileLifecycle(t *testing.T) {
	fx := setupAPI(t)

	status, _ := fx.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = fx.do(t, http.MethodGet, "/api/v1/users/me", "stu-1", nil)
	require.Equal(t, fiber.StatusNotFound, status)

	status, body := fx.do(t, http.MethodPost, "/api/v1/users", "stu-1", dto.UserRegisterRequest{Role: "admin", Name: "Ada"})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.False(t, body.Success)

	fx.register(t, "stu-1", "student")

	status, _ = fx.do(t, http.MethodPost, "/api/v1/users", "stu-1", dto.UserRegisterRequest{Role: "student", Name: "Ada"})
	require.Equal(t, fiber.StatusConflict, status)

	status, body = fx.do(t, http.MethodGet, "/api/v1/users/me", "stu-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	var user dto.UserResponse
	decodeData(t, body, &user)
	require.Equal(t, "stu-1", user.ID)
	require.Equal(t, "student", user.Role)
	require.Equal(t, "stu-1@example.com", user.Email)

	role := "educator"
	status, _ = fx.do(t, http.MethodPatch, "/api/v1/users/me", "stu-1", dto.UserUpdateRequest{Role: &role})
	require.Equal(t, fiber.StatusConflict, status)
}

func TestScenarioGenerationRequiresEducator(t *testing.T) {
	fx := setupAPI(t)
	fx.register(t, "edu-1", "educator")
	fx.register(t, "stu-1", "student")

	request := dto.ScenarioGenerateRequest{Theme: "space", Concepts: []string{"Hash Sets"}, Difficulty: "Easy"}

	status, _ := fx.do(t, http.MethodPost, "/api/v1/scenarios", "stu-1", request)
	require.Equal(t, fiber.StatusForbidden, status)
	require.Zero(t, fx.provider.CallCount())

	fx.provider.AddResponse(ai.JSON(scenarioPayload("Hash Sets")))
	status, body := fx.do(t, http.MethodPost, "/api/v1/scenarios", "edu-1", request)
	require.Equal(t, fiber.StatusCreated, status)

	var scenario dto.ScenarioResponse
	decodeData(t, body, &scenario)
	require.NotEmpty(t, scenario.ID)
	require.Equal(t, "Hash Sets", scenario.PrimaryConcept)
	require.Len(t, scenario.Hints, 3)
	require.Len(t, scenario.TestCases, 4)
}

func TestScenarioGenerationMapsModelErrors(t *testing.T) {
	fx := setupAPI(t)
	fx.register(t, "edu-1", "educator")
	request := dto.ScenarioGenerateRequest{Concepts: []string{"Graphs"}, Difficulty: "Hard"}

	fx.provider.AddResponse(ai.JSON(map[string]any{"content": "missing everything else"}))
	status, body := fx.do(t, http.MethodPost, "/api/v1/scenarios", "edu-1", request)
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.False(t, body.Success)

	fx.provider.AddResponse(ai.MockResponse{Err: &ai.GenerationError{Reason: ai.ReasonRateLimited}})
	status, _ = fx.do(t, http.MethodPost, "/api/v1/scenarios", "edu-1", request)
	require.Equal(t, fiber.StatusBadGateway, status)
}

func TestAssignmentSubmissionFlow(t *testing.T) {
	fx := setupAPI(t)
	fx.register(t, "edu-1", "educator")
	fx.register(t, "stu-1", "student")

	status, _ := fx.do(t, http.MethodPost, "/api/v1/roster", "edu-1", dto.RosterAddRequest{StudentID: "stu-1"})
	require.Equal(t, fiber.StatusCreated, status)

	fx.provider.AddResponse(ai.JSON(scenarioPayload("Arrays")))
	status, body := fx.do(t, http.MethodPost, "/api/v1/scenarios", "edu-1", dto.ScenarioGenerateRequest{Concepts: []string{"Arrays"}, Difficulty: "Easy"})
	require.Equal(t, fiber.StatusCreated, status)
	var scenario dto.ScenarioResponse
	decodeData(t, body, &scenario)

	status, body = fx.do(t, http.MethodPost, "/api/v1/assignments", "edu-1", dto.AssignmentCreateRequest{ScenarioID: scenario.ID})
	require.Equal(t, fiber.StatusCreated, status)
	var draft dto.AssignmentResponse
	decodeData(t, body, &draft)
	require.Equal(t, "draft", draft.Status)

	status, body = fx.do(t, http.MethodPost, "/api/v1/assignments/"+draft.ID+"/assign", "edu-1", dto.AssignmentAssignRequest{StudentID: "stu-1"})
	require.Equal(t, fiber.StatusOK, status)
	var assigned dto.AssignmentResponse
	decodeData(t, body, &assigned)
	require.Equal(t, "assigned", assigned.Status)

	status, body = fx.do(t, http.MethodGet, "/api/v1/assignments", "stu-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	var listed []dto.AssignmentResponse
	decodeData(t, body, &listed)
	require.Len(t, listed, 1)

	submission := dto.SubmissionRequest{Code: "def first_repeat(xs):\n    return -1\n", Language: "python"}

	status, _ = fx.do(t, http.MethodPost, "/api/v1/assignments/"+draft.ID+"/submit", "edu-1", submission)
	require.Equal(t, fiber.StatusForbidden, status)

	fx.provider.AddResponse(ai.JSON(map[string]any{"is_correct": false, "score": 40, "feedback": "Only the empty case passes."}))
	fx.provider.AddResponse(ai.JSON(map[string]any{
		"next_goal":              "Solve two Easy Arrays problems and score at least 70% on each.",
		"weakest_concept":        "Arrays",
		"recommended_difficulty": "Easy",
	}))
	fx.provider.AddResponse(ai.JSON(scenarioPayload("Arrays")))

	status, body = fx.do(t, http.MethodPost, "/api/v1/assignments/"+draft.ID+"/submit", "stu-1", submission)
	require.Equal(t, fiber.StatusOK, status)
	var result dto.SubmissionResultResponse
	decodeData(t, body, &result)
	require.Equal(t, "completed", result.Assignment.Status)
	require.NotNil(t, result.Assignment.Score)
	require.Equal(t, 40, *result.Assignment.Score)
	require.NotNil(t, result.Goal)
	require.NotNil(t, result.NextAssignment)
	require.True(t, result.NextAssignment.IsAutonomouslyGenerated)
	require.Equal(t, "assigned", result.NextAssignment.Status)

	status, _ = fx.do(t, http.MethodPost, "/api/v1/assignments/"+draft.ID+"/submit", "stu-1", submission)
	require.Equal(t, fiber.StatusConflict, status)

	status, body = fx.do(t, http.MethodGet, "/api/v1/assignments/"+draft.ID+"/pipeline", "edu-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	var run dto.PipelineRunResponse
	decodeData(t, body, &run)
	require.Equal(t, "persist_assignment", run.LastCompletedStage)

	var inbox []dto.NotificationResponse
	require.Eventually(t, func() bool {
		status, body := fx.do(t, http.MethodGet, "/api/v1/notifications?unread=true", "stu-1", nil)
		if status != fiber.StatusOK {
			return false
		}
		decodeData(t, body, &inbox)
		return len(inbox) >= 2
	}, 2*time.Second, 20*time.Millisecond)

	status, body = fx.do(t, http.MethodPatch, "/api/v1/notifications/read-all", "stu-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, body.Success)

	status, body = fx.do(t, http.MethodGet, "/api/v1/notifications?unread=true", "stu-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	decodeData(t, body, &inbox)
	require.Empty(t, inbox)

	status, body = fx.do(t, http.MethodGet, "/api/v1/activity", "stu-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	var trail []dto.ActivityResponse
	decodeData(t, body, &trail)
	actions := make([]string, 0, len(trail))
	for _, entry := range trail {
		actions = append(actions, entry.Action)
	}
	require.ElementsMatch(t, []string{"assignment.assigned", "pipeline.completed"}, actions)

	status, body = fx.do(t, http.MethodGet, "/api/v1/activity?action=assignment.created", "edu-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	decodeData(t, body, &trail)
	require.Len(t, trail, 1)

	status, _ = fx.do(t, http.MethodGet, "/api/v1/activity", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, status)
}

func TestSubmissionFailureReportsStage(t *testing.T) {
	fx := setupAPI(t)
	fx.register(t, "edu-1", "educator")
	fx.register(t, "stu-1", "student")
	fx.do(t, http.MethodPost, "/api/v1/roster", "edu-1", dto.RosterAddRequest{StudentID: "stu-1"})

	fx.provider.AddResponse(ai.JSON(scenarioPayload("Arrays")))
	_, body := fx.do(t, http.MethodPost, "/api/v1/scenarios", "edu-1", dto.ScenarioGenerateRequest{Concepts: []string{"Arrays"}, Difficulty: "Easy"})
	var scenario dto.ScenarioResponse
	decodeData(t, body, &scenario)

	_, body = fx.do(t, http.MethodPost, "/api/v1/assignments", "edu-1", dto.AssignmentCreateRequest{ScenarioID: scenario.ID})
	var draft dto.AssignmentResponse
	decodeData(t, body, &draft)
	fx.do(t, http.MethodPost, "/api/v1/assignments/"+draft.ID+"/assign", "edu-1", dto.AssignmentAssignRequest{StudentID: "stu-1"})

	fx.provider.AddResponse(ai.JSON(map[string]any{"is_correct": true, "score": 90, "feedback": "Clean and correct."}))
	fx.provider.AddResponse(ai.MockResponse{Err: &ai.GenerationError{Reason: ai.ReasonUnavailable}})

	submission := dto.SubmissionRequest{Code: "def first_repeat(xs):\n    return xs[0]\n", Language: "python"}
	status, body := fx.do(t, http.MethodPost, "/api/v1/assignments/"+draft.ID+"/submit", "stu-1", submission)
	require.Equal(t, fiber.StatusBadGateway, status)
	require.Equal(t, "goal_update", body.Details["stage"])
	require.Equal(t, "read_history", body.Details["last_completed"])
}

func TestDashboardsByRole(t *testing.T) {
	fx := setupAPI(t)
	fx.register(t, "edu-1", "educator")
	fx.register(t, "stu-1", "student")

	status, _ := fx.do(t, http.MethodGet, "/api/v1/dashboard/educator", "stu-1", nil)
	require.Equal(t, fiber.StatusForbidden, status)

	status, body := fx.do(t, http.MethodGet, "/api/v1/dashboard/student", "stu-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	var dashboard dto.StudentDashboardResponse
	decodeData(t, body, &dashboard)

	status, _ = fx.do(t, http.MethodGet, "/api/v1/dashboard/educator", "edu-1", nil)
	require.Equal(t, fiber.StatusOK, status)
}

func TestUnregisteredUserIsForbidden(t *testing.T) {
	fx := setupAPI(t)

	status, body := fx.do(t, http.MethodGet, "/api/v1/dashboard/student", "ghost", nil)
	require.Equal(t, fiber.StatusForbidden, status)
	require.False(t, body.Success)

	for _, path := range []string{"/api/v1/activity", "/api/v1/assignments"} {
		status, body = fx.do(t, http.MethodGet, path, "ghost", nil)
		require.Equal(t, fiber.StatusForbidden, status, path)
		require.Equal(t, "profile required", body.Message, path)
	}
}
