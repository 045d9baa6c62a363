package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/flows"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/internal/repository"
	"github.com/noah-isme/algogenius-api/pkg/ai"
	"github.com/noah-isme/algogenius-api/pkg/docker"
)

type pipelineFixture struct {
	repos    testRepos
	provider *ai.MockProvider
	notifier *stubNotifier
	cache    *recordingCache
	sandbox  *stubSandbox
	deps     PipelineDeps
	service  PipelineService
	scenario models.Scenario
	current  models.Assignment
}

type stubSandbox struct {
	calls int
	err   error
}

func (s *stubSandbox) Run(_ context.Context, language, _ string, cases []docker.Case) (*docker.Report, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	report := &docker.Report{Language: language}
	for _, c := range cases {
		report.Results = append(report.Results, docker.CaseResult{Passed: true, Output: c.Expected})
	}
	return report, nil
}

func newPipelineFixture(t *testing.T, withSandbox bool) pipelineFixture {
	t.Helper()
	repos := setupRepos(t)
	seedUser(t, repos, "stu-1", models.RoleStudent)
	seedUser(t, repos, "edu-1", models.RoleEducator)
	seedRoster(t, repos, "edu-1", "stu-1")
	scenario := seedScenario(t, repos, "edu-1", "Arrays")
	current := seedAssigned(t, repos, "edu-1", "stu-1", scenario)

	provider := ai.NewMockProvider()
	notifier := &stubNotifier{}
	cache := &recordingCache{}
	logger := zerolog.Nop()

	deps := PipelineDeps{
		Users:       repos.users,
		Roster:      repos.roster,
		Scenarios:   repos.scenarios,
		Assignments: repos.assignments,
		Goals:       repos.goals,
		Runs:        repos.runs,
		Assessor:    flows.NewAssessmentFlow(provider, logger),
		GoalAgent:   flows.NewGoalAgent(provider, logger),
		Generator:   flows.NewScenarioFlow(provider, logger),
		Notifier:    notifier,
		Cache:       cache,
		Activity:    newActivityServiceForTest(repos),
		Validator:   newValidator(),
		Logger:      logger,
	}
	var sandbox *stubSandbox
	if withSandbox {
		sandbox = &stubSandbox{}
		deps.Sandbox = sandbox
	}

	return pipelineFixture{
		repos:    repos,
		provider: provider,
		notifier: notifier,
		cache:    cache,
		sandbox:  sandbox,
		deps:     deps,
		service:  NewPipelineService(deps),
		scenario: scenario,
		current:  current,
	}
}

// rebuild swaps dependencies of the fixture service.
func (fx *pipelineFixture) rebuild(change func(*PipelineDeps)) {
	change(&fx.deps)
	fx.service = NewPipelineService(fx.deps)
}

func submission() dto.SubmissionRequest {
	return dto.SubmissionRequest{Code: "def solve(sizes, limit):\n    return sum(1 for s in sizes if s > limit)\n", Language: "python"}
}

func TestPipelineSubmitProducesNextAssignment(t *testing.T) {
	fx := newPipelineFixture(t, false)
	goalText := "Solve two Easy Arrays problems and score at least 70% on each."
	fx.provider.AddResponse(ai.JSON(assessmentResponse(false, 45)))
	fx.provider.AddResponse(ai.JSON(goalResponse(goalText, "Arrays", "Easy")))
	fx.provider.AddResponse(ai.JSON(scenarioResponse("Arrays")))

	result, err := fx.service.Submit(context.Background(), "stu-1", fx.current.ID, submission(), nil)
	require.NoError(t, err)
	require.Equal(t, 3, fx.provider.CallCount())

	require.Equal(t, models.AssignmentStatusCompleted, result.Assignment.Status)
	require.NotNil(t, result.Assignment.Score)
	require.Equal(t, 45, *result.Assignment.Score)
	require.False(t, *result.Assignment.IsCorrect)
	require.Equal(t, "python", result.Assignment.Language)

	require.NotNil(t, result.Goal)
	require.Equal(t, "Arrays", result.Goal.WeakestConcept)
	require.Equal(t, models.DifficultyEasy, result.Goal.RecommendedDifficulty)
	require.Equal(t, 70, result.Goal.TargetScore)
	require.Equal(t, goalText, result.Goal.NextGoal)

	next := result.NextAssignment
	require.NotNil(t, next)
	require.True(t, next.IsAutonomouslyGenerated)
	require.Equal(t, models.AssignmentStatusAssigned, next.Status)
	require.Equal(t, models.SystemEducatorID, next.EducatorID)
	require.Equal(t, "stu-1", *next.StudentID)
	require.Equal(t, fx.current.ID, *next.SourceAssignmentID)
	require.Equal(t, "Arrays", next.Concept)
	require.NotNil(t, next.DueDate)
	require.True(t, next.DueDate.After(time.Now()))
	require.NotNil(t, next.Scenario)
	require.Len(t, next.Scenario.Hints, 3)

	require.Equal(t, dto.PipelineStateSucceeded, result.Pipeline.State)
	require.Equal(t, StagePersistAssignment, result.Pipeline.LastCompletedStage)
	require.Equal(t, next.ID, *result.Pipeline.NextAssignmentID)

	student, err := fx.repos.users.GetByID(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, goalText, student.CurrentGoal)

	generated, err := fx.repos.scenarios.GetByOrigin(context.Background(), fx.current.ID)
	require.NoError(t, err)
	require.Equal(t, models.SystemEducatorID, generated.CreatedBy)
	require.Equal(t, goalText, generated.Guidance)
	require.True(t, generated.HasEdgeCase())

	require.Contains(t, fx.cache.students, "stu-1")
	require.Contains(t, fx.cache.educators, "edu-1")
	require.Eventually(t, func() bool {
		for _, typ := range fx.notifier.types() {
			if typ == models.NotificationAssignmentReady {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestPipelineTargetsWeakestConceptAcrossHistory(t *testing.T) {
	fx := newPipelineFixture(t, false)
	now := time.Now()
	seedCompleted(t, fx.repos, fx.scenario.ID, "stu-1", "Graphs", 40, now.Add(-2*time.Hour))
	seedCompleted(t, fx.repos, fx.scenario.ID, "stu-1", "Trees", 92, now.Add(-time.Hour))

	fx.provider.AddResponse(ai.JSON(assessmentResponse(true, 80)))
	fx.provider.AddResponse(ai.JSON(goalResponse("Work through Easy Graphs traversals until you reach 70%.", "Graphs", "Easy")))
	fx.provider.AddResponse(ai.JSON(scenarioResponse("Graphs")))

	result, err := fx.service.Submit(context.Background(), "stu-1", fx.current.ID, submission(), nil)
	require.NoError(t, err)
	require.Equal(t, "Graphs", result.Goal.WeakestConcept)
	require.Equal(t, 3, result.Goal.HistorySize)
	require.Equal(t, "Graphs", result.NextAssignment.Concept)
	require.Equal(t, models.DifficultyEasy, result.NextAssignment.Difficulty)

	goalPrompt := fx.provider.Calls[1].Messages[0].Content
	require.Contains(t, goalPrompt, "1. Arrays (Easy): 80")
	require.Contains(t, goalPrompt, "2. Trees (Medium): 92")
	require.Contains(t, goalPrompt, "3. Graphs (Medium): 40")
}

func TestPipelineResumesAfterGoalFailureWithoutDuplicates(t *testing.T) {
	fx := newPipelineFixture(t, false)
	ctx := context.Background()
	fx.provider.AddResponse(ai.JSON(assessmentResponse(false, 45)))
	fx.provider.AddResponse(ai.MockResponse{Err: &ai.GenerationError{Reason: ai.ReasonUnavailable}})

	_, err := fx.service.Submit(ctx, "stu-1", fx.current.ID, submission(), nil)
	require.Error(t, err)

	var pipelineErr *PipelineError
	require.True(t, errors.As(err, &pipelineErr))
	require.Equal(t, StageGoalUpdate, pipelineErr.Stage)
	require.Equal(t, StageReadHistory, pipelineErr.LastCompleted)
	require.True(t, ai.IsGenerationError(err))

	stored, err := fx.repos.assignments.GetByID(ctx, fx.current.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssignmentStatusCompleted, stored.Status)

	status, err := fx.service.Status(ctx, "edu-1", fx.current.ID)
	require.NoError(t, err)
	require.Equal(t, dto.PipelineStateFailed, status.State)
	require.Equal(t, StageGoalUpdate, status.FailedStage)
	require.Eventually(t, func() bool {
		for _, typ := range fx.notifier.types() {
			if typ == models.NotificationPipelineFailed {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	fx.provider.AddResponse(ai.JSON(goalResponse("Solve Easy Arrays problems and reach 70%.", "Arrays", "Easy")))
	fx.provider.AddResponse(ai.JSON(scenarioResponse("Arrays")))

	result, err := fx.service.Resume(ctx, "stu-1", fx.current.ID)
	require.NoError(t, err)
	require.Equal(t, 4, fx.provider.CallCount(), "evaluation must not be repeated")
	require.Equal(t, dto.PipelineStateSucceeded, result.Pipeline.State)
	require.Equal(t, 2, result.Pipeline.Attempts)

	again, err := fx.service.Resume(ctx, "stu-1", fx.current.ID)
	require.NoError(t, err)
	require.Equal(t, 4, fx.provider.CallCount(), "a finished pipeline makes no model calls")
	require.Equal(t, result.NextAssignment.ID, again.NextAssignment.ID)
	require.Equal(t, 3, again.Pipeline.Attempts)

	var goals, generated, nextAssignments int64
	require.NoError(t, fx.repos.db.Model(&models.LearningGoal{}).Count(&goals).Error)
	require.NoError(t, fx.repos.db.Model(&models.Scenario{}).Where("origin_assignment_id IS NOT NULL").Count(&generated).Error)
	require.NoError(t, fx.repos.db.Model(&models.Assignment{}).Where("source_assignment_id IS NOT NULL").Count(&nextAssignments).Error)
	require.EqualValues(t, 1, goals)
	require.EqualValues(t, 1, generated)
	require.EqualValues(t, 1, nextAssignments)

	var failed, completed int64
	require.NoError(t, fx.repos.db.Model(&models.ActivityLog{}).Where("action = ?", models.ActivityPipelineFailed).Count(&failed).Error)
	require.NoError(t, fx.repos.db.Model(&models.ActivityLog{}).Where("action = ?", models.ActivityPipelineCompleted).Count(&completed).Error)
	require.EqualValues(t, 1, failed)
	require.EqualValues(t, 1, completed, "a resume that only skips stages publishes nothing")

	require.Eventually(t, func() bool {
		return countType(fx.notifier.types(), models.NotificationAssignmentReady) == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, countType(fx.notifier.types(), models.NotificationAssignmentReady))
}

func countType(types []string, want string) int {
	n := 0
	for _, typ := range types {
		if typ == want {
			n++
		}
	}
	return n
}

// flakyHistory fails the first history read at once and slows evaluation writes down,
// so both stages of the concurrent group are in flight when one of them fails.
type flakyHistory struct {
	repository.AssignmentRepository
	failed atomic.Bool
}

func (f *flakyHistory) RecentCompleted(ctx context.Context, studentID string, limit int, excludeID string) ([]models.Assignment, error) {
	if f.failed.CompareAndSwap(false, true) {
		return nil, errors.New("history store unavailable")
	}
	return f.AssignmentRepository.RecentCompleted(ctx, studentID, limit, excludeID)
}

func (f *flakyHistory) CompleteEvaluation(ctx context.Context, id string, record repository.EvaluationRecord) (bool, error) {
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return f.AssignmentRepository.CompleteEvaluation(ctx, id, record)
}

func TestPipelineHistoryFailureKeepsEvaluation(t *testing.T) {
	fx := newPipelineFixture(t, false)
	ctx := context.Background()
	fx.rebuild(func(deps *PipelineDeps) {
		deps.Assignments = &flakyHistory{AssignmentRepository: fx.repos.assignments}
	})
	fx.provider.AddResponse(ai.JSON(assessmentResponse(false, 50)))

	_, err := fx.service.Submit(ctx, "stu-1", fx.current.ID, submission(), nil)
	var pipelineErr *PipelineError
	require.True(t, errors.As(err, &pipelineErr))
	require.Equal(t, StageReadHistory, pipelineErr.Stage)
	require.Equal(t, StagePersistEvaluation, pipelineErr.LastCompleted)
	require.ErrorContains(t, err, "history store unavailable")
	require.NotErrorIs(t, err, context.Canceled)

	stored, err := fx.repos.assignments.GetByID(ctx, fx.current.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssignmentStatusCompleted, stored.Status)
	require.Equal(t, 50, *stored.Score)

	fx.provider.AddResponse(ai.JSON(goalResponse("Solve Easy Arrays problems and reach 70%.", "Arrays", "Easy")))
	fx.provider.AddResponse(ai.JSON(scenarioResponse("Arrays")))
	result, err := fx.service.Resume(ctx, "stu-1", fx.current.ID)
	require.NoError(t, err)
	require.Equal(t, 3, fx.provider.CallCount(), "the stored evaluation is reused")
	require.NotNil(t, result.NextAssignment)
}

func TestPipelineRejectsSecondSubmission(t *testing.T) {
	fx := newPipelineFixture(t, false)
	fx.provider.AddResponse(ai.JSON(assessmentResponse(true, 95)))
	fx.provider.AddResponse(ai.JSON(goalResponse("Take on Hard Arrays challenges and keep scoring 95%.", "Arrays", "Hard")))
	fx.provider.AddResponse(ai.JSON(scenarioResponse("Arrays")))

	result, err := fx.service.Submit(context.Background(), "stu-1", fx.current.ID, submission(), nil)
	require.NoError(t, err)
	require.Equal(t, models.DifficultyHard, result.NextAssignment.Difficulty)

	_, err = fx.service.Submit(context.Background(), "stu-1", fx.current.ID, submission(), nil)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.Equal(t, 3, fx.provider.CallCount())
}

func TestPipelineSubmitGuards(t *testing.T) {
	fx := newPipelineFixture(t, false)
	seedUser(t, fx.repos, "stu-2", models.RoleStudent)
	ctx := context.Background()

	_, err := fx.service.Submit(ctx, "stu-2", fx.current.ID, submission(), nil)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = fx.service.Submit(ctx, "edu-1", fx.current.ID, submission(), nil)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = fx.service.Submit(ctx, "stu-1", "missing", submission(), nil)
	require.ErrorIs(t, err, ErrAssignmentNotFound)

	_, err = fx.service.Submit(ctx, "stu-1", fx.current.ID, dto.SubmissionRequest{Code: "   ", Language: "python"}, nil)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = fx.service.Resume(ctx, "stu-1", fx.current.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = fx.service.Status(ctx, "stu-2", fx.current.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = fx.service.Status(ctx, "stu-1", fx.current.ID)
	require.ErrorIs(t, err, ErrPipelineRunNotFound)
	require.Zero(t, fx.provider.CallCount())
}

func TestPipelineFeedsSandboxReportToAssessor(t *testing.T) {
	fx := newPipelineFixture(t, true)
	fx.provider.AddResponse(ai.JSON(assessmentResponse(true, 90)))
	fx.provider.AddResponse(ai.JSON(goalResponse("Move on to Hard Arrays problems and hold 95%.", "Arrays", "Hard")))
	fx.provider.AddResponse(ai.JSON(scenarioResponse("Arrays")))

	_, err := fx.service.Submit(context.Background(), "stu-1", fx.current.ID, submission(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, fx.sandbox.calls)
	require.Contains(t, fx.provider.Calls[0].Messages[0].Content, "2 of 2 cases passed")
}
