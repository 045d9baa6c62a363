package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/flows"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/internal/observability"
	"github.com/noah-isme/algogenius-api/internal/repository"
	"github.com/noah-isme/algogenius-api/pkg/docker"
)

// Pipeline stage names, in execution order.
const (
	StageEvaluate          = "evaluate"
	StagePersistEvaluation = "persist_evaluation"
	StageReadHistory       = "read_history"
	StageGoalUpdate        = "goal_update"
	StagePersistGoal       = "persist_goal"
	StageGenerateScenario  = "generate_scenario"
	StagePersistAssignment = "persist_assignment"
)

// PipelineStageOrder lists every stage in execution order.
var PipelineStageOrder = []string{
	StageEvaluate,
	StagePersistEvaluation,
	StageReadHistory,
	StageGoalUpdate,
	StagePersistGoal,
	StageGenerateScenario,
	StagePersistAssignment,
}

// Assessor grades a submission.
type Assessor interface {
	Assess(ctx context.Context, input flows.AssessmentInput) (*flows.AssessmentOutput, error)
}

// GoalUpdater derives the next learning goal.
type GoalUpdater interface {
	Update(ctx context.Context, input flows.GoalInput) (*flows.Goal, error)
}

// SandboxRunner runs submitted code against test cases.
type SandboxRunner interface {
	Run(ctx context.Context, language, code string, cases []docker.Case) (*docker.Report, error)
}

// PipelineService submits work and drives the next-assignment pipeline.
type PipelineService interface {
	Submit(ctx context.Context, studentID, assignmentID string, payload dto.SubmissionRequest, file *multipart.FileHeader) (dto.SubmissionResultResponse, error)
	Resume(ctx context.Context, studentID, assignmentID string) (dto.SubmissionResultResponse, error)
	Status(ctx context.Context, userID, assignmentID string) (dto.PipelineRunResponse, error)
}

// PipelineDeps groups the collaborators of the pipeline.
type PipelineDeps struct {
	Users        repository.UserRepository
	Roster       repository.RosterRepository
	Scenarios    repository.ScenarioRepository
	Assignments  repository.AssignmentRepository
	Goals        repository.LearningGoalRepository
	Runs         repository.PipelineRunRepository
	Assessor     Assessor
	GoalAgent    GoalUpdater
	Generator    ScenarioGenerator
	Sandbox      SandboxRunner
	Archive      SubmissionArchive
	Notifier     Notifier
	Events       EventPublisher
	Activity     ActivityRecorder
	Cache        DashboardInvalidator
	Validator    *validator.Validate
	HistoryLimit int
	DefaultDue   time.Duration
	SandboxCases int
	Logger       zerolog.Logger
}

type pipelineService struct {
	deps   PipelineDeps
	tracer trace.Tracer
	logger zerolog.Logger
	now    func() time.Time
}

// NewPipelineService builds the orchestrator.
func NewPipelineService(deps PipelineDeps) PipelineService {
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = 5
	}
	if deps.DefaultDue <= 0 {
		deps.DefaultDue = 7 * 24 * time.Hour
	}
	if deps.SandboxCases <= 0 {
		deps.SandboxCases = 10
	}
	return &pipelineService{
		deps:   deps,
		tracer: otel.Tracer("github.com/noah-isme/algogenius-api/internal/service/pipeline"),
		logger: deps.Logger.With().Str("component", "pipeline_service").Logger(),
		now:    time.Now,
	}
}

type pipelineState struct {
	student    models.User
	assignment models.Assignment
	evaluation *flows.AssessmentOutput
	history    []flows.PerformanceRecord
	goal       *models.LearningGoal
	scenario   *models.Scenario
	next       *models.Assignment
	// wrote is set once a stage with stored state actually ran instead of being skipped.
	wrote atomic.Bool
}

type pipelineStage struct {
	name   string
	isDone func(ctx context.Context, st *pipelineState) (bool, error)
	run    func(ctx context.Context, st *pipelineState) error
}

func (s *pipelineService) Submit(ctx context.Context, studentID, assignmentID string, payload dto.SubmissionRequest, file *multipart.FileHeader) (dto.SubmissionResultResponse, error) {
	if err := s.deps.Validator.Struct(payload); err != nil {
		return dto.SubmissionResultResponse{}, err
	}

	student, assignment, err := s.loadForStudent(ctx, studentID, assignmentID)
	if err != nil {
		return dto.SubmissionResultResponse{}, err
	}
	if models.StatusAtLeast(assignment.Status, models.AssignmentStatusSubmitted) {
		return dto.SubmissionResultResponse{}, ErrAlreadySubmitted
	}
	if !models.CanTransition(assignment.Status, models.AssignmentStatusSubmitted) {
		return dto.SubmissionResultResponse{}, ErrInvalidTransition
	}

	code := payload.Code
	var content []byte
	if file != nil {
		if content, err = readSubmissionFile(file); err != nil {
			return dto.SubmissionResultResponse{}, err
		}
		code = string(content)
	}
	if strings.TrimSpace(code) == "" {
		return dto.SubmissionResultResponse{}, invalidRequest("code is required")
	}

	now := s.now().UTC()
	claimed, err := s.deps.Assignments.ClaimSubmission(ctx, assignment.ID, studentID, repository.SubmissionRecord{
		Code:        code,
		Language:    strings.ToLower(strings.TrimSpace(payload.Language)),
		SubmittedAt: now,
	})
	if err != nil {
		return dto.SubmissionResultResponse{}, err
	}
	if !claimed {
		return dto.SubmissionResultResponse{}, ErrAlreadySubmitted
	}

	s.logger.Info().Str("assignment_id", assignment.ID).Str("student_id", studentID).Msg("submission claimed")

	// Only the request that won the claim archives, so the stored file always matches submitted_code.
	if file != nil {
		s.archive(ctx, assignment.ID, studentID, file.Filename, content)
	}

	refreshed, err := s.loadAssignment(ctx, assignment.ID)
	if err != nil {
		return dto.SubmissionResultResponse{}, err
	}

	run := models.PipelineRun{AssignmentID: assignment.ID, StudentID: studentID, Attempts: 1, StartedAt: now}
	return s.execute(ctx, &pipelineState{student: student, assignment: refreshed}, &run)
}

func (s *pipelineService) Resume(ctx context.Context, studentID, assignmentID string) (dto.SubmissionResultResponse, error) {
	student, assignment, err := s.loadForStudent(ctx, studentID, assignmentID)
	if err != nil {
		return dto.SubmissionResultResponse{}, err
	}
	if !models.StatusAtLeast(assignment.Status, models.AssignmentStatusSubmitted) {
		return dto.SubmissionResultResponse{}, ErrInvalidTransition
	}

	run, err := s.deps.Runs.Get(ctx, assignment.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResultResponse{}, err
		}
		run = models.PipelineRun{AssignmentID: assignment.ID, StudentID: studentID, StartedAt: s.now().UTC()}
	}
	run.Attempts++
	run.FailedStage = ""
	run.Error = ""
	run.FinishedAt = nil

	s.logger.Info().Str("assignment_id", assignment.ID).Str("student_id", studentID).Int("attempt", run.Attempts).Msg("pipeline resumed")
	return s.execute(ctx, &pipelineState{student: student, assignment: assignment}, &run)
}

func (s *pipelineService) Status(ctx context.Context, userID, assignmentID string) (dto.PipelineRunResponse, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return dto.PipelineRunResponse{}, err
	}
	if err := canViewAssignment(ctx, s.deps.Roster, userID, assignment); err != nil {
		return dto.PipelineRunResponse{}, err
	}

	run, err := s.deps.Runs.Get(ctx, assignment.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PipelineRunResponse{}, ErrPipelineRunNotFound
		}
		return dto.PipelineRunResponse{}, err
	}
	return dto.NewPipelineRunResponse(run), nil
}

func (s *pipelineService) loadForStudent(ctx context.Context, studentID, assignmentID string) (models.User, models.Assignment, error) {
	student, err := s.deps.Users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, models.Assignment{}, ErrUserNotFound
		}
		return models.User{}, models.Assignment{}, err
	}
	if !student.IsStudent() {
		return models.User{}, models.Assignment{}, forbidden("only students submit work")
	}

	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return models.User{}, models.Assignment{}, err
	}
	if !assignment.BelongsTo(studentID) {
		return models.User{}, models.Assignment{}, forbidden("assignment %s is not yours", assignment.ID)
	}
	return student, assignment, nil
}

func (s *pipelineService) loadAssignment(ctx context.Context, id string) (models.Assignment, error) {
	assignment, err := s.deps.Assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

// archive stores the uploaded file and links it to the claimed submission.
// Failures are logged; the submission proceeds without a file URL.
func (s *pipelineService) archive(ctx context.Context, assignmentID, studentID, name string, content []byte) {
	if s.deps.Archive == nil {
		return
	}
	logger := s.logger.With().Str("assignment_id", assignmentID).Logger()

	url, err := s.deps.Archive.Store(ctx, assignmentID, name, bytes.NewReader(content))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to archive submission file")
		return
	}
	attached, err := s.deps.Assignments.AttachSubmissionFile(ctx, assignmentID, studentID, url)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to link archived submission file")
		return
	}
	if !attached {
		logger.Warn().Str("url", url).Msg("submission already has an archived file")
	}
}

// stages groups the pipeline. Stages inside one group run concurrently.
func (s *pipelineService) stages() [][]pipelineStage {
	return [][]pipelineStage{
		{{name: StageEvaluate, isDone: s.evaluated, run: s.evaluate}},
		{
			{name: StagePersistEvaluation, isDone: s.evaluationPersisted, run: s.persistEvaluation},
			{name: StageReadHistory, run: s.readHistory},
		},
		{{name: StageGoalUpdate, isDone: s.goalExists, run: s.updateGoal}},
		{{name: StagePersistGoal, isDone: s.goalPersisted, run: s.persistGoal}},
		{{name: StageGenerateScenario, isDone: s.scenarioExists, run: s.generateScenario}},
		{{name: StagePersistAssignment, isDone: s.nextAssignmentExists, run: s.persistAssignment}},
	}
}

func (s *pipelineService) execute(ctx context.Context, st *pipelineState, run *models.PipelineRun) (dto.SubmissionResultResponse, error) {
	if err := s.deps.Runs.Save(ctx, run); err != nil {
		return dto.SubmissionResultResponse{}, err
	}

	completed := make(map[string]bool, len(PipelineStageOrder))
	for _, group := range s.stages() {
		failedStage, err := s.runGroup(ctx, st, group, completed)
		run.LastCompletedStage = lastCompleted(completed)
		if err != nil {
			return s.fail(ctx, st, run, failedStage, err)
		}
		if saveErr := s.deps.Runs.Save(ctx, run); saveErr != nil {
			s.logger.Warn().Err(saveErr).Str("assignment_id", run.AssignmentID).Msg("failed to record pipeline progress")
		}
	}

	finished := s.now().UTC()
	run.FinishedAt = &finished
	run.NextAssignmentID = &st.next.ID
	if err := s.deps.Runs.Save(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("assignment_id", run.AssignmentID).Msg("failed to record pipeline completion")
	}

	if st.wrote.Load() {
		s.afterSuccess(ctx, st)
	} else {
		s.logger.Debug().Str("assignment_id", run.AssignmentID).Msg("pipeline already finished, nothing published")
	}
	return s.result(ctx, st, *run)
}

func (s *pipelineService) runGroup(ctx context.Context, st *pipelineState, group []pipelineStage, completed map[string]bool) (string, error) {
	if len(group) == 1 {
		if err := s.runStage(ctx, st, group[0]); err != nil {
			return group[0].name, err
		}
		completed[group[0].name] = true
		return "", nil
	}

	// Siblings share the parent context: a failing stage must not cancel a write
	// that is already under way next to it.
	var (
		mu       sync.Mutex
		g        errgroup.Group
		failures = make(map[string]error)
	)
	for _, stage := range group {
		stage := stage
		g.Go(func() error {
			err := s.runStage(ctx, st, stage)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[stage.name] = err
				return err
			}
			completed[stage.name] = true
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		return "", nil
	}

	// Prefer a stage that failed on its own over one that only saw the caller's cancellation.
	var cancelledStage string
	for _, stage := range group {
		err, ok := failures[stage.name]
		if !ok {
			continue
		}
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return stage.name, err
		}
		if cancelledStage == "" {
			cancelledStage = stage.name
		}
	}
	return cancelledStage, failures[cancelledStage]
}

func (s *pipelineService) runStage(ctx context.Context, st *pipelineState, stage pipelineStage) error {
	ctx, span := s.tracer.Start(ctx, "pipeline."+stage.name, trace.WithAttributes(
		attribute.String("pipeline.assignment_id", st.assignment.ID),
		attribute.String("pipeline.stage", stage.name),
	))
	defer span.End()

	logger := s.logger.With().
		Str("assignment_id", st.assignment.ID).
		Str("student_id", st.student.ID).
		Str("stage", stage.name).
		Logger()

	if err := ctx.Err(); err != nil {
		return err
	}

	if stage.isDone != nil {
		done, err := stage.isDone(ctx, st)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observability.PipelineStages().WithLabelValues(stage.name, "failed").Inc()
			return err
		}
		if done {
			observability.PipelineStages().WithLabelValues(stage.name, "skipped").Inc()
			logger.Debug().Msg("stage already done")
			return nil
		}
	}

	start := time.Now()
	err := stage.run(ctx, st)
	if err == nil && stage.isDone != nil {
		st.wrote.Store(true)
	}
	observability.PipelineStageDuration().WithLabelValues(stage.name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.PipelineStages().WithLabelValues(stage.name, "failed").Inc()
		logger.Warn().Err(err).Msg("stage failed")
		return err
	}

	observability.PipelineStages().WithLabelValues(stage.name, "completed").Inc()
	logger.Info().Dur("elapsed", time.Since(start)).Msg("stage completed")
	return nil
}

func lastCompleted(completed map[string]bool) string {
	last := ""
	for _, name := range PipelineStageOrder {
		if !completed[name] {
			break
		}
		last = name
	}
	return last
}

func (s *pipelineService) fail(ctx context.Context, st *pipelineState, run *models.PipelineRun, stage string, err error) (dto.SubmissionResultResponse, error) {
	run.FailedStage = stage
	run.Error = err.Error()
	// The request context may already be gone; the failure must still be recorded.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if saveErr := s.deps.Runs.Save(saveCtx, run); saveErr != nil {
		s.logger.Error().Err(saveErr).Str("assignment_id", run.AssignmentID).Msg("failed to record pipeline failure")
	}

	if run.LastCompletedStage != "" {
		s.invalidate(ctx, st.student.ID)
	}
	notifyAsync(ctx, s.deps.Notifier, s.logger, dto.NotificationCreateRequest{
		UserID:      st.student.ID,
		Type:        models.NotificationPipelineFailed,
		Message:     "We could not prepare your next assignment yet. You can retry from the assignment page.",
		ReferenceID: st.assignment.ID,
	})

	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		ActorID:    st.student.ID,
		ActorRole:  models.RoleStudent,
		Action:     models.ActivityPipelineFailed,
		EntityType: "assignment",
		EntityID:   st.assignment.ID,
		StudentID:  st.student.ID,
		Metadata: map[string]interface{}{
			"stage":          stage,
			"last_completed": run.LastCompletedStage,
			"attempt":        run.Attempts,
		},
	})

	return dto.SubmissionResultResponse{}, &PipelineError{Stage: stage, LastCompleted: run.LastCompletedStage, Err: err}
}

func (s *pipelineService) afterSuccess(ctx context.Context, st *pipelineState) {
	s.invalidate(ctx, st.student.ID)

	metadata := map[string]interface{}{
		"next_assignment_id": st.next.ID,
		"concept":            st.next.Concept,
		"difficulty":         st.next.Difficulty,
	}
	if st.evaluation != nil {
		metadata["score"] = st.evaluation.Score
	}
	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		ActorID:    st.student.ID,
		ActorRole:  models.RoleStudent,
		Action:     models.ActivityPipelineCompleted,
		EntityType: "assignment",
		EntityID:   st.assignment.ID,
		StudentID:  st.student.ID,
		Metadata:   metadata,
	})

	notifyAsync(ctx, s.deps.Notifier, s.logger, dto.NotificationCreateRequest{
		UserID:      st.student.ID,
		Type:        models.NotificationAssignmentReady,
		Message:     fmt.Sprintf("Your next assignment is ready: %s (%s).", st.next.Concept, st.next.Difficulty),
		ReferenceID: st.next.ID,
	})

	if s.deps.Events != nil {
		event := AssignmentGeneratedEvent{
			AssignmentID:       st.next.ID,
			SourceAssignmentID: st.assignment.ID,
			StudentID:          st.student.ID,
			ScenarioID:         st.next.ScenarioID,
			Concept:            st.next.Concept,
			Difficulty:         st.next.Difficulty,
			CreatedAt:          st.next.CreatedAt,
		}
		if err := s.deps.Events.AssignmentGenerated(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("assignment_id", st.next.ID).Msg("failed to publish assignment event")
		}
	}
}

func (s *pipelineService) invalidate(ctx context.Context, studentID string) {
	if s.deps.Cache == nil {
		return
	}
	s.deps.Cache.InvalidateStudent(ctx, studentID)
	educators, err := s.deps.Roster.EducatorsOf(ctx, studentID)
	if err != nil {
		s.logger.Warn().Err(err).Str("student_id", studentID).Msg("failed to list educators for cache invalidation")
		return
	}
	for _, educatorID := range educators {
		s.deps.Cache.InvalidateEducator(ctx, educatorID)
	}
}

func (s *pipelineService) result(ctx context.Context, st *pipelineState, run models.PipelineRun) (dto.SubmissionResultResponse, error) {
	assignment, err := s.loadAssignment(ctx, st.assignment.ID)
	if err != nil {
		return dto.SubmissionResultResponse{}, err
	}

	response := dto.SubmissionResultResponse{
		Assignment: dto.NewAssignmentResponse(assignment),
		Pipeline:   dto.NewPipelineRunResponse(run),
	}
	if st.goal != nil {
		goal := dto.NewLearningGoalResponse(*st.goal)
		response.Goal = &goal
	}
	if st.next != nil {
		next := *st.next
		if next.Scenario == nil && st.scenario != nil {
			next.Scenario = st.scenario
		}
		nextResponse := dto.NewAssignmentResponse(next)
		response.NextAssignment = &nextResponse
	}
	return response, nil
}
