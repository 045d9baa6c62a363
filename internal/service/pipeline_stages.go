package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/flows"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/internal/repository"
	"github.com/noah-isme/algogenius-api/pkg/docker"
)

func (s *pipelineService) evaluated(_ context.Context, st *pipelineState) (bool, error) {
	a := st.assignment
	if a.Status != models.AssignmentStatusCompleted || a.Score == nil {
		return false, nil
	}
	st.evaluation = &flows.AssessmentOutput{
		IsCorrect:  a.IsCorrect != nil && *a.IsCorrect,
		Score:      *a.Score,
		Feedback:   a.Feedback,
		Reconciled: a.AssessmentReconciled,
	}
	return true, nil
}

func (s *pipelineService) evaluate(ctx context.Context, st *pipelineState) error {
	a := st.assignment
	if a.Scenario == nil {
		return fmt.Errorf("assignment %s has no scenario", a.ID)
	}

	output, err := s.deps.Assessor.Assess(ctx, flows.AssessmentInput{
		Scenario:      a.Scenario.Content,
		Concept:       a.Concept,
		Difficulty:    a.Difficulty,
		Code:          a.SubmittedCode,
		Language:      a.Language,
		SandboxReport: s.sandboxEvidence(ctx, a),
	})
	if err != nil {
		return err
	}
	st.evaluation = output
	return nil
}

// sandboxEvidence runs the stored test cases when a sandbox is configured.
// The report only informs the assessor; failures to run are logged and ignored.
func (s *pipelineService) sandboxEvidence(ctx context.Context, a models.Assignment) string {
	if s.deps.Sandbox == nil || !docker.SupportedLanguage(a.Language) || len(a.Scenario.TestCases) == 0 {
		return ""
	}

	cases := make([]docker.Case, 0, len(a.Scenario.TestCases))
	for _, tc := range a.Scenario.TestCases {
		if len(cases) == s.deps.SandboxCases {
			break
		}
		cases = append(cases, docker.Case{Input: tc.Input, Expected: tc.Output})
	}

	report, err := s.deps.Sandbox.Run(ctx, a.Language, a.SubmittedCode, cases)
	if err != nil {
		s.logger.Warn().Err(err).Str("assignment_id", a.ID).Msg("sandbox run failed")
		return ""
	}
	return report.String()
}

func (s *pipelineService) evaluationPersisted(_ context.Context, st *pipelineState) (bool, error) {
	return st.assignment.Status == models.AssignmentStatusCompleted, nil
}

func (s *pipelineService) persistEvaluation(ctx context.Context, st *pipelineState) error {
	applied, err := s.deps.Assignments.CompleteEvaluation(ctx, st.assignment.ID, repository.EvaluationRecord{
		Score:       st.evaluation.Score,
		IsCorrect:   st.evaluation.IsCorrect,
		Feedback:    st.evaluation.Feedback,
		Reconciled:  st.evaluation.Reconciled,
		EvaluatedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	current, err := s.deps.Assignments.GetByID(ctx, st.assignment.ID)
	if err != nil {
		return err
	}
	if current.Status != models.AssignmentStatusCompleted {
		return fmt.Errorf("%w: assignment %s is %s", ErrInvalidTransition, current.ID, current.Status)
	}
	return nil
}

// readHistory collects the latest graded work with the current evaluation first.
func (s *pipelineService) readHistory(ctx context.Context, st *pipelineState) error {
	previous, err := s.deps.Assignments.RecentCompleted(ctx, st.student.ID, s.deps.HistoryLimit, st.assignment.ID)
	if err != nil {
		return err
	}

	history := make([]flows.PerformanceRecord, 0, len(previous)+1)
	history = append(history, flows.PerformanceRecord{
		Concept:    st.assignment.Concept,
		Score:      st.evaluation.Score,
		Difficulty: st.assignment.Difficulty,
	})
	for _, a := range previous {
		if a.Score == nil {
			continue
		}
		history = append(history, flows.PerformanceRecord{Concept: a.Concept, Score: *a.Score, Difficulty: a.Difficulty})
	}
	if len(history) > s.deps.HistoryLimit {
		history = history[:s.deps.HistoryLimit]
	}
	st.history = history
	return nil
}

func (s *pipelineService) goalExists(ctx context.Context, st *pipelineState) (bool, error) {
	goal, err := s.deps.Goals.GetBySource(ctx, st.assignment.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	st.goal = &goal
	return true, nil
}

func (s *pipelineService) updateGoal(ctx context.Context, st *pipelineState) error {
	goal, err := s.deps.GoalAgent.Update(ctx, flows.GoalInput{
		PreviousGoal: st.student.CurrentGoal,
		History:      st.history,
	})
	if err != nil {
		return err
	}
	st.goal = &models.LearningGoal{
		StudentID:             st.student.ID,
		SourceAssignmentID:    st.assignment.ID,
		WeakestConcept:        goal.WeakestConcept,
		NextGoal:              goal.NextGoal,
		RecommendedDifficulty: goal.RecommendedDifficulty,
		TargetScore:           goal.TargetScore,
		HistorySize:           goal.HistorySize,
	}
	return nil
}

func (s *pipelineService) goalPersisted(_ context.Context, st *pipelineState) (bool, error) {
	return st.goal != nil && st.goal.ID != 0 && st.student.CurrentGoal == st.goal.NextGoal, nil
}

func (s *pipelineService) persistGoal(ctx context.Context, st *pipelineState) error {
	if st.goal == nil {
		return errors.New("no learning goal to persist")
	}

	if st.goal.ID == 0 {
		if err := s.deps.Goals.Create(ctx, st.goal); err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
			existing, getErr := s.deps.Goals.GetBySource(ctx, st.assignment.ID)
			if getErr != nil {
				return getErr
			}
			st.goal = &existing
		}
	}

	if err := s.deps.Users.SetGoal(ctx, st.student.ID, st.goal.NextGoal, s.now().UTC()); err != nil {
		return err
	}
	st.student.CurrentGoal = st.goal.NextGoal
	return nil
}

func (s *pipelineService) scenarioExists(ctx context.Context, st *pipelineState) (bool, error) {
	scenario, err := s.deps.Scenarios.GetByOrigin(ctx, st.assignment.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	st.scenario = &scenario
	return true, nil
}

func (s *pipelineService) generateScenario(ctx context.Context, st *pipelineState) error {
	theme := st.student.PreferredTheme()
	if !models.ValidTheme(theme) {
		theme = models.DefaultTheme
	}

	output, err := s.deps.Generator.Generate(ctx, flows.ScenarioInput{
		Theme:      theme,
		Concepts:   []string{st.goal.WeakestConcept},
		Difficulty: st.goal.RecommendedDifficulty,
		Guidance:   st.goal.NextGoal,
	})
	if err != nil {
		return err
	}

	scenario := newScenarioModel(models.SystemEducatorID, output, st.goal.NextGoal)
	origin := st.assignment.ID
	scenario.OriginAssignmentID = &origin
	if err := s.deps.Scenarios.Create(ctx, &scenario); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		existing, getErr := s.deps.Scenarios.GetByOrigin(ctx, st.assignment.ID)
		if getErr != nil {
			return getErr
		}
		scenario = existing
	}
	st.scenario = &scenario
	return nil
}

func (s *pipelineService) nextAssignmentExists(ctx context.Context, st *pipelineState) (bool, error) {
	next, err := s.deps.Assignments.GetBySource(ctx, st.assignment.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	st.next = &next
	return true, nil
}

func (s *pipelineService) persistAssignment(ctx context.Context, st *pipelineState) error {
	studentID := st.student.ID
	source := st.assignment.ID
	due := s.now().UTC().Add(s.deps.DefaultDue)

	next := models.Assignment{
		EducatorID:              models.SystemEducatorID,
		ScenarioID:              st.scenario.ID,
		StudentID:               &studentID,
		DueDate:                 &due,
		Status:                  models.AssignmentStatusAssigned,
		Concept:                 st.scenario.PrimaryConcept,
		Difficulty:              st.scenario.Difficulty,
		IsAutonomouslyGenerated: true,
		SourceAssignmentID:      &source,
	}
	if err := s.deps.Assignments.Create(ctx, &next); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		existing, getErr := s.deps.Assignments.GetBySource(ctx, source)
		if getErr != nil {
			return getErr
		}
		next = existing
	}
	st.next = &next
	return nil
}
