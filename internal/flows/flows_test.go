package flows

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/pkg/ai"
)

func TestSchemasCompile(t *testing.T) {
	for _, schema := range Schemas {
		_, err := ai.CompileSchema(schema)
		require.NoError(t, err, schema.Name)
	}
}

func TestScenarioFlowReturnsThreeHintsAndEdgeCase(t *testing.T) {
	mock := ai.NewMockProvider(ai.JSON(validScenarioPayload()))
	flow := NewScenarioFlow(mock, zerolog.Nop())

	out, err := flow.Generate(context.Background(), ScenarioInput{
		Theme:      "Space",
		Concepts:   []string{"Arrays", " arrays ", "Hashing"},
		Difficulty: models.DifficultyEasy,
		Guidance:   "  keep numbers small  ",
	})
	require.NoError(t, err)
	require.Len(t, out.Hints, models.ScenarioHintCount)
	require.Equal(t, "Arrays", out.PrimaryConcept, "primary concept uses the input spelling")
	require.Equal(t, []string{"Arrays", "Hashing"}, out.Concepts)
	require.Equal(t, "space", out.Theme)

	edge := false
	for _, tc := range out.TestCases {
		edge = edge || tc.IsEdgeCase
	}
	require.True(t, edge)

	require.Equal(t, 1, mock.CallCount())
	require.Contains(t, mock.Calls[0].Messages[0].Content, "keep numbers small")
	require.Equal(t, ScenarioSchema, mock.Calls[0].Schema)
}

func TestScenarioFlowDefaultsTheme(t *testing.T) {
	mock := ai.NewMockProvider(ai.JSON(validScenarioPayload()))
	flow := NewScenarioFlow(mock, zerolog.Nop())

	out, err := flow.Generate(context.Background(), ScenarioInput{Concepts: []string{"Arrays"}, Difficulty: models.DifficultyMedium})
	require.NoError(t, err)
	require.Equal(t, models.DefaultTheme, out.Theme)
}

func TestScenarioFlowRejectsMissingEdgeCase(t *testing.T) {
	payload := validScenarioPayload()
	cases := payload["test_cases"].([]map[string]any)
	cases[3]["is_edge_case"] = false

	flow := NewScenarioFlow(ai.NewMockProvider(ai.JSON(payload)), zerolog.Nop())
	_, err := flow.Generate(context.Background(), ScenarioInput{Concepts: []string{"Arrays"}, Difficulty: models.DifficultyEasy})
	require.Error(t, err)
	require.True(t, ai.IsValidationError(err))
}

func TestScenarioFlowRejectsWrongHintCount(t *testing.T) {
	payload := validScenarioPayload()
	payload["hints"] = []string{"one", "two"}

	flow := NewScenarioFlow(ai.NewMockProvider(ai.JSON(payload)), zerolog.Nop())
	_, err := flow.Generate(context.Background(), ScenarioInput{Concepts: []string{"Arrays"}, Difficulty: models.DifficultyEasy})
	require.True(t, ai.IsValidationError(err))
}

func TestScenarioFlowRejectsForeignPrimaryConcept(t *testing.T) {
	payload := validScenarioPayload()
	payload["primary_concept"] = "Graphs"

	flow := NewScenarioFlow(ai.NewMockProvider(ai.JSON(payload)), zerolog.Nop())
	_, err := flow.Generate(context.Background(), ScenarioInput{Concepts: []string{"Arrays"}, Difficulty: models.DifficultyEasy})
	require.True(t, ai.IsValidationError(err))
}

func TestScenarioFlowValidatesInputBeforeCallingModel(t *testing.T) {
	mock := ai.NewMockProvider()
	flow := NewScenarioFlow(mock, zerolog.Nop())

	_, err := flow.Generate(context.Background(), ScenarioInput{Theme: "western", Concepts: []string{"Arrays"}, Difficulty: models.DifficultyEasy})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = flow.Generate(context.Background(), ScenarioInput{Concepts: []string{" "}, Difficulty: models.DifficultyEasy})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = flow.Generate(context.Background(), ScenarioInput{Concepts: []string{"Arrays"}, Difficulty: "Expert"})
	require.ErrorIs(t, err, ErrInvalidInput)

	require.Zero(t, mock.CallCount())
}

func TestScenarioFlowSurfacesGenerationError(t *testing.T) {
	flow := NewScenarioFlow(ai.NewMockProvider(), zerolog.Nop())
	_, err := flow.Generate(context.Background(), ScenarioInput{Concepts: []string{"Arrays"}, Difficulty: models.DifficultyEasy})
	require.True(t, ai.IsGenerationError(err))
}

func TestAssessmentFlowKeepsScoreInRangeAndPassingRule(t *testing.T) {
	cases := []struct {
		name       string
		correct    bool
		score      int
		wantOK     bool
		wantResult bool
		reconciled bool
	}{
		{name: "correct and efficient", correct: true, score: 95, wantOK: true, wantResult: true},
		{name: "correct flag below passing", correct: true, score: 45, wantOK: true, wantResult: false, reconciled: true},
		{name: "incorrect high score kept", correct: false, score: 70, wantOK: true, wantResult: false},
		{name: "score above range", correct: true, score: 120},
		{name: "negative score", correct: false, score: -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flow := NewAssessmentFlow(ai.NewMockProvider(ai.JSON(assessmentPayloadFixture(tc.correct, tc.score))), zerolog.Nop())
			out, err := flow.Assess(context.Background(), AssessmentInput{
				Scenario:   "count asteroids",
				Concept:    "Arrays",
				Difficulty: models.DifficultyEasy,
				Code:       "def solve(a, k): return sum(1 for x in a if x > k)",
				Language:   "python",
			})
			if !tc.wantOK {
				require.True(t, ai.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			require.GreaterOrEqual(t, out.Score, 0)
			require.LessOrEqual(t, out.Score, 100)
			require.Equal(t, tc.wantResult, out.IsCorrect)
			require.Equal(t, tc.reconciled, out.Reconciled)
			if out.IsCorrect {
				require.GreaterOrEqual(t, out.Score, PassingScore)
			}
		})
	}
}

func TestAssessmentFlowIncludesSandboxReport(t *testing.T) {
	mock := ai.NewMockProvider(ai.JSON(assessmentPayloadFixture(true, 90)))
	flow := NewAssessmentFlow(mock, zerolog.Nop())

	_, err := flow.Assess(context.Background(), AssessmentInput{
		Scenario:      "count asteroids",
		Code:          "print(2)",
		SandboxReport: "case 1: passed",
	})
	require.NoError(t, err)
	require.Contains(t, mock.Calls[0].Messages[0].Content, "case 1: passed")
	require.Contains(t, mock.Calls[0].System, "90 to 100")
}

func TestAssessmentFlowRejectsEmptyCode(t *testing.T) {
	mock := ai.NewMockProvider()
	flow := NewAssessmentFlow(mock, zerolog.Nop())

	_, err := flow.Assess(context.Background(), AssessmentInput{Scenario: "x", Code: "   "})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, mock.CallCount())
}

func TestQuizFlowRequiresRequestedCount(t *testing.T) {
	question := map[string]any{
		"question":     "What is the cost of indexing an array?",
		"options":      []string{"O(1)", "O(n)", "O(log n)", "O(n^2)"},
		"answer_index": 0,
		"explanation":  "Arrays are contiguous.",
	}

	flow := NewQuizFlow(ai.NewMockProvider(ai.JSON(map[string]any{"questions": []any{question}})), zerolog.Nop())
	quiz, err := flow.Generate(context.Background(), QuizInput{Concept: "Arrays", Difficulty: models.DifficultyEasy, Count: 1})
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 1)
	require.Len(t, quiz.Questions[0].Options, 4)

	flow = NewQuizFlow(ai.NewMockProvider(ai.JSON(map[string]any{"questions": []any{question}})), zerolog.Nop())
	_, err = flow.Generate(context.Background(), QuizInput{Concept: "Arrays", Difficulty: models.DifficultyEasy, Count: 2})
	require.True(t, ai.IsValidationError(err))

	bad := map[string]any{
		"question":     "q",
		"options":      []string{"a", "b", "c", "d"},
		"answer_index": 7,
		"explanation":  "e",
	}
	flow = NewQuizFlow(ai.NewMockProvider(ai.JSON(map[string]any{"questions": []any{bad}})), zerolog.Nop())
	_, err = flow.Generate(context.Background(), QuizInput{Concept: "Arrays", Difficulty: models.DifficultyEasy, Count: 1})
	require.True(t, ai.IsValidationError(err))

	_, err = flow.Generate(context.Background(), QuizInput{Concept: "Arrays", Difficulty: models.DifficultyEasy, Count: 11})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestStudyPlanFlowNumbersWeeks(t *testing.T) {
	plan := map[string]any{
		"summary": "Two weeks on arrays.",
		"weeks": []map[string]any{
			{"week": 1, "focus": "Arrays", "activities": []string{"Solve 3 problems"}, "milestone": "70% on Easy"},
			{"week": 2, "focus": "Two pointers", "activities": []string{"Solve 2 problems"}, "milestone": "85% on Medium"},
		},
	}

	flow := NewStudyPlanFlow(ai.NewMockProvider(ai.JSON(plan)), zerolog.Nop())
	out, err := flow.Generate(context.Background(), StudyPlanInput{Goal: "Reach 85% on Medium Arrays", Weeks: 2})
	require.NoError(t, err)
	require.Len(t, out.Weeks, 2)

	plan["weeks"].([]map[string]any)[1]["week"] = 3
	flow = NewStudyPlanFlow(ai.NewMockProvider(ai.JSON(plan)), zerolog.Nop())
	_, err = flow.Generate(context.Background(), StudyPlanInput{Goal: "Reach 85% on Medium Arrays", Weeks: 2})
	require.True(t, ai.IsValidationError(err))

	_, err = flow.Generate(context.Background(), StudyPlanInput{Goal: "", Weeks: 2})
	require.ErrorIs(t, err, ErrInvalidInput)
}
