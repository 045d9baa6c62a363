package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/pkg/ai"
)

// PassingScore is the lowest score a correct submission can carry.
const PassingScore = 60

const assessmentSystemPrompt = `You grade student solutions to programming problems.

Check the code against the problem statement and every test case, including edge cases. You cannot run the code unless a sandbox report is provided; reason about it carefully instead.

Scoring rubric:
- 90 to 100: fully correct and efficient for the stated constraints.
- 70 to 85: correct but inefficient, or correct with poor structure.
- 40 to 60: partially correct, fails some test cases or edge cases.
- below 40: does not work, does not compile, or does not address the problem.

Set is_correct to true only when the solution passes every test case. A correct solution never scores below 60.
Feedback must name what works, what fails and one concrete next step. Do not include a full corrected solution.`

// AssessmentInput is a submission to grade.
type AssessmentInput struct {
	Scenario      string
	Concept       string
	Difficulty    string
	Code          string
	Language      string
	SandboxReport string
}

// AssessmentOutput is a validated verdict. Reconciled is set when the model
// claimed correctness below the passing score and the claim was dropped.
type AssessmentOutput struct {
	IsCorrect  bool
	Score      int
	Feedback   string
	Reconciled bool
}

type assessmentPayload struct {
	IsCorrect bool   `json:"is_correct"`
	Score     int    `json:"score"`
	Feedback  string `json:"feedback"`
}

// AssessmentFlow grades code submissions.
type AssessmentFlow struct {
	provider ai.Provider
	logger   zerolog.Logger
}

// NewAssessmentFlow constructs the evaluator.
func NewAssessmentFlow(provider ai.Provider, logger zerolog.Logger) *AssessmentFlow {
	return &AssessmentFlow{
		provider: provider,
		logger:   logger.With().Str("component", "assessment_flow").Logger(),
	}
}

// Assess grades the submission.
func (f *AssessmentFlow) Assess(ctx context.Context, input AssessmentInput) (*AssessmentOutput, error) {
	if strings.TrimSpace(input.Code) == "" {
		return nil, fmt.Errorf("%w: submitted code is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Scenario) == "" {
		return nil, fmt.Errorf("%w: scenario is empty", ErrInvalidInput)
	}

	resp, err := f.provider.Generate(ctx, ai.Request{
		System:      assessmentSystemPrompt,
		Messages:    []ai.Message{ai.UserMessage(buildAssessmentMessage(input))},
		Schema:      AssessmentSchema,
		MaxTokens:   1024,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("assess submission: %w", err)
	}

	var payload assessmentPayload
	if err := resp.Decode(AssessmentSchema.Name, &payload); err != nil {
		return nil, err
	}

	if payload.Score < 0 || payload.Score > 100 {
		return nil, ai.Invalid(AssessmentSchema.Name, "score %d is outside 0..100", payload.Score)
	}
	feedback := strings.TrimSpace(payload.Feedback)
	if feedback == "" {
		return nil, ai.Invalid(AssessmentSchema.Name, "feedback is empty")
	}

	output := &AssessmentOutput{
		IsCorrect: payload.IsCorrect,
		Score:     payload.Score,
		Feedback:  feedback,
	}
	if output.IsCorrect && output.Score < PassingScore {
		output.IsCorrect = false
		output.Reconciled = true
		f.logger.Warn().
			Int("score", output.Score).
			Str("concept", input.Concept).
			Msg("model marked a failing score as correct; verdict set to incorrect")
	}

	return output, nil
}

func buildAssessmentMessage(input AssessmentInput) string {
	language := strings.TrimSpace(input.Language)
	if language == "" {
		language = "unspecified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Concept: %s\n", input.Concept)
	fmt.Fprintf(&b, "Difficulty: %s\n", input.Difficulty)
	b.WriteString("\nProblem:\n")
	b.WriteString(input.Scenario)
	fmt.Fprintf(&b, "\n\nSubmitted code (%s):\n```\n%s\n```\n", language, input.Code)
	if report := strings.TrimSpace(input.SandboxReport); report != "" {
		b.WriteString("\nSandbox report:\n")
		b.WriteString(report)
		b.WriteString("\n")
	}
	return b.String()
}
