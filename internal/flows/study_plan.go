package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/pkg/ai"
)

// MaxStudyPlanWeeks bounds the length of a plan.
const MaxStudyPlanWeeks = 12

const studyPlanSystemPrompt = `You plan self-study for students learning data structures and algorithms.

Rules:
- Produce one entry per week, numbered from 1, in order.
- Each week has one focus, a few concrete activities and a measurable milestone.
- Build from the student's goal: start with what the goal targets, then widen to the other listed concepts.
- Keep the workload realistic for a student with about five hours a week.`

// StudyPlanInput describes a requested plan.
type StudyPlanInput struct {
	Goal     string
	Concepts []string
	Weeks    int
}

// StudyWeek is one week of a plan.
type StudyWeek struct {
	Week       int      `json:"week"`
	Focus      string   `json:"focus"`
	Activities []string `json:"activities"`
	Milestone  string   `json:"milestone"`
}

// StudyPlan is a validated plan.
type StudyPlan struct {
	Summary string      `json:"summary"`
	Weeks   []StudyWeek `json:"weeks"`
}

// StudyPlanFlow generates study plans.
type StudyPlanFlow struct {
	provider ai.Provider
	logger   zerolog.Logger
}

// NewStudyPlanFlow constructs the study plan generator.
func NewStudyPlanFlow(provider ai.Provider, logger zerolog.Logger) *StudyPlanFlow {
	return &StudyPlanFlow{
		provider: provider,
		logger:   logger.With().Str("component", "study_plan_flow").Logger(),
	}
}

// Generate returns a plan with exactly input.Weeks entries numbered 1..Weeks.
func (f *StudyPlanFlow) Generate(ctx context.Context, input StudyPlanInput) (*StudyPlan, error) {
	input.Goal = strings.TrimSpace(input.Goal)
	if input.Goal == "" {
		return nil, fmt.Errorf("%w: goal is required", ErrInvalidInput)
	}
	if input.Weeks < 1 || input.Weeks > MaxStudyPlanWeeks {
		return nil, fmt.Errorf("%w: weeks must be between 1 and %d", ErrInvalidInput, MaxStudyPlanWeeks)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", input.Goal)
	if len(input.Concepts) > 0 {
		fmt.Fprintf(&b, "Concepts: %s\n", strings.Join(input.Concepts, ", "))
	}
	fmt.Fprintf(&b, "Weeks: %d\n", input.Weeks)

	resp, err := f.provider.Generate(ctx, ai.Request{
		System:      studyPlanSystemPrompt,
		Messages:    []ai.Message{ai.UserMessage(b.String())},
		Schema:      StudyPlanSchema,
		MaxTokens:   400 * input.Weeks,
		Temperature: 0.5,
	})
	if err != nil {
		return nil, fmt.Errorf("generate study plan: %w", err)
	}

	var plan StudyPlan
	if err := resp.Decode(StudyPlanSchema.Name, &plan); err != nil {
		return nil, err
	}

	if len(plan.Weeks) != input.Weeks {
		return nil, ai.Invalid(StudyPlanSchema.Name, "expected %d weeks, got %d", input.Weeks, len(plan.Weeks))
	}
	for i, week := range plan.Weeks {
		if week.Week != i+1 {
			return nil, ai.Invalid(StudyPlanSchema.Name, "entry %d is numbered week %d", i+1, week.Week)
		}
		if strings.TrimSpace(week.Focus) == "" {
			return nil, ai.Invalid(StudyPlanSchema.Name, "week %d has no focus", week.Week)
		}
	}

	f.logger.Debug().Int("weeks", input.Weeks).Msg("study plan generated")
	return &plan, nil
}
