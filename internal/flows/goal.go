package flows

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/pkg/ai"
)

// DefaultConcept is the first topic suggested to students without history.
const DefaultConcept = "Arrays"

const goalSystemPrompt = `You are a learning coach for students practicing data structures and algorithms.

You receive the student's previous goal, their recent graded work, and a focus that has already been chosen for them: a concept, a difficulty and a target score.
Write the next goal as one or two encouraging sentences in the second person.

Rules:
- The goal must name the concept, the difficulty and the target score exactly as given (for example "85%").
- The goal must be specific and measurable: say what to practice and how success is judged.
- Copy the given concept into weakest_concept and the given difficulty into recommended_difficulty.`

// GoalInput is the agent's view of a student.
type GoalInput struct {
	PreviousGoal string
	History      []PerformanceRecord
}

// Goal is the next learning objective of a student.
type Goal struct {
	WeakestConcept        string
	NextGoal              string
	RecommendedDifficulty string
	TargetScore           int
	AverageScore          float64
	HistorySize           int
	Default               bool
}

type goalPayload struct {
	NextGoal              string `json:"next_goal"`
	WeakestConcept        string `json:"weakest_concept"`
	RecommendedDifficulty string `json:"recommended_difficulty"`
}

// GoalAgent derives the next learning goal from performance history. The
// concept and difficulty are computed here; the model only phrases the goal.
type GoalAgent struct {
	provider ai.Provider
	logger   zerolog.Logger
}

// NewGoalAgent constructs the goal update agent.
func NewGoalAgent(provider ai.Provider, logger zerolog.Logger) *GoalAgent {
	return &GoalAgent{
		provider: provider,
		logger:   logger.With().Str("component", "goal_agent").Logger(),
	}
}

// DefaultGoal is the introductory goal given to students without graded work.
func DefaultGoal() *Goal {
	difficulty := models.DifficultyEasy
	target := TargetScore(difficulty)
	return &Goal{
		WeakestConcept:        DefaultConcept,
		RecommendedDifficulty: difficulty,
		TargetScore:           target,
		NextGoal: fmt.Sprintf(
			"Solve an introductory %s %s problem and score at least %d%% to set your starting point.",
			difficulty, DefaultConcept, target,
		),
		Default: true,
	}
}

// Update computes the next goal. An empty history yields DefaultGoal without a model call.
func (a *GoalAgent) Update(ctx context.Context, input GoalInput) (*Goal, error) {
	weakest, ok := WeakestConcept(input.History)
	if !ok {
		return DefaultGoal(), nil
	}

	average := weakest.Average()
	difficulty := RecommendDifficulty(average)
	goal := &Goal{
		WeakestConcept:        weakest.Concept,
		RecommendedDifficulty: difficulty,
		TargetScore:           TargetScore(difficulty),
		AverageScore:          average,
		HistorySize:           len(input.History),
	}

	resp, err := a.provider.Generate(ctx, ai.Request{
		System:      goalSystemPrompt,
		Messages:    []ai.Message{ai.UserMessage(buildGoalMessage(input, goal))},
		Schema:      GoalSchema,
		MaxTokens:   512,
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}

	var payload goalPayload
	if err := resp.Decode(GoalSchema.Name, &payload); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(payload.NextGoal)
	if err := checkGoalText(text, goal); err != nil {
		return nil, err
	}
	goal.NextGoal = text

	if !strings.EqualFold(strings.TrimSpace(payload.WeakestConcept), goal.WeakestConcept) ||
		payload.RecommendedDifficulty != goal.RecommendedDifficulty {
		a.logger.Info().
			Str("model_concept", payload.WeakestConcept).
			Str("model_difficulty", payload.RecommendedDifficulty).
			Str("concept", goal.WeakestConcept).
			Str("difficulty", goal.RecommendedDifficulty).
			Msg("model focus ignored in favour of computed focus")
	}

	return goal, nil
}

func checkGoalText(text string, goal *Goal) error {
	name := GoalSchema.Name
	if text == "" {
		return ai.Invalid(name, "goal text is empty")
	}
	lower := strings.ToLower(text)
	if !strings.Contains(lower, strings.ToLower(goal.WeakestConcept)) {
		return ai.Invalid(name, "goal does not mention concept %q", goal.WeakestConcept)
	}
	if !strings.Contains(lower, strings.ToLower(goal.RecommendedDifficulty)) {
		return ai.Invalid(name, "goal does not mention difficulty %q", goal.RecommendedDifficulty)
	}
	if !strings.Contains(text, strconv.Itoa(goal.TargetScore)) {
		return ai.Invalid(name, "goal does not mention target score %d", goal.TargetScore)
	}
	return nil
}

func buildGoalMessage(input GoalInput, goal *Goal) string {
	var b strings.Builder
	previous := strings.TrimSpace(input.PreviousGoal)
	if previous == "" {
		previous = "None"
	}
	fmt.Fprintf(&b, "Previous goal: %s\n", previous)

	b.WriteString("\nRecent graded work (newest first):\n")
	for i, record := range input.History {
		fmt.Fprintf(&b, "%d. %s (%s): %d\n", i+1, record.Concept, record.Difficulty, record.Score)
	}

	fmt.Fprintf(&b, "\nConcept: %s\n", goal.WeakestConcept)
	fmt.Fprintf(&b, "Average score on concept: %.0f\n", goal.AverageScore)
	fmt.Fprintf(&b, "Difficulty: %s\n", goal.RecommendedDifficulty)
	fmt.Fprintf(&b, "Target score: %d%%\n", goal.TargetScore)
	return b.String()
}
