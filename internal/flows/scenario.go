package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/pkg/ai"
)

const scenarioSystemPrompt = `You write programming practice problems about data structures and algorithms for students.

Rules:
- Tell the problem as a short story in the requested theme, but keep the task itself precise: inputs, outputs and constraints must be unambiguous.
- The problem must exercise one concept from the given list. Return that concept in primary_concept exactly as it is written in the list.
- Match the requested difficulty. Easy problems need one idea, Medium problems combine two steps, Hard problems need an efficient algorithm.
- Write exactly 3 hints. The first only points in a direction, the second names the technique, the third outlines the algorithm without code.
- Write at least 4 test cases. At least one must be an edge case (empty input, a single element, duplicates, limits) with is_edge_case set to true.
- Never include a solution in the statement or the hints.`

// ScenarioInput holds the parameters of a generated problem.
type ScenarioInput struct {
	Theme      string
	Concepts   []string
	Difficulty string
	Guidance   string
}

// ScenarioOutput is a validated generated problem.
type ScenarioOutput struct {
	Theme          string
	Difficulty     string
	Concepts       []string
	PrimaryConcept string
	Content        string
	Hints          []string
	TestCases      []TestCase
}

// TestCase is one input/output example of a scenario.
type TestCase struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	IsEdgeCase  bool   `json:"is_edge_case"`
	Explanation string `json:"explanation"`
}

type scenarioPayload struct {
	Content        string     `json:"content"`
	PrimaryConcept string     `json:"primary_concept"`
	Hints          []string   `json:"hints"`
	TestCases      []TestCase `json:"test_cases"`
}

// ScenarioFlow generates themed problems.
type ScenarioFlow struct {
	provider ai.Provider
	logger   zerolog.Logger
}

// NewScenarioFlow constructs the scenario generator.
func NewScenarioFlow(provider ai.Provider, logger zerolog.Logger) *ScenarioFlow {
	return &ScenarioFlow{
		provider: provider,
		logger:   logger.With().Str("component", "scenario_flow").Logger(),
	}
}

// Generate asks the model for a problem and returns it only if every structural rule holds.
func (f *ScenarioFlow) Generate(ctx context.Context, input ScenarioInput) (*ScenarioOutput, error) {
	input, err := normalizeScenarioInput(input)
	if err != nil {
		return nil, err
	}

	resp, err := f.provider.Generate(ctx, ai.Request{
		System:      scenarioSystemPrompt,
		Messages:    []ai.Message{ai.UserMessage(buildScenarioMessage(input))},
		Schema:      ScenarioSchema,
		MaxTokens:   2048,
		Temperature: 0.8,
	})
	if err != nil {
		return nil, fmt.Errorf("generate scenario: %w", err)
	}

	var payload scenarioPayload
	if err := resp.Decode(ScenarioSchema.Name, &payload); err != nil {
		return nil, err
	}

	output, err := checkScenario(input, payload)
	if err != nil {
		f.logger.Warn().Err(err).Str("theme", input.Theme).Str("difficulty", input.Difficulty).Msg("rejected generated scenario")
		return nil, err
	}
	return output, nil
}

func normalizeScenarioInput(input ScenarioInput) (ScenarioInput, error) {
	input.Theme = strings.ToLower(strings.TrimSpace(input.Theme))
	if input.Theme == "" {
		input.Theme = models.DefaultTheme
	}
	if !models.ValidTheme(input.Theme) {
		return input, fmt.Errorf("%w: unknown theme %q", ErrInvalidInput, input.Theme)
	}
	if !models.ValidDifficulty(input.Difficulty) {
		return input, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidInput, input.Difficulty)
	}

	concepts := make([]string, 0, len(input.Concepts))
	seen := make(map[string]struct{}, len(input.Concepts))
	for _, concept := range input.Concepts {
		concept = strings.TrimSpace(concept)
		key := strings.ToLower(concept)
		if concept == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		concepts = append(concepts, concept)
	}
	if len(concepts) == 0 {
		return input, fmt.Errorf("%w: at least one concept is required", ErrInvalidInput)
	}
	input.Concepts = concepts
	input.Guidance = strings.TrimSpace(input.Guidance)
	return input, nil
}

func buildScenarioMessage(input ScenarioInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Theme: %s\n", input.Theme)
	fmt.Fprintf(&b, "Difficulty: %s\n", input.Difficulty)
	fmt.Fprintf(&b, "Concepts: %s\n", strings.Join(input.Concepts, ", "))
	if input.Guidance != "" {
		b.WriteString("\nEducator guidance:\n")
		b.WriteString(input.Guidance)
	}
	return b.String()
}

func checkScenario(input ScenarioInput, payload scenarioPayload) (*ScenarioOutput, error) {
	name := ScenarioSchema.Name

	content := strings.TrimSpace(payload.Content)
	if content == "" {
		return nil, ai.Invalid(name, "content is empty")
	}

	if len(payload.Hints) != models.ScenarioHintCount {
		return nil, ai.Invalid(name, "expected %d hints, got %d", models.ScenarioHintCount, len(payload.Hints))
	}
	hints := make([]string, len(payload.Hints))
	for i, hint := range payload.Hints {
		hints[i] = strings.TrimSpace(hint)
		if hints[i] == "" {
			return nil, ai.Invalid(name, "hint %d is empty", i+1)
		}
	}

	if len(payload.TestCases) < 4 {
		return nil, ai.Invalid(name, "expected at least 4 test cases, got %d", len(payload.TestCases))
	}
	edge := false
	for _, tc := range payload.TestCases {
		if tc.IsEdgeCase {
			edge = true
			break
		}
	}
	if !edge {
		return nil, ai.Invalid(name, "no edge case among %d test cases", len(payload.TestCases))
	}

	primary := ""
	for _, concept := range input.Concepts {
		if strings.EqualFold(concept, strings.TrimSpace(payload.PrimaryConcept)) {
			primary = concept
			break
		}
	}
	if primary == "" {
		return nil, ai.Invalid(name, "primary concept %q is not one of %v", payload.PrimaryConcept, input.Concepts)
	}

	return &ScenarioOutput{
		Theme:          input.Theme,
		Difficulty:     input.Difficulty,
		Concepts:       input.Concepts,
		PrimaryConcept: primary,
		Content:        content,
		Hints:          hints,
		TestCases:      payload.TestCases,
	}, nil
}
