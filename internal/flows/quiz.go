package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/pkg/ai"
)

// MaxQuizQuestions bounds a single quiz.
const MaxQuizQuestions = 10

const quizOptionCount = 4

const quizSystemPrompt = `You write multiple choice questions that check understanding of data structures and algorithms.

Rules:
- Every question has exactly 4 options and exactly one correct option.
- Distractors reflect common misconceptions, not random values.
- Prefer questions about behaviour and complexity over definitions.
- answer_index is the zero based position of the correct option.
- The explanation says why the correct option is right and why the most tempting distractor is wrong.`

// QuizInput describes a requested quiz.
type QuizInput struct {
	Concept    string
	Difficulty string
	Count      int
}

// QuizQuestion is one validated question.
type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation"`
}

// Quiz is a validated set of questions.
type Quiz struct {
	Concept    string         `json:"concept"`
	Difficulty string         `json:"difficulty"`
	Questions  []QuizQuestion `json:"questions"`
}

type quizPayload struct {
	Questions []QuizQuestion `json:"questions"`
}

// QuizFlow generates quizzes.
type QuizFlow struct {
	provider ai.Provider
	logger   zerolog.Logger
}

// NewQuizFlow constructs the quiz generator.
func NewQuizFlow(provider ai.Provider, logger zerolog.Logger) *QuizFlow {
	return &QuizFlow{
		provider: provider,
		logger:   logger.With().Str("component", "quiz_flow").Logger(),
	}
}

// Generate returns exactly input.Count questions.
func (f *QuizFlow) Generate(ctx context.Context, input QuizInput) (*Quiz, error) {
	input.Concept = strings.TrimSpace(input.Concept)
	if input.Concept == "" {
		return nil, fmt.Errorf("%w: concept is required", ErrInvalidInput)
	}
	if !models.ValidDifficulty(input.Difficulty) {
		return nil, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidInput, input.Difficulty)
	}
	if input.Count < 1 || input.Count > MaxQuizQuestions {
		return nil, fmt.Errorf("%w: question count must be between 1 and %d", ErrInvalidInput, MaxQuizQuestions)
	}

	message := fmt.Sprintf("Concept: %s\nDifficulty: %s\nNumber of questions: %d\n", input.Concept, input.Difficulty, input.Count)
	resp, err := f.provider.Generate(ctx, ai.Request{
		System:      quizSystemPrompt,
		Messages:    []ai.Message{ai.UserMessage(message)},
		Schema:      QuizSchema,
		MaxTokens:   600 * input.Count,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}

	var payload quizPayload
	if err := resp.Decode(QuizSchema.Name, &payload); err != nil {
		return nil, err
	}

	if len(payload.Questions) != input.Count {
		return nil, ai.Invalid(QuizSchema.Name, "expected %d questions, got %d", input.Count, len(payload.Questions))
	}
	for i, q := range payload.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return nil, ai.Invalid(QuizSchema.Name, "question %d is empty", i+1)
		}
		if len(q.Options) != quizOptionCount {
			return nil, ai.Invalid(QuizSchema.Name, "question %d has %d options", i+1, len(q.Options))
		}
		if q.AnswerIndex < 0 || q.AnswerIndex >= quizOptionCount {
			return nil, ai.Invalid(QuizSchema.Name, "question %d answer index %d out of range", i+1, q.AnswerIndex)
		}
	}

	f.logger.Debug().Str("concept", input.Concept).Int("questions", input.Count).Msg("quiz generated")
	return &Quiz{Concept: input.Concept, Difficulty: input.Difficulty, Questions: payload.Questions}, nil
}
