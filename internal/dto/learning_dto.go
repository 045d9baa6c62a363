package dto

import "github.com/noah-isme/algogenius-api/internal/flows"

// QuizRequest asks for a practice quiz.
type QuizRequest struct {
	Concept    string `json:"concept" validate:"required,max=128"`
	Difficulty string `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
	Count      int    `json:"count" validate:"required,min=1,max=10"`
}

// StudyPlanRequest asks for a weekly plan. An empty goal uses the caller's current goal.
type StudyPlanRequest struct {
	Goal     string   `json:"goal" validate:"omitempty,max=1000"`
	Concepts []string `json:"concepts" validate:"omitempty,max=10,dive,required,max=128"`
	Weeks    int      `json:"weeks" validate:"required,min=1,max=12"`
}

// QuizResponse is a generated quiz.
type QuizResponse struct {
	Concept    string               `json:"concept"`
	Difficulty string               `json:"difficulty"`
	Questions  []flows.QuizQuestion `json:"questions"`
}

// StudyPlanResponse is a generated study plan.
type StudyPlanResponse struct {
	Goal    string            `json:"goal"`
	Summary string            `json:"summary"`
	Weeks   []flows.StudyWeek `json:"weeks"`
}
