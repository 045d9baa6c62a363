package dto

import (
	"time"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// ScenarioGenerateRequest asks for a new generated problem.
type ScenarioGenerateRequest struct {
	Theme      string   `json:"theme" validate:"omitempty,oneof=space fantasy sports cooking mystery gaming ocean superheroes"`
	Concepts   []string `json:"concepts" validate:"required,min=1,max=10,dive,required,max=128"`
	Difficulty string   `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
	Guidance   string   `json:"guidance" validate:"omitempty,max=2000"`
}

// TestCaseResponse is a serialized test case.
type TestCaseResponse struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	IsEdgeCase  bool   `json:"is_edge_case"`
	Explanation string `json:"explanation"`
}

// ScenarioResponse is the serialized scenario.
type ScenarioResponse struct {
	ID                 string             `json:"id"`
	CreatedBy          string             `json:"created_by"`
	Theme              string             `json:"theme"`
	Difficulty         string             `json:"difficulty"`
	PrimaryConcept     string             `json:"primary_concept"`
	Concepts           []string           `json:"concepts"`
	Content            string             `json:"content"`
	Hints              []string           `json:"hints"`
	TestCases          []TestCaseResponse `json:"test_cases"`
	OriginAssignmentID *string            `json:"origin_assignment_id,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// NewScenarioResponse converts a model into a DTO.
func NewScenarioResponse(model models.Scenario) ScenarioResponse {
	cases := make([]TestCaseResponse, 0, len(model.TestCases))
	for _, tc := range model.TestCases {
		cases = append(cases, TestCaseResponse{
			Input:       tc.Input,
			Output:      tc.Output,
			IsEdgeCase:  tc.IsEdgeCase,
			Explanation: tc.Explanation,
		})
	}
	concepts := append([]string{}, model.Concepts...)
	return ScenarioResponse{
		ID:                 model.ID,
		CreatedBy:          model.CreatedBy,
		Theme:              model.Theme,
		Difficulty:         model.Difficulty,
		PrimaryConcept:     model.PrimaryConcept,
		Concepts:           concepts,
		Content:            model.Content,
		Hints:              model.HintTexts(),
		TestCases:          cases,
		OriginAssignmentID: model.OriginAssignmentID,
		CreatedAt:          model.CreatedAt,
	}
}

// NewScenarioResponseSlice converts a slice of models into DTOs.
func NewScenarioResponseSlice(items []models.Scenario) []ScenarioResponse {
	out := make([]ScenarioResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewScenarioResponse(item))
	}
	return out
}
