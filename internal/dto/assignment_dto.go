package dto

import (
	"time"

	"github.com/noah-isme/algogenius-api/internal/models"
)

const isoLayout = time.RFC3339

// AssignmentCreateRequest creates a draft from an existing scenario.
type AssignmentCreateRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required,uuid"`
	Notes      string `json:"notes" validate:"omitempty,max=2000"`
}

// AssignmentAssignRequest binds a draft to a student.
type AssignmentAssignRequest struct {
	StudentID string `json:"student_id" validate:"required,max=128"`
	DueDate   string `json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// ParseDueDate returns the requested due date, if any.
func (r AssignmentAssignRequest) ParseDueDate() (*time.Time, error) {
	if r.DueDate == "" {
		return nil, nil
	}
	parsed, err := time.Parse(isoLayout, r.DueDate)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// AssignmentListQuery filters assignment lists.
type AssignmentListQuery struct {
	Status   string `query:"status" validate:"omitempty,oneof=draft assigned submitted completed"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// AssignmentResponse is the serialized representation returned to API clients.
type AssignmentResponse struct {
	ID                      string            `json:"id"`
	EducatorID              string            `json:"educator_id"`
	ScenarioID              string            `json:"scenario_id"`
	StudentID               *string           `json:"student_id"`
	DueDate                 *time.Time        `json:"due_date"`
	Status                  string            `json:"status"`
	Concept                 string            `json:"concept"`
	Difficulty              string            `json:"difficulty"`
	Notes                   string            `json:"notes,omitempty"`
	Score                   *int              `json:"score"`
	IsCorrect               *bool             `json:"is_correct"`
	Feedback                string            `json:"feedback,omitempty"`
	AssessmentReconciled    bool              `json:"assessment_reconciled,omitempty"`
	SubmittedCode           string            `json:"submitted_code,omitempty"`
	Language                string            `json:"language,omitempty"`
	SubmittedFileURL        string            `json:"submitted_file_url,omitempty"`
	IsAutonomouslyGenerated bool              `json:"is_autonomously_generated"`
	SourceAssignmentID      *string           `json:"source_assignment_id,omitempty"`
	SubmittedAt             *time.Time        `json:"submitted_at,omitempty"`
	EvaluatedAt             *time.Time        `json:"evaluated_at,omitempty"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
	Scenario                *ScenarioResponse `json:"scenario,omitempty"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	response := AssignmentResponse{
		ID:                      model.ID,
		EducatorID:              model.EducatorID,
		ScenarioID:              model.ScenarioID,
		StudentID:               model.StudentID,
		DueDate:                 model.DueDate,
		Status:                  model.Status,
		Concept:                 model.Concept,
		Difficulty:              model.Difficulty,
		Notes:                   model.Notes,
		Score:                   model.Score,
		IsCorrect:               model.IsCorrect,
		Feedback:                model.Feedback,
		AssessmentReconciled:    model.AssessmentReconciled,
		SubmittedCode:           model.SubmittedCode,
		Language:                model.Language,
		SubmittedFileURL:        model.SubmittedFileURL,
		IsAutonomouslyGenerated: model.IsAutonomouslyGenerated,
		SourceAssignmentID:      model.SourceAssignmentID,
		SubmittedAt:             model.SubmittedAt,
		EvaluatedAt:             model.EvaluatedAt,
		CreatedAt:               model.CreatedAt,
		UpdatedAt:               model.UpdatedAt,
	}
	if model.Scenario != nil {
		scenario := NewScenarioResponse(*model.Scenario)
		response.Scenario = &scenario
	}
	return response
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}
