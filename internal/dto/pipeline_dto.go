package dto

import (
	"time"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// SubmissionRequest carries submitted code. A multipart upload may replace Code.
type SubmissionRequest struct {
	Code     string `json:"code" form:"code" validate:"omitempty,max=100000"`
	Language string `json:"language" form:"language" validate:"required,max=32"`
}

// PipelineRunResponse reports the progress of the next-assignment pipeline.
type PipelineRunResponse struct {
	AssignmentID       string     `json:"assignment_id"`
	State              string     `json:"state"`
	LastCompletedStage string     `json:"last_completed_stage,omitempty"`
	FailedStage        string     `json:"failed_stage,omitempty"`
	Error              string     `json:"error,omitempty"`
	Attempts           int        `json:"attempts"`
	NextAssignmentID   *string    `json:"next_assignment_id,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}

// Pipeline run states.
const (
	PipelineStateRunning   = "running"
	PipelineStateFailed    = "failed"
	PipelineStateSucceeded = "succeeded"
)

// NewPipelineRunResponse converts a run record.
func NewPipelineRunResponse(run models.PipelineRun) PipelineRunResponse {
	state := PipelineStateRunning
	switch {
	case run.FailedStage != "":
		state = PipelineStateFailed
	case run.Succeeded():
		state = PipelineStateSucceeded
	}
	return PipelineRunResponse{
		AssignmentID:       run.AssignmentID,
		State:              state,
		LastCompletedStage: run.LastCompletedStage,
		FailedStage:        run.FailedStage,
		Error:              run.Error,
		Attempts:           run.Attempts,
		NextAssignmentID:   run.NextAssignmentID,
		StartedAt:          run.StartedAt,
		FinishedAt:         run.FinishedAt,
	}
}

// LearningGoalResponse is a serialized learning goal.
type LearningGoalResponse struct {
	WeakestConcept        string    `json:"weakest_concept"`
	NextGoal              string    `json:"next_goal"`
	RecommendedDifficulty string    `json:"recommended_difficulty"`
	TargetScore           int       `json:"target_score"`
	HistorySize           int       `json:"history_size"`
	CreatedAt             time.Time `json:"created_at"`
}

// NewLearningGoalResponse converts a goal model.
func NewLearningGoalResponse(model models.LearningGoal) LearningGoalResponse {
	return LearningGoalResponse{
		WeakestConcept:        model.WeakestConcept,
		NextGoal:              model.NextGoal,
		RecommendedDifficulty: model.RecommendedDifficulty,
		TargetScore:           model.TargetScore,
		HistorySize:           model.HistorySize,
		CreatedAt:             model.CreatedAt,
	}
}

// SubmissionResultResponse is returned after a pipeline run.
type SubmissionResultResponse struct {
	Assignment     AssignmentResponse    `json:"assignment"`
	Goal           *LearningGoalResponse `json:"goal,omitempty"`
	NextAssignment *AssignmentResponse   `json:"next_assignment,omitempty"`
	Pipeline       PipelineRunResponse   `json:"pipeline"`
}
