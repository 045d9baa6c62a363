package models

import "time"

// PipelineRun records how far the next-assignment pipeline got for a submission.
type PipelineRun struct {
	AssignmentID       string     `gorm:"primaryKey;size:36" json:"assignment_id"`
	StudentID          string     `gorm:"size:128;not null;index" json:"student_id"`
	LastCompletedStage string     `gorm:"size:32" json:"last_completed_stage"`
	FailedStage        string     `gorm:"size:32" json:"failed_stage"`
	Error              string     `gorm:"type:text" json:"error"`
	Attempts           int        `gorm:"not null;default:0" json:"attempts"`
	NextAssignmentID   *string    `gorm:"size:36" json:"next_assignment_id"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Succeeded reports whether every stage completed.
func (r PipelineRun) Succeeded() bool {
	return r.FinishedAt != nil && r.FailedStage == ""
}
