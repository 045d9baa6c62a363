package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SystemEducatorID marks assignments created by the learning-goal agent.
const SystemEducatorID = "system"

// Assignment statuses in the only order they may be entered.
const (
	AssignmentStatusDraft     = "draft"
	AssignmentStatusAssigned  = "assigned"
	AssignmentStatusSubmitted = "submitted"
	AssignmentStatusCompleted = "completed"
)

var assignmentStatusRank = map[string]int{
	AssignmentStatusDraft:     0,
	AssignmentStatusAssigned:  1,
	AssignmentStatusSubmitted: 2,
	AssignmentStatusCompleted: 3,
}

// Assignment binds a scenario to a student.
type Assignment struct {
	ID                      string     `gorm:"primaryKey;size:36" json:"id"`
	EducatorID              string     `gorm:"size:128;not null;index" json:"educator_id"`
	ScenarioID              string     `gorm:"size:36;not null;index" json:"scenario_id"`
	StudentID               *string    `gorm:"size:128;index" json:"student_id"`
	DueDate                 *time.Time `json:"due_date"`
	Status                  string     `gorm:"size:16;not null;index" json:"status"`
	Concept                 string     `gorm:"size:128;not null" json:"concept"`
	Difficulty              string     `gorm:"size:16;not null" json:"difficulty"`
	Notes                   string     `gorm:"type:text" json:"notes"`
	Score                   *int       `json:"score"`
	IsCorrect               *bool      `json:"is_correct"`
	Feedback                string     `gorm:"type:text" json:"feedback"`
	AssessmentReconciled    bool       `gorm:"not null;default:false" json:"assessment_reconciled"`
	SubmittedCode           string     `gorm:"type:text" json:"submitted_code"`
	Language                string     `gorm:"size:32" json:"language"`
	SubmittedFileURL        string     `gorm:"size:512" json:"submitted_file_url"`
	IsAutonomouslyGenerated bool       `gorm:"not null;default:false" json:"is_autonomously_generated"`
	SourceAssignmentID      *string    `gorm:"size:36;uniqueIndex" json:"source_assignment_id,omitempty"`
	SubmittedAt             *time.Time `json:"submitted_at"`
	EvaluatedAt             *time.Time `json:"evaluated_at"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
	Scenario                *Scenario  `gorm:"foreignKey:ScenarioID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"scenario,omitempty"`
}

// BeforeCreate assigns a document identifier.
func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueDate != nil && reference.After(*a.DueDate)
}

// BelongsTo reports whether the assignment is bound to the given student.
func (a Assignment) BelongsTo(studentID string) bool {
	return a.StudentID != nil && *a.StudentID == studentID
}

// CanTransition reports whether moving from one status to another is the next forward step.
func CanTransition(from, to string) bool {
	fromRank, ok := assignmentStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := assignmentStatusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// StatusAtLeast reports whether status has reached or passed target.
func StatusAtLeast(status, target string) bool {
	return assignmentStatusRank[status] >= assignmentStatusRank[target]
}
