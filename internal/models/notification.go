package models

import "time"

// Notification types.
const (
	NotificationAssignmentReady = "assignment_ready"
	NotificationAssignmentGiven = "assignment_assigned"
	NotificationPipelineFailed  = "pipeline_failed"
)

// Notification is a message delivered to a single user.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"size:128;index" json:"user_id"`
	Type        string    `gorm:"size:64" json:"type"`
	Message     string    `gorm:"type:text" json:"message"`
	ReferenceID string    `gorm:"size:64" json:"reference_id"`
	Read        bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
