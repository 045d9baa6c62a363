package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity actions.
const (
	ActivityAssignmentCreated  = "assignment.created"
	ActivityAssignmentAssigned = "assignment.assigned"
	ActivityPipelineCompleted  = "pipeline.completed"
	ActivityPipelineFailed     = "pipeline.failed"
)

// ActivityLog is an append-only audit entry. StudentID names the learner the event concerns, if any.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    string            `gorm:"size:128;not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   string            `gorm:"size:64" json:"entity_id"`
	StudentID  string            `gorm:"size:128;index" json:"student_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}
