package dto

import (
	"time"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// ActivityListQuery filters the activity feed.
type ActivityListQuery struct {
	Action   string `query:"action" validate:"omitempty,max=64"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ActivityResponse is one audit entry.
type ActivityResponse struct {
	ID         uint           `json:"id"`
	ActorID    string         `json:"actor_id"`
	ActorRole  string         `json:"actor_role"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	StudentID  string         `json:"student_id,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewActivityResponse converts a model into an activity DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	metadata := map[string]any(entry.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	return ActivityResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		StudentID:  entry.StudentID,
		Metadata:   metadata,
		CreatedAt:  entry.CreatedAt,
	}
}
