package dto

import (
	"time"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// NotificationCreateRequest describes the payload to create a notification.
type NotificationCreateRequest struct {
	UserID      string `json:"user_id" validate:"required,max=128"`
	Type        string `json:"type" validate:"required,max=64"`
	Message     string `json:"message" validate:"required,min=1,max=2000"`
	ReferenceID string `json:"reference_id" validate:"omitempty,max=64"`
}

// NotificationListQuery pages through the caller's inbox.
type NotificationListQuery struct {
	Unread   bool `query:"unread"`
	Page     int  `query:"page" validate:"omitempty,min=1"`
	PageSize int  `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// NotificationListMeta adds the unread badge count to the page metadata.
type NotificationListMeta struct {
	PaginationMeta
	Unread int64 `json:"unread"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID          uint      `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	ReferenceID string    `json:"reference_id,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:          model.ID,
		UserID:      model.UserID,
		Type:        model.Type,
		Message:     model.Message,
		ReferenceID: model.ReferenceID,
		Read:        model.Read,
		CreatedAt:   model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
