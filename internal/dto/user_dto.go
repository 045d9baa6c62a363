package dto

import (
	"time"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// UserRegisterRequest is the signup payload. Email and id come from the identity token.
type UserRegisterRequest struct {
	Role       string         `json:"role" validate:"required,oneof=student educator"`
	Name       string         `json:"name" validate:"required,min=2,max=255"`
	Attributes map[string]any `json:"attributes"`
}

// UserUpdateRequest changes mutable profile fields. Role is accepted only to reject it.
type UserUpdateRequest struct {
	Name       *string        `json:"name" validate:"omitempty,min=2,max=255"`
	Role       *string        `json:"role"`
	Attributes map[string]any `json:"attributes"`
}

// UserResponse is the serialized profile.
type UserResponse struct {
	ID                   string         `json:"id"`
	Role                 string         `json:"role"`
	Email                string         `json:"email"`
	Name                 string         `json:"name"`
	Attributes           map[string]any `json:"attributes"`
	CurrentGoal          string         `json:"current_goal,omitempty"`
	CurrentGoalUpdatedAt *time.Time     `json:"current_goal_updated_at,omitempty"`
	LastLoginAt          *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(model models.User) UserResponse {
	attributes := map[string]any{}
	for key, value := range model.Attributes {
		attributes[key] = value
	}
	return UserResponse{
		ID:                   model.ID,
		Role:                 model.Role,
		Email:                model.Email,
		Name:                 model.Name,
		Attributes:           attributes,
		CurrentGoal:          model.CurrentGoal,
		CurrentGoalUpdatedAt: model.CurrentGoalUpdatedAt,
		LastLoginAt:          model.LastLoginAt,
		CreatedAt:            model.CreatedAt,
	}
}

// RosterAddRequest adds a student to the caller's roster.
type RosterAddRequest struct {
	StudentID string `json:"student_id" validate:"required,max=128"`
}

// RosterEntryResponse is one student on a roster.
type RosterEntryResponse struct {
	StudentID   string    `json:"student_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CurrentGoal string    `json:"current_goal,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// NewRosterEntryResponse converts a roster entry with its preloaded student.
func NewRosterEntryResponse(entry models.RosterEntry) RosterEntryResponse {
	return RosterEntryResponse{
		StudentID:   entry.StudentID,
		Name:        entry.Student.Name,
		Email:       entry.Student.Email,
		CurrentGoal: entry.Student.CurrentGoal,
		AddedAt:     entry.CreatedAt,
	}
}

// NewRosterResponseSlice converts roster entries.
func NewRosterResponseSlice(entries []models.RosterEntry) []RosterEntryResponse {
	out := make([]RosterEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, NewRosterEntryResponse(entry))
	}
	return out
}
