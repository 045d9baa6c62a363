package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// User roles. A role is fixed when the profile is created.
const (
	RoleStudent  = "student"
	RoleEducator = "educator"
)

// User is the profile attached to an identity-provider subject.
type User struct {
	ID                   string            `gorm:"primaryKey;size:128" json:"id"`
	Role                 string            `gorm:"size:16;not null;index" json:"role"`
	Email                string            `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name                 string            `gorm:"size:255;not null" json:"name"`
	Attributes           datatypes.JSONMap `json:"attributes"`
	CurrentGoal          string            `gorm:"type:text" json:"current_goal"`
	CurrentGoalUpdatedAt *time.Time        `json:"current_goal_updated_at"`
	LastLoginAt          *time.Time        `json:"last_login_at"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// IsStudent reports whether the profile belongs to a student.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}

// IsEducator reports whether the profile belongs to an educator.
func (u User) IsEducator() bool {
	return u.Role == RoleEducator
}

// PreferredTheme returns the student's preferred scenario theme, if any.
func (u User) PreferredTheme() string {
	if u.Attributes == nil {
		return ""
	}
	if value, ok := u.Attributes["preferred_theme"].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// ValidRole reports whether role is one of the supported roles.
func ValidRole(role string) bool {
	return role == RoleStudent || role == RoleEducator
}
