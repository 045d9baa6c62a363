package models

import "time"

// RosterEntry links an educator to one of their students.
type RosterEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EducatorID string    `gorm:"size:128;not null;uniqueIndex:idx_roster_pair" json:"educator_id"`
	StudentID  string    `gorm:"size:128;not null;uniqueIndex:idx_roster_pair;index" json:"student_id"`
	CreatedAt  time.Time `json:"created_at"`
	Student    User      `gorm:"foreignKey:StudentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}
