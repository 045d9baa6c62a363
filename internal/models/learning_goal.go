package models

import "time"

// LearningGoal is the goal derived after one evaluated assignment.
type LearningGoal struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	StudentID             string    `gorm:"size:128;not null;index" json:"student_id"`
	SourceAssignmentID    string    `gorm:"size:36;not null;uniqueIndex" json:"source_assignment_id"`
	WeakestConcept        string    `gorm:"size:128;not null" json:"weakest_concept"`
	NextGoal              string    `gorm:"type:text;not null" json:"next_goal"`
	RecommendedDifficulty string    `gorm:"size:16;not null" json:"recommended_difficulty"`
	TargetScore           int       `gorm:"not null" json:"target_score"`
	HistorySize           int       `gorm:"not null" json:"history_size"`
	CreatedAt             time.Time `json:"created_at"`
}
