package dto

import "time"

// ConceptProgress summarises graded work on one concept.
type ConceptProgress struct {
	Concept      string  `json:"concept"`
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"average_score"`
}

// StudentDashboardResponse is the student's progress overview.
type StudentDashboardResponse struct {
	StatusCounts map[string]int        `json:"status_counts"`
	AverageScore *float64              `json:"average_score"`
	Concepts     []ConceptProgress     `json:"concepts"`
	CurrentGoal  string                `json:"current_goal,omitempty"`
	LatestGoal   *LearningGoalResponse `json:"latest_goal,omitempty"`
	Upcoming     []AssignmentResponse  `json:"upcoming"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// StudentProgress is one roster row of the educator dashboard.
type StudentProgress struct {
	StudentID    string   `json:"student_id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Assigned     int      `json:"assigned"`
	Completed    int      `json:"completed"`
	AverageScore *float64 `json:"average_score"`
	CurrentGoal  string   `json:"current_goal,omitempty"`
}

// EducatorDashboardResponse is the educator's roster overview.
type EducatorDashboardResponse struct {
	Students    []StudentProgress `json:"students"`
	Drafts      int               `json:"drafts"`
	GeneratedAt time.Time         `json:"generated_at"`
}
