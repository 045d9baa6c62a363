package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Difficulty tiers shared by scenarios, assignments and learning goals.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// Difficulties lists the tiers in ascending order.
var Difficulties = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Themes lists the story settings a scenario can be written in.
var Themes = []string{
	"space",
	"fantasy",
	"sports",
	"cooking",
	"mystery",
	"gaming",
	"ocean",
	"superheroes",
}

// DefaultTheme is used when neither the request nor the student profile names one.
const DefaultTheme = "space"

// ScenarioHintCount is the number of hints every scenario carries.
const ScenarioHintCount = 3

// ValidDifficulty reports whether value is a known tier.
func ValidDifficulty(value string) bool {
	for _, d := range Difficulties {
		if d == value {
			return true
		}
	}
	return false
}

// ValidTheme reports whether value is a known theme.
func ValidTheme(value string) bool {
	for _, t := range Themes {
		if t == value {
			return true
		}
	}
	return false
}

// Scenario is a generated programming problem. It is never modified after creation.
type Scenario struct {
	ID                 string                      `gorm:"primaryKey;size:36" json:"id"`
	CreatedBy          string                      `gorm:"size:128;not null;index" json:"created_by"`
	Theme              string                      `gorm:"size:32;not null" json:"theme"`
	Difficulty         string                      `gorm:"size:16;not null" json:"difficulty"`
	PrimaryConcept     string                      `gorm:"size:128;not null" json:"primary_concept"`
	Concepts           datatypes.JSONSlice[string] `json:"concepts"`
	Guidance           string                      `gorm:"type:text" json:"guidance"`
	Content            string                      `gorm:"type:text;not null" json:"content"`
	OriginAssignmentID *string                     `gorm:"size:36;uniqueIndex" json:"origin_assignment_id,omitempty"`
	Hints              []ScenarioHint              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"hints"`
	TestCases          []ScenarioTestCase          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"test_cases"`
	CreatedAt          time.Time                   `json:"created_at"`
}

// BeforeCreate assigns a document identifier.
func (s *Scenario) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ScenarioHint is one of the progressively more specific hints of a scenario.
type ScenarioHint struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	ScenarioID string `gorm:"size:36;not null;index" json:"-"`
	Position   int    `gorm:"not null" json:"position"`
	Text       string `gorm:"type:text;not null" json:"text"`
}

// ScenarioTestCase is an input/output example of a scenario.
type ScenarioTestCase struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	ScenarioID  string `gorm:"size:36;not null;index" json:"-"`
	Position    int    `gorm:"not null" json:"position"`
	Input       string `gorm:"type:text;not null" json:"input"`
	Output      string `gorm:"type:text;not null" json:"output"`
	IsEdgeCase  bool   `gorm:"not null;default:false" json:"is_edge_case"`
	Explanation string `gorm:"type:text" json:"explanation"`
}

// HasEdgeCase reports whether at least one test case is marked as an edge case.
func (s Scenario) HasEdgeCase() bool {
	for _, tc := range s.TestCases {
		if tc.IsEdgeCase {
			return true
		}
	}
	return false
}

// HintTexts returns the hint texts ordered by position.
func (s Scenario) HintTexts() []string {
	texts := make([]string, len(s.Hints))
	for i, hint := range s.Hints {
		texts[i] = hint.Text
	}
	return texts
}
