package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// LearningGoalRepository persists the goals produced by the goal agent.
type LearningGoalRepository interface {
	Create(ctx context.Context, goal *models.LearningGoal) error
	GetBySource(ctx context.Context, sourceAssignmentID string) (models.LearningGoal, error)
	LatestForStudent(ctx context.Context, studentID string) (models.LearningGoal, error)
}

type learningGoalRepository struct {
	db *gorm.DB
}

// NewLearningGoalRepository constructs a GORM-backed goal repository.
func NewLearningGoalRepository(db *gorm.DB) LearningGoalRepository {
	return &learningGoalRepository{db: db}
}

func (r *learningGoalRepository) Create(ctx context.Context, goal *models.LearningGoal) error {
	return r.db.WithContext(ctx).Create(goal).Error
}

func (r *learningGoalRepository) GetBySource(ctx context.Context, sourceAssignmentID string) (models.LearningGoal, error) {
	var goal models.LearningGoal
	if err := r.db.WithContext(ctx).First(&goal, "source_assignment_id = ?", sourceAssignmentID).Error; err != nil {
		return models.LearningGoal{}, err
	}
	return goal, nil
}

func (r *learningGoalRepository) LatestForStudent(ctx context.Context, studentID string) (models.LearningGoal, error) {
	var goal models.LearningGoal
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		First(&goal).Error; err != nil {
		return models.LearningGoal{}, err
	}
	return goal, nil
}
