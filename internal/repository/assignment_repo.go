package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	StudentID  string
	EducatorID string
	ScenarioID string
	Status     string
	Page       int
	PageSize   int
}

// SubmissionRecord is written when a student claims an assignment for submission.
type SubmissionRecord struct {
	Code        string
	Language    string
	SubmittedAt time.Time
}

// EvaluationRecord is written when a submission has been assessed.
type EvaluationRecord struct {
	Score       int
	IsCorrect   bool
	Feedback    string
	Reconciled  bool
	EvaluatedAt time.Time
}

// AssignmentRepository defines persistence operations for assignments.
// Status changes go through conditional writes that report whether they applied.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	GetByID(ctx context.Context, id string) (models.Assignment, error)
	GetBySource(ctx context.Context, sourceAssignmentID string) (models.Assignment, error)
	List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error)
	Assign(ctx context.Context, id, educatorID, studentID string, due time.Time) (bool, error)
	ClaimSubmission(ctx context.Context, id, studentID string, record SubmissionRecord) (bool, error)
	AttachSubmissionFile(ctx context.Context, id, studentID, url string) (bool, error)
	CompleteEvaluation(ctx context.Context, id string, record EvaluationRecord) (bool, error)
	RecentCompleted(ctx context.Context, studentID string, limit int, excludeID string) ([]models.Assignment, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(assignment).Error
}

func (r *assignmentRepository) GetByID(ctx context.Context, id string) (models.Assignment, error) {
	var assignment models.Assignment
	if err := withScenarioChildren(r.db.WithContext(ctx).Preload("Scenario"), "Scenario.").
		First(&assignment, "id = ?", id).Error; err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (r *assignmentRepository) GetBySource(ctx context.Context, sourceAssignmentID string) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).
		Where("source_assignment_id = ?", sourceAssignmentID).
		First(&assignment).Error; err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (r *assignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Assignment{})

	if filter.StudentID != "" {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.EducatorID != "" {
		query = query.Where("educator_id = ?", filter.EducatorID)
	}
	if filter.ScenarioID != "" {
		query = query.Where("scenario_id = ?", filter.ScenarioID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var assignments []models.Assignment
	if err := query.Order("created_at DESC").Find(&assignments).Error; err != nil {
		return nil, 0, err
	}
	return assignments, total, nil
}

// Assign binds a draft to a student. Only drafts owned by educatorID are affected.
func (r *assignmentRepository) Assign(ctx context.Context, id, educatorID, studentID string, due time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND educator_id = ? AND status = ?", id, educatorID, models.AssignmentStatusDraft).
		Updates(map[string]interface{}{
			"student_id": studentID,
			"due_date":   due,
			"status":     models.AssignmentStatusAssigned,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimSubmission moves an assigned assignment to submitted exactly once.
func (r *assignmentRepository) ClaimSubmission(ctx context.Context, id, studentID string, record SubmissionRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND student_id = ? AND status = ?", id, studentID, models.AssignmentStatusAssigned).
		Updates(map[string]interface{}{
			"status":         models.AssignmentStatusSubmitted,
			"submitted_code": record.Code,
			"language":       record.Language,
			"submitted_at":   record.SubmittedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AttachSubmissionFile records the archived file of a claimed submission. It applies
// once: a submission that already carries a file URL is left untouched.
func (r *assignmentRepository) AttachSubmissionFile(ctx context.Context, id, studentID, url string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND student_id = ? AND status <> ?", id, studentID, models.AssignmentStatusAssigned).
		Where("(submitted_file_url = '' OR submitted_file_url IS NULL)").
		Update("submitted_file_url", url)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CompleteEvaluation stores the assessment of a submitted assignment exactly once.
func (r *assignmentRepository) CompleteEvaluation(ctx context.Context, id string, record EvaluationRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ?", id, models.AssignmentStatusSubmitted).
		Updates(map[string]interface{}{
			"status":                models.AssignmentStatusCompleted,
			"score":                 record.Score,
			"is_correct":            record.IsCorrect,
			"feedback":              record.Feedback,
			"assessment_reconciled": record.Reconciled,
			"evaluated_at":          record.EvaluatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RecentCompleted returns the most recently evaluated assignments of a student, newest first.
func (r *assignmentRepository) RecentCompleted(ctx context.Context, studentID string, limit int, excludeID string) ([]models.Assignment, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ? AND status = ? AND score IS NOT NULL", studentID, models.AssignmentStatusCompleted)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var assignments []models.Assignment
	if err := query.Order("evaluated_at DESC").Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}
