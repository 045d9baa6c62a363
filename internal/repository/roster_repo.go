package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// RosterRepository persists educator rosters.
type RosterRepository interface {
	Add(ctx context.Context, entry *models.RosterEntry) error
	Remove(ctx context.Context, educatorID, studentID string) (bool, error)
	List(ctx context.Context, educatorID string) ([]models.RosterEntry, error)
	Contains(ctx context.Context, educatorID, studentID string) (bool, error)
	EducatorsOf(ctx context.Context, studentID string) ([]string, error)
}

type rosterRepository struct {
	db *gorm.DB
}

// NewRosterRepository constructs a GORM-backed roster repository.
func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db}
}

// Add inserts the entry; adding a student twice is a no-op.
func (r *rosterRepository) Add(ctx context.Context, entry *models.RosterEntry) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry).Error
}

func (r *rosterRepository) Remove(ctx context.Context, educatorID, studentID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("educator_id = ? AND student_id = ?", educatorID, studentID).
		Delete(&models.RosterEntry{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *rosterRepository) List(ctx context.Context, educatorID string) ([]models.RosterEntry, error) {
	var entries []models.RosterEntry
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Where("educator_id = ?", educatorID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *rosterRepository) Contains(ctx context.Context, educatorID, studentID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.RosterEntry{}).
		Where("educator_id = ? AND student_id = ?", educatorID, studentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *rosterRepository) EducatorsOf(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&models.RosterEntry{}).
		Where("student_id = ?", studentID).
		Pluck("educator_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
