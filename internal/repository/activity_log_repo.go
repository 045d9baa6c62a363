package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// ActivityLogFilter narrows activity log queries. ActorID and StudentIDs are OR-ed together.
type ActivityLogFilter struct {
	Page       int
	PageSize   int
	ActorID    string
	StudentIDs []string
	Action     string
}

// scope translates the filter into query conditions.
func (f ActivityLogFilter) scope(db *gorm.DB) *gorm.DB {
	if f.ActorID != "" || len(f.StudentIDs) > 0 {
		visible := db.Session(&gorm.Session{NewDB: true})
		if f.ActorID != "" {
			visible = visible.Or("actor_id = ?", f.ActorID)
		}
		if len(f.StudentIDs) > 0 {
			visible = visible.Or("student_id IN ?", f.StudentIDs)
		}
		db = db.Where(visible)
	}
	if f.Action != "" {
		db = db.Where("action = ?", f.Action)
	}
	return db
}

// ActivityLogRepository persists audit trail events.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ActivityLog{}).Scopes(filter.scope)

	var entries []models.ActivityLog
	total, err := countThenFind(query, filter.Page, filter.PageSize, &entries)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
