package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// PipelineRunRepository stores the progress of next-assignment pipelines.
type PipelineRunRepository interface {
	Save(ctx context.Context, run *models.PipelineRun) error
	Get(ctx context.Context, assignmentID string) (models.PipelineRun, error)
}

type pipelineRunRepository struct {
	db *gorm.DB
}

// NewPipelineRunRepository constructs a GORM-backed pipeline run repository.
func NewPipelineRunRepository(db *gorm.DB) PipelineRunRepository {
	return &pipelineRunRepository{db: db}
}

func (r *pipelineRunRepository) Save(ctx context.Context, run *models.PipelineRun) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assignment_id"}},
			UpdateAll: true,
		}).
		Create(run).Error
}

func (r *pipelineRunRepository) Get(ctx context.Context, assignmentID string) (models.PipelineRun, error) {
	var run models.PipelineRun
	if err := r.db.WithContext(ctx).First(&run, "assignment_id = ?", assignmentID).Error; err != nil {
		return models.PipelineRun{}, err
	}
	return run, nil
}
