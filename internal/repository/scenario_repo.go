package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// ScenarioRepository persists scenarios together with their hints and test cases.
type ScenarioRepository interface {
	Create(ctx context.Context, scenario *models.Scenario) error
	GetByID(ctx context.Context, id string) (models.Scenario, error)
	GetByOrigin(ctx context.Context, assignmentID string) (models.Scenario, error)
	ListByCreator(ctx context.Context, createdBy string, page, pageSize int) ([]models.Scenario, int64, error)
}

type scenarioRepository struct {
	db *gorm.DB
}

// NewScenarioRepository constructs a GORM-backed scenario repository.
func NewScenarioRepository(db *gorm.DB) ScenarioRepository {
	return &scenarioRepository{db: db}
}

// Create writes the scenario and its sub-documents in a single transaction.
func (r *scenarioRepository) Create(ctx context.Context, scenario *models.Scenario) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(scenario).Error
	})
}

func (r *scenarioRepository) GetByID(ctx context.Context, id string) (models.Scenario, error) {
	var scenario models.Scenario
	if err := withScenarioChildren(r.db.WithContext(ctx), "").First(&scenario, "id = ?", id).Error; err != nil {
		return models.Scenario{}, err
	}
	return scenario, nil
}

func (r *scenarioRepository) GetByOrigin(ctx context.Context, assignmentID string) (models.Scenario, error) {
	var scenario models.Scenario
	if err := withScenarioChildren(r.db.WithContext(ctx), "").
		Where("origin_assignment_id = ?", assignmentID).
		First(&scenario).Error; err != nil {
		return models.Scenario{}, err
	}
	return scenario, nil
}

func (r *scenarioRepository) ListByCreator(ctx context.Context, createdBy string, page, pageSize int) ([]models.Scenario, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Scenario{}).Where("created_by = ?", createdBy)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var scenarios []models.Scenario
	if err := withScenarioChildren(query, "").Order("created_at DESC").Find(&scenarios).Error; err != nil {
		return nil, 0, err
	}
	return scenarios, total, nil
}

// withScenarioChildren preloads hints and test cases in their stored order.
// prefix is the association path when the scenario is itself preloaded, e.g. "Scenario.".
func withScenarioChildren(db *gorm.DB, prefix string) *gorm.DB {
	byPosition := func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	}
	return db.
		Preload(prefix+"Hints", byPosition).
		Preload(prefix+"TestCases", byPosition)
}
