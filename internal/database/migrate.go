package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RosterEntry{},
		&models.Scenario{},
		&models.ScenarioHint{},
		&models.ScenarioTestCase{},
		&models.Assignment{},
		&models.LearningGoal{},
		&models.PipelineRun{},
		&models.Notification{},
		&models.ActivityLog{},
	)
}
