package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
)

// Open bootstraps a SQLite database using the provided filesystem path.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the engine's tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.IntrusionAttempt{},
		&models.AnomalyDetection{},
		&models.SecurityIncident{},
		&models.BehaviorProfile{},
		&models.BlacklistEntry{},
		&models.SessionEvent{},
		&models.AuditEntry{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
