package db

import (
	"marketsync/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.SyncRun{},
		&models.SyncProgress{},
		&models.SyncTransition{},
		&models.SyncLease{},
		&models.Product{},
		&models.Order{},
	)
}
