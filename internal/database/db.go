package database

import (
	"fmt"

	"opensentinel/internal/config"
	"opensentinel/internal/models"
	"opensentinel/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the postgres connection and migrates the scan schema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Scan{}, &models.Vulnerability{}, &models.ToolFailure{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	logger.WithFields(logger.Fields{
		"host": cfg.DBHost,
		"name": cfg.DBName,
	}).Info("Database connection established and migrated")
	return db, nil
}
