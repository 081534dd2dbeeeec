package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"baidu-face-go/config"
	"baidu-face-go/internal/core/models"

	"github.com/glebarez/sqlite" // pure Go SQLite driver
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open initializes the SQLite database and runs migrations.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	if cfg.File != "" {
		dbDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gormLogger := logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Infof("Connecting to database: %s", cfg.File)
	database, err := gorm.Open(sqlite.Open(cfg.File), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	log.Info("Running database migrations...")
	if err := database.AutoMigrate(&models.Detection{}); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Info("Database initialized")
	return database, nil
}
