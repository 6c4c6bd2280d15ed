// Package db establishes the GORM/postgres connection backing the device
// directory (§6 "injected lookup"), adapted from the teacher's
// internal/db/connection.go down to the one table this gateway actually
// owns.
package db

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tracker_gateway/internal/directory"
)

// DB is the process-wide GORM handle.
var DB *gorm.DB

// Initialize opens the postgres connection and runs migrations.
func Initialize(dsn string) error {
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	log.Println("database connection established")

	if err := RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %v", err)
	}
	return nil
}

// RunMigrations creates/updates the directory_devices table.
func RunMigrations() error {
	return DB.AutoMigrate(&directory.Device{})
}

// GetDB returns the shared database handle.
func GetDB() *gorm.DB {
	return DB
}

// Close closes the underlying connection pool.
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
