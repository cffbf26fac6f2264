package database

import (
	"fmt"
	"os"

	"scrap-pickup/logger"
	"scrap-pickup/models/booking"
	"scrap-pickup/models/collector"
	"scrap-pickup/models/material"
	"scrap-pickup/models/message"
	"scrap-pickup/models/notification"
	"scrap-pickup/models/user"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitDB initializes the database connection with auto migration and indexing
func InitDB() (*gorm.DB, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", err)
	}

	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_DATABASE")
	username := os.Getenv("DB_USERNAME")
	password := os.Getenv("DB_PASSWORD")
	sslmode := os.Getenv("DB_SSLMODE")

	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, username, password, database, sslmode)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Error("Failed to connect to the database", err)
		return nil, err
	}
	logger.Success("Successfully connected to the database")

	if err := autoMigrate(DB); err != nil {
		logger.Error("Failed to run migrations", err)
		return nil, err
	}
	logger.Success("All migrations completed successfully")

	if err := createIndexes(); err != nil {
		logger.Error("Failed to create indexes", err)
		return nil, err
	}
	logger.Success("All indexes created successfully")

	return DB, nil
}

// autoMigrate runs auto migration for all models in dependency order
func autoMigrate(db *gorm.DB) error {
	// Stage 1: Core foundation models
	stage1Models := []interface{}{
		&user.User{},
		&material.Material{},
	}

	for _, model := range stage1Models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 2: Models with dependencies on Stage 1
	stage2Models := []interface{}{
		&collector.Collector{},
		&booking.Booking{},
	}

	for _, model := range stage2Models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 3: Remaining models
	remainingModels := []interface{}{
		&booking.MaterialLine{},
		&booking.StatusHistoryEntry{},
		&collector.LocationSample{},
		&message.Message{},
		&notification.Notification{},
	}

	for _, model := range remainingModels {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	return nil
}

// MigrateForTest runs the same migrations against an arbitrary database.
// Used by package tests with an in-memory store.
func MigrateForTest(db *gorm.DB) error {
	return autoMigrate(db)
}

// createIndexes creates additional indexes for better performance
func createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_bookings_customer_status ON bookings(customer_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_collector_status ON bookings(collector_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_scheduled_at ON bookings(scheduled_at)",
		"CREATE INDEX IF NOT EXISTS idx_status_history_booking_changed ON booking_status_history(booking_id, changed_at)",
		"CREATE INDEX IF NOT EXISTS idx_collector_locations_sampled ON collector_locations(collector_id, sampled_at)",
		"CREATE INDEX IF NOT EXISTS idx_messages_booking_created ON messages(booking_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_user_status ON notifications(user_id, status)",
	}

	for _, idx := range indexes {
		if err := DB.Exec(idx).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
