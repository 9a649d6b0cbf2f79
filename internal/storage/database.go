package storage

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"circle-go/internal/config"
	"circle-go/internal/models"
)

// DSN builds the libpq connection string for cfg. The password is left
// out when empty so peer/trust auth works locally.
func DSN(cfg config.DatabaseConfig) string {
	parts := []string{
		fmt.Sprintf("host=%s", cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("user=%s", cfg.User),
		fmt.Sprintf("dbname=%s", cfg.DBName),
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", cfg.SSLMode))
	return strings.Join(parts, " ")
}

// InitDB opens the PostgreSQL connection pool. GORM's own log output is
// routed through the application logger.
func InitDB(cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	if cfg.Type != "postgres" {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	level := logger.Warn
	if cfg.LogSQL {
		level = logger.Info
	}
	gormLogger := logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelInfo),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connected", "host", cfg.Host, "port", cfg.Port, "db", cfg.DBName)
	return db, nil
}

// AutoMigrateTables creates or updates the users, friend_requests and
// friendships tables, including the partial unique index on pending pairs.
func AutoMigrateTables(db *gorm.DB, log *slog.Logger) error {
	log.Info("running database migrations")
	err := db.AutoMigrate(
		&models.User{},
		&models.FriendRequest{},
		&models.Friendship{},
	)
	if err != nil {
		log.Error("database migration failed", "error", err)
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Info("database migrations complete")
	return nil
}
