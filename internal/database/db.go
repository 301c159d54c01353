package database

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Open opens a gorm connection. DSNs starting with "sqlite:" or "file:", ending in ".db",
// or equal to ":memory:" use sqlite; everything else is treated as a PostgreSQL DSN.
func Open(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:", strings.HasSuffix(dsn, ".db"):
		dialector = sqlite.Open(dsn)
	default:
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialector.Name() == "sqlite" {
		// sqlite allows a single writer; in-memory databases are per connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Connect establishes the global connection
func Connect(dsn string, logLevel logger.LogLevel) error {
	db, err := Open(dsn, logLevel)
	if err != nil {
		return err
	}
	DB = db
	slog.Info("database connection established", "dialect", db.Dialector.Name())
	return nil
}

// Migrate creates or updates the alertsieve tables on db
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&AlertRecord{}, &AuditEntryRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// AutoMigrate runs database migrations on the global connection
func AutoMigrate() error {
	slog.Info("running database migrations")
	if err := Migrate(DB); err != nil {
		return err
	}
	slog.Info("database migrations completed")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ParseLogLevel maps LOG_LEVEL onto gorm's logger levels. SQL statements are only logged at debug.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.Info
	case "warn", "warning":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent", "none":
		return logger.Silent
	default:
		return logger.Warn
	}
}
