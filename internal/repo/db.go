// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping for SQLite (pure
// Go driver) and PostgreSQL, schema migration, and the error values shared by
// every repository function.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate reports a unique-constraint violation on insert.
	ErrDuplicate = errors.New("duplicate")
	// ErrConflict reports that a conditional update matched no row because
	// the version token moved.
	ErrConflict = errors.New("conflict")
)

// Supported drivers for Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Now is the clock used for timestamps written by this package. Values are
// UTC at microsecond precision so they survive a round-trip through either
// driver unchanged, which the optimistic lock relies on.
func Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func gormConfig() *gorm.Config {
	return &gorm.Config{
		NowFunc: Now,
		Logger:  logger.Default.LogMode(logger.Warn),
	}
}

// Open connects using the named driver. dsn is a file path for sqlite and a
// connection string for postgres.
func Open(driver, dsn string) (*gorm.DB, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "":
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", driver)
	}
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := instrument(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenPostgres opens a PostgreSQL pool through the pgx-backed GORM driver.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres DSN must not be empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := instrument(db); err != nil {
		return nil, err
	}
	return db, nil
}

// instrument attaches OpenTelemetry spans to every GORM operation.
func instrument(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Vendor{},
		&domain.Dish{},
		&domain.GuestSession{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.StatusChange{},
		&domain.Message{},
		&domain.Notification{},
		&domain.IdempotencyRecord{},
		&domain.RateLimitRequest{},
		&domain.Report{},
	)
}

// isUniqueViolation recognizes duplicate-key errors from both drivers.
// glebarez/sqlite returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value") ||
		strings.Contains(low, "sqlstate 23505")
}

// notFound maps gorm's missing-row error onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
