// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL (pgx via gorm's postgres driver),
// plus schema migrations.
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
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// Supported DB drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and tunes the database backend.
type Options struct {
	Driver  string // sqlite | postgres
	Path    string // sqlite file path
	DSN     string // postgres connection string
	Tracing bool   // attach the OpenTelemetry GORM plugin
}

// Open dispatches to the configured driver and optionally instruments the
// handle with OpenTelemetry spans.
func Open(opts Options) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		db, err = OpenSQLite(opts.Path)
	case DriverPostgres:
		db, err = OpenPostgres(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenPostgres connects to PostgreSQL and makes sure the pgvector extension
// is available for chunk embeddings.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&domain.Course{},
		&domain.Lesson{},
		&domain.MentorLesson{},
		&domain.Thread{},
		&domain.Message{},
		&domain.Document{},
		&domain.Chunk{},
		&domain.Event{},
		&domain.ActivityLog{},
		&domain.Idempotency{},
	}
}

// AutoMigrate creates or updates the schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
