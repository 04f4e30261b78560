// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL, plus schema migrations.
package repo

import (
	"database/sql"
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

	"github.com/tbourn/go-design-engagement/internal/domain"
)

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and tunes the database backend.
type Options struct {
	Driver       string // sqlite|postgres
	Path         string // sqlite file path
	DSN          string // postgres DSN
	MaxOpenConns int    // 0 → driver default (1 for sqlite, 10 for postgres)
	Tracing      bool   // register the OpenTelemetry GORM plugin
}

// Open opens the configured backend and applies pool settings.
func Open(opt Options) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(opt.Driver) {
	case "", DriverSQLite:
		db, err = OpenSQLite(opt.Path, opt.MaxOpenConns)
	case DriverPostgres:
		db, err = OpenPostgres(opt.DSN, opt.MaxOpenConns)
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", opt.Driver)
	}
	if err != nil {
		return nil, err
	}
	if opt.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
//
// SQLite admits a single writer, so the pool defaults to one connection:
// engagement transactions are then serialized by the pool instead of
// failing with SQLITE_BUSY on lock upgrade.
func OpenSQLite(path string, maxOpen int) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if maxOpen <= 0 {
		maxOpen = 1
	}
	if sqlDB, err := db.DB(); err == nil {
		configurePool(sqlDB, maxOpen)
	}
	return db, nil
}

// OpenPostgres opens a PostgreSQL database through the pgx-backed GORM driver.
func OpenPostgres(dsn string, maxOpen int) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres DSN must not be empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if sqlDB, err := db.DB(); err == nil {
		configurePool(sqlDB, maxOpen)
	}
	return db, nil
}

func configurePool(sqlDB *sql.DB, maxOpen int) {
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
}

// IsPostgres reports whether db talks to PostgreSQL.
func IsPostgres(db *gorm.DB) bool {
	return db != nil && db.Dialector != nil && db.Dialector.Name() == DriverPostgres
}

// AutoMigrate creates or updates every table the engine owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Design{},
		&domain.Like{},
		&domain.BoostLedger{},
		&domain.BoostRecord{},
		&domain.Notification{},
		&domain.Idempotency{},
	)
}
