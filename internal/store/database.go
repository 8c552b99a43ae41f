// Package store persists the book catalogue in SQLite through gorm.
//
// All writes are serialized through a single mutex so that at most one
// write transaction is in flight; reads go straight to the connection pool.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the gorm handle and the single-writer lock
type Database struct {
	DB      *gorm.DB
	writeMu sync.Mutex
}

// Options configures NewDatabase
type Options struct {
	LogLevel logger.LogLevel // defaults to logger.Warn
}

// NewDatabase opens (creating if needed) the SQLite database at dbPath and
// migrates the schema.
func NewDatabase(dbPath string, opts Options) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Book{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the underlying connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database is reachable
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// write runs fn in a transaction while holding the write lock
func (d *Database) write(fn func(tx *gorm.DB) error) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.DB.Transaction(fn)
}
