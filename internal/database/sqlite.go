package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var (
	db   *sql.DB
	once sync.Once
)

// Config holds database configuration
type Config struct {
	Path   string
	Logger *zap.Logger
}

// Open opens the sqlite database at cfg.Path, creating its directory, and
// applies every pending migration.
func Open(cfg Config) (*sql.DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// pragmas go into the DSN so every pooled connection gets them
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	conn, err := sql.Open("sqlite", "file:"+cfg.Path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := NewMigrationManager(conn, logger).RunMigrations(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("database initialized", zap.String("path", cfg.Path))
	return conn, nil
}

// Init opens the process wide database once.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		db, err = Open(cfg)
	})
	return err
}

// GetDB returns the database instance; Init must have succeeded.
func GetDB() *sql.DB {
	if db == nil {
		panic("database not initialized, call Init first")
	}
	return db
}

// Close closes the database connection
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// Transaction executes fn inside a transaction on conn, rolling back when fn
// fails or panics.
func Transaction(conn *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
