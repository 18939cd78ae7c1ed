// Package db keeps the install and uninstall history in SQLite
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Actions recorded in the history
const (
	ActionInstall   = "install"
	ActionUninstall = "uninstall"
)

// ErrNotFound is returned when a history entry does not exist
var ErrNotFound = errors.New("history entry not found")

// DB represents the database with separate read/write pools
type DB struct {
	write *sql.DB
	read  *sql.DB
	path  string
}

// New creates a new database instance with separate read/write pools
func New(ctx context.Context, dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Connection string with pragmas
	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite", dbPath)

	// Write pool: MUST be 1 connection only
	write, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)
	write.SetConnMaxIdleTime(time.Minute)
	write.SetConnMaxLifetime(time.Hour)

	// Read pool: Can have multiple connections
	read, err := sql.Open("sqlite", connStr)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read connection: %w", err)
	}
	read.SetMaxOpenConns(4)
	read.SetMaxIdleConns(2)
	read.SetConnMaxIdleTime(time.Minute)
	read.SetConnMaxLifetime(time.Hour)

	db := &DB{
		write: write,
		read:  read,
		path:  dbPath,
	}

	if err := db.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Path returns the database file
func (db *DB) Path() string {
	return db.path
}

// Close closes both database connections
func (db *DB) Close() error {
	writeErr := db.write.Close()
	readErr := db.read.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// initSchema creates the schema if it doesn't exist
func (db *DB) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS history (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    product TEXT NOT NULL,
    version TEXT,
    identifier TEXT,
    flavor TEXT,
    package_type TEXT,
    result TEXT NOT NULL,
    error TEXT,
    created_at DATETIME NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_history_product ON history(product);
CREATE INDEX IF NOT EXISTS idx_history_created ON history(created_at);
	`

	if _, err := db.write.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Entry is one install or uninstall outcome
type Entry struct {
	ID          string            `json:"id"`
	Action      string            `json:"action"`
	Product     string            `json:"product"`
	Version     string            `json:"version,omitempty"`
	Identifier  string            `json:"identifier,omitempty"`
	Flavor      string            `json:"flavor,omitempty"`
	PackageType string            `json:"package_type,omitempty"`
	Result      string            `json:"result"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Record appends entry to the history, assigning its ID and timestamp when unset
func (db *DB) Record(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
INSERT INTO history (id, action, product, version, identifier, flavor, package_type, result, error, created_at, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.write.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.Product,
		entry.Version,
		entry.Identifier,
		entry.Flavor,
		entry.PackageType,
		entry.Result,
		entry.Error,
		entry.CreatedAt,
		string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

const selectColumns = `id, action, product, version, identifier, flavor, package_type, result, error, created_at, metadata`

// Get retrieves a history entry by ID
func (db *DB) Get(ctx context.Context, id string) (*Entry, error) {
	row := db.read.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM history WHERE id = ?", id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query history entry: %w", err)
	}
	return entry, nil
}

// ListOptions narrows a history listing
type ListOptions struct {
	// Product keeps entries of one product, compared case-insensitively
	Product string
	// Limit caps the number of entries; zero means no cap
	Limit int
}

// List retrieves history entries, newest first
func (db *DB) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := "SELECT " + selectColumns + " FROM history"
	var args []any
	if opts.Product != "" {
		query += " WHERE product = ? COLLATE NOCASE"
		args = append(args, opts.Product)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

// Clear removes every history entry and returns how many were removed
func (db *DB) Clear(ctx context.Context) (int64, error) {
	result, err := db.write.ExecContext(ctx, "DELETE FROM history")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var entry Entry
	var version, identifier, flavor, packageType, errText, metadataJSON sql.NullString

	err := s.Scan(
		&entry.ID,
		&entry.Action,
		&entry.Product,
		&version,
		&identifier,
		&flavor,
		&packageType,
		&entry.Result,
		&errText,
		&entry.CreatedAt,
		&metadataJSON,
	)
	if err != nil {
		return nil, err
	}

	entry.Version = version.String
	entry.Identifier = identifier.String
	entry.Flavor = flavor.String
	entry.PackageType = packageType.String
	entry.Error = errText.String

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &entry, nil
}
