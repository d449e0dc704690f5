package run

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PhucHuwu/Imagine-IV/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current ledger schema version. Bump when the schema
// changes; users clear the database to adopt the new schema.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound indicates the requested item does not exist.
var ErrNotFound = errors.New("run item not found")

// Store persists pipeline items in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run ledger database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "run.db"))
}

// OpenPath connects to the ledger at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// NewItem inserts a fresh pending item owned by the given worker.
func (s *Store) NewItem(ctx context.Context, runID, publicID string, workerID int, mode Mode) (*Item, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO run_items (
            public_id, run_id, worker_id, mode, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		publicID,
		runID,
		workerID,
		string(mode),
		string(StatusPending),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Update persists the current state of an item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is required")
	}
	if !ValidStatus(item.Status) {
		return fmt.Errorf("invalid status %q", item.Status)
	}

	artifactsJSON, err := marshalArtifacts(item.Artifacts)
	if err != nil {
		return err
	}

	item.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE run_items SET
            status = ?, artifacts_json = ?, skip_kind = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		string(item.Status),
		artifactsJSON,
		nullableString(string(item.SkipKind)),
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	return nil
}

// GetByID fetches a single item.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

// ListRun returns all items belonging to a run, oldest first.
func (s *Store) ListRun(ctx context.Context, runID string) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE run_id = ? ORDER BY id ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("list run items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Summarize aggregates outcome counts for a run.
func (s *Store) Summarize(ctx context.Context, runID string) (Summary, error) {
	summary := Summary{ByKind: make(map[SkipKind]int)}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COALESCE(skip_kind, ''), COUNT(1)
         FROM run_items WHERE run_id = ? GROUP BY status, skip_kind`,
		runID,
	)
	if err != nil {
		return summary, fmt.Errorf("summarize run: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, kind string
		var count int
		if err := rows.Scan(&status, &kind, &count); err != nil {
			return summary, fmt.Errorf("scan summary row: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusDone:
			summary.Done += count
		case StatusSkipped:
			summary.Skipped += count
			if kind != "" {
				summary.ByKind[SkipKind(kind)] += count
			}
		default:
			summary.Active += count
		}
	}
	return summary, rows.Err()
}

const selectColumns = `SELECT id, public_id, run_id, worker_id, mode, status,
    artifacts_json, skip_kind, error_message, created_at, updated_at FROM run_items`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var mode, status string
	var artifactsJSON, skipKind, errorMessage sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&item.ID,
		&item.PublicID,
		&item.RunID,
		&item.WorkerID,
		&mode,
		&status,
		&artifactsJSON,
		&skipKind,
		&errorMessage,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Mode = Mode(mode)
	item.Status = Status(status)
	item.SkipKind = SkipKind(skipKind.String)
	item.ErrorMessage = errorMessage.String
	if artifactsJSON.Valid && artifactsJSON.String != "" {
		if err := json.Unmarshal([]byte(artifactsJSON.String), &item.Artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts for item %d: %w", item.ID, err)
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		item.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		item.UpdatedAt = ts
	}
	return &item, nil
}

func marshalArtifacts(artifacts map[string]string) (sql.NullString, error) {
	if len(artifacts) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(artifacts)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal artifacts: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
