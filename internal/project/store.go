package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"jumpcut/internal/config"
	"jumpcut/internal/interval"
	"jumpcut/internal/progress"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("project not found")

// Store persists run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "projects.db")
	return OpenPath(dbPath)
}

// OpenPath opens the database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert records a freshly started run.
func (s *Store) Insert(ctx context.Context, id, sourcePath string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO projects (id, source_path, stage, percent, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?)`,
		id,
		sourcePath,
		string(progress.StageInitializing),
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// UpdateProgress records the latest stage, percent, and details for a run.
func (s *Store) UpdateProgress(ctx context.Context, id string, stage string, percent float64, details string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE projects SET stage = ?, percent = ?, details = ?, updated_at = ? WHERE id = ?`,
		stage,
		percent,
		nullableString(details),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// SetAnalysis stores the probed duration and detected segments.
func (s *Store) SetAnalysis(ctx context.Context, id string, duration float64, segments []interval.Span) error {
	payload, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE projects SET duration_seconds = ?, segments_json = ?, updated_at = ? WHERE id = ?`,
		duration,
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set analysis: %w", err)
	}
	return nil
}

// Finish records the terminal outcome of a run.
func (s *Store) Finish(ctx context.Context, id, stage, outputPath, errMsg string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE projects SET stage = ?, output_path = ?, error = ?, updated_at = ? WHERE id = ?`,
		stage,
		nullableString(outputPath),
		nullableString(errMsg),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish project: %w", err)
	}
	return nil
}

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return record, nil
}

// List returns records newest first, bounded by limit when positive.
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	query := selectColumns + ` ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// MarkInterrupted fails every non-terminal record. Called once at daemon
// boot; runs do not survive restarts.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE projects SET stage = ?, error = ?, updated_at = ?
         WHERE stage NOT IN (?, ?, ?)`,
		string(progress.StageError),
		"interrupted by daemon restart",
		time.Now().UTC().Format(time.RFC3339Nano),
		string(progress.StageComplete),
		string(progress.StageError),
		string(progress.StageCancelled),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	return res.RowsAffected()
}

const selectColumns = `SELECT id, source_path, output_path, stage, percent, details,
    duration_seconds, segments_json, error, created_at, updated_at FROM projects`

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		record       Record
		outputPath   sql.NullString
		details      sql.NullString
		segmentsJSON sql.NullString
		errMsg       sql.NullString
		createdAt    string
		updatedAt    string
	)
	err := scanner.Scan(
		&record.ID,
		&record.SourcePath,
		&outputPath,
		&record.Stage,
		&record.Percent,
		&details,
		&record.DurationSeconds,
		&segmentsJSON,
		&errMsg,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.OutputPath = outputPath.String
	record.Details = details.String
	record.Error = errMsg.String
	if segmentsJSON.Valid && segmentsJSON.String != "" {
		if err := json.Unmarshal([]byte(segmentsJSON.String), &record.Segments); err != nil {
			return nil, fmt.Errorf("decode segments: %w", err)
		}
	}
	record.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	record.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
