// Package store persists anonymized person rows in SQLite and answers the
// read queries the scorer, verifier, and report depend on. Raw records
// never reach this package.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"personpipe/internal/config"
	"personpipe/internal/person"
)

// Store manages person persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the person database and verifies the
// schema. Setup is idempotent.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
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

	store := &Store{db: db, path: cfg.Database.Path}
	if err := store.initSchema(context.Background()); err != nil {
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

// InsertPersons writes all rows in a single transaction. Either every row
// commits or none does; any failure rolls the batch back and surfaces the
// underlying error wrapped with context.
func (s *Store) InsertPersons(ctx context.Context, rows []person.AnonymizedPerson) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert persons: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO persons (
        firstname, lastname, email_provider, phone, age_group,
        gender, country, city, street, zipcode, location_masked, created_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("insert persons: prepare: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339Nano)
	for i, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.Firstname,
			row.Lastname,
			nullIfEmpty(row.EmailProvider),
			row.Phone,
			nullIfEmpty(row.AgeGroup),
			nullIfEmpty(row.Gender),
			nullIfEmpty(row.Country),
			row.City,
			row.Street,
			row.Zipcode,
			boolToInt(row.LocationMasked),
			createdAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert persons: row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert persons: commit: %w", err)
	}
	return len(rows), nil
}

// Snapshot reads the full anonymized dataset for scoring. The result is a
// point-in-time copy; callers own it.
func (s *Store) Snapshot(ctx context.Context) ([]person.AnonymizedPerson, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
        firstname, lastname, email_provider, phone, age_group,
        gender, country, city, street, zipcode, location_masked
    FROM persons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query: %w", err)
	}
	defer rows.Close()

	var snapshot []person.AnonymizedPerson
	for rows.Next() {
		var (
			row                                      person.AnonymizedPerson
			emailProvider, ageGroup, gender, country sql.NullString
			locationMasked                           int
		)
		if err := rows.Scan(
			&row.Firstname,
			&row.Lastname,
			&emailProvider,
			&row.Phone,
			&ageGroup,
			&gender,
			&country,
			&row.City,
			&row.Street,
			&row.Zipcode,
			&locationMasked,
		); err != nil {
			return nil, fmt.Errorf("snapshot: scan: %w", err)
		}
		row.EmailProvider = emailProvider.String
		row.AgeGroup = ageGroup.String
		row.Gender = gender.String
		row.Country = country.String
		row.LocationMasked = locationMasked != 0
		snapshot = append(snapshot, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: iterate: %w", err)
	}
	return snapshot, nil
}

// Count reports the number of persisted person rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM persons").Scan(&count); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return count, nil
}

// Run records the outcome of one ingestion run.
type Run struct {
	ID        string
	Gender    string
	Requested int
	Inserted  int
	Status    string
	StartedAt time.Time
	Finished  time.Time
}

// NewRun creates a run record with a fresh identifier.
func NewRun(gender string, requested int) Run {
	return Run{
		ID:        uuid.NewString(),
		Gender:    gender,
		Requested: requested,
		StartedAt: time.Now().UTC(),
	}
}

// RecordRun persists an ingestion run's bookkeeping row.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	finished := run.Finished
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO ingest_runs (
        id, gender, requested, inserted, status, started_at, finished_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Gender,
		run.Requested,
		run.Inserted,
		run.Status,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
