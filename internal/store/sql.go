package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cardioml-web/internal/domain"
	_ "modernc.org/sqlite"
)

// dialect holds the statements that differ between SQL engines.
type dialect struct {
	name   string
	upsert string
	load   string
	clear  string
}

var sqliteDialect = dialect{
	name: "sqlite",
	upsert: `INSERT INTO assessment_state (scope, assessment_result, form_data, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET
			assessment_result = excluded.assessment_result,
			form_data = excluded.form_data,
			saved_at = excluded.saved_at`,
	load:  `SELECT assessment_result, form_data, saved_at FROM assessment_state WHERE scope = ?`,
	clear: `DELETE FROM assessment_state WHERE scope = ?`,
}

var postgresDialect = dialect{
	name: "postgres",
	upsert: `INSERT INTO assessment_state (scope, assessment_result, form_data, saved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope) DO UPDATE SET
			assessment_result = EXCLUDED.assessment_result,
			form_data = EXCLUDED.form_data,
			saved_at = EXCLUDED.saved_at`,
	load:  `SELECT assessment_result, form_data, saved_at FROM assessment_state WHERE scope = $1`,
	clear: `DELETE FROM assessment_state WHERE scope = $1`,
}

// SQLStore keeps assessment state in a single assessment_state table. Each save
// is one upsert statement, so both documents change together.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	ttl     time.Duration
	ownsDB  bool
	now     func() time.Time
}

// NewSQLiteStore creates a new SQLite result store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string, ttl time.Duration) (*SQLStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLStore{db: db, dialect: sqliteDialect, ttl: ttl, ownsDB: true, now: time.Now}, nil
}

// NewPostgresStore creates a PostgreSQL result store on an existing connection.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB, ttl time.Duration) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStore{db: db, dialect: postgresDialect, ttl: ttl, now: time.Now}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessment_state (
		scope TEXT PRIMARY KEY,
		assessment_result TEXT NOT NULL,
		form_data TEXT NOT NULL,
		saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_assessment_state_saved_at ON assessment_state(saved_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or replaces the scope's assessment state.
func (s *SQLStore) Save(ctx context.Context, scope string, record *domain.AssessmentRecord) error {
	e, err := encode(record)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, scope, string(e.result), string(e.form), e.savedAt); err != nil {
		return fmt.Errorf("failed to save assessment state: %w", err)
	}
	return nil
}

// Load retrieves the scope's assessment state.
func (s *SQLStore) Load(ctx context.Context, scope string) (*domain.AssessmentRecord, bool, error) {
	var result, form string
	var savedAt time.Time

	err := s.db.QueryRowContext(ctx, s.dialect.load, scope).Scan(&result, &form, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load assessment state: %w", err)
	}

	if expired(savedAt, s.ttl, s.now()) {
		if err := s.Clear(ctx, scope); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	record, err := decode(encoded{result: []byte(result), form: []byte(form), savedAt: savedAt.UTC()})
	if err != nil {
		// Unreadable state counts as nothing stored.
		if err := s.Clear(ctx, scope); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return record, true, nil
}

// Clear deletes the scope's assessment state.
func (s *SQLStore) Clear(ctx context.Context, scope string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.clear, scope); err != nil {
		return fmt.Errorf("failed to clear assessment state: %w", err)
	}
	return nil
}

// Dialect reports the SQL engine in use.
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

// Health pings the database.
func (s *SQLStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources. A shared connection is left
// for its owner to close.
func (s *SQLStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
