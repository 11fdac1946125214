package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// createdAtLayout keeps timestamps lexically sortable.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore persists records in a single SQLite table. The summary
// columns are indexed for listing and the full record is kept as a JSON
// payload.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore returns a store for the database at path, which may be
// ":memory:". Init opens the database and creates the schema.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database once and creates the trials table if needed.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	// Every connection to ":memory:" opens a fresh database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// SaveTrial upserts the record keyed by its ID.
func (s *SQLiteStore) SaveTrial(ctx context.Context, record TrialRecord) error {
	if record.ID == "" {
		return errors.New("trial id is required")
	}

	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeTrial(record)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO trials (id, target, strategy, seed, created_at, final_regret, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target = excluded.target,
			strategy = excluded.strategy,
			seed = excluded.seed,
			created_at = excluded.created_at,
			final_regret = excluded.final_regret,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, record.ID, record.Target, record.Strategy, record.Seed,
		record.CreatedAt.UTC().Format(createdAtLayout), record.FinalRegret(),
		record.SchemaVersion, record.CodecVersion, payload)
	return err
}

// GetTrial loads one record; the bool is false when no row matches.
func (s *SQLiteStore) GetTrial(ctx context.Context, id string) (TrialRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return TrialRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM trials WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TrialRecord{}, false, nil
		}
		return TrialRecord{}, false, err
	}

	record, err := DecodeTrial(payload)
	if err != nil {
		return TrialRecord{}, false, fmt.Errorf("decode trial %s: %w", id, err)
	}
	return record, true, nil
}

// ListTrials returns the records of target, or all records when target is
// empty, ordered by creation time then ID.
func (s *SQLiteStore) ListTrials(ctx context.Context, target string) ([]TrialRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, payload FROM trials
		WHERE ? = '' OR target = ?
		ORDER BY created_at, id
	`, target, target)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrialRecord
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}

		record, err := DecodeTrial(payload)
		if err != nil {
			return nil, fmt.Errorf("decode trial %s: %w", id, err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Close releases the database handle. The store can be initialized again.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trials (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			strategy TEXT NOT NULL,
			seed INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			final_regret REAL NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS trials_target ON trials (target, created_at);
	`)
	return err
}
