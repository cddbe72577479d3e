// Package sqlite persists run checkpoints in a local SQLite database so runs survive a restart.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tmdb-agent/internal/application/port/output"
	"tmdb-agent/internal/domain/entity"
)

var _ output.CheckpointStore = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and runs migrations.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("checkpoint: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("checkpoint: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: migration: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			run_id     TEXT PRIMARY KEY,
			status     TEXT    NOT NULL,
			generation INTEGER NOT NULL,
			phase      TEXT    NOT NULL,
			state      TEXT    NOT NULL,
			outcome    TEXT,
			error      TEXT    NOT NULL DEFAULT '',
			updated_at TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_checkpoints_status ON checkpoints(status, updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Save(ctx context.Context, cp entity.Checkpoint) error {
	if cp.State.ID == "" {
		return entity.ErrInvalidRunID
	}

	state, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal state: %w", err)
	}

	var outcome sql.NullString
	if cp.Outcome != nil {
		data, err := json.Marshal(cp.Outcome)
		if err != nil {
			return fmt.Errorf("checkpoint: marshal outcome: %w", err)
		}
		outcome = sql.NullString{String: string(data), Valid: true}
	}

	updatedAt := cp.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, status, generation, phase, state, outcome, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status     = excluded.status,
			generation = excluded.generation,
			phase      = excluded.phase,
			state      = excluded.state,
			outcome    = excluded.outcome,
			error      = excluded.error,
			updated_at = excluded.updated_at`,
		cp.State.ID.String(),
		string(cp.Status),
		cp.State.Generation,
		string(cp.State.Phase),
		string(state),
		outcome,
		cp.Error,
		updatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", cp.State.ID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id entity.RunID) (entity.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT status, state, outcome, error, updated_at
		FROM checkpoints WHERE run_id = ?`, id.String())

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Checkpoint{}, entity.ErrRunNotFound
	}
	if err != nil {
		return entity.Checkpoint{}, fmt.Errorf("checkpoint: load %s: %w", id, err)
	}
	return cp, nil
}

func (s *Store) ListActive(ctx context.Context) ([]entity.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, state, outcome, error, updated_at
		FROM checkpoints
		WHERE status NOT IN (?, ?, ?)
		ORDER BY updated_at ASC`,
		string(entity.RunStatusCompleted),
		string(entity.RunStatusFailed),
		string(entity.RunStatusCancelled),
	)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list active: %w", err)
	}
	defer rows.Close()

	var out []entity.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: list active: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (entity.Checkpoint, error) {
	var (
		status    string
		state     string
		outcome   sql.NullString
		errText   string
		updatedAt string
	)
	if err := row.Scan(&status, &state, &outcome, &errText, &updatedAt); err != nil {
		return entity.Checkpoint{}, err
	}

	cp := entity.Checkpoint{Status: entity.RunStatus(status), Error: errText}
	if err := json.Unmarshal([]byte(state), &cp.State); err != nil {
		return entity.Checkpoint{}, fmt.Errorf("unmarshal state: %w", err)
	}
	if outcome.Valid {
		cp.Outcome = &entity.RunOutcome{}
		if err := json.Unmarshal([]byte(outcome.String), cp.Outcome); err != nil {
			return entity.Checkpoint{}, fmt.Errorf("unmarshal outcome: %w", err)
		}
	}

	t, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return entity.Checkpoint{}, fmt.Errorf("parse updated_at: %w", err)
	}
	cp.UpdatedAt = t
	return cp, nil
}
