package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bankgame/internal/game"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the subset of *pgxpool.Pool the store needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const snapshotRowID = 1

// PostgresStore keeps the snapshot in a single jsonb row.
type PostgresStore struct {
	db querier
}

func NewPostgresStore(db querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS bankgame;
		CREATE TABLE IF NOT EXISTS bankgame.snapshots (
			id SMALLINT PRIMARY KEY,
			saved_at TIMESTAMPTZ NOT NULL,
			state JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*game.Snapshot, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT state
		FROM bankgame.snapshots
		WHERE id = $1
	`, snapshotRowID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *PostgresStore) Save(ctx context.Context, snap game.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO bankgame.snapshots (id, saved_at, state)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET saved_at = EXCLUDED.saved_at, state = EXCLUDED.state
	`, snapshotRowID, snap.SavedAt, raw)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
