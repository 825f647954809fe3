package store

import (
	"context"
	"fmt"

	"bankgame/internal/game"
)

// Store holds exactly one whole-state snapshot. Save replaces it entirely.
type Store interface {
	// Load returns nil and no error when nothing has been saved yet.
	Load(ctx context.Context) (*game.Snapshot, error)
	Save(ctx context.Context, snap game.Snapshot) error
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
