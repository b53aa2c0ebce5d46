package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// InstructionRecord is the persisted form of one recorded batch.
type InstructionRecord struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	RecordedAt         time.Time       `json:"recorded_at"`
	CycleOffsets       []time.Duration `json:"cycle_offsets"`
	InstructionOffsets []time.Duration `json:"instruction_offsets"`
}

// Store is the persistence API used by the app recorder and the CLI.
type Store interface {
	AppendInstruction(ctx context.Context, r InstructionRecord) error
	// RecentInstructions returns up to limit records, newest first.
	// limit <= 0 returns all of them.
	RecentInstructions(ctx context.Context, limit int) ([]InstructionRecord, error)
	// PruneInstructions deletes records recorded before the cutoff.
	PruneInstructions(ctx context.Context, before time.Time) (int, error)
	Close() error
}
