package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "animsched/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendInstruction(ctx context.Context, r InstructionRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}
	cyc, err := encodeOffsets(r.CycleOffsets)
	if err != nil {
		return err
	}
	ins, err := encodeOffsets(r.InstructionOffsets)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO instructions(id, name, recorded_at, cycle_ms, instr_ms) VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		r.ID, r.Name, r.RecordedAt.UnixMilli(), cyc, ins,
	)
	return err
}

func (s *sqliteStore) RecentInstructions(ctx context.Context, limit int) ([]InstructionRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, recorded_at, cycle_ms, instr_ms FROM instructions ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InstructionRecord
	for rows.Next() {
		var (
			r        InstructionRecord
			ms       int64
			cyc, ins string
		)
		if err := rows.Scan(&r.ID, &r.Name, &ms, &cyc, &ins); err != nil {
			return nil, err
		}
		r.RecordedAt = time.UnixMilli(ms)
		if r.CycleOffsets, err = decodeOffsets(cyc); err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		if r.InstructionOffsets, err = decodeOffsets(ins); err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PruneInstructions(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM instructions WHERE recorded_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Offsets are stored as JSON arrays of milliseconds.
func encodeOffsets(ds []time.Duration) (string, error) {
	ms := make([]int64, len(ds))
	for i, d := range ds {
		ms[i] = d.Milliseconds()
	}
	b, err := json.Marshal(ms)
	return string(b), err
}

func decodeOffsets(s string) ([]time.Duration, error) {
	var ms []int64
	if err := json.Unmarshal([]byte(s), &ms); err != nil {
		return nil, err
	}
	out := make([]time.Duration, len(ms))
	for i, v := range ms {
		out[i] = time.Duration(v) * time.Millisecond
	}
	return out, nil
}
