package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/joeblew999/plat-eco/internal/layer"
	"github.com/joeblew999/plat-eco/internal/service"
)

const schema = `CREATE TABLE IF NOT EXISTS runs (
	id          VARCHAR PRIMARY KEY,
	session     VARCHAR NOT NULL,
	kind        VARCHAR NOT NULL,
	layer       VARCHAR NOT NULL,
	start_date  VARCHAR,
	end_date    VARCHAR,
	resolution  INTEGER,
	success     BOOLEAN NOT NULL,
	detail      VARCHAR,
	area_km2    DOUBLE,
	duration_ms BIGINT,
	started_at  TIMESTAMP NOT NULL
)`

// DefaultRunLimit is the page size when a filter sets none.
const DefaultRunLimit = 50

// RunFilter selects runs for ListRuns.
type RunFilter struct {
	Session string
	Layer   layer.Layer
	Limit   int
	Offset  int
}

// RunStore persists analysis runs. It implements service.RunRecorder.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates the runs table if needed.
func NewRunStore(ctx context.Context, conn *sql.DB) (*RunStore, error) {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &RunStore{db: conn}, nil
}

// RecordRun inserts run.
func (s *RunStore) RecordRun(ctx context.Context, run service.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, session, kind, layer, start_date, end_date, resolution,
			success, detail, area_km2, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Session, string(run.Kind), run.Layer.String(), run.StartDate, run.EndDate,
		run.Resolution, run.Success, run.Detail, run.AreaKm2, run.DurationMs, run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the matching runs, newest first, and the total number
// of matches.
func (s *RunStore) ListRuns(ctx context.Context, f RunFilter) ([]service.Run, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Session != "" {
		where = append(where, "session = ?")
		args = append(args, f.Session)
	}
	if f.Layer != "" {
		where = append(where, "layer = ?")
		args = append(args, f.Layer.String())
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM runs"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session, kind, layer, start_date, end_date, resolution, success, detail,
			area_km2, duration_ms, started_at
		FROM runs`+clause+` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, max(f.Offset, 0))...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []service.Run{}
	for rows.Next() {
		var (
			r      service.Run
			kind   string
			l      string
			detail sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Session, &kind, &l, &r.StartDate, &r.EndDate, &r.Resolution,
			&r.Success, &detail, &r.AreaKm2, &r.DurationMs, &r.StartedAt); err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		r.Kind = service.RunKind(kind)
		r.Layer = layer.Layer(l)
		r.Detail = detail.String
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}

var _ service.RunRecorder = (*RunStore)(nil)
