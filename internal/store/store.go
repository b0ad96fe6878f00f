// Package store persists finished runs and their report records to
// PostgreSQL so past results stay queryable from the dashboard.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"isrr-engine/internal/compare"
	"isrr-engine/internal/engine"
)

// Store represents the database connection and run persistence operations.
type Store struct {
	db *sqlx.DB
}

// NewStore opens a connection and verifies it with a ping.
func NewStore(connString string) (*Store, error) {
	db, err := sqlx.Connect("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromDB constructs a Store from an existing *sqlx.DB. Useful for tests.
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema creates the run tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS isrr_runs (
		run_id      UUID PRIMARY KEY,
		started_at  TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL,
		total       INT NOT NULL,
		matched     INT NOT NULL,
		mismatched  INT NOT NULL,
		no_baseline INT NOT NULL,
		failed      INT NOT NULL,
		match_rate  DOUBLE PRECISION NOT NULL
	);
	CREATE TABLE IF NOT EXISTS isrr_report_records (
		run_id         UUID NOT NULL REFERENCES isrr_runs(run_id) ON DELETE CASCADE,
		egid           TEXT NOT NULL,
		tier           TEXT NOT NULL DEFAULT '',
		nature_of_data TEXT NOT NULL DEFAULT '',
		interim_isrr   TEXT,
		final_isrr     TEXT,
		baseline_isrr  TEXT,
		status         TEXT NOT NULL DEFAULT '',
		severity       TEXT NOT NULL DEFAULT '',
		modifier       TEXT NOT NULL DEFAULT '',
		specificity    INT NOT NULL DEFAULT 0,
		ambiguous      BOOLEAN NOT NULL DEFAULT FALSE,
		failed         BOOLEAN NOT NULL DEFAULT FALSE,
		failure_kind   TEXT NOT NULL DEFAULT '',
		failure_detail TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, egid)
	);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RunSummary is the persisted header of one run.
type RunSummary struct {
	RunID      string    `db:"run_id" json:"run_id"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
	Total      int       `db:"total" json:"total"`
	Matched    int       `db:"matched" json:"matched"`
	Mismatched int       `db:"mismatched" json:"mismatched"`
	NoBaseline int       `db:"no_baseline" json:"no_baseline"`
	Failed     int       `db:"failed" json:"failed"`
	MatchRate  float64   `db:"match_rate" json:"match_rate"`
}

// RecordRow is one persisted report record.
type RecordRow struct {
	RunID         string         `db:"run_id" json:"run_id"`
	EGID          string         `db:"egid" json:"egid"`
	Tier          string         `db:"tier" json:"tier"`
	NatureOfData  string         `db:"nature_of_data" json:"nature_of_data"`
	InterimISRR   sql.NullString `db:"interim_isrr" json:"interim_isrr"`
	FinalISRR     sql.NullString `db:"final_isrr" json:"final_isrr"`
	BaselineISRR  sql.NullString `db:"baseline_isrr" json:"baseline_isrr"`
	Status        string         `db:"status" json:"status"`
	Severity      string         `db:"severity" json:"severity"`
	Modifier      string         `db:"modifier" json:"modifier"`
	Specificity   int            `db:"specificity" json:"specificity"`
	Ambiguous     bool           `db:"ambiguous" json:"ambiguous"`
	Failed        bool           `db:"failed" json:"failed"`
	FailureKind   string         `db:"failure_kind" json:"failure_kind"`
	FailureDetail string         `db:"failure_detail" json:"failure_detail"`
}

// ErrRunNotFound reports a lookup of an unknown run id.
var ErrRunNotFound = errors.New("run not found")

func ratedLevel(r engine.Record, final bool) sql.NullString {
	if r.Failed {
		return sql.NullString{}
	}
	level := r.Interim
	if final {
		level = r.Final
	}
	return sql.NullString{String: level.String(), Valid: true}
}

// SaveRun persists the run header and every report record in one
// transaction. A run is saved whole or not at all.
func (s *Store) SaveRun(ctx context.Context, res *engine.Result) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	agg := res.Aggregates
	_, err = tx.ExecContext(ctx,
		`INSERT INTO isrr_runs
			(run_id, started_at, duration_ms, total, matched, mismatched, no_baseline, failed, match_rate)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		res.RunID, res.StartedAt, res.Duration.Milliseconds(),
		agg.Total, agg.Matched, agg.Mismatched, agg.NoBaseline, agg.Failed, agg.MatchRate())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.RunID, err)
	}

	for _, r := range res.Records {
		baseline := sql.NullString{}
		if r.Baseline != nil {
			baseline = sql.NullString{String: r.Baseline.String(), Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO isrr_report_records
				(run_id, egid, tier, nature_of_data, interim_isrr, final_isrr, baseline_isrr,
				 status, severity, modifier, specificity, ambiguous, failed, failure_kind, failure_detail)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			res.RunID, r.EGID, string(r.Tier), r.NatureOfData,
			ratedLevel(r, false), ratedLevel(r, true), baseline,
			string(r.Status), r.Severity, r.Modifier, r.Specificity,
			r.Ambiguous, r.Failed, string(r.FailureKind), r.FailureDetail)
		if err != nil {
			return fmt.Errorf("failed to insert record %s for run %s: %w", r.EGID, res.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", res.RunID, err)
	}
	return nil
}

// GetRun retrieves one run header by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunSummary, error) {
	var run RunSummary
	err := s.db.GetContext(ctx, &run,
		`SELECT run_id, started_at, duration_ms, total, matched, mismatched, no_baseline, failed, match_rate
		 FROM isrr_runs
		 WHERE run_id = $1`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &run, nil
}

// ListRuns returns run headers, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []RunSummary
	err := s.db.SelectContext(ctx, &runs,
		`SELECT run_id, started_at, duration_ms, total, matched, mismatched, no_baseline, failed, match_rate
		 FROM isrr_runs
		 ORDER BY started_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRecords returns every report record of one run in EGID order.
func (s *Store) GetRecords(ctx context.Context, runID string) ([]RecordRow, error) {
	var records []RecordRow
	err := s.db.SelectContext(ctx, &records,
		`SELECT run_id, egid, tier, nature_of_data, interim_isrr, final_isrr, baseline_isrr,
		        status, severity, modifier, specificity, ambiguous, failed, failure_kind, failure_detail
		 FROM isrr_report_records
		 WHERE run_id = $1
		 ORDER BY egid ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get records for run %s: %w", runID, err)
	}
	return records, nil
}

// GetMismatches returns the mismatched records of one run in EGID order.
func (s *Store) GetMismatches(ctx context.Context, runID string) ([]RecordRow, error) {
	var records []RecordRow
	err := s.db.SelectContext(ctx, &records,
		`SELECT run_id, egid, tier, nature_of_data, interim_isrr, final_isrr, baseline_isrr,
		        status, severity, modifier, specificity, ambiguous, failed, failure_kind, failure_detail
		 FROM isrr_report_records
		 WHERE run_id = $1 AND status = $2
		 ORDER BY egid ASC`, runID, string(compare.StatusMismatch))
	if err != nil {
		return nil, fmt.Errorf("failed to get mismatches for run %s: %w", runID, err)
	}
	return records, nil
}

// DeleteRun removes a run and, through the cascade, its records.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM isrr_runs WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}
