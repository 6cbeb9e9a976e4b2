package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/signalsfoundry/contention-simulator/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sweeps (
    sweep_id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    label TEXT
);

CREATE TABLE IF NOT EXISTS populations (
    run_id TEXT PRIMARY KEY,
    sweep_id TEXT NOT NULL REFERENCES sweeps(sweep_id) ON DELETE CASCADE,
    station_count INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    occupied_fraction REAL NOT NULL,
    collision_probability REAL NOT NULL,
    fairness_variance REAL NOT NULL,
    total_slots INTEGER NOT NULL,
    occupied_slots INTEGER NOT NULL,
    collisions INTEGER NOT NULL,
    successes INTEGER NOT NULL,
    blocked_requests INTEGER NOT NULL,
    elapsed_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_populations_sweep ON populations(sweep_id, station_count);

-- per-station total_packets_sent
CREATE TABLE IF NOT EXISTS station_sends (
    run_id TEXT NOT NULL REFERENCES populations(run_id) ON DELETE CASCADE,
    station INTEGER NOT NULL,
    sent INTEGER NOT NULL,
    PRIMARY KEY (run_id, station)
);
`

// SQLiteSink stores summaries in a SQLite database, one sweeps row per sink
// and one populations row per summary.
type SQLiteSink struct {
	db      *sql.DB
	sweepID string
}

// OpenSQLite opens (creating if needed) the database at path and registers a
// new sweep under sweepID.
func OpenSQLite(ctx context.Context, path, sweepID, label string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO sweeps (sweep_id, started_at, label) VALUES (?, ?, ?)`,
		sweepID, time.Now().UTC().Format(time.RFC3339Nano), label,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register sweep: %w", err)
	}
	return &SQLiteSink{db: db, sweepID: sweepID}, nil
}

// Write stores s and its per-station counts in one transaction.
func (s *SQLiteSink) Write(ctx context.Context, sum model.Summary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO populations (
			run_id, sweep_id, station_count, seed,
			occupied_fraction, collision_probability, fairness_variance,
			total_slots, occupied_slots, collisions, successes, blocked_requests, elapsed_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, s.sweepID, sum.StationCount, int64(sum.Seed),
		sum.OccupiedFraction, sum.CollisionProbability, sum.FairnessVariance,
		sum.TotalSlots, sum.OccupiedSlots, sum.Collisions, sum.Successes, sum.BlockedRequests,
		sum.Elapsed.Nanoseconds(),
	); err != nil {
		return fmt.Errorf("failed to insert population %d: %w", sum.StationCount, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO station_sends (run_id, station, sent) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare station insert: %w", err)
	}
	defer stmt.Close()
	for i, sent := range sum.StationSends {
		if _, err := stmt.ExecContext(ctx, sum.RunID, i, sent); err != nil {
			return fmt.Errorf("failed to insert station %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit population %d: %w", sum.StationCount, err)
	}
	return nil
}

// Populations reads back the summaries stored for sweepID, ordered by
// station count.
func (s *SQLiteSink) Populations(ctx context.Context, sweepID string) ([]model.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, station_count, seed,
			occupied_fraction, collision_probability, fairness_variance,
			total_slots, occupied_slots, collisions, successes, blocked_requests, elapsed_ns
		FROM populations WHERE sweep_id = ? ORDER BY station_count`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("failed to query populations: %w", err)
	}
	defer rows.Close()

	var out []model.Summary
	for rows.Next() {
		var (
			sum     model.Summary
			seed    int64
			elapsed int64
		)
		if err := rows.Scan(&sum.RunID, &sum.StationCount, &seed,
			&sum.OccupiedFraction, &sum.CollisionProbability, &sum.FairnessVariance,
			&sum.TotalSlots, &sum.OccupiedSlots, &sum.Collisions, &sum.Successes, &sum.BlockedRequests,
			&elapsed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan population: %w", err)
		}
		sum.Seed = uint64(seed)
		sum.Elapsed = time.Duration(elapsed)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		sends, err := s.stationSends(ctx, out[i].RunID, out[i].StationCount)
		if err != nil {
			return nil, err
		}
		out[i].StationSends = sends
	}
	return out, nil
}

func (s *SQLiteSink) stationSends(ctx context.Context, runID string, n int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT station, sent FROM station_sends WHERE run_id = ? ORDER BY station`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query station sends: %w", err)
	}
	defer rows.Close()

	sends := make([]int, n)
	for rows.Next() {
		var station, sent int
		if err := rows.Scan(&station, &sent); err != nil {
			return nil, fmt.Errorf("failed to scan station sends: %w", err)
		}
		if station >= 0 && station < n {
			sends[station] = sent
		}
	}
	return sends, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
