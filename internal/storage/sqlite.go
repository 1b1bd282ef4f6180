package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jasonptoups/truckee-calendar/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// Storage keeps the history of merge runs and per-feed outcomes
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			events INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT 0,
			output_path TEXT NOT NULL DEFAULT '',
			output_size INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS feed_results (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			url TEXT NOT NULL,
			ok INTEGER NOT NULL DEFAULT 0,
			events INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, position),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_results_url ON feed_results(url)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// === Runs ===

// SaveRun stores a run and all of its feed results atomically
func (s *Storage) SaveRun(r *domain.RunReport) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, started_at, finished_at, events, succeeded, total, output_path, output_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Events, r.Succeeded, r.Total, r.OutputPath, r.OutputSize,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, f := range r.Feeds {
		_, err = tx.Exec(
			`INSERT INTO feed_results (run_id, position, url, ok, events, error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, f.URL, f.OK(), f.Events, f.ErrorText(), f.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert feed result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. Feed details are not
// loaded.
func (s *Storage) ListRuns(limit int) ([]*domain.RunReport, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, events, succeeded, total, output_path, output_size
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.RunReport
	for rows.Next() {
		r := &domain.RunReport{}
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Events, &r.Succeeded, &r.Total, &r.OutputPath, &r.OutputSize); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FeedHealth returns the latest recorded outcomes for url, newest first
func (s *Storage) FeedHealth(url string, limit int) ([]*domain.FeedOutcome, error) {
	rows, err := s.db.Query(
		`SELECT f.run_id, r.started_at, f.url, f.ok, f.events, f.error, f.duration_ms
		 FROM feed_results f
		 JOIN runs r ON r.id = f.run_id
		 WHERE f.url = ?
		 ORDER BY r.started_at DESC, f.position
		 LIMIT ?`,
		url, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*domain.FeedOutcome
	for rows.Next() {
		o := &domain.FeedOutcome{}
		var durationMS int64
		if err := rows.Scan(&o.RunID, &o.StartedAt, &o.URL, &o.OK, &o.Events, &o.Error, &durationMS); err != nil {
			return nil, err
		}
		o.Duration = time.Duration(durationMS) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
