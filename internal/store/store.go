// Package store handles persistence of rehearsal progress.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/session"

	_ "modernc.org/sqlite" // SQLite driver.
)

const (
	dayLayout = "2006-01-02"
	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Backend is implemented by every store.
type Backend interface {
	session.ProgressStore
	ListBuildProgress(ctx context.Context, userID string) (map[string]model.BuildProgress, error)
	CompletedLines(ctx context.Context, userID, scriptID string) (map[string]int, error)
	LineAggregates(ctx context.Context, cfg model.StatsConfig) ([]model.LineAggregate, error)
	RecordPracticeDay(ctx context.Context, userID string, day time.Time) error
	PracticeDays(ctx context.Context, userID string) ([]time.Time, error)
	Close() error
}

// Store wraps SQLite access for rehearsal data.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ Backend = (*Store)(nil)

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Writes arrive from background goroutines; one connection serializes them.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS build_progress (
			user_id TEXT NOT NULL,
			line_id TEXT NOT NULL,
			current_segment_index INTEGER NOT NULL,
			total_segments INTEGER NOT NULL,
			highest_checkpoint INTEGER NOT NULL,
			checkpoint_indices TEXT NOT NULL,
			is_complete INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, line_id)
		);`,
		`CREATE TABLE IF NOT EXISTS line_completions (
			user_id TEXT NOT NULL,
			script_id TEXT NOT NULL,
			line_id TEXT NOT NULL,
			times INTEGER NOT NULL,
			last_completed_at TEXT NOT NULL,
			PRIMARY KEY (user_id, script_id, line_id)
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			script_id TEXT NOT NULL,
			line_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			correct INTEGER NOT NULL,
			accuracy REAL NOT NULL,
			pickup_ms INTEGER,
			user_ms INTEGER,
			target_ms INTEGER,
			delta_pct REAL,
			band TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS practice_days (
			user_id TEXT NOT NULL,
			day TEXT NOT NULL,
			PRIMARY KEY (user_id, day)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_script ON attempts(user_id, script_id, ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetBuildProgress returns stored progress for a line, or nil.
func (s *Store) GetBuildProgress(ctx context.Context, userID, lineID string) (*model.BuildProgress, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT current_segment_index, total_segments, highest_checkpoint, checkpoint_indices, is_complete, updated_at
		 FROM build_progress WHERE user_id = ? AND line_id = ?`, userID, lineID)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanProgress reads a build_progress row. lead receives columns selected
// before the progress columns.
func scanProgress(row scanner, lead ...any) (model.BuildProgress, error) {
	var p model.BuildProgress
	var indices, updatedAt string
	var complete int
	dest := append(lead, &p.CurrentSegmentIndex, &p.TotalSegments, &p.HighestCheckpoint, &indices, &complete, &updatedAt)
	if err := row.Scan(dest...); err != nil {
		return p, err
	}
	ints, err := parseIndices(indices)
	if err != nil {
		return p, err
	}
	p.CheckpointIndices = ints
	p.IsComplete = complete != 0
	parsed, err := time.Parse(timeLayout, updatedAt)
	if err != nil {
		return p, err
	}
	p.UpdatedAt = parsed
	return p, nil
}

// UpsertBuildProgress stores progress for a line.
func (s *Store) UpsertBuildProgress(ctx context.Context, userID, lineID string, p model.BuildProgress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_progress (user_id, line_id, current_segment_index, total_segments, highest_checkpoint, checkpoint_indices, is_complete, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, line_id) DO UPDATE SET
			current_segment_index = excluded.current_segment_index,
			total_segments = excluded.total_segments,
			highest_checkpoint = excluded.highest_checkpoint,
			checkpoint_indices = excluded.checkpoint_indices,
			is_complete = excluded.is_complete,
			updated_at = excluded.updated_at`,
		userID, lineID,
		p.CurrentSegmentIndex,
		p.TotalSegments,
		p.HighestCheckpoint,
		formatIndices(p.CheckpointIndices),
		boolInt(p.IsComplete),
		p.UpdatedAt.UTC().Format(timeLayout),
	)
	return err
}

// DeleteBuildProgress removes stored progress for a line.
func (s *Store) DeleteBuildProgress(ctx context.Context, userID, lineID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM build_progress WHERE user_id = ? AND line_id = ?`, userID, lineID)
	return err
}

// ListBuildProgress returns stored progress for every line of a user.
func (s *Store) ListBuildProgress(ctx context.Context, userID string) (map[string]model.BuildProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line_id, current_segment_index, total_segments, highest_checkpoint, checkpoint_indices, is_complete, updated_at
		 FROM build_progress WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[string]model.BuildProgress{}
	for rows.Next() {
		var lineID string
		p, err := scanProgress(rows, &lineID)
		if err != nil {
			return nil, err
		}
		result[lineID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkLineCompleted counts one completion of a line.
func (s *Store) MarkLineCompleted(ctx context.Context, userID, scriptID, lineID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO line_completions (user_id, script_id, line_id, times, last_completed_at)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(user_id, script_id, line_id) DO UPDATE SET
			times = times + 1,
			last_completed_at = excluded.last_completed_at`,
		userID, scriptID, lineID, s.now().UTC().Format(timeLayout))
	return err
}

// CompletedLines returns completion counts per line of a script.
func (s *Store) CompletedLines(ctx context.Context, userID, scriptID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line_id, times FROM line_completions WHERE user_id = ? AND script_id = ?`, userID, scriptID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[string]int{}
	for rows.Next() {
		var lineID string
		var times int
		if err := rows.Scan(&lineID, &times); err != nil {
			return nil, err
		}
		result[lineID] = times
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RecordAttempt stores one scored utterance.
func (s *Store) RecordAttempt(ctx context.Context, a model.Attempt) error {
	var pickup, userMs, targetMs sql.NullInt64
	var delta sql.NullFloat64
	var band sql.NullString
	if p := a.Pacing; p != nil {
		pickup = sql.NullInt64{Int64: p.PickupMs, Valid: p.HasPickup}
		userMs = sql.NullInt64{Int64: p.UserDurationMs, Valid: true}
		targetMs = sql.NullInt64{Int64: p.TargetDurationMs, Valid: true}
		delta = sql.NullFloat64{Float64: p.DeltaPercent, Valid: true}
		band = sql.NullString{String: p.Band.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, session_id, user_id, script_id, line_id, mode, started_at, ended_at, correct, accuracy, pickup_ms, user_ms, target_ms, delta_pct, band)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.UserID, a.ScriptID, a.LineID, a.Mode.String(),
		a.StartedAt.UTC().Format(timeLayout),
		a.EndedAt.UTC().Format(timeLayout),
		boolInt(a.Correct), a.AccuracyPercent,
		pickup, userMs, targetMs, delta, band,
	)
	return err
}

// LineAggregates summarizes attempts per line filtered by cfg.
func (s *Store) LineAggregates(ctx context.Context, cfg model.StatsConfig) ([]model.LineAggregate, error) {
	clauses := []string{"user_id = ?"}
	args := []any{cfg.UserID}
	if cfg.ScriptID != "" {
		clauses = append(clauses, "script_id = ?")
		args = append(args, cfg.ScriptID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT line_id, COUNT(*), SUM(correct), SUM(accuracy),
			COALESCE(SUM(delta_pct), 0), COUNT(delta_pct), MAX(ended_at)
		FROM attempts
		WHERE %s
		GROUP BY line_id
		ORDER BY line_id`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.LineAggregate
	for rows.Next() {
		var agg model.LineAggregate
		var last string
		if err := rows.Scan(&agg.LineID, &agg.Attempts, &agg.Correct, &agg.AccuracySum, &agg.DeltaSum, &agg.DeltaCount, &last); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, last)
		if err != nil {
			return nil, err
		}
		agg.LastAttemptedAt = parsed
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RecordPracticeDay marks day as practiced. Repeats are ignored.
func (s *Store) RecordPracticeDay(ctx context.Context, userID string, day time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO practice_days (user_id, day) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		userID, day.Format(dayLayout))
	return err
}

// PracticeDays returns the practiced days of a user, oldest first.
func (s *Store) PracticeDays(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT day FROM practice_days WHERE user_id = ? ORDER BY day`, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var days []time.Time
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(dayLayout, day)
		if err != nil {
			return nil, err
		}
		days = append(days, parsed)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, v := range indices {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func parseIndices(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("checkpoint indices %q: %w", s, err)
		}
		out = append(out, v)
	}
	return out, nil
}
