package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verte-zerg/cueline/internal/model"
)

// PostgresStore persists rehearsal data in PostgreSQL, for progress shared
// between machines.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Backend = (*PostgresStore)(nil)

// OpenPostgres connects to databaseURL and applies the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS build_progress (
			user_id TEXT NOT NULL,
			line_id TEXT NOT NULL,
			current_segment_index INTEGER NOT NULL,
			total_segments INTEGER NOT NULL,
			highest_checkpoint INTEGER NOT NULL,
			checkpoint_indices INTEGER[] NOT NULL DEFAULT '{}',
			is_complete BOOLEAN NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, line_id)
		);`,
		`CREATE TABLE IF NOT EXISTS line_completions (
			user_id TEXT NOT NULL,
			script_id TEXT NOT NULL,
			line_id TEXT NOT NULL,
			times INTEGER NOT NULL,
			last_completed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, script_id, line_id)
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			script_id TEXT NOT NULL,
			line_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			correct BOOLEAN NOT NULL,
			accuracy DOUBLE PRECISION NOT NULL,
			pickup_ms BIGINT,
			user_ms BIGINT,
			target_ms BIGINT,
			delta_pct DOUBLE PRECISION,
			band TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS practice_days (
			user_id TEXT NOT NULL,
			day DATE NOT NULL,
			PRIMARY KEY (user_id, day)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_script ON attempts (user_id, script_id, ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetBuildProgress(ctx context.Context, userID, lineID string) (*model.BuildProgress, error) {
	var p model.BuildProgress
	err := s.pool.QueryRow(ctx,
		`SELECT current_segment_index, total_segments, highest_checkpoint, checkpoint_indices, is_complete, updated_at
		 FROM build_progress WHERE user_id=$1 AND line_id=$2`, userID, lineID,
	).Scan(&p.CurrentSegmentIndex, &p.TotalSegments, &p.HighestCheckpoint, &p.CheckpointIndices, &p.IsComplete, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get build progress: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) UpsertBuildProgress(ctx context.Context, userID, lineID string, p model.BuildProgress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now()
	}
	indices := p.CheckpointIndices
	if indices == nil {
		indices = []int{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO build_progress (user_id, line_id, current_segment_index, total_segments, highest_checkpoint, checkpoint_indices, is_complete, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, line_id) DO UPDATE SET
			current_segment_index = EXCLUDED.current_segment_index,
			total_segments = EXCLUDED.total_segments,
			highest_checkpoint = EXCLUDED.highest_checkpoint,
			checkpoint_indices = EXCLUDED.checkpoint_indices,
			is_complete = EXCLUDED.is_complete,
			updated_at = EXCLUDED.updated_at`,
		userID, lineID, p.CurrentSegmentIndex, p.TotalSegments, p.HighestCheckpoint, indices, p.IsComplete, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert build progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteBuildProgress(ctx context.Context, userID, lineID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM build_progress WHERE user_id=$1 AND line_id=$2`, userID, lineID); err != nil {
		return fmt.Errorf("delete build progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBuildProgress(ctx context.Context, userID string) (map[string]model.BuildProgress, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT line_id, current_segment_index, total_segments, highest_checkpoint, checkpoint_indices, is_complete, updated_at
		 FROM build_progress WHERE user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query build progress: %w", err)
	}
	defer rows.Close()

	result := map[string]model.BuildProgress{}
	for rows.Next() {
		var lineID string
		var p model.BuildProgress
		if err := rows.Scan(&lineID, &p.CurrentSegmentIndex, &p.TotalSegments, &p.HighestCheckpoint, &p.CheckpointIndices, &p.IsComplete, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan build progress: %w", err)
		}
		result[lineID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build progress: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) MarkLineCompleted(ctx context.Context, userID, scriptID, lineID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO line_completions (user_id, script_id, line_id, times, last_completed_at)
		 VALUES ($1, $2, $3, 1, $4)
		 ON CONFLICT (user_id, script_id, line_id) DO UPDATE SET
			times = line_completions.times + 1,
			last_completed_at = EXCLUDED.last_completed_at`,
		userID, scriptID, lineID, s.now())
	if err != nil {
		return fmt.Errorf("mark line completed: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompletedLines(ctx context.Context, userID, scriptID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT line_id, times FROM line_completions WHERE user_id=$1 AND script_id=$2`, userID, scriptID)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	result := map[string]int{}
	for rows.Next() {
		var lineID string
		var times int
		if err := rows.Scan(&lineID, &times); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		result[lineID] = times
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, a model.Attempt) error {
	var pickup, userMs, targetMs *int64
	var delta *float64
	var band *string
	if p := a.Pacing; p != nil {
		if p.HasPickup {
			pickup = &p.PickupMs
		}
		userMs = &p.UserDurationMs
		targetMs = &p.TargetDurationMs
		delta = &p.DeltaPercent
		b := p.Band.String()
		band = &b
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attempts (id, session_id, user_id, script_id, line_id, mode, started_at, ended_at, correct, accuracy, pickup_ms, user_ms, target_ms, delta_pct, band)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.SessionID, a.UserID, a.ScriptID, a.LineID, a.Mode.String(), a.StartedAt, a.EndedAt,
		a.Correct, a.AccuracyPercent, pickup, userMs, targetMs, delta, band,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) LineAggregates(ctx context.Context, cfg model.StatsConfig) ([]model.LineAggregate, error) {
	clauses := []string{"user_id = $1"}
	args := []any{cfg.UserID}
	if cfg.ScriptID != "" {
		args = append(args, cfg.ScriptID)
		clauses = append(clauses, fmt.Sprintf("script_id = $%d", len(args)))
	}
	if cfg.Since != nil {
		args = append(args, *cfg.Since)
		clauses = append(clauses, fmt.Sprintf("ended_at >= $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT line_id, COUNT(*), COUNT(*) FILTER (WHERE correct), SUM(accuracy),
			COALESCE(SUM(delta_pct), 0), COUNT(delta_pct), MAX(ended_at)
		FROM attempts
		WHERE %s
		GROUP BY line_id
		ORDER BY line_id`, strings.Join(clauses, " AND "))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query line aggregates: %w", err)
	}
	defer rows.Close()

	var result []model.LineAggregate
	for rows.Next() {
		var agg model.LineAggregate
		if err := rows.Scan(&agg.LineID, &agg.Attempts, &agg.Correct, &agg.AccuracySum, &agg.DeltaSum, &agg.DeltaCount, &agg.LastAttemptedAt); err != nil {
			return nil, fmt.Errorf("scan line aggregate: %w", err)
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line aggregates: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) RecordPracticeDay(ctx context.Context, userID string, day time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO practice_days (user_id, day) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC))
	if err != nil {
		return fmt.Errorf("record practice day: %w", err)
	}
	return nil
}

func (s *PostgresStore) PracticeDays(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT day FROM practice_days WHERE user_id=$1 ORDER BY day`, userID)
	if err != nil {
		return nil, fmt.Errorf("query practice days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan practice day: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate practice days: %w", err)
	}
	return days, nil
}
