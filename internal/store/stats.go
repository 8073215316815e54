package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"feedcast/internal/stage"
)

// ItemFilter narrows item counting queries. Zero values mean "no filter".
type ItemFilter struct {
	Stage  stage.Stage
	Author string
	Since  time.Time
}

// Statistics aggregates the numbers shown by the status surfaces.
type Statistics struct {
	TotalItems     int64
	ItemsToday     int64
	CountsByStage  map[stage.Stage]int64
	AverageScore   float64
	ScoredItems    int64
	EpisodeCount   int64
	LastCollection *Run
	LastGeneration *Run
}

// CountItems counts items matching the filter. The query is assembled
// dynamically because any combination of filters may apply.
func (s *Store) CountItems(ctx context.Context, filter ItemFilter) (int64, error) {
	ctx = ensureContext(ctx)
	builder := sq.Select("COUNT(1)").From("items")
	if filter.Stage != "" {
		builder = builder.Where(sq.Eq{"stage": string(filter.Stage)})
	}
	if filter.Author != "" {
		builder = builder.Where(sq.Eq{"author": filter.Author})
	}
	if !filter.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"observed_at": formatTime(filter.Since)})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

// Stats assembles the aggregate view used by the status command and API.
func (s *Store) Stats(ctx context.Context) (*Statistics, error) {
	ctx = ensureContext(ctx)
	stats := &Statistics{CountsByStage: make(map[stage.Stage]int64, 4)}

	total, err := s.CountItems(ctx, ItemFilter{})
	if err != nil {
		return nil, err
	}
	stats.TotalItems = total

	today := time.Now().UTC().Truncate(24 * time.Hour)
	itemsToday, err := s.CountItems(ctx, ItemFilter{Since: today})
	if err != nil {
		return nil, err
	}
	stats.ItemsToday = itemsToday

	query, args, err := sq.Select("stage", "COUNT(1)").From("items").GroupBy("stage").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stage count query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count stages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			stageStr string
			count    int64
		)
		if err := rows.Scan(&stageStr, &count); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		stats.CountsByStage[stage.Stage(stageStr)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage counts: %w", err)
	}

	var (
		avgScore sql.NullFloat64
		scored   sql.NullInt64
	)
	err = s.db.QueryRowContext(ctx,
		"SELECT AVG(interest_score), COUNT(interest_score) FROM items WHERE interest_score IS NOT NULL",
	).Scan(&avgScore, &scored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("average score: %w", err)
	}
	stats.AverageScore = avgScore.Float64
	stats.ScoredItems = scored.Int64

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM episodes").Scan(&stats.EpisodeCount); err != nil {
		return nil, fmt.Errorf("count episodes: %w", err)
	}

	if stats.LastCollection, err = s.LastSuccessfulRun(ctx, RunKindCollection); err != nil {
		return nil, err
	}
	if stats.LastGeneration, err = s.LastSuccessfulRun(ctx, RunKindGeneration); err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteUnusedItemsBefore removes items observed before the cutoff that
// were never included in an episode. Returns the number of deleted rows.
func (s *Store) DeleteUnusedItemsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	query, args, err := sq.Delete("items").
		Where(sq.Lt{"observed_at": formatTime(cutoff)}).
		Where(sq.Eq{"episode_id": nil}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cleanup query: %w", err)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup items: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup rows: %w", err)
	}
	return deleted, nil
}
