package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedcast/internal/config"
	"feedcast/internal/stage"
)

// Upsert records a post observed during collection. Unseen posts are
// inserted at the collected stage and attributed to the supplied run;
// re-observed posts refresh content and engagement only. Stage, score,
// and episode assignment never change through this path.
func (s *Store) Upsert(ctx context.Context, post Post, runID string) (*Item, bool, error) {
	sourceID := strings.TrimSpace(post.SourceID)
	if sourceID == "" {
		return nil, false, errors.New("upsert: source id required")
	}
	now := time.Now().UTC()
	observed := post.ObservedAt
	if observed.IsZero() {
		observed = now
	}

	var (
		item    *Item
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getItemBySourceIDTx(ctx, tx, sourceID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		if existing == nil {
			created = true
			_, err = tx.ExecContext(ctx, `
INSERT INTO items (source_id, author, body, url, posted_at, observed_at, likes, reposts, replies, views, stage, collection_run_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sourceID,
				post.Author,
				post.Body,
				nullableString(post.URL),
				nullableTime(post.PostedAt),
				formatTime(observed),
				post.Likes,
				post.Reposts,
				post.Replies,
				post.Views,
				string(stage.Collected),
				nullableString(runID),
				formatTime(now),
				formatTime(now),
			)
			if err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
		} else {
			likes, reposts, replies, views := post.Likes, post.Reposts, post.Replies, post.Views
			if s.engagement == config.EngagementMergeMax {
				likes = max(likes, existing.Likes)
				reposts = max(reposts, existing.Reposts)
				replies = max(replies, existing.Replies)
				views = max(views, existing.Views)
			}
			// observed_at stays at first observation so windows don't
			// re-capture old items.
			_, err = tx.ExecContext(ctx, `
UPDATE items SET author = ?, body = ?, url = ?, posted_at = ?, likes = ?, reposts = ?, replies = ?, views = ?, updated_at = ?
WHERE source_id = ?`,
				post.Author,
				post.Body,
				nullableString(post.URL),
				nullableTime(post.PostedAt),
				likes,
				reposts,
				replies,
				views,
				formatTime(now),
				sourceID,
			)
			if err != nil {
				return fmt.Errorf("refresh item: %w", err)
			}
		}

		item, err = getItemBySourceIDTx(ctx, tx, sourceID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return item, created, nil
}

// GetBySourceID returns the item with the given source id.
func (s *Store) GetBySourceID(ctx context.Context, sourceID string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE source_id = ?", sourceID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, sourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// SetScore records the curator's interest score for an item.
func (s *Store) SetScore(ctx context.Context, sourceID string, score float64) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE items SET interest_score = ?, updated_at = ? WHERE source_id = ?",
		score, formatTime(time.Now().UTC()), sourceID)
	if err != nil {
		return fmt.Errorf("set score: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set score rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, sourceID)
	}
	return nil
}

// SetCuration records the curator's score, topics, and summary in one write.
func (s *Store) SetCuration(ctx context.Context, sourceID string, curation Curation) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE items SET interest_score = ?, topics = ?, summary = ?, updated_at = ? WHERE source_id = ?",
		curation.Score,
		encodeTopics(curation.Topics),
		nullableString(strings.TrimSpace(curation.Summary)),
		formatTime(time.Now().UTC()),
		sourceID)
	if err != nil {
		return fmt.Errorf("set curation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set curation rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, sourceID)
	}
	return nil
}

// AdvanceStage moves an item exactly one stage forward. Any attempt to
// regress or skip returns ErrStaleTransition, leaving the row untouched.
func (s *Store) AdvanceStage(ctx context.Context, sourceID string, next stage.Stage) error {
	if !stage.Valid(next) {
		return fmt.Errorf("%w: unknown stage %q", ErrStaleTransition, next)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return advanceStageTx(ctx, tx, sourceID, next)
	})
}

func advanceStageTx(ctx context.Context, tx *sql.Tx, sourceID string, next stage.Stage) error {
	current, err := getItemBySourceIDTx(ctx, tx, sourceID)
	if err != nil {
		return err
	}
	if !stage.CanAdvance(current.Stage, next) {
		return fmt.Errorf("%w: item %s is %s, cannot move to %s", ErrStaleTransition, sourceID, current.Stage, next)
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE items SET stage = ?, updated_at = ? WHERE source_id = ? AND stage = ?",
		string(next), formatTime(time.Now().UTC()), sourceID, string(current.Stage))
	if err != nil {
		return fmt.Errorf("advance stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance stage rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: item %s changed concurrently", ErrStaleTransition, sourceID)
	}
	return nil
}

func getItemBySourceIDTx(ctx context.Context, tx *sql.Tx, sourceID string) (*Item, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE source_id = ?", sourceID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, sourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// SelectWindow returns candidate items observed in [start, end) whose
// stage is at or past minStage, in deterministic order: observed_at,
// then source_id.
func (s *Store) SelectWindow(ctx context.Context, start, end time.Time, minStage stage.Stage, limit int) ([]*Item, error) {
	ctx = ensureContext(ctx)
	minRank := stage.Rank(minStage)
	if minRank < 0 {
		return nil, fmt.Errorf("select window: unknown stage %q", minStage)
	}
	eligible := make([]any, 0, 4)
	for _, st := range stage.All() {
		if stage.Rank(st) >= minRank {
			eligible = append(eligible, string(st))
		}
	}

	query := "SELECT " + itemColumns + " FROM items WHERE observed_at >= ? AND observed_at < ? AND stage IN (" + makePlaceholders(len(eligible)) + ") ORDER BY observed_at ASC, source_id ASC"
	args := append([]any{formatTime(start), formatTime(end)}, eligible...)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select window: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// Search runs a full-text query over stored items, optionally limited to
// those observed within the trailing window. Results order by match rank,
// then recency.
func (s *Store) Search(ctx context.Context, query string, window time.Duration, limit int) ([]*Item, error) {
	ctx = ensureContext(ctx)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search: query required")
	}
	if limit <= 0 {
		limit = 50
	}

	sqlQuery := "SELECT " + prefixColumns(itemColumns, "i") + " FROM items_fts f JOIN items i ON i.id = f.rowid WHERE items_fts MATCH ?"
	args := []any{query}
	if window > 0 {
		sqlQuery += " AND i.observed_at >= ?"
		args = append(args, formatTime(time.Now().UTC().Add(-window)))
	}
	sqlQuery += " ORDER BY bm25(items_fts), i.observed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}
