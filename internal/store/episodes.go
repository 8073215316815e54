package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedcast/internal/stage"
)

// FinalizeEpisode inserts the episode row and advances every selected
// item from scripted to rendered in one transaction, so a partially
// assembled episode is never visible.
func (s *Store) FinalizeEpisode(ctx context.Context, episode *Episode, sourceIDs []string) error {
	if episode == nil {
		return errors.New("finalize episode: episode required")
	}
	if strings.TrimSpace(episode.ID) == "" {
		return errors.New("finalize episode: episode id required")
	}
	if len(sourceIDs) == 0 {
		return errors.New("finalize episode: at least one item required")
	}
	now := time.Now().UTC()
	if episode.CreatedAt.IsZero() {
		episode.CreatedAt = now
	}
	episode.ItemCount = int64(len(sourceIDs))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO episodes (id, title, description, script, audio_path, transcript_path, item_count, duration_seconds, window_start, window_end, generation_run_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			episode.ID,
			episode.Title,
			nullableString(episode.Description),
			episode.Script,
			episode.AudioPath,
			nullableString(episode.TranscriptPath),
			episode.ItemCount,
			episode.DurationSeconds,
			formatTime(episode.WindowStart),
			formatTime(episode.WindowEnd),
			nullableString(episode.GenerationRunID),
			formatTime(episode.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}

		for _, sourceID := range sourceIDs {
			if err := advanceStageTx(ctx, tx, sourceID, stage.Rendered); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE items SET episode_id = ? WHERE source_id = ?",
				episode.ID, sourceID); err != nil {
				return fmt.Errorf("assign episode: %w", err)
			}
		}
		return nil
	})
}

// GetEpisode returns the episode with the given id.
func (s *Store) GetEpisode(ctx context.Context, episodeID string) (*Episode, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+episodeColumns+" FROM episodes WHERE id = ?", episodeID)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: episode %s", ErrNotFound, episodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return episode, nil
}

// ListEpisodes returns episodes ordered most recent first.
func (s *Store) ListEpisodes(ctx context.Context, limit int) ([]*Episode, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+episodeColumns+" FROM episodes ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return episodes, nil
}

// EpisodeItems returns the items included in an episode, in window order.
func (s *Store) EpisodeItems(ctx context.Context, episodeID string) ([]*Item, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE episode_id = ? ORDER BY observed_at ASC, source_id ASC",
		episodeID)
	if err != nil {
		return nil, fmt.Errorf("episode items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}
