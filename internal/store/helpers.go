package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"feedcast/internal/stage"
)

const itemColumns = "id, source_id, author, body, url, posted_at, observed_at, likes, reposts, replies, views, stage, interest_score, topics, summary, collection_run_id, episode_id, created_at, updated_at"

const runColumns = "id, kind, status, started_at, heartbeat_at, finished_at, error_reason, message, items_collected, items_new"

const episodeColumns = "id, title, description, script, audio_path, transcript_path, item_count, duration_seconds, window_start, window_end, generation_run_id, created_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id              int64
		sourceID        string
		author          sql.NullString
		body            sql.NullString
		url             sql.NullString
		postedRaw       sql.NullString
		observedRaw     sql.NullString
		likes           sql.NullInt64
		reposts         sql.NullInt64
		replies         sql.NullInt64
		views           sql.NullInt64
		stageStr        string
		interestScore   sql.NullFloat64
		topicsRaw       sql.NullString
		summary         sql.NullString
		collectionRunID sql.NullString
		episodeID       sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceID,
		&author,
		&body,
		&url,
		&postedRaw,
		&observedRaw,
		&likes,
		&reposts,
		&replies,
		&views,
		&stageStr,
		&interestScore,
		&topicsRaw,
		&summary,
		&collectionRunID,
		&episodeID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		SourceID:        sourceID,
		Author:          author.String,
		Body:            body.String,
		URL:             url.String,
		Likes:           likes.Int64,
		Reposts:         reposts.Int64,
		Replies:         replies.Int64,
		Views:           views.Int64,
		Stage:           stage.Stage(stageStr),
		Summary:         summary.String,
		CollectionRunID: collectionRunID.String,
		EpisodeID:       episodeID.String,
	}
	if interestScore.Valid {
		score := interestScore.Float64
		item.InterestScore = &score
	}
	item.Topics = decodeTopics(topicsRaw.String)

	if posted, err := parseTimeString(postedRaw.String); err == nil {
		item.PostedAt = posted
	}
	if observed, err := parseTimeString(observedRaw.String); err == nil {
		item.ObservedAt = observed
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id           string
		kind         string
		status       string
		startedRaw   sql.NullString
		heartbeatRaw sql.NullString
		finishedRaw  sql.NullString
		errorReason  sql.NullString
		message      sql.NullString
		collected    sql.NullInt64
		newItems     sql.NullInt64
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&status,
		&startedRaw,
		&heartbeatRaw,
		&finishedRaw,
		&errorReason,
		&message,
		&collected,
		&newItems,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:             id,
		Kind:           RunKind(kind),
		Status:         RunStatus(status),
		ErrorReason:    errorReason.String,
		Message:        message.String,
		ItemsCollected: collected.Int64,
		ItemsNew:       newItems.Int64,
	}
	if started, err := parseTimeString(startedRaw.String); err == nil {
		run.StartedAt = started
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			run.HeartbeatAt = &heartbeat
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		id              string
		title           string
		description     sql.NullString
		script          sql.NullString
		audioPath       sql.NullString
		transcriptPath  sql.NullString
		itemCount       sql.NullInt64
		durationSeconds sql.NullInt64
		windowStartRaw  sql.NullString
		windowEndRaw    sql.NullString
		generationRunID sql.NullString
		createdRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&description,
		&script,
		&audioPath,
		&transcriptPath,
		&itemCount,
		&durationSeconds,
		&windowStartRaw,
		&windowEndRaw,
		&generationRunID,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	episode := &Episode{
		ID:              id,
		Title:           title,
		Description:     description.String,
		Script:          script.String,
		AudioPath:       audioPath.String,
		TranscriptPath:  transcriptPath.String,
		ItemCount:       itemCount.Int64,
		DurationSeconds: durationSeconds.Int64,
		GenerationRunID: generationRunID.String,
	}
	if start, err := parseTimeString(windowStartRaw.String); err == nil {
		episode.WindowStart = start
	}
	if end, err := parseTimeString(windowEndRaw.String); err == nil {
		episode.WindowEnd = end
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		episode.CreatedAt = created
	}
	return episode, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}

// TimeLayout is the storage format for every timestamp column: UTC with a
// fixed-width nanosecond fraction, so lexicographic order on the stored text
// equals chronological order and comparisons keep sub-second precision.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(value time.Time) string {
	return value.UTC().Format(TimeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func encodeTopics(topics []string) any {
	if len(topics) == 0 {
		return nil
	}
	encoded, err := json.Marshal(topics)
	if err != nil {
		return nil
	}
	return string(encoded)
}

func decodeTopics(raw string) []string {
	if raw == "" {
		return nil
	}
	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		return nil
	}
	return topics
}
