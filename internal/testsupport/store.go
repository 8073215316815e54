package testsupport

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"feedcast/internal/config"
	"feedcast/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// BackdateRun rewrites a run's start and heartbeat timestamps, simulating a
// run abandoned by a process that died long ago.
func BackdateRun(t testing.TB, cfg *config.Config, runID string, to time.Time) {
	t.Helper()

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	stamp := to.UTC().Format(store.TimeLayout)
	res, err := db.Exec("UPDATE runs SET started_at = ?, heartbeat_at = ? WHERE id = ?", stamp, stamp, runID)
	if err != nil {
		t.Fatalf("backdate run: %v", err)
	}
	if affected, _ := res.RowsAffected(); affected != 1 {
		t.Fatalf("backdate run: expected 1 row, got %d", affected)
	}
}

// NewPost builds a post with sensible defaults for tests.
func NewPost(sourceID, author, body string, observedAt time.Time) store.Post {
	return store.Post{
		SourceID:   sourceID,
		Author:     author,
		Body:       body,
		URL:        "https://x.com/" + author + "/status/" + sourceID,
		PostedAt:   observedAt.Add(-time.Minute),
		ObservedAt: observedAt,
		Likes:      10,
		Reposts:    2,
		Replies:    1,
		Views:      500,
	}
}

// SeedItem upserts a post for tests using the provided store.
func SeedItem(t testing.TB, st *store.Store, sourceID, author, body string, observedAt time.Time) *store.Item {
	t.Helper()

	item, _, err := st.Upsert(context.Background(), NewPost(sourceID, author, body, observedAt), "")
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return item
}
