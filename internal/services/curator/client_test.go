package curator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedcast/internal/services"
)

func testRequest() Request {
	return Request{
		Items: []ItemInput{
			{SourceID: "p1", Author: "alice", Body: "Kernel 7.2 released with new scheduler", Likes: 120},
			{SourceID: "p2", Author: "bob", Body: "My cat did a thing", Likes: 5},
			{SourceID: "p3", Author: "carol", Body: "Major outage at cloud provider resolved", Likes: 300},
		},
		MaxSelected:  2,
		PodcastTitle: "Daily Feed",
		HostA:        "Alex",
		HostB:        "Jordan",
	}
}

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Title:   "Daily Feed",
	}
	return NewClient(cfg, opts...)
}

const goodCuration = `{
  "items": [
    {"id": "p1", "score": 8, "topics": ["linux"], "summary": "New kernel release."},
    {"id": "p2", "score": 2, "topics": ["pets"], "summary": "A cat post."},
    {"id": "p3", "score": 9, "topics": ["cloud"], "summary": "Outage resolved."}
  ],
  "selected": ["p3", "p1"],
  "title": "Outages and Kernels",
  "description": "Cloud recovery and a fresh kernel.",
  "script": "Alex: Welcome back!\nJordan: Big day in infrastructure."
}`

func TestCurateParsesFullResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		fmt.Fprint(w, completionBody(goodCuration))
	})

	result, err := client.Curate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}
	if len(result.Assessments) != 3 {
		t.Fatalf("expected 3 assessments, got %d", len(result.Assessments))
	}
	if len(result.Selected) != 2 || result.Selected[0] != "p3" || result.Selected[1] != "p1" {
		t.Fatalf("unexpected selection %v", result.Selected)
	}
	if result.Title != "Outages and Kernels" {
		t.Fatalf("unexpected title %q", result.Title)
	}
	if result.Script == "" {
		t.Fatal("expected non-empty script")
	}
}

func TestCurateToleratesCodeFencedPayload(t *testing.T) {
	fenced := "```json\n" + goodCuration + "\n```"
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(fenced))
	})

	result, err := client.Curate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}
	if len(result.Selected) != 2 {
		t.Fatalf("unexpected selection %v", result.Selected)
	}
}

func TestCurateCapsSelectionAndDropsUnknownIDs(t *testing.T) {
	payload := `{
  "items": [
    {"id": "p1", "score": 15, "topics": [], "summary": "s"},
    {"id": "ghost", "score": 9, "topics": [], "summary": "s"},
    {"id": "p2", "score": -3, "topics": [], "summary": "s"},
    {"id": "p3", "score": 6, "topics": [], "summary": "s"}
  ],
  "selected": ["ghost", "p1", "p3", "p2"],
  "title": "t", "description": "d",
  "script": "Alex: hi\nJordan: hi"
}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(payload))
	})

	result, err := client.Curate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}
	if len(result.Selected) != 2 || result.Selected[0] != "p1" || result.Selected[1] != "p3" {
		t.Fatalf("expected selection capped to [p1 p3], got %v", result.Selected)
	}
	scores := make(map[string]float64)
	for _, a := range result.Assessments {
		scores[a.SourceID] = a.Score
	}
	if scores["p1"] != 10 || scores["p2"] != 1 {
		t.Fatalf("expected scores clamped to [1,10], got %v", scores)
	}
	if _, ok := scores["ghost"]; ok {
		t.Fatal("unknown item should not be assessed")
	}
}

func TestCurateAuthFailureIsTerminal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	})

	_, err := client.Curate(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	var provErr *services.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if provErr.Retryable {
		t.Fatal("auth failure must not be retryable")
	}
	if !errors.Is(err, services.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
}

func TestCurateRetriesRateLimitWithRetryAfter(t *testing.T) {
	var calls int
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "3")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, completionBody(goodCuration))
	}

	var slept []time.Duration
	client := newTestClient(t, handler,
		WithRetryMaxAttempts(3),
		WithRetryBackoff(time.Millisecond, 5*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)

	result, err := client.Curate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Fatalf("expected one 3s sleep from Retry-After, got %v", slept)
	}
	if len(result.Selected) == 0 {
		t.Fatal("expected selection after retry")
	}
}

func TestCurateServerErrorExhaustsRetries(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	},
		WithRetryMaxAttempts(3),
		WithRetryBackoff(time.Millisecond, time.Millisecond),
		WithSleeper(func(time.Duration) {}),
	)

	_, err := client.Curate(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !services.IsRetryable(err) {
		t.Fatalf("server errors should surface as retryable, got %v", err)
	}
}

func TestCurateRejectsEmptyCandidates(t *testing.T) {
	client := NewClient(Config{APIKey: "k", Model: "m"})
	_, err := client.Curate(context.Background(), Request{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDecodeModelJSON(t *testing.T) {
	var target struct {
		OK bool `json:"ok"`
	}
	cases := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"plain", `{"ok":true}`, false},
		{"fenced", "```json\n{\"ok\":true}\n```", false},
		{"prose wrapped", `Here you go: {"ok":true} hope that helps`, false},
		{"empty", "", true},
		{"garbage", "not json at all", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target.OK = false
			err := DecodeModelJSON(tc.payload, &target)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeModelJSON: %v", err)
			}
			if !target.OK {
				t.Fatal("expected ok=true")
			}
		})
	}
}
