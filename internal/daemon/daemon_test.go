package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"feedcast/internal/metrics"
	"feedcast/internal/scheduler"
	"feedcast/internal/store"
	"feedcast/internal/testsupport"
)

type stubRunner struct{}

func (stubRunner) RunCollection(ctx context.Context) (*store.Run, error) { return nil, nil }
func (stubRunner) RunGeneration(ctx context.Context) (*store.Run, error) { return nil, nil }

func startTestDaemon(t *testing.T, token string) (*Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = token
	st := testsupport.MustOpenStore(t, cfg)
	sched := scheduler.New(cfg, st, stubRunner{}, nil)

	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("metrics.NewCollector: %v", err)
	}
	d, err := New(cfg, st, sched, collector, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, "http://" + d.APIAddr()
}

func getWithToken(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestDaemonServesStatusAPI(t *testing.T) {
	_, base := startTestDaemon(t, "secret")

	if resp := getWithToken(t, base+"/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}

	if resp := getWithToken(t, base+"/api/status", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := getWithToken(t, base+"/api/status", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}

	resp := getWithToken(t, base+"/api/status", "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !payload.Running {
		t.Fatal("expected running daemon")
	}
	if payload.DatabasePath == "" || payload.LockFilePath == "" {
		t.Fatalf("expected populated paths, got %+v", payload)
	}
}

func TestDaemonServesStatsAndMetrics(t *testing.T) {
	d, base := startTestDaemon(t, "")
	testsupport.SeedItem(t, d.store, "s1", "alice", "hello world", time.Now().UTC())

	resp := getWithToken(t, base+"/api/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	var stats statsPayload
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalItems != 1 {
		t.Fatalf("expected 1 item, got %d", stats.TotalItems)
	}

	if resp := getWithToken(t, base+"/metrics", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}

	if resp := getWithToken(t, base+"/api/episodes", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("episodes: expected 200, got %d", resp.StatusCode)
	}
	if resp := getWithToken(t, base+"/api/episodes?limit=bogus", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid limit, got %d", resp.StatusCode)
	}
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	first, _ := startTestDaemon(t, "")

	cfg := testsupport.NewConfig(t)
	cfg.Paths.DataDir = first.cfg.Paths.DataDir
	st := testsupport.MustOpenStore(t, cfg)
	sched := scheduler.New(cfg, st, stubRunner{}, nil)
	second, err := New(cfg, st, sched, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance start to fail while lock is held")
	}
}
