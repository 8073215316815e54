package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectorRecordsAndServes(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	collector.RunFinished("collection", "succeeded", 3*time.Second)
	collector.RunFinished("collection", "failed", time.Second)
	collector.ItemsCollected(50, 47)
	collector.EpisodeRendered()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`feedcast_runs_total{kind="collection",status="succeeded"} 1`,
		`feedcast_runs_total{kind="collection",status="failed"} 1`,
		`feedcast_items_collected_total 50`,
		`feedcast_items_new_total 47`,
		`feedcast_episodes_rendered_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *Collector
	collector.RunFinished("generation", "succeeded", time.Second)
	collector.ItemsCollected(1, 1)
	collector.EpisodeRendered()
}
