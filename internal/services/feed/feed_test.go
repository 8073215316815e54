package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"feedcast/internal/config"
	"feedcast/internal/services"
)

const timelinePage = `<html><body>
<div class="timeline" data-next-cursor="cursor-2">
  <article class="post" data-post-id="101" data-author="alice"
           data-posted-at="2026-08-25T12:00:00Z"
           data-likes="42" data-reposts="7" data-replies="3" data-views="900">
    <a class="post-link" href="https://x.com/alice/status/101"></a>
    <div class="post-body">Kernel 7.2 released with a new scheduler</div>
  </article>
  <article class="post" data-post-id="102" data-author="bob" data-likes="5">
    <div class="post-body">Cloud outage resolved after two hours</div>
  </article>
  <article class="post" data-post-id="" data-author="ghost">
    <div class="post-body">missing id, must be skipped</div>
  </article>
</div>
</body></html>`

func newFeedServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, config.Feed) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, config.Feed{BaseURL: server.URL, RequestTimeout: 5}
}

func testSession() Session {
	return Session{AuthToken: "tok", CSRFToken: "csrf"}
}

func TestFetchPageParsesPostsAndCursor(t *testing.T) {
	var gotPath, gotCookie, gotCSRF string
	_, cfg := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if c, err := r.Cookie("auth_token"); err == nil {
			gotCookie = c.Value
		}
		gotCSRF = r.Header.Get("X-Csrf-Token")
		fmt.Fprint(w, timelinePage)
	})

	fixed := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	client := NewClient(cfg, SourceDef{Kind: KindHome}, WithNow(func() time.Time { return fixed }))

	page, err := client.FetchPage(context.Background(), testSession(), "")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if gotPath != "/timeline/home" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotCookie != "tok" || gotCSRF != "csrf" {
		t.Fatalf("expected session credentials on request, got cookie=%q csrf=%q", gotCookie, gotCSRF)
	}
	if page.NextCursor != "cursor-2" {
		t.Fatalf("unexpected cursor %q", page.NextCursor)
	}
	if len(page.Posts) != 2 {
		t.Fatalf("expected 2 posts (one skipped), got %d", len(page.Posts))
	}

	first := page.Posts[0]
	if first.SourceID != "101" || first.Author != "alice" || first.Likes != 42 || first.Views != 900 {
		t.Fatalf("unexpected first post %+v", first)
	}
	if !first.PostedAt.Equal(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected posted_at %v", first.PostedAt)
	}
	if !first.ObservedAt.Equal(fixed) {
		t.Fatalf("observed_at should come from the clock, got %v", first.ObservedAt)
	}

	second := page.Posts[1]
	if second.URL != "https://x.com/bob/status/102" {
		t.Fatalf("expected synthesized post URL, got %q", second.URL)
	}
}

func TestFetchPagePassesCursor(t *testing.T) {
	var gotCursor string
	_, cfg := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotCursor = r.URL.Query().Get("cursor")
		fmt.Fprint(w, `<div class="timeline"></div>`)
	})

	client := NewClient(cfg, SourceDef{Kind: KindSearch, Query: "golang"})
	page, err := client.FetchPage(context.Background(), testSession(), "cursor-7")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if gotCursor != "cursor-7" {
		t.Fatalf("expected cursor forwarded, got %q", gotCursor)
	}
	if page.NextCursor != "" || len(page.Posts) != 0 {
		t.Fatalf("expected exhausted page, got %+v", page)
	}
}

func TestFetchPageClassifiesErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, services.ErrAuthExpired},
		{"forbidden", http.StatusForbidden, services.ErrAuthExpired},
		{"rate limited", http.StatusTooManyRequests, services.ErrUnavailable},
		{"server error", http.StatusBadGateway, services.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, cfg := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})
			client := NewClient(cfg, SourceDef{Kind: KindHome})
			_, err := client.FetchPage(context.Background(), testSession(), "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
			}
		})
	}
}

func TestFetchPageRejectsEmptySession(t *testing.T) {
	client := NewClient(config.Feed{BaseURL: "http://127.0.0.1:0"}, SourceDef{Kind: KindHome})
	_, err := client.FetchPage(context.Background(), Session{}, "")
	if !errors.Is(err, services.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
}

func TestResolveSessionPrefersConfigTokens(t *testing.T) {
	session, err := ResolveSession(config.Feed{AuthToken: "direct", CSRFToken: "c"})
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}
	if session.AuthToken != "direct" || session.CSRFToken != "c" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestResolveSessionFallsBackToCookiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	payload := `[{"name":"auth_token","value":"from-file"},{"name":"ct0","value":"csrf-file"}]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}

	session, err := ResolveSession(config.Feed{CookiesFile: path})
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}
	if session.AuthToken != "from-file" || session.CSRFToken != "csrf-file" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestLoadSessionFromCookiesMapForm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	if err := os.WriteFile(path, []byte(`{"auth_token":"tok","ct0":"csrf"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	session, err := LoadSessionFromCookies(path)
	if err != nil {
		t.Fatalf("LoadSessionFromCookies: %v", err)
	}
	if session.AuthToken != "tok" || session.CSRFToken != "csrf" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestLoadSessionFromCookiesRequiresAuthToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	if err := os.WriteFile(path, []byte(`{"ct0":"csrf"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadSessionFromCookies(path)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadSourcesDefaultsToHome(t *testing.T) {
	defs, err := LoadSources("")
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(defs) != 1 || defs[0].Kind != KindHome {
		t.Fatalf("expected single home source, got %v", defs)
	}
}

func TestLoadSourcesParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	payload := `sources:
  - kind: home
  - kind: user
    user: alice
  - kind: search
    query: "golang release"
`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}

	defs, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(defs))
	}
	if defs[1].Kind != KindUser || defs[1].User != "alice" {
		t.Fatalf("unexpected user source %+v", defs[1])
	}
	if defs[2].Label() != "search:golang release" {
		t.Fatalf("unexpected label %q", defs[2].Label())
	}
}

func TestLoadSourcesRejectsInvalidDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte("sources:\n  - kind: user\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadSources(path)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
