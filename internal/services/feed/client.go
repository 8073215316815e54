package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"feedcast/internal/config"
	"feedcast/internal/services"
	"feedcast/internal/store"
)

const (
	defaultBaseURL        = "https://syndication.feedcast.invalid"
	defaultRequestTimeout = 30 * time.Second
	defaultUserAgent      = "feedcast/1.0 (+https://github.com/feedcast/feedcast)"
)

// Client fetches timeline pages over HTTP and parses the returned markup.
type Client struct {
	baseURL    string
	def        SourceDef
	httpClient *http.Client
	userAgent  string
	now        func() time.Time
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithNow overrides the observation clock (useful for tests).
func WithNow(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a timeline client for one source definition.
func NewClient(cfg config.Feed, def SourceDef, opts ...ClientOption) *Client {
	timeout := defaultRequestTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		def:        def,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  defaultUserAgent,
		now:        time.Now,
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FetchPage retrieves one page of the client's timeline.
func (c *Client) FetchPage(ctx context.Context, session Session, cursor string) (Page, error) {
	if !session.Valid() {
		return Page{}, services.Wrap(services.ErrAuthExpired, "feed", "fetch page",
			"session has no auth token", nil)
	}
	path, query, err := c.def.path()
	if err != nil {
		return Page{}, services.Wrap(services.ErrConfiguration, "feed", "fetch page", "resolve timeline", err)
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	endpoint := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, services.Wrap(services.ErrUnavailable, "feed", "fetch page", "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: session.AuthToken})
	if session.CSRFToken != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: session.CSRFToken})
		req.Header.Set("X-Csrf-Token", session.CSRFToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		return Page{}, services.Wrap(services.ErrUnavailable, "feed", "fetch page",
			fmt.Sprintf("request %s", c.def.Label()), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Page{}, services.Wrap(services.ErrAuthExpired, "feed", "fetch page",
			fmt.Sprintf("%s returned http %d", c.def.Label(), resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return Page{}, services.Wrap(services.ErrUnavailable, "feed", "fetch page",
			fmt.Sprintf("%s returned http %d", c.def.Label(), resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Page{}, services.Wrap(services.ErrUnavailable, "feed", "fetch page", "parse timeline markup", err)
	}
	return c.parseTimeline(doc), nil
}

func (c *Client) parseTimeline(doc *goquery.Document) Page {
	observedAt := c.now().UTC()
	page := Page{
		NextCursor: strings.TrimSpace(doc.Find("div.timeline").AttrOr("data-next-cursor", "")),
	}

	doc.Find("article.post").Each(func(_ int, sel *goquery.Selection) {
		post, ok := parsePost(sel, observedAt)
		if ok {
			page.Posts = append(page.Posts, post)
		}
	})
	return page
}

func parsePost(sel *goquery.Selection, observedAt time.Time) (store.Post, bool) {
	sourceID := strings.TrimSpace(sel.AttrOr("data-post-id", ""))
	author := strings.TrimSpace(sel.AttrOr("data-author", ""))
	body := strings.TrimSpace(sel.Find("div.post-body").Text())
	if sourceID == "" || body == "" {
		return store.Post{}, false
	}

	post := store.Post{
		SourceID:   sourceID,
		Author:     author,
		Body:       body,
		URL:        strings.TrimSpace(sel.Find("a.post-link").AttrOr("href", "")),
		ObservedAt: observedAt,
		Likes:      attrInt(sel, "data-likes"),
		Reposts:    attrInt(sel, "data-reposts"),
		Replies:    attrInt(sel, "data-replies"),
		Views:      attrInt(sel, "data-views"),
	}
	if raw := strings.TrimSpace(sel.AttrOr("data-posted-at", "")); raw != "" {
		if postedAt, err := time.Parse(time.RFC3339, raw); err == nil {
			post.PostedAt = postedAt.UTC()
		}
	}
	if post.URL == "" && author != "" {
		post.URL = fmt.Sprintf("https://x.com/%s/status/%s", url.PathEscape(author), url.PathEscape(sourceID))
	}
	return post, true
}

func attrInt(sel *goquery.Selection, attr string) int64 {
	raw := strings.TrimSpace(sel.AttrOr(attr, ""))
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
