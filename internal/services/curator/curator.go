package curator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"feedcast/internal/services"
)

// Curator scores collected items and produces an episode script from the
// selected subset. Implementations must report failures through
// services.ProviderError so callers can distinguish retryable outages
// from terminal rejections.
type Curator interface {
	Curate(ctx context.Context, req Request) (*Result, error)
}

// Request carries the candidate items and episode framing for one curation call.
type Request struct {
	Items        []ItemInput
	MaxSelected  int
	PodcastTitle string
	HostA        string
	HostB        string
}

// ItemInput is a single candidate the model scores and may select.
type ItemInput struct {
	SourceID string `json:"id"`
	Author   string `json:"author"`
	Body     string `json:"body"`
	Likes    int64  `json:"likes"`
	Reposts  int64  `json:"reposts"`
	Replies  int64  `json:"replies"`
	Views    int64  `json:"views"`
}

// Assessment is the model's verdict on one candidate item.
type Assessment struct {
	SourceID string
	Score    float64
	Topics   []string
	Summary  string
}

// Result is a full curation outcome: every candidate assessed, an ordered
// selection for the episode, and the two-host dialogue script.
type Result struct {
	Assessments []Assessment
	Selected    []string
	Title       string
	Description string
	Script      string
}

const curationSystemPrompt = `You are the editorial curator for a daily news podcast.
You receive a JSON array of social media posts. For EVERY post, assign an
interest score from 1 (noise) to 10 (must cover), a short list of topic tags,
and a one sentence summary.

Then pick the posts worth covering in today's episode, up to the stated
maximum, ordered from strongest to weakest. Prefer substantive, verifiable
posts over engagement bait. Skip duplicates of the same story.

Finally write a conversational dialogue script for the two named hosts that
covers the selected posts in order. Each line must start with the host name
followed by a colon. Open with a short greeting and close with a sign-off.

Respond with JSON only, using exactly this shape:
{
  "items": [{"id": "...", "score": 7, "topics": ["..."], "summary": "..."}],
  "selected": ["id", "id"],
  "title": "...",
  "description": "...",
  "script": "HostA: ...\nHostB: ..."
}`

type curationResponse struct {
	Items []struct {
		ID      string   `json:"id"`
		Score   float64  `json:"score"`
		Topics  []string `json:"topics"`
		Summary string   `json:"summary"`
	} `json:"items"`
	Selected    []string `json:"selected"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Script      string   `json:"script"`
}

// Curate scores every candidate and builds the episode script.
func (c *Client) Curate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Items) == 0 {
		return nil, services.Wrap(services.ErrValidation, "curator", "curate", "no candidate items", nil)
	}
	if req.MaxSelected <= 0 {
		req.MaxSelected = len(req.Items)
	}

	userPrompt, err := buildUserPrompt(req)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "curator", "curate", "encode candidates", err)
	}

	content, err := c.CompleteJSON(ctx, curationSystemPrompt, userPrompt)
	if err != nil {
		return nil, classifyFailure("curate", err)
	}

	var parsed curationResponse
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return nil, &services.ProviderError{
			Op:        "curate",
			Retryable: true,
			Err:       fmt.Errorf("parse curation payload: %w", err),
		}
	}

	return assembleResult(req, parsed)
}

func buildUserPrompt(req Request) (string, error) {
	encoded, err := json.MarshalIndent(req.Items, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Podcast: %s\n", req.PodcastTitle)
	fmt.Fprintf(&b, "Hosts: %s and %s\n", req.HostA, req.HostB)
	fmt.Fprintf(&b, "Select at most %d posts.\n\n", req.MaxSelected)
	b.WriteString("Candidate posts:\n")
	b.Write(encoded)
	return b.String(), nil
}

func assembleResult(req Request, parsed curationResponse) (*Result, error) {
	known := make(map[string]bool, len(req.Items))
	for _, item := range req.Items {
		known[item.SourceID] = true
	}

	result := &Result{
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
		Script:      strings.TrimSpace(parsed.Script),
	}

	assessed := make(map[string]bool, len(parsed.Items))
	for _, item := range parsed.Items {
		id := strings.TrimSpace(item.ID)
		if id == "" || !known[id] || assessed[id] {
			continue
		}
		assessed[id] = true
		result.Assessments = append(result.Assessments, Assessment{
			SourceID: id,
			Score:    clampScore(item.Score),
			Topics:   cleanTopics(item.Topics),
			Summary:  strings.TrimSpace(item.Summary),
		})
	}
	if len(result.Assessments) == 0 {
		return nil, &services.ProviderError{
			Op:        "curate",
			Retryable: true,
			Err:       errors.New("model assessed no known items"),
		}
	}

	seen := make(map[string]bool, len(parsed.Selected))
	for _, id := range parsed.Selected {
		id = strings.TrimSpace(id)
		if id == "" || !assessed[id] || seen[id] {
			continue
		}
		seen[id] = true
		result.Selected = append(result.Selected, id)
		if len(result.Selected) == req.MaxSelected {
			break
		}
	}
	if len(result.Selected) == 0 {
		return nil, &services.ProviderError{
			Op:        "curate",
			Retryable: true,
			Err:       errors.New("model selected no known items"),
		}
	}
	if result.Script == "" {
		return nil, &services.ProviderError{
			Op:        "curate",
			Retryable: true,
			Err:       errors.New("model returned empty script"),
		}
	}
	return result, nil
}

func clampScore(score float64) float64 {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

func cleanTopics(topics []string) []string {
	cleaned := make([]string, 0, len(topics))
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic != "" {
			cleaned = append(cleaned, topic)
		}
	}
	return cleaned
}

// classifyFailure maps transport and API failures onto the shared provider
// error shape so the pipeline can decide whether to retry within the run.
func classifyFailure(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &services.ProviderError{Op: op, Retryable: true, Err: services.ErrTimeout}
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return &services.ProviderError{Op: op, Retryable: false, Err: fmt.Errorf("%w: %v", services.ErrAuthExpired, err)}
		case statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError:
			return &services.ProviderError{Op: op, Retryable: true, Err: err}
		default:
			return &services.ProviderError{Op: op, Retryable: false, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &services.ProviderError{Op: op, Retryable: true, Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &services.ProviderError{Op: op, Retryable: true, Err: err}
	}

	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return &services.ProviderError{Op: op, Retryable: true, Err: err}
	}

	return &services.ProviderError{Op: op, Retryable: false, Err: err}
}
