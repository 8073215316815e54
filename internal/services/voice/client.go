package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"feedcast/internal/config"
	"feedcast/internal/services"
)

const defaultSpeechTimeout = 300 * time.Second

// RenderSpec maps the two host names onto synthesis voices.
type RenderSpec struct {
	HostA      string
	HostB      string
	HostAVoice string
	HostBVoice string
}

// Synthesizer renders a dialogue script into a single audio blob.
type Synthesizer interface {
	Synthesize(ctx context.Context, script string, spec RenderSpec) ([]byte, error)
}

// Client synthesizes speech through an OpenAI-compatible speech endpoint.
// Multi-speaker scripts are rendered one segment at a time and concatenated.
type Client struct {
	api    *openai.Client
	model  string
	format string
}

// NewClient builds a speech client from the voice configuration.
func NewClient(cfg config.Voice) *Client {
	apiConfig := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		apiConfig.BaseURL = base
	}
	timeout := defaultSpeechTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	apiConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:    openai.NewClientWithConfig(apiConfig),
		model:  strings.TrimSpace(cfg.Model),
		format: strings.TrimSpace(cfg.Format),
	}
}

// Synthesize renders the script segment by segment, voicing each host with
// its configured voice, and returns the concatenated audio.
func (c *Client) Synthesize(ctx context.Context, script string, spec RenderSpec) ([]byte, error) {
	segments := ParseScript(script)
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "voice", "synthesize",
			"script contains no dialogue segments", nil)
	}

	var audio []byte
	for i, segment := range segments {
		voice := spec.HostAVoice
		if segment.Speaker == spec.HostB {
			voice = spec.HostBVoice
		}
		chunk, err := c.renderSegment(ctx, segment.Text, voice)
		if err != nil {
			return nil, classifyFailure(fmt.Sprintf("synthesize segment %d/%d", i+1, len(segments)), err)
		}
		audio = append(audio, chunk...)
	}
	return audio, nil
}

func (c *Client) renderSegment(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(c.format),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	return io.ReadAll(resp)
}

func classifyFailure(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &services.ProviderError{Op: op, Retryable: true, Err: services.ErrTimeout}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return &services.ProviderError{Op: op, Retryable: false, Err: fmt.Errorf("%w: %v", services.ErrAuthExpired, err)}
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return &services.ProviderError{Op: op, Retryable: true, Err: err}
		default:
			return &services.ProviderError{Op: op, Retryable: false, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &services.ProviderError{Op: op, Retryable: true, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &services.ProviderError{Op: op, Retryable: true, Err: err}
	}

	return &services.ProviderError{Op: op, Retryable: false, Err: err}
}
