// Package gemini calls the Gemini generateContent endpoint to produce speech.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/boxtvsaltogif/pdf-mp3/internal/appinfo"
	"github.com/boxtvsaltogif/pdf-mp3/internal/speech"
)

const (
	// BaseURL is the Gemini API base URL.
	BaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is the speech-capable model.
	DefaultModel = "gemini-2.5-flash-preview-tts"

	// DefaultTimeout bounds one request; a 4500 character segment takes tens of seconds.
	DefaultTimeout = 120 * time.Second

	maxResponseBytes = 64 << 20
)

// APIError is a non-200 answer from the API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini: API error (status %d %s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini: API error (status %d): %s", e.StatusCode, e.Message)
}

// Client wraps HTTP calls to the Gemini API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient constructs a Gemini API client with the provided API key.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		apiKey:  apiKey,
		baseURL: BaseURL,
	}
}

// WithBaseURL points the client at another endpoint. Empty keeps the default.
func (c *Client) WithBaseURL(u string) *Client {
	if u != "" {
		c.baseURL = u
	}
	return c
}

// Name implements speech.Backend.
func (c *Client) Name() string { return "gemini" }

// Synthesize implements speech.Backend. A response without inline audio is
// not an error: it yields a Reply with an empty payload.
func (c *Client) Synthesize(ctx context.Context, req speech.Request) (speech.Reply, error) {
	if req.Voice == "" {
		return speech.Reply{}, errors.New("gemini: voice is required")
	}
	if req.Segment.Text == "" {
		return speech.Reply{}, errors.New("gemini: text is required")
	}
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	body, err := json.Marshal(GenerateRequest{
		Contents: []Content{{Parts: []Part{{Text: req.Segment.Text}}}},
		GenerationConfig: GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &SpeechConfig{
				VoiceConfig: VoiceConfig{
					PrebuiltVoiceConfig: PrebuiltVoiceConfig{VoiceName: req.Voice},
				},
			},
		},
	})
	if err != nil {
		return speech.Reply{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return speech.Reply{}, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	httpReq.Header.Set("User-Agent", appinfo.UserAgent())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return speech.Reply{}, fmt.Errorf("gemini: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(errBody)}
		var env errorEnvelope
		if json.Unmarshal(errBody, &env) == nil && env.Error.Message != "" {
			apiErr.Status = env.Error.Status
			apiErr.Message = env.Error.Message
		}
		return speech.Reply{}, apiErr
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return speech.Reply{}, fmt.Errorf("gemini: read response: %w", err)
	}
	var out GenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return speech.Reply{}, fmt.Errorf("gemini: decode response: %w", err)
	}

	reply := speech.Reply{Raw: raw}
	if data := out.audio(); data != nil {
		reply.Payload = data.Data
		reply.SampleRate = ParseSampleRate(data.MimeType)
	}
	return reply, nil
}

// ParseSampleRate extracts the rate parameter from an audio MIME type such as
// "audio/L16;codec=pcm;rate=24000". It returns 0 when absent or malformed.
func ParseSampleRate(mimeType string) int {
	if mimeType == "" {
		return 0
	}
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return 0
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return 0
	}
	return rate
}
