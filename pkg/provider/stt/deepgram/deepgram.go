// Package deepgram provides an stt.Transcriber backed by the Deepgram
// prerecorded transcription API. Utterances are short, so each one is
// submitted as a single raw linear16 request rather than a streaming
// session.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/payphone/pkg/audio"
	"github.com/MrWong99/payphone/pkg/provider/stt"
)

// Compile-time assertion that Client implements stt.Transcriber.
var _ stt.Transcriber = (*Client)(nil)

const (
	defaultEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel    = "nova-3"
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithModel sets the Deepgram model (e.g. "nova-3", "base").
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithLanguage sets the BCP-47 language code for recognition.
func WithLanguage(language string) Option {
	return func(c *Client) { c.language = language }
}

// WithBaseURL overrides the API endpoint, for self-hosted Deepgram.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.endpoint = u }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// Client transcribes utterances through the Deepgram REST API. Safe for
// concurrent use.
type Client struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Client. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	c := &Client{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// listenResponse is the subset of the prerecorded API reply we use.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
	ErrMsg string `json:"err_msg"`
}

// Transcribe implements stt.Transcriber.
func (c *Client) Transcribe(ctx context.Context, samples []float32) (stt.Transcription, error) {
	if len(samples) == 0 {
		return stt.Transcription{Language: c.language}, nil
	}

	pcm := audio.Int16ToBytes(audio.Denormalize(samples))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(), bytes.NewReader(pcm))
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("deepgram: listen request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("deepgram: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.Transcription{}, fmt.Errorf("deepgram: server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var lr listenResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return stt.Transcription{}, fmt.Errorf("deepgram: decode response: %w", err)
	}
	if lr.ErrMsg != "" {
		return stt.Transcription{}, fmt.Errorf("deepgram: server error: %s", lr.ErrMsg)
	}

	tr := stt.Transcription{
		Language:      c.language,
		AudioDuration: time.Duration(len(samples)) * time.Second / stt.RequiredSampleRate,
	}
	if len(lr.Results.Channels) > 0 && len(lr.Results.Channels[0].Alternatives) > 0 {
		alt := lr.Results.Channels[0].Alternatives[0]
		tr.Text = strings.TrimSpace(alt.Transcript)
		tr.Confidence = alt.Confidence
	}
	return tr, nil
}

// requestURL builds the listen endpoint URL with the raw-PCM parameters.
func (c *Client) requestURL() string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return c.endpoint
	}
	q := u.Query()
	q.Set("model", c.model)
	q.Set("language", c.language)
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(stt.RequiredSampleRate))
	q.Set("channels", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

// Close implements stt.Transcriber. The HTTP client holds no resources
// worth releasing.
func (c *Client) Close() error {
	return nil
}
