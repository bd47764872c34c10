// Package kokoro provides a tts.Synthesizer backed by a Kokoro-82M TTS
// server. Kokoro is a small (82M parameter) StyleTTS2-derived model with
// sub-300ms synthesis latency on CPU, which makes it a good fit for a
// real-time phone line.
//
// The server exposes POST /synthesize taking a JSON body
// {"text", "voice", "speed"} and returning base64-encoded float32 PCM at
// 24 kHz, plus GET /health reporting the model's sample rate.
//
// Typical usage:
//
//	s, err := kokoro.New("http://10.10.10.11:10200",
//	    kokoro.WithSpeed(1.1),
//	    kokoro.WithTimeout(10*time.Second),
//	)
//	audio, err := s.Synthesize(ctx, "Please deposit twenty-five cents.", "af_bella")
package kokoro

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/payphone/pkg/provider/tts"
)

// Compile-time assertion that Client implements tts.Synthesizer.
var _ tts.Synthesizer = (*Client)(nil)

const (
	// SampleRate is the rate Kokoro synthesizes at.
	SampleRate = 24000

	// DefaultVoice is used when the caller passes an empty voice name.
	DefaultVoice = "af_bella"

	defaultSpeed   = 1.0
	defaultTimeout = 30 * time.Second

	synthesizeEndpoint = "/synthesize"
	healthEndpoint     = "/health"

	// maxResponseBytes bounds the synthesis response body. 24 kHz float32
	// mono is 96 KiB per second, so this allows a bit over a minute of
	// audio per utterance.
	maxResponseBytes = 8 << 20
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithSpeed sets the speaking rate multiplier sent with every request
// (1.0 = normal). Defaults to 1.0.
func WithSpeed(speed float64) Option {
	return func(c *Client) {
		c.speed = speed
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithDefaultVoice overrides the voice used when Synthesize is called with
// an empty voice name.
func WithDefaultVoice(voice string) Option {
	return func(c *Client) {
		c.defaultVoice = voice
	}
}

// Client implements tts.Synthesizer against a Kokoro TTS server.
//
// Requests are serialized through a mutex: the Kokoro ONNX runtime behind
// the server handles one synthesis at a time, and interleaving requests
// only grows its queue.
type Client struct {
	serverURL    string
	httpClient   *http.Client
	speed        float64
	defaultVoice string

	mu sync.Mutex
}

// New creates a Client targeting the Kokoro server at serverURL
// (e.g. "http://localhost:10200").
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("kokoro: serverURL must not be empty")
	}
	c := &Client{
		serverURL:    strings.TrimRight(serverURL, "/"),
		speed:        defaultSpeed,
		defaultVoice: DefaultVoice,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// synthesizeRequest is the JSON body sent to POST /synthesize.
type synthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// synthesizeResponse is the JSON body returned by POST /synthesize.
type synthesizeResponse struct {
	Audio           string  `json:"audio"` // base64-encoded float32 LE PCM
	SampleRate      int     `json:"sample_rate"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// healthResponse is the JSON body returned by GET /health.
type healthResponse struct {
	Status          string   `json:"status"`
	SampleRate      int      `json:"sample_rate"`
	ModelLoaded     bool     `json:"model_loaded"`
	AvailableVoices []string `json:"available_voices"`
}

// Synthesize implements tts.Synthesizer.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return tts.Audio{SampleRate: SampleRate}, nil
	}
	if voice == "" {
		voice = c.defaultVoice
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := json.Marshal(synthesizeRequest{
		Text:  text,
		Voice: voice,
		Speed: c.speed,
	})
	if err != nil {
		return tts.Audio{}, fmt.Errorf("kokoro: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+synthesizeEndpoint, bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("kokoro: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("kokoro: POST %s: %w", synthesizeEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Audio{}, fmt.Errorf("kokoro: POST %s returned status %d: %s", synthesizeEndpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var sr synthesizeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&sr); err != nil {
		return tts.Audio{}, fmt.Errorf("kokoro: decode response: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(sr.Audio)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("kokoro: decode audio payload: %w", err)
	}
	samples, err := decodeFloat32(raw)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("kokoro: decode audio payload: %w", err)
	}

	rate := sr.SampleRate
	if rate <= 0 {
		rate = SampleRate
	}
	return tts.Audio{Samples: samples, SampleRate: rate}, nil
}

// Health checks the server and returns its reported sample rate. Useful at
// startup to fail fast when the model is not loaded.
func (c *Client) Health(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+healthEndpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("kokoro: create health request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("kokoro: GET %s: %w", healthEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("kokoro: GET %s returned status %d", healthEndpoint, resp.StatusCode)
	}

	var hr healthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&hr); err != nil {
		return 0, fmt.Errorf("kokoro: decode health response: %w", err)
	}
	if !hr.ModelLoaded {
		return 0, errors.New("kokoro: server reports model not loaded")
	}
	if hr.SampleRate <= 0 {
		return SampleRate, nil
	}
	return hr.SampleRate, nil
}

// Close implements tts.Synthesizer.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// decodeFloat32 interprets raw as little-endian float32 samples.
func decodeFloat32(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("payload length %d is not a multiple of 4", len(raw))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}
