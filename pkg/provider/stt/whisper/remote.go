package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/payphone/pkg/provider/stt"
)

// Compile-time assertion that Remote implements stt.Transcriber.
var _ stt.Transcriber = (*Remote)(nil)

const defaultRequestTimeout = 30 * time.Second

// RemoteOption is a functional option for configuring a [Remote].
type RemoteOption func(*Remote)

// WithRemoteLanguage sets the language forwarded to the server. Defaults
// to "en".
func WithRemoteLanguage(lang string) RemoteOption {
	return func(r *Remote) { r.language = lang }
}

// WithRemoteTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithRemoteTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) { r.httpClient.Timeout = d }
}

// Remote transcribes via a running whisper-server binary, which exposes a
// REST API at POST /inference accepting a WAV upload. Safe for concurrent
// use; the server handles its own request queuing.
type Remote struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// NewRemote creates a Remote targeting serverURL
// (e.g. "http://localhost:8080").
func NewRemote(serverURL string, opts ...RemoteOption) (*Remote, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	r := &Remote{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// inferenceResponse is the subset of the whisper-server reply we use.
// Segment avg_logprob values yield the confidence estimate:
// mean(exp(avg_logprob)) over all segments.
type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		AvgLogProb float64 `json:"avg_logprob"`
	} `json:"segments"`
	Error string `json:"error"`
}

// Transcribe implements stt.Transcriber.
func (r *Remote) Transcribe(ctx context.Context, samples []float32) (stt.Transcription, error) {
	if len(samples) == 0 {
		return stt.Transcription{Language: r.language}, nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(encodeWAV(samples, stt.RequiredSampleRate)); err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if err := mw.WriteField("language", r.language); err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: write language field: %w", err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serverURL+"/inference", &body)
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: inference request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.Transcription{}, fmt.Errorf("whisper: server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var ir inferenceResponse
	if err := json.Unmarshal(data, &ir); err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: decode response: %w", err)
	}
	if ir.Error != "" {
		return stt.Transcription{}, fmt.Errorf("whisper: server error: %s", ir.Error)
	}

	confidence := 0.0
	if len(ir.Segments) > 0 {
		var sum float64
		for _, seg := range ir.Segments {
			sum += math.Exp(seg.AvgLogProb)
		}
		confidence = sum / float64(len(ir.Segments))
	}
	lang := ir.Language
	if lang == "" {
		lang = r.language
	}
	return stt.Transcription{
		Text:          strings.TrimSpace(ir.Text),
		Language:      lang,
		Confidence:    confidence,
		AudioDuration: durationOf(len(samples)),
	}, nil
}

// Close implements stt.Transcriber. The HTTP client holds no resources
// worth releasing.
func (r *Remote) Close() error {
	return nil
}
