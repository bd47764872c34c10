// Package whisper provides stt.Transcriber implementations backed by
// whisper.cpp: Native runs inference in-process through the CGO bindings,
// Remote talks to a whisper-server binary over its REST API.
//
// The native path needs the whisper.cpp static library (libwhisper.a) and
// headers (whisper.h) available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/payphone/pkg/provider/stt"
)

// Compile-time assertion that Native implements stt.Transcriber.
var _ stt.Transcriber = (*Native)(nil)

const defaultLanguage = "en"

// NativeOption is a functional option for configuring a [Native].
type NativeOption func(*Native)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// Native transcribes with the whisper.cpp Go bindings. The model is loaded
// once and shared; each Transcribe call creates its own inference context,
// so concurrent calls do not interfere.
type Native struct {
	model    whisperlib.Model
	language string
}

// NewNative loads the whisper.cpp model from modelPath. The caller must
// Close the transcriber to release the model.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	n := &Native{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Transcribe implements stt.Transcriber. Confidence is the mean probability
// of the decoded tokens.
func (n *Native) Transcribe(ctx context.Context, samples []float32) (stt.Transcription, error) {
	if len(samples) == 0 {
		return stt.Transcription{Language: n.language}, nil
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcription{}, err
	}

	wctx, err := n.model.NewContext()
	if err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: set language %q: %w", n.language, err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Transcription{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts     []string
		probSum   float64
		probCount int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcription{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			probSum += float64(tok.P)
			probCount++
		}
	}

	confidence := 0.0
	if probCount > 0 {
		confidence = probSum / float64(probCount)
	}
	return stt.Transcription{
		Text:          strings.Join(parts, " "),
		Language:      n.language,
		Confidence:    confidence,
		AudioDuration: durationOf(len(samples)),
	}, nil
}

// Close releases the whisper model.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

func durationOf(samples int) time.Duration {
	return time.Duration(math.Round(float64(samples) / stt.RequiredSampleRate * float64(time.Second)))
}
