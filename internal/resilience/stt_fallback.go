package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/payphone/pkg/provider/stt"
)

// STTFallback implements [stt.Transcriber] with automatic failover across
// multiple transcription backends (e.g. a remote whisper server with a
// native in-process model as fallback). Each backend has its own circuit
// breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcriber as a fallback.
func (f *STTFallback) AddFallback(name string, transcriber stt.Transcriber) {
	f.group.AddFallback(name, transcriber)
}

// Transcribe runs the utterance against the first healthy backend. If the
// primary fails, subsequent fallbacks transcribe the same samples.
func (f *STTFallback) Transcribe(ctx context.Context, samples []float32) (stt.Transcription, error) {
	return ExecuteWithResult(f.group, func(t stt.Transcriber) (stt.Transcription, error) {
		return t.Transcribe(ctx, samples)
	})
}

// Close releases every backend, not just the healthy ones.
func (f *STTFallback) Close() error {
	var errs []error
	for i := range f.group.entries {
		if err := f.group.entries[i].value.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
