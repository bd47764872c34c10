package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/payphone/pkg/provider/tts"
)

// TTSFallback implements [tts.Synthesizer] with automatic failover across
// multiple synthesis backends. Each backend has its own circuit breaker.
//
// Fallback backends may not know the primary's voice names; a backend that
// rejects the requested voice counts as a failure and trips its breaker
// like any other error.
type TTSFallback struct {
	group *FallbackGroup[tts.Synthesizer]
}

// Compile-time interface assertion.
var _ tts.Synthesizer = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Synthesizer, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesizer as a fallback.
func (f *TTSFallback) AddFallback(name string, synthesizer tts.Synthesizer) {
	f.group.AddFallback(name, synthesizer)
}

// Synthesize renders text with the first healthy backend. If the primary
// fails, subsequent fallbacks synthesize the same sentence.
func (f *TTSFallback) Synthesize(ctx context.Context, text, voice string) (tts.Audio, error) {
	return ExecuteWithResult(f.group, func(s tts.Synthesizer) (tts.Audio, error) {
		return s.Synthesize(ctx, text, voice)
	})
}

// Close releases every backend, not just the healthy ones.
func (f *TTSFallback) Close() error {
	var errs []error
	for i := range f.group.entries {
		if err := f.group.entries[i].value.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
