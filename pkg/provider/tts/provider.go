// Package tts defines the Synthesizer interface for Text-to-Speech backends.
//
// A synthesizer turns one sentence (or short utterance) of text into PCM
// audio. The payphone pipeline feeds it sentence-by-sentence as the language
// model streams, so per-call latency matters more than throughput.
//
// Synthesizers must be safe for concurrent use; implementations whose
// backend cannot handle concurrent requests serialize them internally.
package tts

import (
	"context"
	"time"
)

// Audio is one synthesized utterance.
type Audio struct {
	// Samples are mono float32 PCM in [-1, 1].
	Samples []float32

	// SampleRate is the rate of Samples in Hz (24000 for Kokoro).
	SampleRate int
}

// Empty reports whether the audio contains no samples.
func (a Audio) Empty() bool {
	return len(a.Samples) == 0
}

// Duration returns the playback length of the audio.
func (a Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(a.Samples)) / float64(a.SampleRate) * float64(time.Second))
}

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize converts text to speech using the named voice. An empty
	// voice selects the backend's default. Empty or whitespace-only text
	// returns empty audio and no error.
	Synthesize(ctx context.Context, text, voice string) (Audio, error)

	// Close releases backend resources. The synthesizer must not be used
	// after Close returns.
	Close() error
}
