// Package stt defines the Transcriber interface for speech-to-text backends.
//
// The payphone pipeline collects one complete utterance (bounded by VAD
// speech boundaries) and transcribes it as a batch, so the contract is a
// single blocking call rather than a streaming session: normalized float
// samples in, text plus a confidence estimate out.
package stt

import (
	"context"
	"time"
)

// RequiredSampleRate is the sample rate every bundled transcriber expects.
const RequiredSampleRate = 16000

// Transcription is the result of transcribing one utterance.
type Transcription struct {
	// Text is the transcribed speech, whitespace-trimmed. Empty when the
	// audio contained no recognizable speech.
	Text string

	// Language is the BCP-47 code of the detected or configured language.
	Language string

	// Confidence estimates transcription quality in [0, 1]. Callers treat
	// low-confidence results the same as empty ones.
	Confidence float64

	// AudioDuration is the length of the transcribed audio.
	AudioDuration time.Duration
}

// Empty reports whether the transcription carries no usable text.
func (t Transcription) Empty() bool {
	return t.Text == ""
}

// Transcriber converts one utterance of audio to text.
//
// samples are normalized mono float samples at [RequiredSampleRate]. Empty
// input returns an empty [Transcription] without error. Implementations
// must be safe for concurrent use across calls.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (Transcription, error)

	// Close releases backend resources.
	Close() error
}
