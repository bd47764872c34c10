// Package mock provides a test double for the tts.Synthesizer interface.
//
// Use Synthesizer to feed deterministic audio into the pipeline and to
// verify which texts and voices reached the backend.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/payphone/pkg/provider/tts"
)

// Compile-time assertion that Synthesizer implements tts.Synthesizer.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// Call records a single Synthesize invocation.
type Call struct {
	Text  string
	Voice string
}

// Synthesizer is a scripted tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// SamplesPerChar sizes generated audio: each call returns
	// len(text)*SamplesPerChar zero samples. Defaults to 1 when zero.
	SamplesPerChar int

	// SampleRate of the returned audio. Defaults to 24000 when zero.
	SampleRate int

	// Delay, when positive, is slept (context-aware) before returning.
	Delay time.Duration

	// Err, when non-nil, is returned by every Synthesize call.
	Err error

	// Calls records every Synthesize invocation in order.
	Calls []Call

	// Closed reports whether Close was called.
	Closed bool
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string) (tts.Audio, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, Call{Text: text, Voice: voice})
	perChar, rate, delay, err := s.SamplesPerChar, s.SampleRate, s.Delay, s.Err
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return tts.Audio{}, ctx.Err()
		}
	}
	if err != nil {
		return tts.Audio{}, err
	}
	if perChar <= 0 {
		perChar = 1
	}
	if rate <= 0 {
		rate = 24000
	}
	if text == "" {
		return tts.Audio{SampleRate: rate}, nil
	}
	return tts.Audio{
		Samples:    make([]float32, len(text)*perChar),
		SampleRate: rate,
	}, nil
}

// Close implements tts.Synthesizer.
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// CallCount returns the number of recorded Synthesize calls. Thread-safe.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
