// Package mock provides a scripted test double for the stt.Transcriber
// interface.
//
// Results are consumed one per Transcribe call; once the script runs out
// the transcriber returns empty transcriptions. Every call's sample count
// is recorded for inspection.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/payphone/pkg/provider/stt"
)

// Transcriber is a scripted stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Results is the script of Transcribe return values.
	Results []stt.Transcription

	// Err, when non-nil, is returned by every Transcribe call.
	Err error

	// Calls records the number of samples in each Transcribe call.
	Calls []int

	// Closed reports whether Close was called.
	Closed bool

	next int
}

// Transcribe consumes the next scripted result. Empty input returns an
// empty transcription without consuming the script, mirroring the real
// implementations.
func (m *Transcriber) Transcribe(ctx context.Context, samples []float32) (stt.Transcription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, len(samples))
	if m.Err != nil {
		return stt.Transcription{}, m.Err
	}
	if len(samples) == 0 {
		return stt.Transcription{}, nil
	}
	if m.next >= len(m.Results) {
		return stt.Transcription{}, nil
	}
	r := m.Results[m.next]
	m.next++
	return r, nil
}

// Close implements stt.Transcriber.
func (m *Transcriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
