// Package cdr writes call detail records: one row per call, stamped at
// hangup with durations, provider call counts, and the features visited.
package cdr

import (
	"context"
	"time"

	"github.com/MrWong99/payphone/internal/session"
)

// Record is one call detail record.
type Record struct {
	CallID         string
	StartedAt      time.Time
	EndedAt        time.Time
	Duration       time.Duration
	SpeechDuration time.Duration
	STTCalls       int
	LLMCalls       int
	TTSCalls       int
	DTMFDigits     int
	FeaturesUsed   []string
}

// FromSession builds the record for a finished session.
func FromSession(s *session.Session) Record {
	snap := s.Metrics().Snapshot()
	return Record{
		CallID:         s.CallID(),
		StartedAt:      snap.StartTime,
		EndedAt:        snap.EndTime,
		Duration:       snap.Duration(),
		SpeechDuration: snap.TotalSpeech,
		STTCalls:       snap.STTCalls,
		LLMCalls:       snap.LLMCalls,
		TTSCalls:       snap.TTSCalls,
		DTMFDigits:     snap.DTMFDigits,
		FeaturesUsed:   snap.FeaturesUsed,
	}
}

// Store persists call detail records.
type Store interface {
	// WriteCall appends one record.
	WriteCall(ctx context.Context, r Record) error

	// Close releases the store.
	Close()
}

// Nop discards records. Used when no CDR backend is configured.
type Nop struct{}

// WriteCall implements Store.
func (Nop) WriteCall(context.Context, Record) error { return nil }

// Close implements Store.
func (Nop) Close() {}

var _ Store = Nop{}
