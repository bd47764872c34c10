package cdr_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/payphone/internal/cdr"
	"github.com/MrWong99/payphone/internal/session"
)

func TestFromSession(t *testing.T) {
	t.Parallel()

	s := session.New("call-42", nil)
	s.Metrics().AddSpeech(3 * time.Second)
	s.Metrics().CountSTT()
	s.Metrics().CountLLM()
	s.Metrics().CountTTS()
	s.Metrics().CountTTS()
	s.SwitchFeature("jokes")
	if err := s.Hangup(); err != nil {
		t.Fatalf("Hangup: %v", err)
	}

	r := cdr.FromSession(s)
	if r.CallID != "call-42" {
		t.Errorf("call id = %q", r.CallID)
	}
	if r.EndedAt.IsZero() {
		t.Error("ended_at not stamped")
	}
	if r.SpeechDuration != 3*time.Second {
		t.Errorf("speech = %v, want 3s", r.SpeechDuration)
	}
	if r.STTCalls != 1 || r.LLMCalls != 1 || r.TTSCalls != 2 {
		t.Errorf("counts = %d/%d/%d, want 1/1/2", r.STTCalls, r.LLMCalls, r.TTSCalls)
	}
	want := []string{"operator", "jokes"}
	if len(r.FeaturesUsed) != len(want) {
		t.Fatalf("features = %v, want %v", r.FeaturesUsed, want)
	}
	for i := range want {
		if r.FeaturesUsed[i] != want[i] {
			t.Errorf("features[%d] = %q, want %q", i, r.FeaturesUsed[i], want[i])
		}
	}
}

func TestNopStore(t *testing.T) {
	t.Parallel()

	var store cdr.Store = cdr.Nop{}
	if err := store.WriteCall(context.Background(), cdr.Record{}); err != nil {
		t.Fatalf("WriteCall: %v", err)
	}
	store.Close()
}
