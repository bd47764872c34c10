package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/payphone/pkg/provider/llm"
	llmmock "github.com/MrWong99/payphone/pkg/provider/llm/mock"
)

func drainChunks(t *testing.T, ch <-chan llm.Chunk) string {
	t.Helper()
	var text string
	for c := range ch {
		if c.Err != nil {
			t.Fatalf("unexpected chunk error: %v", c.Err)
		}
		text += c.Text
	}
	return text
}

func TestLLMFallback_PrimaryServes(t *testing.T) {
	primary := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "hello"}}}
	secondary := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "backup"}}}

	f := NewLLMFallback(primary, "ollama", FallbackConfig{})
	f.AddFallback("openai", secondary)

	ch, err := f.StreamCompletion(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	if got := drainChunks(t, ch); got != "hello" {
		t.Errorf("text = %q, want hello", got)
	}
	if len(secondary.StreamCalls) != 0 {
		t.Errorf("fallback was called %d times, want 0", len(secondary.StreamCalls))
	}
}

func TestLLMFallback_FailsOverOnError(t *testing.T) {
	primary := &llmmock.Provider{Err: errTest}
	secondary := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "backup"}}}

	f := NewLLMFallback(primary, "ollama", FallbackConfig{})
	f.AddFallback("openai", secondary)

	ch, err := f.StreamCompletion(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	if got := drainChunks(t, ch); got != "backup" {
		t.Errorf("text = %q, want backup", got)
	}
	if len(primary.StreamCalls) != 1 {
		t.Errorf("primary calls = %d, want 1", len(primary.StreamCalls))
	}
}

func TestLLMFallback_Complete(t *testing.T) {
	primary := &llmmock.Provider{Err: errTest}
	secondary := &llmmock.Provider{CompleteText: "from fallback"}

	f := NewLLMFallback(primary, "ollama", FallbackConfig{})
	f.AddFallback("openai", secondary)

	got, err := f.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "from fallback" {
		t.Errorf("text = %q, want from fallback", got)
	}
}

func TestLLMFallback_AllDownReturnsError(t *testing.T) {
	primary := &llmmock.Provider{Err: errTest}

	f := NewLLMFallback(primary, "ollama", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})

	// First call fails and opens the breaker.
	if _, err := f.StreamCompletion(context.Background(), llm.Request{}); err == nil {
		t.Fatal("expected error from failing provider")
	}

	// Second call hits the open breaker without reaching the provider.
	_, err := f.StreamCompletion(context.Background(), llm.Request{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if len(primary.StreamCalls) != 1 {
		t.Errorf("primary calls = %d, want 1 (breaker should block the retry)", len(primary.StreamCalls))
	}
}
