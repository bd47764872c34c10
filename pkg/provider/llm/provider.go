// Package llm defines the Provider interface for the language model that
// voices the payphone's features and personas.
//
// A provider wraps a remote or local model API (an Ollama instance, an
// OpenAI-compatible server) behind a uniform interface so the dialog layer
// never couples to a specific SDK.
//
// Implementations must be safe for concurrent use. Channels returned by
// StreamCompletion are closed by the provider when the stream ends; callers
// abandoning a stream early must drain it (or cancel the context) to avoid
// leaking the producer goroutine.
package llm

import "context"

// Provider performs completions over a conversation history.
type Provider interface {
	// Complete returns the full completion text in one shot.
	Complete(ctx context.Context, req Request) (string, error)

	// StreamCompletion returns a channel of completion fragments. The
	// channel is closed after the terminal chunk; a stream that fails
	// mid-flight ends with a chunk whose Err is non-nil.
	StreamCompletion(ctx context.Context, req Request) (<-chan Chunk, error)
}
