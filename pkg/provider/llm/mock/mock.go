// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the dialog layer sends the expected
// requests and to feed controlled completions without a live backend.
// Script fields must be set before first use; mutating them during a
// concurrent call is the caller's responsibility.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/payphone/pkg/provider/llm"
)

// Compile-time assertion that Provider implements llm.Provider.
var _ llm.Provider = (*Provider)(nil)

// Provider is a scripted llm.Provider.
type Provider struct {
	mu sync.Mutex

	// StreamChunks is the script emitted by StreamCompletion.
	StreamChunks []llm.Chunk

	// ChunkDelay, when positive, is slept between streamed chunks.
	ChunkDelay time.Duration

	// FirstChunkDelay, when positive, is slept before the first chunk.
	FirstChunkDelay time.Duration

	// CompleteText is returned by Complete.
	CompleteText string

	// Err, when non-nil, is returned by Complete and StreamCompletion.
	Err error

	// StreamCalls records every StreamCompletion request.
	StreamCalls []llm.Request

	// CompleteCalls records every Complete request.
	CompleteCalls []llm.Request
}

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, req)
	chunks := append([]llm.Chunk(nil), p.StreamChunks...)
	first, delay, err := p.FirstChunkDelay, p.ChunkDelay, p.Err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		if first > 0 {
			select {
			case <-time.After(first):
			case <-ctx.Done():
				return
			}
		}
		for i, c := range chunks {
			if i > 0 && delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, req)
	if p.Err != nil {
		return "", p.Err
	}
	return p.CompleteText, nil
}
