package dialog

import (
	"context"
	"strings"
	"time"

	"github.com/MrWong99/payphone/pkg/provider/llm"
)

// Default deadlines for a streamed completion. The first token waits on
// prompt processing and possibly a cold model load, so it gets a much
// longer budget than the steady-state gap between tokens.
const (
	DefaultFirstTokenTimeout = 25 * time.Second
	DefaultInterTokenTimeout = 5 * time.Second
)

// Spoken fallbacks. A phone caller hears these instead of silence when the
// model stalls or the backend drops.
const (
	apologySlow       = "I'm sorry, I'm taking too long to respond."
	apologyPause      = " I need to pause here."
	apologyDisconnect = "I'm sorry, I lost connection. Please try again."
)

// Streamer runs guarded streaming completions against an LLM provider.
type Streamer struct {
	provider    llm.Provider
	firstToken  time.Duration
	interToken  time.Duration
	temperature float64
	topP        float64
	maxTokens   int
}

// StreamerOption is a functional option for Streamer.
type StreamerOption func(*Streamer)

// WithFirstTokenTimeout sets the deadline for the first streamed token.
func WithFirstTokenTimeout(d time.Duration) StreamerOption {
	return func(s *Streamer) {
		s.firstToken = d
	}
}

// WithInterTokenTimeout sets the deadline between consecutive tokens.
func WithInterTokenTimeout(d time.Duration) StreamerOption {
	return func(s *Streamer) {
		s.interToken = d
	}
}

// WithSampling sets the sampling parameters sent with every request.
// Zero values leave the backend defaults in place.
func WithSampling(temperature, topP float64, maxTokens int) StreamerOption {
	return func(s *Streamer) {
		s.temperature = temperature
		s.topP = topP
		s.maxTokens = maxTokens
	}
}

// NewStreamer creates a Streamer over the given provider.
func NewStreamer(provider llm.Provider, opts ...StreamerOption) *Streamer {
	s := &Streamer{
		provider:   provider,
		firstToken: DefaultFirstTokenTimeout,
		interToken: DefaultInterTokenTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Stream records userText in the history, streams a completion over the
// updated history, and returns a channel of text fragments ready for the
// sentence buffer.
//
// The user message lands in the history before streaming starts; the
// assistant message is recorded only after the stream produced text and did
// not fail. Stalls and transport errors surface as spoken apology fragments
// on the returned channel, which is always closed when the stream ends.
func (s *Streamer) Stream(ctx context.Context, hist *History, userText string) <-chan string {
	hist.AddUser(userText)

	out := make(chan string, 8)
	go func() {
		defer close(out)

		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		chunks, err := s.provider.StreamCompletion(streamCtx, llm.Request{
			Messages:    hist.Messages(),
			Temperature: s.temperature,
			TopP:        s.topP,
			MaxTokens:   s.maxTokens,
		})
		if err != nil {
			emit(ctx, out, apologyDisconnect)
			return
		}

		var parts strings.Builder
		first := true
		timer := time.NewTimer(s.firstToken)
		defer timer.Stop()

		for {
			select {
			case chunk, ok := <-chunks:
				if !ok {
					// Stream finished cleanly.
					if parts.Len() > 0 {
						hist.AddAssistant(parts.String())
					}
					return
				}
				if chunk.Err != nil {
					emit(ctx, out, apologyDisconnect)
					return
				}
				if chunk.Text != "" {
					parts.WriteString(chunk.Text)
					if !emit(ctx, out, chunk.Text) {
						return
					}
				}
				first = false
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.interToken)

			case <-timer.C:
				cancel()
				if first {
					emit(ctx, out, apologySlow)
					return
				}
				// Mid-stream stall: apologize and keep what we got.
				emit(ctx, out, apologyPause)
				if parts.Len() > 0 {
					hist.AddAssistant(parts.String())
				}
				return

			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func emit(ctx context.Context, out chan<- string, text string) bool {
	select {
	case out <- text:
		return true
	case <-ctx.Done():
		return false
	}
}
