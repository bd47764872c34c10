// Package dialog holds the conversation state and streaming glue between
// the caller's transcribed speech and the language model: a trimmed message
// history, a sentence chunker for streaming TTS, and a guarded stream that
// converts model stalls into spoken apologies instead of dead air.
package dialog

import (
	"sync"

	"github.com/MrWong99/payphone/pkg/provider/llm"
)

// DefaultMaxHistory is the number of user/assistant exchanges kept.
const DefaultMaxHistory = 10

// History is a conversation transcript with a pinned system prefix.
//
// Non-system messages are capped at 2 x maxHistory (one user plus one
// assistant message per exchange); the oldest non-system messages are
// trimmed first while every system message stays at the front. Safe for
// concurrent use.
type History struct {
	mu         sync.Mutex
	maxHistory int
	messages   []llm.Message
	nonSystem  int
}

// NewHistory creates a History keeping the last maxHistory exchanges.
// A maxHistory <= 0 falls back to DefaultMaxHistory.
func NewHistory(maxHistory int) *History {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &History{maxHistory: maxHistory}
}

// SetSystem replaces the system prompt, preserving the rest of the history.
// This happens every time the caller dials into a different feature or
// persona mid-call.
func (h *History) SetSystem(content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rest := make([]llm.Message, 0, len(h.messages)+1)
	rest = append(rest, llm.Message{Role: llm.RoleSystem, Content: content})
	for _, m := range h.messages {
		if m.Role != llm.RoleSystem {
			rest = append(rest, m)
		}
	}
	h.messages = rest
}

// AddUser appends a user message and trims if needed.
func (h *History) AddUser(content string) {
	h.add(llm.Message{Role: llm.RoleUser, Content: content})
}

// AddAssistant appends an assistant message and trims if needed.
func (h *History) AddAssistant(content string) {
	h.add(llm.Message{Role: llm.RoleAssistant, Content: content})
}

func (h *History) add(m llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, m)
	h.nonSystem++
	h.trim()
}

// trim keeps the system prefix plus the newest 2 x maxHistory non-system
// messages. Caller holds h.mu.
func (h *History) trim() {
	maxNonSystem := h.maxHistory * 2
	if h.nonSystem <= maxNonSystem {
		return
	}

	systemEnd := len(h.messages)
	for i, m := range h.messages {
		if m.Role != llm.RoleSystem {
			systemEnd = i
			break
		}
	}
	if systemEnd == len(h.messages) {
		h.nonSystem = 0
		return
	}

	trimStart := len(h.messages) - maxNonSystem
	if trimStart > systemEnd {
		h.messages = append(h.messages[:systemEnd], h.messages[trimStart:]...)
		h.nonSystem = maxNonSystem
	}
}

// Clear drops all user and assistant messages, keeping the system prefix.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.messages[:0]
	for _, m := range h.messages {
		if m.Role == llm.RoleSystem {
			kept = append(kept, m)
		}
	}
	h.messages = kept
	h.nonSystem = 0
}

// Messages returns a snapshot of the history, system prompt first.
func (h *History) Messages() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]llm.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the total number of messages including system ones.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}
