package audio

import (
	"sync"
	"time"
)

// Buffer accumulates raw PCM bytes up to a bounded duration. When full it
// drops the oldest audio, so a stalled consumer can never grow it without
// limit. Safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	chunks   [][]byte
	size     int
	maxBytes int
}

// NewBuffer creates a Buffer bounded to max duration of 16-bit mono PCM at
// sampleRate.
func NewBuffer(sampleRate int, max time.Duration) *Buffer {
	maxBytes := int(float64(sampleRate*2) * max.Seconds())
	if maxBytes < 2 {
		maxBytes = 2
	}
	return &Buffer{maxBytes: maxBytes}
}

// Append copies b into the buffer, evicting the oldest chunks if the bound
// would be exceeded.
func (a *Buffer) Append(b []byte) {
	if len(b) == 0 {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = append(a.chunks, cp)
	a.size += len(cp)
	for a.size > a.maxBytes && len(a.chunks) > 1 {
		a.size -= len(a.chunks[0])
		a.chunks = a.chunks[1:]
	}
}

// Drain returns all buffered audio as one slice and empties the buffer.
func (a *Buffer) Drain() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]byte, 0, a.size)
	for _, c := range a.chunks {
		out = append(out, c...)
	}
	a.chunks = nil
	a.size = 0
	return out
}

// Len returns the number of buffered bytes.
func (a *Buffer) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// Reset discards all buffered audio.
func (a *Buffer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = nil
	a.size = 0
}
