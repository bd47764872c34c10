package dialog

import "strings"

const (
	// DefaultMinSentenceLength is the shortest fragment worth sending to
	// TTS on its own. Shorter fragments get merged into the next one.
	DefaultMinSentenceLength = 10

	// DefaultDelimiters are the characters treated as sentence boundaries.
	// The comma is included on purpose: clause-sized chunks reach the TTS
	// earlier than full sentences would.
	DefaultDelimiters = ".!?,"
)

// SentenceBuffer collects streamed LLM tokens into sentences for TTS.
//
// Each Add scans only the newly appended text (starting one byte before it,
// so a delimiter completed by the previous token is still found), keeping
// total work linear in the stream length. Not safe for concurrent use.
type SentenceBuffer struct {
	minLength  int
	delimiters string
	buf        strings.Builder
}

// NewSentenceBuffer creates a buffer with the given minimum sentence length
// and delimiter set. Zero values select the defaults.
func NewSentenceBuffer(minLength int, delimiters string) *SentenceBuffer {
	if minLength <= 0 {
		minLength = DefaultMinSentenceLength
	}
	if delimiters == "" {
		delimiters = DefaultDelimiters
	}
	return &SentenceBuffer{minLength: minLength, delimiters: delimiters}
}

// Add appends a token and returns a complete sentence when one has formed.
// The boolean is false when no sentence is ready yet.
func (b *SentenceBuffer) Add(token string) (string, bool) {
	searchFrom := max(0, b.buf.Len()-1)
	b.buf.WriteString(token)

	s := b.buf.String()
	idx := strings.IndexAny(s[searchFrom:], b.delimiters)
	if idx < 0 {
		return "", false
	}
	end := searchFrom + idx + 1
	if end < b.minLength {
		return "", false
	}

	sentence := strings.TrimSpace(s[:end])
	remainder := strings.TrimLeft(s[end:], " \t\r\n")

	if len(sentence) >= b.minLength {
		b.buf.Reset()
		b.buf.WriteString(remainder)
		return sentence, true
	}

	// Too short after trimming. Keep the text so it joins the next sentence.
	b.buf.Reset()
	b.buf.WriteString(sentence)
	if remainder != "" {
		b.buf.WriteString(" ")
		b.buf.WriteString(remainder)
	}
	return "", false
}

// Flush returns the trimmed residue and empties the buffer. The boolean is
// false when nothing is left.
func (b *SentenceBuffer) Flush() (string, bool) {
	rest := strings.TrimSpace(b.buf.String())
	b.buf.Reset()
	if rest == "" {
		return "", false
	}
	return rest, true
}

// Reset discards any buffered text.
func (b *SentenceBuffer) Reset() {
	b.buf.Reset()
}
