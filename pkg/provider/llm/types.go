package llm

// Message roles. The payphone only ever speaks as these three.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a conversation history.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser], or [RoleAssistant].
	Role string

	// Content is the text content of the message.
	Content string
}

// Request describes one completion over a conversation history.
type Request struct {
	// Messages is the full history, system prompt first.
	Messages []Message

	// Temperature controls sampling randomness. Zero means backend default.
	Temperature float64

	// TopP is the nucleus sampling bound. Zero means backend default; not
	// every backend honors it.
	TopP float64

	// MaxTokens caps the completion length. Zero means backend default.
	MaxTokens int
}

// Chunk is one streamed fragment of a completion.
type Chunk struct {
	// Text is the delta since the previous chunk. May be empty on
	// bookkeeping chunks.
	Text string

	// FinishReason is non-empty on the final content chunk of a
	// successful stream (e.g. "stop", "length").
	FinishReason string

	// Err is set on the terminal chunk of a failed stream. No further
	// chunks follow a chunk with Err set.
	Err error
}
