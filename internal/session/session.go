// Package session tracks the state of one phone call: the current feature
// and persona, conversation history, DTMF accumulation, barge-in flags, and
// per-call metrics.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/payphone/internal/dialog"
	"github.com/MrWong99/payphone/internal/dialplan"
)

// Line is the transport surface a session needs from a call connection.
// *audiosocket.Conn implements it.
type Line interface {
	// ReadAudio returns the next inbound audio payload, waiting up to
	// timeout. A non-positive timeout polls without blocking.
	ReadAudio(ctx context.Context, timeout time.Duration) ([]byte, bool)

	// ReadDTMF returns the next keypad digit, waiting up to timeout.
	ReadDTMF(ctx context.Context, timeout time.Duration) (byte, bool)

	// HasDTMF reports whether a digit is waiting.
	HasDTMF() bool

	// WriteAudio sends one audio payload to the caller.
	WriteAudio(pcm []byte) error

	// Hangup tells the switch to end the call.
	Hangup() error

	// Closed reports whether the connection is gone.
	Closed() bool
}

const (
	// ValidDTMFDigits are the digits a phone keypad can produce.
	ValidDTMFDigits = "0123456789*#ABCD"

	// maxDTMFBuffer caps accumulated digits; the oldest digit is dropped
	// when a caller leans on the keypad.
	maxDTMFBuffer = 32

	// DefaultInterDigitTimeout separates one dialed number from the next.
	DefaultInterDigitTimeout = 3 * time.Second

	// DefaultFeature answers every call.
	DefaultFeature = "operator"
)

// ErrInactive is returned when writing to a session after hangup.
var ErrInactive = errors.New("session: call is no longer active")

// Option is a functional option for Session.
type Option func(*Session)

// WithMaxHistory sets the number of conversation exchanges kept.
func WithMaxHistory(n int) Option {
	return func(s *Session) {
		s.history = dialog.NewHistory(n)
	}
}

// WithInterDigitTimeout sets the DTMF inter-digit timeout.
func WithInterDigitTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.interDigit = d
	}
}

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// Session is the state of one active call.
type Session struct {
	callID string
	line   Line
	log    *slog.Logger

	history    *dialog.History
	metrics    *Metrics
	interDigit time.Duration
	now        func() time.Time

	mu       sync.Mutex
	feature  string
	persona  string
	active   bool
	dtmfBuf  strings.Builder
	dtmfLast time.Time
	speaking bool
	bargeIn  bool
	preRoll  []float32
}

// New creates a Session for a call, starting on the operator feature with
// its system prompt already in the history.
func New(callID string, line Line, opts ...Option) *Session {
	s := &Session{
		callID:     callID,
		line:       line,
		log:        slog.Default(),
		history:    dialog.NewHistory(dialog.DefaultMaxHistory),
		metrics:    NewMetrics(),
		interDigit: DefaultInterDigitTimeout,
		now:        time.Now,
		feature:    DefaultFeature,
		active:     true,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(slog.String("call_id", callID))
	s.history.SetSystem(dialplan.SystemPrompt(s.feature, ""))
	s.metrics.AddFeature(s.feature)
	return s
}

// CallID returns the call identifier from the AudioSocket handshake.
func (s *Session) CallID() string {
	return s.callID
}

// History returns the conversation history.
func (s *Session) History() *dialog.History {
	return s.history
}

// Metrics returns the per-call metrics record.
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// Feature returns the current feature key.
func (s *Session) Feature() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feature
}

// Persona returns the current persona key, empty when none is active.
func (s *Session) Persona() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona
}

// Voice returns the TTS voice for the current feature and persona.
func (s *Session) Voice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dialplan.VoiceFor(s.feature, s.persona)
}

// Active reports whether the call is still up.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && (s.line == nil || !s.line.Closed())
}

// SendAudio writes 8 kHz PCM to the caller.
func (s *Session) SendAudio(pcm []byte) error {
	if !s.Active() {
		return ErrInactive
	}
	return s.line.WriteAudio(pcm)
}

// Hangup ends the call and stamps the metrics.
func (s *Session) Hangup() error {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	s.mu.Unlock()

	s.metrics.End()
	if !wasActive || s.line == nil {
		return nil
	}
	return s.line.Hangup()
}

// Line returns the underlying call transport.
func (s *Session) Line() Line {
	return s.line
}

// SetPreRoll stashes audio captured while detecting a voice barge-in so the
// next listen does not lose the start of the caller's sentence.
func (s *Session) SetPreRoll(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preRoll = samples
}

// TakePreRoll returns and clears the stashed barge-in audio.
func (s *Session) TakePreRoll() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.preRoll
	s.preRoll = nil
	return out
}

// SwitchFeature moves the call to a feature, dropping any persona and
// swapping the system prompt.
func (s *Session) SwitchFeature(feature string) {
	s.mu.Lock()
	s.feature = feature
	s.persona = ""
	s.mu.Unlock()

	s.metrics.AddFeature(feature)
	s.history.SetSystem(dialplan.SystemPrompt(feature, ""))
	s.log.Info("switched feature", slog.String("feature", feature))
}

// SwitchPersona overlays a persona on the current feature.
func (s *Session) SwitchPersona(persona string) {
	s.mu.Lock()
	s.persona = persona
	feature := s.feature
	s.mu.Unlock()

	s.metrics.AddFeature("persona_" + persona)
	s.history.SetSystem(dialplan.SystemPrompt(feature, persona))
	s.log.Info("switched persona", slog.String("persona", persona))
}

// AddDTMF accumulates a keypad digit. When the gap since the previous digit
// exceeds the inter-digit timeout, the previously accumulated digits are
// returned as a complete number and the new digit starts a fresh buffer.
// Invalid digits are dropped.
func (s *Session) AddDTMF(digit byte) (string, bool) {
	if !strings.ContainsRune(ValidDTMFDigits, rune(digit)) {
		s.log.Warn("invalid DTMF digit", slog.String("digit", string(digit)))
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.CountDTMF()
	now := s.now()

	if s.dtmfBuf.Len() > 0 && now.Sub(s.dtmfLast) > s.interDigit {
		complete := s.dtmfBuf.String()
		s.dtmfBuf.Reset()
		s.dtmfBuf.WriteByte(digit)
		s.dtmfLast = now
		return complete, true
	}

	if s.dtmfBuf.Len() >= maxDTMFBuffer {
		s.log.Warn("DTMF buffer full, dropping oldest digit")
		trimmed := s.dtmfBuf.String()[1:]
		s.dtmfBuf.Reset()
		s.dtmfBuf.WriteString(trimmed)
	}

	s.dtmfBuf.WriteByte(digit)
	s.dtmfLast = now
	return "", false
}

// DrainDTMF returns and clears the accumulated digits.
func (s *Session) DrainDTMF() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.dtmfBuf.String()
	s.dtmfBuf.Reset()
	return out
}

// TimedOutDigits returns the accumulated digits when the caller stopped
// typing longer than the inter-digit timeout ago, clearing the buffer.
func (s *Session) TimedOutDigits() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dtmfBuf.Len() == 0 || s.now().Sub(s.dtmfLast) <= s.interDigit {
		return "", false
	}
	out := s.dtmfBuf.String()
	s.dtmfBuf.Reset()
	return out, true
}

// SetSpeaking marks whether TTS playback is in progress. Clearing it also
// clears a pending barge-in.
func (s *Session) SetSpeaking(speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = speaking
	if !speaking {
		s.bargeIn = false
	}
}

// Speaking reports whether TTS playback is in progress.
func (s *Session) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// RequestBargeIn asks playback to stop. Ignored unless speaking: voice
// activity while the line is quiet is just the caller talking.
func (s *Session) RequestBargeIn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.speaking {
		s.bargeIn = true
	}
}

// BargeInRequested reports whether playback should stop.
func (s *Session) BargeInRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bargeIn
}

// ClearBargeIn resets the barge-in flag.
func (s *Session) ClearBargeIn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bargeIn = false
}
