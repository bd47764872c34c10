// Package vad provides voice activity detection for the payphone pipeline.
//
// A [Detector] is the raw model contract: one fixed-size window of samples
// in, one speech probability out. [Model] layers the pipeline semantics on
// top — window accumulation, the speech/silence hysteresis, and utterance
// boundary events — so that detector backends stay trivial. [Pool] shares a
// small number of models across concurrent calls, since detector inference
// state is per-stream and models are expensive to hold.
//
// VAD is synchronous by design: Process returns immediately with a detection
// event, making it suitable for the low-latency stage that gates STT input.
package vad

import "fmt"

// Detector scores one window of audio for speech. Implementations keep
// internal recurrent state between windows of the same stream; Reset clears
// it when the model is handed to a different call.
//
// Window length must equal [WindowSize] for the configured sample rate.
// Detectors need not be safe for concurrent use; a [Pool] guarantees each
// model is owned by one call at a time.
type Detector interface {
	// Infer returns the speech probability (0..1) for window.
	Infer(window []float32) (float64, error)

	// Reset clears recurrent state between streams.
	Reset()

	// Close releases the model.
	Close() error
}

// Model wraps a Detector with window accumulation and utterance-boundary
// tracking. Not safe for concurrent use; acquire via a [Pool].
type Model struct {
	det    Detector
	cfg    Config
	window int

	pending []float32

	speaking  bool
	speechMs  int
	silenceMs int
}

// NewModel wraps det with the hysteresis in cfg. The sample rate must map
// to a supported window size.
func NewModel(det Detector, cfg Config) (*Model, error) {
	w := WindowSize(cfg.SampleRate)
	if w == 0 {
		return nil, fmt.Errorf("vad: unsupported sample rate %d", cfg.SampleRate)
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		return nil, fmt.Errorf("vad: threshold %g out of range (0, 1)", cfg.Threshold)
	}
	return &Model{det: det, cfg: cfg, window: w}, nil
}

// Process feeds chunk into the model and returns the detection event for at
// most one full window. Input shorter than a window is buffered and yields
// a zero-probability [Silence] without touching the detector; input longer
// than a window leaves the remainder buffered for the next call. Callers
// tracking an utterance should accumulate audio from every chunk between
// SpeechStart and SpeechEnd rather than relying on event payloads alone.
//
// thresholdOverride, when positive, replaces the configured speech
// threshold for this chunk. The barge-in monitor uses a higher bar than
// normal listening.
func (m *Model) Process(chunk []float32, thresholdOverride float64) (Event, error) {
	m.pending = append(m.pending, chunk...)
	if len(m.pending) < m.window {
		return Event{Type: Silence}, nil
	}

	window := m.pending[:m.window]
	rest := m.pending[m.window:]
	prob, err := m.det.Infer(window)
	if err != nil {
		return Event{}, fmt.Errorf("vad: infer: %w", err)
	}
	m.pending = append(m.pending[:0:0], rest...)

	threshold := m.cfg.Threshold
	if thresholdOverride > 0 {
		threshold = thresholdOverride
	}

	ev := m.update(prob >= threshold)
	ev.Probability = prob
	if ev.Type == SpeechStart || ev.Type == SpeechContinue {
		ev.Audio = chunk
	}
	return ev, nil
}

// update advances the hysteresis state machine by one window.
func (m *Model) update(isSpeech bool) Event {
	msPerWindow := m.window * 1000 / m.cfg.SampleRate

	if isSpeech {
		m.silenceMs = 0
		m.speechMs += msPerWindow
		if m.speaking {
			return Event{Type: SpeechContinue}
		}
		if m.speechMs >= m.cfg.MinSpeechMs {
			m.speaking = true
			return Event{Type: SpeechStart}
		}
		return Event{Type: Silence}
	}

	m.speechMs = 0
	if !m.speaking {
		return Event{Type: Silence}
	}
	m.silenceMs += msPerWindow
	if m.silenceMs >= m.cfg.MinSilenceMs {
		m.speaking = false
		m.silenceMs = 0
		return Event{Type: SpeechEnd}
	}
	return Event{Type: SpeechContinue}
}

// Speaking reports whether the model is currently inside an utterance.
func (m *Model) Speaking() bool {
	return m.speaking
}

// Reset clears the window buffer, the hysteresis state, and the detector's
// recurrent state. Called by [Pool.Release] so the next call starts fresh.
func (m *Model) Reset() {
	m.pending = nil
	m.speaking = false
	m.speechMs = 0
	m.silenceMs = 0
	m.det.Reset()
}

// Close releases the underlying detector.
func (m *Model) Close() error {
	return m.det.Close()
}
