package vad

// EventType classifies the outcome of feeding one window of audio through
// a VAD [Model].
type EventType int

const (
	// Silence: no speech in progress and none detected in this window.
	Silence EventType = iota
	// SpeechStart: the minimum span of consecutive speech has just been
	// reached; the utterance begins here.
	SpeechStart
	// SpeechContinue: speech in progress.
	SpeechContinue
	// SpeechEnd: the minimum span of trailing silence has just been
	// reached; the utterance is over.
	SpeechEnd
)

// String returns a short name for logging.
func (t EventType) String() string {
	switch t {
	case Silence:
		return "silence"
	case SpeechStart:
		return "speech_start"
	case SpeechContinue:
		return "speech_continue"
	case SpeechEnd:
		return "speech_end"
	}
	return "unknown"
}

// Event is the result of one [Model.Process] call.
type Event struct {
	Type EventType
	// Probability is the raw model score for the consumed window, 0 when
	// the window was only partially filled.
	Probability float64
	// Audio echoes the input chunk for SpeechStart and SpeechContinue
	// events so the caller can accumulate the utterance without keeping
	// its own copy of everything fed in.
	Audio []float32
}

// Config tunes the speech/silence hysteresis of a [Model].
type Config struct {
	// SampleRate of the audio fed to Process. 16000 or 8000.
	SampleRate int
	// Threshold is the probability at or above which a window counts as
	// speech. Typical: 0.5.
	Threshold float64
	// MinSpeechMs is how much consecutive speech is required before
	// SpeechStart fires.
	MinSpeechMs int
	// MinSilenceMs is how much consecutive silence while speaking is
	// required before SpeechEnd fires.
	MinSilenceMs int
}

// DefaultConfig returns the tuning used by the payphone pipeline.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		Threshold:    0.5,
		MinSpeechMs:  250,
		MinSilenceMs: 800,
	}
}

// WindowSize returns the number of samples the detector consumes per
// inference at rate. Silero operates on 512-sample windows at 16 kHz and
// 256 at 8 kHz; other rates are unsupported and return 0.
func WindowSize(rate int) int {
	switch rate {
	case 16000:
		return 512
	case 8000:
		return 256
	}
	return 0
}
