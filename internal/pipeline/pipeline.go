// Package pipeline orchestrates the voice loop for one call: inbound audio
// through VAD and STT, and outbound text through TTS onto the wire, paced
// to real time with barge-in support.
//
// Flow:
//
//	audio in (8 kHz) -> resample (16 kHz) -> VAD -> utterance buffer -> STT
//	LLM fragments -> sentence buffer -> TTS (24 kHz) -> resample (8 kHz)
//	  -> telephone band-pass -> paced 20 ms frames out
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/payphone/internal/session"
	"github.com/MrWong99/payphone/pkg/audio"
	"github.com/MrWong99/payphone/pkg/provider/stt"
	"github.com/MrWong99/payphone/pkg/provider/tts"
	"github.com/MrWong99/payphone/pkg/provider/vad"
)

const (
	// defaultReadTimeout is how long Listen waits for one inbound frame
	// before treating the line as silent.
	defaultReadTimeout = 500 * time.Millisecond

	// defaultMaxUtterance caps a single utterance. Callers who talk for
	// half a minute straight get transcribed in one piece and cut off.
	defaultMaxUtterance = 30 * time.Second

	// defaultBargeInThreshold is the VAD threshold while the payphone is
	// speaking. Higher than the listening threshold so TTS echo and line
	// noise do not interrupt playback.
	defaultBargeInThreshold = 0.7

	// defaultMinConfidence discards transcriptions the model itself does
	// not believe in; they are almost always breath noise or crosstalk.
	defaultMinConfidence = 0.4

	// defaultPreRoll is how much audio before a detected speech start is
	// kept, covering the detection delay of the VAD hysteresis.
	defaultPreRoll = 300 * time.Millisecond

	// sentenceQueueSize bounds synthesis lookahead during streaming
	// playback so a barge-in never has more than a few sentences to
	// throw away.
	sentenceQueueSize = 5

	// dtmfPollInterval is the barge-in monitor's keypad polling period.
	dtmfPollInterval = 50 * time.Millisecond
)

// Observer receives pipeline latency and event measurements. The observe
// package provides the production implementation.
type Observer interface {
	// ObserveSTT records one transcription round trip.
	ObserveSTT(d time.Duration)

	// ObserveTTS records one synthesis round trip.
	ObserveTTS(d time.Duration)

	// CountBargeIn records an interrupted playback.
	CountBargeIn()
}

// nopObserver is used when no Observer is configured.
type nopObserver struct{}

func (nopObserver) ObserveSTT(time.Duration) {}
func (nopObserver) ObserveTTS(time.Duration) {}
func (nopObserver) CountBargeIn()            {}

// Option is a functional option for Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithObserver sets the metrics observer.
func WithObserver(obs Observer) Option {
	return func(p *Pipeline) {
		p.obs = obs
	}
}

// WithReadTimeout sets the per-frame read timeout during listening.
func WithReadTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.readTimeout = d
	}
}

// WithMaxUtterance caps the length of a single utterance.
func WithMaxUtterance(d time.Duration) Option {
	return func(p *Pipeline) {
		p.maxUtterance = d
	}
}

// WithBargeInThreshold sets the VAD threshold used while speaking.
func WithBargeInThreshold(threshold float64) Option {
	return func(p *Pipeline) {
		p.bargeThreshold = threshold
	}
}

// WithMinConfidence sets the transcription confidence floor.
func WithMinConfidence(c float64) Option {
	return func(p *Pipeline) {
		p.minConfidence = c
	}
}

// WithPreRoll sets how much audio preceding a speech start is prepended to
// the utterance.
func WithPreRoll(d time.Duration) Option {
	return func(p *Pipeline) {
		p.preRoll = d
	}
}

// WithSentenceSplitting tunes how streamed LLM text is cut into TTS
// sentences. Zero values keep the dialog package defaults.
func WithSentenceSplitting(minLength int, delimiters string) Option {
	return func(p *Pipeline) {
		p.minSentence = minLength
		p.delimiters = delimiters
	}
}

// Pipeline ties the audio processor and the AI providers together. One
// Pipeline serves every call; per-call state lives in the Session and in
// VAD models checked out per operation.
type Pipeline struct {
	proc *audio.Processor
	vads *vad.Pool
	stt  stt.Transcriber
	tts  tts.Synthesizer
	log  *slog.Logger
	obs  Observer

	readTimeout    time.Duration
	maxUtterance   time.Duration
	preRoll        time.Duration
	bargeThreshold float64
	minConfidence  float64
	minSentence    int
	delimiters     string
}

// New creates a Pipeline over the given processor and providers.
func New(proc *audio.Processor, vads *vad.Pool, transcriber stt.Transcriber, synthesizer tts.Synthesizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		proc:           proc,
		vads:           vads,
		stt:            transcriber,
		tts:            synthesizer,
		log:            slog.Default(),
		obs:            nopObserver{},
		readTimeout:    defaultReadTimeout,
		maxUtterance:   defaultMaxUtterance,
		preRoll:        defaultPreRoll,
		bargeThreshold: defaultBargeInThreshold,
		minConfidence:  defaultMinConfidence,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Listen waits for the caller to speak, collects the utterance from speech
// start through speech end, and transcribes it. The boolean is false when
// nothing usable was heard: silence until the first read timeout, a
// barge-in abandoning the listen, or a transcription below the confidence
// floor.
func (p *Pipeline) Listen(ctx context.Context, sess *session.Session) (stt.Transcription, bool, error) {
	model, err := p.vads.Acquire(ctx)
	if err != nil {
		return stt.Transcription{}, false, fmt.Errorf("pipeline: acquire vad: %w", err)
	}
	defer p.vads.Release(model)

	line := sess.Line()
	maxSamples := int(p.maxUtterance.Seconds() * float64(stt.RequiredSampleRate))
	preRollSamples := int(p.preRoll.Seconds() * float64(stt.RequiredSampleRate))

	// Audio captured by the barge-in monitor carries the start of the
	// sentence that interrupted playback.
	utterance := sess.TakePreRoll()
	speechStarted := len(utterance) > 0

	var preRoll []float32

	for sess.Active() && len(utterance) < maxSamples {
		if sess.BargeInRequested() {
			return stt.Transcription{}, false, nil
		}

		chunk, ok := line.ReadAudio(ctx, p.readTimeout)
		if !ok {
			if ctx.Err() != nil {
				return stt.Transcription{}, false, ctx.Err()
			}
			if !speechStarted {
				return stt.Transcription{}, false, nil
			}
			break
		}

		samples, err := p.proc.ForSTT(chunk)
		if err != nil {
			return stt.Transcription{}, false, err
		}

		ev, err := model.Process(samples, 0)
		if err != nil {
			return stt.Transcription{}, false, fmt.Errorf("pipeline: %w", err)
		}

		switch ev.Type {
		case vad.SpeechStart:
			speechStarted = true
			utterance = append(utterance, preRoll...)
			utterance = append(utterance, samples...)
			preRoll = nil
		case vad.SpeechContinue:
			if speechStarted {
				utterance = append(utterance, samples...)
			}
		case vad.SpeechEnd:
			if speechStarted {
				utterance = append(utterance, samples...)
				goto done
			}
		case vad.Silence:
			if !speechStarted {
				preRoll = append(preRoll, samples...)
				if len(preRoll) > preRollSamples {
					preRoll = preRoll[len(preRoll)-preRollSamples:]
				}
			}
		}
	}
done:

	if len(utterance) == 0 {
		return stt.Transcription{}, false, nil
	}

	speech := time.Duration(float64(len(utterance)) / float64(stt.RequiredSampleRate) * float64(time.Second))
	sess.Metrics().AddSpeech(speech)

	start := time.Now()
	tr, err := p.stt.Transcribe(ctx, utterance)
	if err != nil {
		return stt.Transcription{}, false, fmt.Errorf("pipeline: transcribe: %w", err)
	}
	sess.Metrics().CountSTT()
	p.obs.ObserveSTT(time.Since(start))

	if tr.Empty() || tr.Confidence < p.minConfidence {
		p.log.Debug("discarding transcription",
			slog.String("text", tr.Text),
			slog.Float64("confidence", tr.Confidence),
		)
		return tr, false, nil
	}

	p.log.Info("transcribed",
		slog.String("text", tr.Text),
		slog.Float64("confidence", tr.Confidence),
	)
	return tr, true, nil
}
