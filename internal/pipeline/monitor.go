package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/payphone/internal/session"
	"github.com/MrWong99/payphone/pkg/provider/stt"
	"github.com/MrWong99/payphone/pkg/provider/vad"
)

// bargeInRecentWindow bounds the audio the monitor retains ahead of a
// detected speech start. It must cover the VAD min-speech ramp plus the
// pre-roll so the interrupting sentence keeps its first word.
const bargeInRecentWindow = time.Second

// MonitorBargeIn watches the line while the payphone is speaking and flags
// the session when the caller interrupts, by keypad or by voice. The audio
// queue is drained only during playback; while the call is listening, Listen
// is the sole consumer of inbound audio. Detected speech is stashed on the
// session as pre-roll for the next listen. Runs until the context ends,
// returning the context error.
func (p *Pipeline) MonitorBargeIn(ctx context.Context, sess *session.Session) error {
	model, err := p.vads.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.vads.Release(model)

	line := sess.Line()
	ticker := time.NewTicker(dtmfPollInterval)
	defer ticker.Stop()

	maxRecent := int(bargeInRecentWindow.Seconds() * float64(stt.RequiredSampleRate))

	var (
		recent      []float32 // newest audio, bounded, survives silence
		captured    []float32 // speech run since the last speech start
		wasSpeaking bool
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !sess.Active() {
			return nil
		}

		if !sess.Speaking() {
			if wasSpeaking {
				model.Reset()
				recent, captured = nil, nil
				wasSpeaking = false
			}
			continue
		}
		wasSpeaking = true

		if line.HasDTMF() {
			p.log.Debug("DTMF barge-in", slog.String("call_id", sess.CallID()))
			sess.RequestBargeIn()
			continue
		}

		// Drain everything the switch delivered since the last tick.
		for sess.Speaking() {
			chunk, ok := line.ReadAudio(ctx, 0)
			if !ok {
				break
			}
			samples, err := p.proc.ForSTT(chunk)
			if err != nil {
				return err
			}
			ev, err := model.Process(samples, p.bargeThreshold)
			if err != nil {
				return err
			}

			// Speech windows inside the min-speech ramp surface as Silence,
			// so the onset must be kept here rather than from the events.
			recent = append(recent, samples...)
			if len(recent) > maxRecent {
				recent = recent[len(recent)-maxRecent:]
			}

			switch ev.Type {
			case vad.SpeechStart:
				captured = append([]float32(nil), recent...)
				if sess.Speaking() && !sess.BargeInRequested() {
					p.log.Debug("voice barge-in",
						slog.String("call_id", sess.CallID()),
						slog.Float64("probability", ev.Probability),
					)
					sess.RequestBargeIn()
				}
			case vad.SpeechContinue, vad.SpeechEnd:
				if captured != nil {
					captured = append(captured, samples...)
				}
			}

			// Everything spoken from the interruption onward feeds the
			// next listen so the caller's sentence keeps its opening.
			if sess.BargeInRequested() && captured != nil {
				sess.SetPreRoll(append([]float32(nil), captured...))
			}
			if ev.Type == vad.SpeechEnd {
				captured = nil
			}
		}
	}
}
