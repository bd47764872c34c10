package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/payphone/internal/dialog"
	"github.com/MrWong99/payphone/internal/session"
)

// pacer schedules outbound frames against wall time. Frame n is due at
// start + n*frameDur; the pacer sleeps only when ahead of schedule, so a
// slow synthesis call is absorbed instead of compounding into drift.
type pacer struct {
	start    time.Time
	sent     int
	frameDur time.Duration
}

func newPacer(frameMs int) *pacer {
	return &pacer{
		start:    time.Now(),
		frameDur: time.Duration(frameMs) * time.Millisecond,
	}
}

// wait blocks until the next frame is due. Returns false when the context
// ends first.
func (pc *pacer) wait(ctx context.Context) bool {
	due := pc.start.Add(time.Duration(pc.sent) * pc.frameDur)
	pc.sent++
	if ahead := time.Until(due); ahead > 0 {
		select {
		case <-time.After(ahead):
		case <-ctx.Done():
			return false
		}
	}
	return ctx.Err() == nil
}

// Speak synthesizes text in the session's current voice and plays it to the
// caller as paced telephone frames. Playback stops early on barge-in; the
// return value reports whether the full text was played.
func (p *Pipeline) Speak(ctx context.Context, sess *session.Session, text string) (bool, error) {
	if text == "" {
		return true, nil
	}

	sess.SetSpeaking(true)
	defer sess.SetSpeaking(false)

	pc := newPacer(p.proc.ChunkDuration())
	return p.speakSentence(ctx, sess, pc, text)
}

// SpeakStreaming plays LLM output as it arrives. Fragments are grouped into
// sentences, synthesized one sentence ahead of playback, and paced onto the
// wire so the caller hears the first sentence while the model is still
// writing the rest. Returns whether playback ran to completion.
func (p *Pipeline) SpeakStreaming(ctx context.Context, sess *session.Session, fragments <-chan string) (bool, error) {
	sess.SetSpeaking(true)
	defer sess.SetSpeaking(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sentences := make(chan string, sentenceQueueSize)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(sentences)
		buf := dialog.NewSentenceBuffer(p.minSentence, p.delimiters)
		for fragment := range fragments {
			sentence, ok := buf.Add(fragment)
			if !ok {
				continue
			}
			select {
			case sentences <- sentence:
			case <-ctx.Done():
				// Keep draining fragments so the producer is not
				// left blocked mid-stream.
				for range fragments {
				}
				return ctx.Err()
			}
		}
		if rest, ok := buf.Flush(); ok {
			select {
			case sentences <- rest:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	completed := true
	g.Go(func() error {
		pc := newPacer(p.proc.ChunkDuration())
		for sentence := range sentences {
			done, err := p.speakSentence(ctx, sess, pc, sentence)
			if err != nil {
				return err
			}
			if !done {
				completed = false
				cancel()
				return nil
			}
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && !completed {
		err = nil
	}
	return completed && err == nil, err
}

// speakSentence synthesizes one sentence and plays it frame by frame,
// checking for barge-in between frames. Returns false when interrupted.
func (p *Pipeline) speakSentence(ctx context.Context, sess *session.Session, pc *pacer, text string) (bool, error) {
	start := time.Now()
	aud, err := p.tts.Synthesize(ctx, text, sess.Voice())
	if err != nil {
		return false, fmt.Errorf("pipeline: synthesize: %w", err)
	}
	sess.Metrics().CountTTS()
	p.obs.ObserveTTS(time.Since(start))

	if aud.Empty() {
		return true, nil
	}

	pcm, err := p.proc.ForPlayback(aud.Samples, aud.SampleRate)
	if err != nil {
		return false, err
	}

	for frame := range p.proc.Chunks(pcm) {
		if sess.BargeInRequested() {
			p.log.Debug("playback interrupted", slog.String("call_id", sess.CallID()))
			p.obs.CountBargeIn()
			return false, nil
		}
		if !pc.wait(ctx) {
			return false, ctx.Err()
		}
		if err := sess.SendAudio(frame); err != nil {
			if errors.Is(err, session.ErrInactive) {
				return false, nil
			}
			return false, fmt.Errorf("pipeline: send audio: %w", err)
		}
	}
	return true, nil
}
