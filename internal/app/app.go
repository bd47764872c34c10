// Package app wires all payphone subsystems into a running application.
//
// The App struct owns the full lifecycle: New connects the AudioSocket
// server, the audio pipeline, the AI providers, and the CDR store; Run
// serves calls until the context ends; Shutdown tears everything down in
// order.
//
// For testing, inject doubles via functional options (WithCDRStore,
// WithMetrics, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/payphone/internal/audiosocket"
	"github.com/MrWong99/payphone/internal/callflow"
	"github.com/MrWong99/payphone/internal/cdr"
	"github.com/MrWong99/payphone/internal/config"
	"github.com/MrWong99/payphone/internal/dialog"
	"github.com/MrWong99/payphone/internal/health"
	"github.com/MrWong99/payphone/internal/intent"
	"github.com/MrWong99/payphone/internal/observe"
	"github.com/MrWong99/payphone/internal/pipeline"
	"github.com/MrWong99/payphone/internal/resilience"
	"github.com/MrWong99/payphone/internal/session"
	"github.com/MrWong99/payphone/pkg/audio"
	"github.com/MrWong99/payphone/pkg/provider/llm"
	"github.com/MrWong99/payphone/pkg/provider/stt"
	"github.com/MrWong99/payphone/pkg/provider/tts"
	"github.com/MrWong99/payphone/pkg/provider/vad"
)

// cdrWriteTimeout bounds the CDR insert at hangup so a slow database never
// holds a finished call goroutine.
const cdrWriteTimeout = 5 * time.Second

// maxStepErrors is how many call-flow steps may fail in a row before the
// call is ended rather than left looping against a broken provider.
const maxStepErrors = 3

// stepApology is spoken after a failed step so the caller is not left in
// silence while the conversation recovers.
const stepApology = "Sorry, I didn't catch that. Could you say it again?"

// Providers holds one value per provider slot, populated by main.go via the
// config registry. All four slots are required.
type Providers struct {
	VAD config.DetectorFactory
	STT stt.Transcriber
	LLM llm.Provider
	TTS tts.Synthesizer
}

// App owns all subsystem lifetimes and serves the payphone line.
type App struct {
	cfg atomic.Pointer[config.Config]
	log *slog.Logger

	metrics  *observe.Metrics
	proc     *audio.Processor
	vads     *vad.Pool
	pipe     *pipeline.Pipeline
	sessions *session.Manager
	intents  *intent.Detector
	streamer *dialog.Streamer
	store    cdr.Store

	server *audiosocket.Server
	health *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithMetrics injects a metrics set instead of using the global meter
// provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithCDRStore injects a CDR store instead of creating one from config.
func WithCDRStore(s cdr.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSessionManager injects a session manager.
func WithSessionManager(m *session.Manager) Option {
	return func(a *App) { a.sessions = m }
}

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go (populated via the config registry); every slot
// must be non-nil. Use Option functions to inject test doubles.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		return nil, errors.New("app: providers must not be nil")
	}
	a := &App{log: slog.Default()}
	a.cfg.Store(cfg)
	for _, o := range opts {
		o(a)
	}

	if err := a.checkProviders(providers); err != nil {
		return nil, err
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initAudio(cfg, providers); err != nil {
		return nil, err
	}
	a.initDialog(cfg, providers)
	if err := a.initCDR(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.initServers(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) checkProviders(p *Providers) error {
	var errs []error
	if p.VAD == nil {
		errs = append(errs, errors.New("VAD detector factory is required"))
	}
	if p.STT == nil {
		errs = append(errs, errors.New("STT transcriber is required"))
	}
	if p.LLM == nil {
		errs = append(errs, errors.New("LLM provider is required"))
	}
	if p.TTS == nil {
		errs = append(errs, errors.New("TTS synthesizer is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("app: %w", errors.Join(errs...))
	}
	return nil
}

// initAudio builds the sample-rate processor, the VAD model pool, and the
// pipeline over the breaker-wrapped providers.
func (a *App) initAudio(cfg *config.Config, providers *Providers) error {
	proc, err := audio.NewProcessor(audio.ProcessorConfig{
		InputRate:   cfg.Audio.InputRate,
		STTRate:     cfg.Audio.STTRate,
		OutputRate:  cfg.Audio.OutputRate,
		LowHz:       cfg.Audio.BandLowHz,
		HighHz:      cfg.Audio.BandHighHz,
		FilterOrder: 4,
		ChunkSize:   cfg.Audio.ChunkSize,
	})
	if err != nil {
		return fmt.Errorf("app: build audio processor: %w", err)
	}
	a.proc = proc

	pool, err := vad.NewPool(cfg.VAD.PoolSize, vad.Config{
		SampleRate:   cfg.Audio.STTRate,
		Threshold:    cfg.VAD.Threshold,
		MinSpeechMs:  cfg.VAD.MinSpeechMs,
		MinSilenceMs: cfg.VAD.MinSilenceMs,
	}, providers.VAD)
	if err != nil {
		return fmt.Errorf("app: build vad pool: %w", err)
	}
	a.vads = pool
	a.closers = append(a.closers, pool.Close)

	sttWrapped := resilience.NewSTTFallback(providers.STT, cfg.Providers.STT.Name, a.fallbackConfig())
	ttsWrapped := resilience.NewTTSFallback(providers.TTS, cfg.Providers.TTS.Name, a.fallbackConfig())
	a.closers = append(a.closers, sttWrapped.Close, ttsWrapped.Close)

	a.pipe = pipeline.New(proc, pool, sttWrapped, ttsWrapped,
		pipeline.WithLogger(a.log),
		pipeline.WithObserver(observe.NewPipelineObserver(a.metrics)),
		pipeline.WithMaxUtterance(cfg.VAD.MaxUtterance()),
		pipeline.WithPreRoll(cfg.VAD.PreRoll()),
		pipeline.WithSentenceSplitting(cfg.TTS.MinSentenceLength, cfg.TTS.SentenceDelimiters),
	)
	return nil
}

// initDialog builds the session manager, the intent detector, and the LLM
// streamer shared by every call.
func (a *App) initDialog(cfg *config.Config, providers *Providers) {
	if a.sessions == nil {
		a.sessions = session.NewManager(a.log)
	}
	a.intents = intent.NewDetector()

	llmWrapped := resilience.NewLLMFallback(providers.LLM, cfg.Providers.LLM.Name, a.fallbackConfig())
	a.streamer = dialog.NewStreamer(llmWrapped,
		dialog.WithFirstTokenTimeout(cfg.LLM.FirstTokenTimeout()),
		dialog.WithInterTokenTimeout(cfg.LLM.InterTokenTimeout()),
		dialog.WithSampling(cfg.LLM.Temperature, cfg.LLM.TopP, cfg.LLM.MaxTokens),
	)
}

// initCDR connects the call-record store, or uses the injected one.
func (a *App) initCDR(ctx context.Context, cfg *config.Config) error {
	if a.store != nil {
		return nil
	}
	if !cfg.CDR.Enabled {
		a.store = cdr.Nop{}
		return nil
	}
	store, err := cdr.NewPostgres(ctx, cfg.CDR.PostgresDSN)
	if err != nil {
		return fmt.Errorf("app: connect cdr store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// initServers builds the AudioSocket listener and the health/metrics HTTP
// server.
func (a *App) initServers(cfg *config.Config) error {
	srv, err := audiosocket.NewServer(cfg.Server.ListenAddr, a.handleCall, a.log)
	if err != nil {
		return fmt.Errorf("app: build audiosocket server: %w", err)
	}
	a.server = srv

	checkers := []health.Checker{
		{
			Name: "audiosocket",
			Check: func(context.Context) error {
				if a.server.Addr() == nil {
					return errors.New("listener not bound")
				}
				return nil
			},
		},
	}
	if pg, ok := a.store.(*cdr.Postgres); ok {
		checkers = append(checkers, health.Checker{Name: "cdr", Check: pg.Ping})
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	a.health = &http.Server{
		Addr:    cfg.Server.HealthAddr,
		Handler: observe.Middleware(a.metrics)(mux),
	}
	return nil
}

// fallbackConfig returns the breaker settings shared by every provider
// slot. State changes feed the provider-error counter so an opening breaker
// is visible in metrics before callers complain.
func (a *App) fallbackConfig() resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, from, to resilience.State) {
				a.log.Warn("provider breaker state change",
					slog.String("provider", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
				if to == resilience.StateOpen {
					a.metrics.RecordProviderError(context.Background(), name, "breaker_open")
				}
			},
		},
	}
}

// Config returns the currently applied configuration.
func (a *App) Config() *config.Config {
	return a.cfg.Load()
}

// ApplyConfig swaps in a reloaded configuration. Only fields read per call
// take effect, for calls started after the swap: silence and inter-digit
// timeouts and the max-call cap. Structural fields (listeners, providers,
// the VAD pool) keep their boot-time values and are reported as requiring a
// restart.
func (a *App) ApplyConfig(next *config.Config) {
	old := a.cfg.Load()
	d := config.Diff(old, next)
	if d.Empty() {
		return
	}
	a.cfg.Store(next)
	if d.VADThresholdChanged {
		a.log.Warn("vad.threshold changed; restart required to apply",
			slog.Float64("threshold", d.NewVADThreshold))
	}
	a.log.Info("configuration reloaded",
		slog.Bool("timeouts", d.TimeoutsChanged),
		slog.Bool("tts", d.TTSChanged),
		slog.Bool("log_level", d.LogLevelChanged),
	)
}

// Run starts the AudioSocket listener and the health server and blocks
// until ctx is cancelled or a listener fails. On cancellation both servers
// are shut down gracefully before Run returns.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.server.ListenAndServe(ctx)
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		a.log.Info("health server listening", slog.String("addr", a.health.Addr))
		err := a.health.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: health server: %w", err)
	})

	g.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.server.Shutdown(stopCtx); err != nil {
			a.log.Warn("audiosocket shutdown", slog.Any("err", err))
		}
		if err := a.health.Shutdown(stopCtx); err != nil {
			a.log.Warn("health server shutdown", slog.Any("err", err))
		}
		return nil
	})

	return g.Wait()
}

// ActiveCalls returns the number of calls currently being served.
func (a *App) ActiveCalls() int {
	return a.server.ActiveCalls()
}

// Addr returns the bound AudioSocket listener address, or nil before Run.
func (a *App) Addr() net.Addr {
	return a.server.Addr()
}

// handleCall serves one established AudioSocket connection: session setup,
// barge-in monitor, the conversation state machine loop, and the CDR write
// at hangup.
func (a *App) handleCall(ctx context.Context, conn *audiosocket.Conn) {
	cfg := a.Config()
	callID := conn.CallID().String()
	log := a.log.With(slog.String("call_id", callID))

	a.metrics.ActiveCalls.Add(ctx, 1)
	defer a.metrics.ActiveCalls.Add(ctx, -1)

	sess := a.sessions.Create(callID, conn,
		session.WithInterDigitTimeout(cfg.Timeouts.InterDigit()),
	)

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.MaxCall())
	defer cancel()

	go func() {
		if err := a.pipe.MonitorBargeIn(callCtx, sess); err != nil && callCtx.Err() == nil {
			log.Debug("barge-in monitor stopped", slog.Any("err", err))
		}
	}()

	machine := callflow.New(sess, a.streamer, a.intents,
		callflow.WithSilencePrompt(cfg.Timeouts.SilencePrompt()),
		callflow.WithSilenceGoodbye(cfg.Timeouts.SilenceGoodbye()),
		callflow.WithLogger(log),
	)

	stepErrors := 0
	for sess.Active() && machine.State() != callflow.Hangup {
		err := machine.Step(callCtx, a.pipe)
		if callCtx.Err() != nil {
			log.Info("call hit the duration cap or server shutdown")
			break
		}
		if err == nil {
			stepErrors = 0
			continue
		}
		stepErrors++
		log.Warn("call flow step failed",
			slog.String("state", machine.State().String()),
			slog.Int("consecutive", stepErrors),
			slog.Any("err", err),
		)
		if stepErrors >= maxStepErrors {
			log.Error("too many consecutive step failures, ending call")
			break
		}
		// A transient provider failure gets a spoken apology and the
		// conversation resumes listening.
		if _, err := a.pipe.Speak(callCtx, sess, stepApology); err != nil {
			log.Debug("apology playback failed", slog.Any("err", err))
		}
		machine.Recover()
	}
	if err := sess.Hangup(); err != nil {
		log.Debug("hangup", slog.Any("err", err))
	}
	a.sessions.Remove(callID)

	a.writeRecord(sess, log)
}

// writeRecord persists the CDR and stamps the whole-call metrics.
func (a *App) writeRecord(sess *session.Session, log *slog.Logger) {
	rec := cdr.FromSession(sess)

	ctx, cancel := context.WithTimeout(context.Background(), cdrWriteTimeout)
	defer cancel()

	if err := a.store.WriteCall(ctx, rec); err != nil {
		log.Error("cdr write failed", slog.Any("err", err))
	}
	a.metrics.RecordCall(ctx, sess.Feature(), rec.Duration)
	if rec.DTMFDigits > 0 {
		a.metrics.DTMFDigits.Add(ctx, int64(rec.DTMFDigits))
	}
	log.Info("call complete",
		slog.Duration("duration", rec.Duration),
		slog.Int("stt_calls", rec.STTCalls),
		slog.Int("llm_calls", rec.LLMCalls),
		slog.Int("tts_calls", rec.TTSCalls),
		slog.Int("dtmf_digits", rec.DTMFDigits),
	)
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", slog.Int("closers", len(a.closers)))

		stopCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := a.server.Shutdown(stopCtx); err != nil {
			a.log.Warn("audiosocket shutdown", slog.Any("err", err))
		}
		if err := a.health.Shutdown(stopCtx); err != nil {
			a.log.Warn("health server shutdown", slog.Any("err", err))
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", slog.Int("remaining", len(a.closers)-i))
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", slog.Int("index", i), slog.Any("err", err))
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
