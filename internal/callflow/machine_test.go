package callflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/payphone/internal/dialog"
	"github.com/MrWong99/payphone/internal/dialplan"
	"github.com/MrWong99/payphone/internal/intent"
	"github.com/MrWong99/payphone/internal/pipeline"
	"github.com/MrWong99/payphone/internal/session"
	"github.com/MrWong99/payphone/pkg/audio"
	"github.com/MrWong99/payphone/pkg/provider/llm"
	llmmock "github.com/MrWong99/payphone/pkg/provider/llm/mock"
	"github.com/MrWong99/payphone/pkg/provider/stt"
	sttmock "github.com/MrWong99/payphone/pkg/provider/stt/mock"
	ttsmock "github.com/MrWong99/payphone/pkg/provider/tts/mock"
	"github.com/MrWong99/payphone/pkg/provider/vad"
	vadmock "github.com/MrWong99/payphone/pkg/provider/vad/mock"
)

// fakeLine is a scripted session.Line for driving the machine without a
// switch connection.
type fakeLine struct {
	mu     sync.Mutex
	frames [][]byte
	dtmf   []byte
	closed bool
}

func (f *fakeLine) ReadAudio(ctx context.Context, timeout time.Duration) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil, false
	}
	frame := f.frames[0]
	f.frames = f.frames[1:]
	return frame, true
}

func (f *fakeLine) ReadDTMF(ctx context.Context, timeout time.Duration) (byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.dtmf) == 0 {
		return 0, false
	}
	d := f.dtmf[0]
	f.dtmf = f.dtmf[1:]
	return d, true
}

func (f *fakeLine) HasDTMF() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dtmf) > 0
}

func (f *fakeLine) WriteAudio(pcm []byte) error { return nil }
func (f *fakeLine) Hangup() error               { return nil }

func (f *fakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fixture bundles a machine with its collaborators and a fake clock.
type fixture struct {
	m     *Machine
	pipe  *pipeline.Pipeline
	sess  *session.Session
	line  *fakeLine
	synth *ttsmock.Synthesizer
	tick  func(time.Duration)
}

func newFixture(t *testing.T, line *fakeLine, probs []float64, transcriber *sttmock.Transcriber, provider *llmmock.Provider, opts ...Option) *fixture {
	t.Helper()

	proc, err := audio.NewProcessor(audio.DefaultProcessorConfig())
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	cfg := vad.Config{
		SampleRate:   stt.RequiredSampleRate,
		Threshold:    0.5,
		MinSpeechMs:  30,
		MinSilenceMs: 30,
	}
	pool, err := vad.NewPool(1, cfg, func() (vad.Detector, error) {
		return &vadmock.Detector{Probabilities: probs}, nil
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	synth := &ttsmock.Synthesizer{SamplesPerChar: 3}
	pipe := pipeline.New(proc, pool, transcriber, synth,
		pipeline.WithReadTimeout(10*time.Millisecond))

	sess := session.New("call-1", line)
	m := New(sess, dialog.NewStreamer(provider), intent.NewDetector(), opts...)

	current := time.Now()
	m.now = func() time.Time { return current }

	return &fixture{
		m:     m,
		pipe:  pipe,
		sess:  sess,
		line:  line,
		synth: synth,
		tick:  func(d time.Duration) { current = current.Add(d) },
	}
}

// step runs one machine step and fails the test on error.
func (fx *fixture) step(t *testing.T) {
	t.Helper()
	if err := fx.m.Step(context.Background(), fx.pipe); err != nil {
		t.Fatalf("Step in %v: %v", fx.m.State(), err)
	}
}

// frames returns n silent switch frames.
func frames(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = make([]byte, 320)
	}
	return out
}

func TestGreetingDefaultOperator(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, &fakeLine{}, nil, &sttmock.Transcriber{}, &llmmock.Provider{})

	fx.step(t) // Idle -> Greeting
	if fx.m.State() != Greeting {
		t.Fatalf("state = %v, want greeting", fx.m.State())
	}
	fx.step(t) // play greeting -> Listening
	if fx.m.State() != Listening {
		t.Fatalf("state = %v, want listening", fx.m.State())
	}
	if fx.synth.Calls[0].Text != operatorWelcome {
		t.Errorf("greeting = %q", fx.synth.Calls[0].Text)
	}
}

func TestGreetingDirectDial(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, &fakeLine{}, nil, &sttmock.Transcriber{}, &llmmock.Provider{},
		WithInitialRoute(dialplan.Resolve("5555653")))

	fx.step(t)
	fx.step(t)

	if fx.sess.Feature() != "jokes" {
		t.Errorf("feature = %q, want jokes", fx.sess.Feature())
	}
	if fx.synth.Calls[0].Text != "Welcome to Dial-A-Joke!" {
		t.Errorf("greeting = %q", fx.synth.Calls[0].Text)
	}
	if fx.m.State() != Listening {
		t.Errorf("state = %v, want listening", fx.m.State())
	}
}

func TestGreetingInvalidNumberHangsUp(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, &fakeLine{}, nil, &sttmock.Transcriber{}, &llmmock.Provider{},
		WithInitialRoute(dialplan.Resolve("1234567")))

	fx.step(t) // Idle -> Greeting
	fx.step(t) // not-in-service -> Goodbye
	if fx.m.State() != Goodbye {
		t.Fatalf("state = %v, want goodbye", fx.m.State())
	}
	if fx.synth.Calls[0].Text != dialplan.NotInServiceGreeting {
		t.Errorf("spoken = %q", fx.synth.Calls[0].Text)
	}

	fx.step(t) // farewell -> Hangup
	if fx.m.State() != Hangup {
		t.Fatalf("state = %v, want hangup", fx.m.State())
	}
	if fx.synth.Calls[1].Text != farewell {
		t.Errorf("farewell = %q", fx.synth.Calls[1].Text)
	}

	fx.step(t) // Hangup ends the session
	if fx.sess.Active() {
		t.Error("session still active after hangup step")
	}
}

func TestListenThroughResponse(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{
		Results: []stt.Transcription{{Text: "tell me a joke", Confidence: 0.9}},
	}
	provider := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "Why did the phone ring? "}, {Text: "To answer the call!"}},
	}
	line := &fakeLine{frames: frames(3)}
	fx := newFixture(t, line, []float64{0.9, 0.9, 0.1}, transcriber, provider)

	fx.m.state = Listening
	fx.step(t)
	if fx.m.State() != Processing {
		t.Fatalf("state = %v, want processing", fx.m.State())
	}

	fx.step(t)
	if fx.m.State() != Listening {
		t.Fatalf("state = %v, want listening after response", fx.m.State())
	}
	if fx.synth.CallCount() == 0 {
		t.Fatal("response never reached the synthesizer")
	}
	if fx.synth.Calls[0].Text != "Why did the phone ring?" {
		t.Errorf("first sentence = %q", fx.synth.Calls[0].Text)
	}

	// System prompt, user turn, assistant turn.
	if got := fx.sess.History().Len(); got != 3 {
		t.Errorf("history length = %d, want 3", got)
	}
	if snap := fx.sess.Metrics().Snapshot(); snap.LLMCalls != 1 {
		t.Errorf("llm calls = %d, want 1", snap.LLMCalls)
	}
}

func TestProcessingGoodbyeIntent(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, &fakeLine{}, nil, &sttmock.Transcriber{}, &llmmock.Provider{})
	fx.m.state = Processing
	fx.m.transcript = "okay goodbye now"

	fx.step(t)
	if fx.m.State() != Goodbye {
		t.Errorf("state = %v, want goodbye", fx.m.State())
	}
	if fx.synth.CallCount() != 0 {
		t.Error("goodbye intent must not produce an LLM response")
	}
}

func TestProcessingMenuIntent(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, &fakeLine{}, nil, &sttmock.Transcriber{}, &llmmock.Provider{})
	fx.sess.SwitchFeature("jokes")
	fx.m.state = Processing
	fx.m.transcript = "take me to the main menu"

	fx.step(t)
	if fx.m.State() != Listening {
		t.Errorf("state = %v, want listening", fx.m.State())
	}
	if fx.sess.Feature() != session.DefaultFeature {
		t.Errorf("feature = %q, want operator", fx.sess.Feature())
	}
	if fx.synth.Calls[0].Text != menuReturn {
		t.Errorf("spoken = %q", fx.synth.Calls[0].Text)
	}
}

func TestDTMFStarReturnsToMenu(t *testing.T) {
	t.Parallel()

	line := &fakeLine{dtmf: []byte{'*'}}
	fx := newFixture(t, line, nil, &sttmock.Transcriber{}, &llmmock.Provider{})
	fx.sess.SwitchFeature("fortune")
	fx.m.state = Listening

	fx.step(t)
	if fx.sess.Feature() != session.DefaultFeature {
		t.Errorf("feature = %q, want operator", fx.sess.Feature())
	}
	if fx.synth.Calls[0].Text != menuReturn {
		t.Errorf("spoken = %q", fx.synth.Calls[0].Text)
	}
	if fx.m.State() != Listening {
		t.Errorf("state = %v, want listening", fx.m.State())
	}
}

func TestDTMFPoundRoutesAccumulatedNumber(t *testing.T) {
	t.Parallel()

	line := &fakeLine{dtmf: []byte("8675309#")}
	fx := newFixture(t, line, nil, &sttmock.Transcriber{}, &llmmock.Provider{})
	fx.m.state = Listening

	for i := 0; i < 8; i++ {
		fx.step(t)
	}
	if fx.sess.Feature() != "easter_jenny" {
		t.Errorf("feature = %q, want easter_jenny", fx.sess.Feature())
	}
	if fx.synth.CallCount() != 1 {
		t.Fatalf("synthesize calls = %d, want 1", fx.synth.CallCount())
	}
	if got := fx.synth.Calls[0].Text; got == "" || got == operatorWelcome {
		t.Errorf("greeting = %q, want the Jenny line", got)
	}
}

func TestDTMFSingleShortcut(t *testing.T) {
	t.Parallel()

	line := &fakeLine{dtmf: []byte("1#")}
	fx := newFixture(t, line, nil, &sttmock.Transcriber{}, &llmmock.Provider{})
	fx.m.state = Listening

	fx.step(t)
	fx.step(t)
	if fx.sess.Feature() != "jokes" {
		t.Errorf("feature = %q, want jokes", fx.sess.Feature())
	}
}

func TestAbandonedDigitsRouteAfterTimeout(t *testing.T) {
	t.Parallel()

	line := &fakeLine{}
	fx := newFixture(t, line, nil, &sttmock.Transcriber{}, &llmmock.Provider{})
	fx.m.state = Listening

	sess := session.New("call-2", line, session.WithInterDigitTimeout(time.Millisecond))
	fx.m.sess = sess
	fx.sess = sess
	for _, d := range []byte("5555653") {
		sess.AddDTMF(d)
	}
	time.Sleep(10 * time.Millisecond)

	fx.step(t)
	if sess.Feature() != "jokes" {
		t.Errorf("feature = %q, want jokes", sess.Feature())
	}
}

func TestSilenceTimeoutPromptThenGoodbye(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, &fakeLine{}, nil, &sttmock.Transcriber{}, &llmmock.Provider{})
	fx.m.state = Listening

	fx.step(t) // silence window opens
	if fx.m.State() != Listening {
		t.Fatalf("state = %v, want listening", fx.m.State())
	}

	fx.tick(11 * time.Second)
	fx.step(t)
	if fx.m.State() != Timeout {
		t.Fatalf("state = %v, want timeout", fx.m.State())
	}

	fx.step(t) // reprompt
	if fx.m.State() != Listening {
		t.Fatalf("state = %v, want listening after prompt", fx.m.State())
	}
	if fx.synth.Calls[0].Text != stillThere {
		t.Errorf("prompt = %q", fx.synth.Calls[0].Text)
	}

	fx.tick(31 * time.Second)
	fx.step(t) // silence window exceeded again
	if fx.m.State() != Timeout {
		t.Fatalf("state = %v, want timeout", fx.m.State())
	}
	fx.step(t) // past the goodbye window
	if fx.m.State() != Goodbye {
		t.Errorf("state = %v, want goodbye", fx.m.State())
	}
}

func TestBargeInReturnsToListening(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, &fakeLine{}, nil, &sttmock.Transcriber{}, &llmmock.Provider{})
	fx.m.state = BargeIn

	fx.step(t)
	if fx.m.State() != Listening {
		t.Errorf("state = %v, want listening", fx.m.State())
	}
}

func TestRecoverReturnsToListening(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, &fakeLine{}, nil, &sttmock.Transcriber{}, &llmmock.Provider{})
	fx.m.state = Processing
	fx.m.transcript = "half-finished thought"

	fx.m.Recover()
	if fx.m.State() != Listening {
		t.Errorf("state = %v, want listening", fx.m.State())
	}
	if fx.m.transcript != "" {
		t.Errorf("transcript = %q, want cleared", fx.m.transcript)
	}

	// A call already winding down must not be pulled back.
	fx.m.state = Goodbye
	fx.m.Recover()
	if fx.m.State() != Goodbye {
		t.Errorf("state = %v, want goodbye", fx.m.State())
	}
}

func TestRemoteHangupFromAnyState(t *testing.T) {
	t.Parallel()

	line := &fakeLine{}
	fx := newFixture(t, line, nil, &sttmock.Transcriber{}, &llmmock.Provider{})
	fx.m.state = Listening

	line.mu.Lock()
	line.closed = true
	line.mu.Unlock()

	fx.step(t)
	if fx.m.State() != Hangup {
		t.Errorf("state = %v, want hangup", fx.m.State())
	}
}
