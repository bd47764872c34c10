// Package callflow drives the conversation state machine for one call: the
// greeting, the listen/process/speak cycle, DTMF routing, silence timeouts,
// and the goodbye.
package callflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/payphone/internal/dialog"
	"github.com/MrWong99/payphone/internal/dialplan"
	"github.com/MrWong99/payphone/internal/intent"
	"github.com/MrWong99/payphone/internal/pipeline"
	"github.com/MrWong99/payphone/internal/session"
)

// State is a conversation state.
type State int

const (
	// Idle: machine created, greeting not yet played.
	Idle State = iota
	// Greeting: playing the welcome message.
	Greeting
	// MainMenu: awaiting input at the operator menu.
	MainMenu
	// Listening: recording caller speech.
	Listening
	// Processing: transcript through intent detection and the LLM.
	Processing
	// Speaking: TTS playback in progress.
	Speaking
	// BargeIn: the caller interrupted playback.
	BargeIn
	// Timeout: silence timeout prompt.
	Timeout
	// Feature: reserved for scripted feature handlers.
	Feature
	// Goodbye: playing the farewell message.
	Goodbye
	// Hangup: call ended.
	Hangup
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Greeting:
		return "greeting"
	case MainMenu:
		return "main_menu"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	case BargeIn:
		return "barge_in"
	case Timeout:
		return "timeout"
	case Feature:
		return "feature"
	case Goodbye:
		return "goodbye"
	case Hangup:
		return "hangup"
	default:
		return "unknown"
	}
}

// Spoken lines owned by the flow rather than the dialplan.
const (
	operatorWelcome = "Welcome to the AI Payphone! I'm your operator. " +
		"You can talk to me naturally, or dial a number for specific services. " +
		"Press star at any time to return to this menu. How can I help you today?"

	menuReturn = "Returning to the main menu. How can I help you?"

	stillThere = "Are you still there? Say something or press any key to continue."

	farewell = "Thanks for calling the AI Payphone! Have a great day. Goodbye!"
)

const (
	// DefaultSilencePrompt is how long the line may stay silent before the
	// caller is prompted.
	DefaultSilencePrompt = 10 * time.Second

	// DefaultSilenceGoodbye is how long silence may continue after the
	// prompt before the call ends.
	DefaultSilenceGoodbye = 30 * time.Second

	// speakingWatchdog forces a stuck Speaking state back to Listening.
	speakingWatchdog = 5 * time.Second

	// dtmfReadTimeout bounds a single digit read once HasDTMF reported one.
	dtmfReadTimeout = 100 * time.Millisecond
)

// Option is a functional option for Machine.
type Option func(*Machine)

// WithInitialRoute sets the direct-dial route resolved from the number the
// caller dialed to reach the payphone. Without it the call starts at the
// operator.
func WithInitialRoute(r dialplan.Route) Option {
	return func(m *Machine) {
		m.route = &r
	}
}

// WithSilencePrompt sets the silence duration before the reprompt.
func WithSilencePrompt(d time.Duration) Option {
	return func(m *Machine) {
		m.silencePrompt = d
	}
}

// WithSilenceGoodbye sets the silence duration before the call ends.
func WithSilenceGoodbye(d time.Duration) Option {
	return func(m *Machine) {
		m.silenceGoodbye = d
	}
}

// WithLogger sets the machine logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Machine) {
		m.log = log
	}
}

// Machine advances one call through the conversation flow. Drive it by
// calling Step until the state reaches Hangup or the session dies. Not safe
// for concurrent use; one goroutine owns a call's machine.
type Machine struct {
	sess     *session.Session
	streamer *dialog.Streamer
	intents  *intent.Detector
	log      *slog.Logger

	silencePrompt  time.Duration
	silenceGoodbye time.Duration
	now            func() time.Time

	state State
	prev  State
	route *dialplan.Route

	transcript      string
	silenceStart    time.Time
	timeoutPrompted bool
	speakingEntered time.Time
}

// New creates a Machine for a session. The streamer produces LLM responses;
// detector recognizes navigation commands.
func New(sess *session.Session, streamer *dialog.Streamer, detector *intent.Detector, opts ...Option) *Machine {
	m := &Machine{
		sess:           sess,
		streamer:       streamer,
		intents:        detector,
		log:            slog.Default(),
		silencePrompt:  DefaultSilencePrompt,
		silenceGoodbye: DefaultSilenceGoodbye,
		now:            time.Now,
		state:          Idle,
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With(slog.String("call_id", sess.CallID()))
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Recover puts the conversation back into Listening after a failed Step, so
// a transient provider error does not strand the machine mid-flow. States
// that are already winding the call down are left alone.
func (m *Machine) Recover() {
	switch m.state {
	case Goodbye, Hangup:
		return
	}
	m.transcript = ""
	m.transition(Listening, "step_error")
}

// transition moves to a new state. Silence tracking resets on every
// transition except into Timeout or Listening, which continue an ongoing
// silence window.
func (m *Machine) transition(to State, trigger string) {
	if to == m.state {
		return
	}
	m.log.Debug("state transition",
		slog.String("from", m.state.String()),
		slog.String("to", to.String()),
		slog.String("trigger", trigger),
	)
	m.prev = m.state
	m.state = to

	if to != Timeout && to != Listening {
		m.silenceStart = time.Time{}
		m.timeoutPrompted = false
	}
	if to != Speaking {
		m.speakingEntered = time.Time{}
	}
}

// Step processes the current state once. Drive it in a loop while the
// session is active and the state is not Hangup.
func (m *Machine) Step(ctx context.Context, pipe *pipeline.Pipeline) error {
	if !m.sess.Active() && m.state != Hangup {
		m.transition(Hangup, "remote_hangup")
		return nil
	}

	switch m.state {
	case Idle:
		m.transition(Greeting, "call_start")
		return nil
	case Greeting:
		return m.handleGreeting(ctx, pipe)
	case MainMenu:
		return m.handleMainMenu(ctx, pipe)
	case Listening:
		return m.handleListening(ctx, pipe)
	case Processing:
		return m.handleProcessing(ctx, pipe)
	case Speaking:
		m.watchSpeaking()
		return nil
	case BargeIn:
		m.sess.ClearBargeIn()
		m.transition(Listening, "barge_in")
		return nil
	case Timeout:
		return m.handleTimeout(ctx, pipe)
	case Goodbye:
		if _, err := m.speak(ctx, pipe, farewell, "play_goodbye"); err != nil {
			return err
		}
		m.transition(Hangup, "goodbye_complete")
		return nil
	case Hangup:
		return m.sess.Hangup()
	}
	return nil
}

func (m *Machine) handleGreeting(ctx context.Context, pipe *pipeline.Pipeline) error {
	if m.route != nil && m.route.Type == dialplan.TypeInvalid {
		if _, err := m.speak(ctx, pipe, m.route.Greeting, "play_not_in_service"); err != nil {
			return err
		}
		m.transition(Goodbye, "invalid_number")
		return nil
	}

	greeting := operatorWelcome
	if m.route != nil && m.route.DirectDial {
		m.applyRoute(*m.route)
		greeting = m.route.Greeting
	}

	if _, err := m.speak(ctx, pipe, greeting, "play_greeting"); err != nil {
		return err
	}
	m.transition(Listening, "greeting_complete")
	return nil
}

func (m *Machine) handleMainMenu(ctx context.Context, pipe *pipeline.Pipeline) error {
	if handled, err := m.consumeDTMF(ctx, pipe); handled || err != nil {
		return err
	}
	m.transition(Listening, "awaiting_input")
	return nil
}

func (m *Machine) handleListening(ctx context.Context, pipe *pipeline.Pipeline) error {
	if m.silenceStart.IsZero() {
		m.silenceStart = m.now()
	}

	if handled, err := m.consumeDTMF(ctx, pipe); handled || err != nil {
		return err
	}

	// A half-dialed number abandoned mid-entry still routes.
	if digits, ok := m.sess.TimedOutDigits(); ok {
		return m.routeNumber(ctx, pipe, digits)
	}

	tr, ok, err := pipe.Listen(ctx, m.sess)
	if err != nil {
		return err
	}
	if ok {
		m.silenceStart = time.Time{}
		m.transcript = tr.Text
		m.transition(Processing, "transcript_ready")
		return nil
	}

	if m.now().Sub(m.silenceStart) >= m.silencePrompt {
		m.transition(Timeout, "silence_timeout")
	}
	return nil
}

func (m *Machine) handleProcessing(ctx context.Context, pipe *pipeline.Pipeline) error {
	text := m.transcript
	m.transcript = ""

	switch m.intents.Detect(text) {
	case intent.Goodbye:
		m.transition(Goodbye, "user_goodbye")
		return nil
	case intent.MainMenu:
		m.sess.SwitchFeature(session.DefaultFeature)
		if _, err := m.speak(ctx, pipe, menuReturn, "menu_return"); err != nil {
			return err
		}
		m.transition(Listening, "menu_return")
		return nil
	}

	m.sess.Metrics().CountLLM()
	fragments := m.streamer.Stream(ctx, m.sess.History(), text)

	m.transition(Speaking, "response_ready")
	completed, err := pipe.SpeakStreaming(ctx, m.sess, fragments)
	if err != nil {
		return err
	}
	if !completed {
		m.transition(BargeIn, "user_interrupt")
		return nil
	}
	m.transition(Listening, "response_complete")
	return nil
}

// consumeDTMF reads and handles one waiting keypad digit. Reports whether a
// digit was handled.
func (m *Machine) consumeDTMF(ctx context.Context, pipe *pipeline.Pipeline) (bool, error) {
	line := m.sess.Line()
	if !line.HasDTMF() {
		return false, nil
	}
	digit, ok := line.ReadDTMF(ctx, dtmfReadTimeout)
	if !ok {
		return false, nil
	}

	switch digit {
	case '*':
		m.route = nil
		m.sess.SwitchFeature(session.DefaultFeature)
		if _, err := m.speak(ctx, pipe, menuReturn, "menu_return"); err != nil {
			return true, err
		}
		m.transition(Listening, "menu_return")
		return true, nil

	case '#':
		if number := m.sess.DrainDTMF(); number != "" {
			return true, m.routeNumber(ctx, pipe, number)
		}
		return true, nil

	default:
		if complete, done := m.sess.AddDTMF(digit); done {
			return true, m.routeNumber(ctx, pipe, complete)
		}
		return true, nil
	}
}

// routeNumber resolves dialed digits and lands the caller on the service.
func (m *Machine) routeNumber(ctx context.Context, pipe *pipeline.Pipeline, number string) error {
	m.log.Info("routing dialed number", slog.String("number", number))
	r := dialplan.ResolveDTMF(number)

	if r.Type == dialplan.TypeInvalid {
		if _, err := m.speak(ctx, pipe, r.Greeting, "invalid_number"); err != nil {
			return err
		}
		m.transition(Listening, "invalid_number")
		return nil
	}

	m.applyRoute(r)
	m.route = &r
	if _, err := m.speak(ctx, pipe, r.Greeting, "feature_"+r.Feature); err != nil {
		return err
	}
	m.transition(Listening, "feature_"+r.Feature)
	return nil
}

// applyRoute switches the session to the routed feature or persona. The one
// place feature switching happens for routed calls.
func (m *Machine) applyRoute(r dialplan.Route) {
	if r.Type == dialplan.TypePersona && r.PersonaKey != "" {
		m.sess.SwitchPersona(r.PersonaKey)
		return
	}
	m.sess.SwitchFeature(r.Feature)
}

func (m *Machine) handleTimeout(ctx context.Context, pipe *pipeline.Pipeline) error {
	if !m.timeoutPrompted {
		if _, err := m.speak(ctx, pipe, stillThere, "timeout_prompt"); err != nil {
			return err
		}
		// Set after speaking: the Speaking transition clears silence
		// tracking.
		m.timeoutPrompted = true
		m.silenceStart = m.now()
		m.transition(Listening, "timeout_prompt")
		return nil
	}

	if m.now().Sub(m.silenceStart) >= m.silenceGoodbye {
		m.transition(Goodbye, "extended_silence")
		return nil
	}
	m.transition(Listening, "timeout_wait")
	return nil
}

// watchSpeaking is a safety net: playback is synchronous, so the machine
// should never be observed in Speaking. If it is, force it back after the
// watchdog interval.
func (m *Machine) watchSpeaking() {
	if m.speakingEntered.IsZero() {
		m.speakingEntered = m.now()
		return
	}
	if m.now().Sub(m.speakingEntered) >= speakingWatchdog {
		m.log.Warn("speaking state stuck, forcing listen")
		m.transition(Listening, "speaking_safety_timeout")
	}
}

// speak plays text through the Speaking state, restoring no state itself;
// callers transition onward based on the result.
func (m *Machine) speak(ctx context.Context, pipe *pipeline.Pipeline, text, trigger string) (bool, error) {
	m.transition(Speaking, trigger)
	return pipe.Speak(ctx, m.sess, text)
}
