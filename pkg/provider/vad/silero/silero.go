// Package silero provides a vad.Detector backed by a silero-vad inference
// server over WebSocket.
//
// The server protocol is one binary message per window — 32-bit
// little-endian float samples — answered by one JSON text message:
//
//	{"probability": 0.83}
//
// A text message "reset" clears the server-side recurrent state for this
// stream. One WebSocket connection maps to one detector, so a vad.Pool of
// three detectors holds three connections.
package silero

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/payphone/pkg/provider/vad"
)

// Compile-time assertion that Detector implements vad.Detector.
var _ vad.Detector = (*Detector)(nil)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultInferTimeout = 2 * time.Second
)

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithInferTimeout bounds a single window round trip. Defaults to 2 s; the
// pipeline feeds 32 ms windows, so anything slower means the server is in
// trouble and the call is better served by failing fast.
func WithInferTimeout(d time.Duration) Option {
	return func(det *Detector) { det.inferTimeout = d }
}

// Detector is a remote silero-vad stream. Not safe for concurrent use;
// wrap detectors in a vad.Pool.
type Detector struct {
	conn         *websocket.Conn
	inferTimeout time.Duration
}

// Dial connects to the silero server at url (e.g. "ws://localhost:8721/vad").
func Dial(ctx context.Context, url string, opts ...Option) (*Detector, error) {
	if url == "" {
		return nil, errors.New("silero: url must not be empty")
	}
	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("silero: dial %s: %w", url, err)
	}
	// Windows are tiny; the default read limit is fine, but inference
	// replies should never be large either.
	conn.SetReadLimit(1 << 16)

	d := &Detector{conn: conn, inferTimeout: defaultInferTimeout}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Infer sends one window and waits for its probability.
func (d *Detector) Infer(window []float32) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.inferTimeout)
	defer cancel()

	buf := make([]byte, len(window)*4)
	for i, s := range window {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	if err := d.conn.Write(ctx, websocket.MessageBinary, buf); err != nil {
		return 0, fmt.Errorf("silero: send window: %w", err)
	}

	_, data, err := d.conn.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("silero: read result: %w", err)
	}
	var res struct {
		Probability float64 `json:"probability"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return 0, fmt.Errorf("silero: decode result: %w", err)
	}
	if res.Probability < 0 || res.Probability > 1 {
		return 0, fmt.Errorf("silero: probability %g out of range", res.Probability)
	}
	return res.Probability, nil
}

// Reset asks the server to drop the stream's recurrent state. Failures are
// swallowed: a reset that did not arrive only means slightly stale state on
// the first windows of the next call.
func (d *Detector) Reset() {
	ctx, cancel := context.WithTimeout(context.Background(), d.inferTimeout)
	defer cancel()
	_ = d.conn.Write(ctx, websocket.MessageText, []byte("reset"))
}

// Close closes the WebSocket connection.
func (d *Detector) Close() error {
	return d.conn.Close(websocket.StatusNormalClosure, "detector closed")
}
