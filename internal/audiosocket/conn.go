package audiosocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// audioQueueSize bounds inbound audio. At 20 ms per frame this is two
	// seconds of backlog before the oldest frames are dropped.
	audioQueueSize = 100
	// dtmfQueueSize bounds inbound keypad digits.
	dtmfQueueSize = 32
)

// ErrNoUUID is returned by [Conn.Start] when the first frame on the
// connection is not a UUID frame.
var ErrNoUUID = errors.New("audiosocket: connection did not open with a UUID frame")

// Conn wraps one accepted AudioSocket connection. Start performs the UUID
// handshake and launches the reader goroutine, which dispatches inbound
// frames into the audio and DTMF queues. Reads by the pipeline go through
// [Conn.ReadAudio] and [Conn.ReadDTMF]; writes go through [Conn.WriteAudio].
type Conn struct {
	nc  net.Conn
	log *slog.Logger

	callID uuid.UUID

	audio *Queue[[]byte]
	dtmf  *Queue[byte]

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}

	warnOnce sync.Once
}

// NewConn wraps nc. The caller must invoke Start before using the
// connection and Close when finished.
func NewConn(nc net.Conn, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	return &Conn{
		nc:    nc,
		log:   log,
		audio: NewQueue[[]byte](audioQueueSize, DropOldest),
		dtmf:  NewQueue[byte](dtmfQueueSize, DropNewest),
		done:  make(chan struct{}),
	}
}

// Start reads the opening UUID frame and launches the reader loop. The
// first frame on an AudioSocket connection must be the call identifier;
// anything else fails the handshake and the connection should be dropped.
//
// Asterisk sends the UUID in its 36-byte ASCII form. Some switch builds
// append channel metadata after it, so longer payloads are accepted and
// the identifier is taken from the front.
func (c *Conn) Start(ctx context.Context) error {
	if d, ok := ctx.Deadline(); ok {
		_ = c.nc.SetReadDeadline(d)
	}
	f, err := ReadFrame(c.nc)
	_ = c.nc.SetReadDeadline(time.Time{})
	if err != nil {
		return fmt.Errorf("audiosocket: handshake read: %w", err)
	}
	if f.Type != FrameUUID {
		return fmt.Errorf("%w: got %s", ErrNoUUID, f.Type)
	}
	id, err := parseCallID(f.Payload)
	if err != nil {
		return fmt.Errorf("audiosocket: %w", err)
	}
	c.callID = id
	c.log = c.log.With(slog.String("call_id", id.String()))

	go c.readLoop()
	return nil
}

// parseCallID extracts the call identifier from a handshake payload. The
// canonical encoding is the 36-byte ASCII form; 16 raw bytes remain
// accepted for switch builds that send the binary encoding.
func parseCallID(p []byte) (uuid.UUID, error) {
	if len(p) >= 36 {
		if id, err := uuid.ParseBytes(p[:36]); err == nil {
			return id, nil
		}
	}
	if len(p) >= 16 {
		return uuid.FromBytes(p[:16])
	}
	return uuid.UUID{}, fmt.Errorf("short UUID payload: %d bytes", len(p))
}

// CallID returns the identifier from the UUID handshake. Zero before Start.
func (c *Conn) CallID() uuid.UUID {
	return c.callID
}

// readLoop dispatches inbound frames until hangup, error, or read failure.
func (c *Conn) readLoop() {
	defer c.shutdown()
	for {
		f, err := ReadFrame(c.nc)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Warn("read failed", slog.String("error", err.Error()))
			}
			return
		}
		switch f.Type {
		case FrameAudio:
			before := c.audio.Dropped()
			c.audio.Push(f.Payload)
			if c.audio.Dropped() > before {
				c.warnOnce.Do(func() {
					c.log.Warn("audio queue full, dropping oldest frames")
				})
			}
		case FrameDTMF:
			if len(f.Payload) == 0 {
				continue
			}
			if !c.dtmf.Push(f.Payload[0]) {
				c.log.Warn("dtmf queue full, digit discarded",
					slog.String("digit", string(f.Payload[:1])))
			}
		case FrameHangup:
			c.log.Info("hangup from switch")
			return
		case FrameError:
			c.log.Error("error frame from switch", slog.Int("bytes", len(f.Payload)))
			return
		default:
			// An unknown frame type means the stream is out of sync or
			// the peer speaks a different protocol revision. Bail out
			// rather than guess at payload boundaries.
			c.log.Warn("unknown frame type, closing connection",
				slog.String("type", f.Type.String()))
			return
		}
	}
}

// ReadAudio returns the next inbound PCM payload. A zero timeout drains only
// already-queued audio; otherwise it waits up to timeout. ok is false when
// nothing arrived or the connection ended.
func (c *Conn) ReadAudio(ctx context.Context, timeout time.Duration) ([]byte, bool) {
	return c.audio.PopTimeout(ctx, timeout)
}

// ReadDTMF returns the next keypad digit, with the same timeout semantics
// as [Conn.ReadAudio].
func (c *Conn) ReadDTMF(ctx context.Context, timeout time.Duration) (byte, bool) {
	return c.dtmf.PopTimeout(ctx, timeout)
}

// HasDTMF reports whether a digit is waiting without consuming it.
func (c *Conn) HasDTMF() bool {
	return c.dtmf.Len() > 0
}

// WriteAudio sends one PCM frame to the switch. Serialized internally so
// concurrent senders cannot interleave frames.
func (c *Conn) WriteAudio(pcm []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteFrame(c.nc, AudioFrame(pcm))
}

// Hangup sends the hangup frame. Errors are ignored when the peer already
// went away.
func (c *Conn) Hangup() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := WriteFrame(c.nc, HangupFrame()); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Done is closed when the reader loop has ended, whether by hangup, switch
// error, or transport failure.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether the connection has ended.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close tears the connection down. Safe to call multiple times and
// concurrently with the reader loop.
func (c *Conn) Close() error {
	c.shutdown()
	return nil
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.audio.Close()
		c.dtmf.Close()
		_ = c.nc.Close()
	})
}
