// Package audiosocket implements the Asterisk AudioSocket wire protocol:
// framing, the per-connection protocol handler with bounded inbound queues,
// and the TCP server that hands accepted calls to the application.
//
// Every frame is a 1-byte type, a 2-byte big-endian payload length, and the
// payload. Audio payloads are 16-bit signed little-endian mono PCM at 8 kHz.
package audiosocket

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameType identifies an AudioSocket frame.
type FrameType byte

const (
	// FrameHangup signals call termination. Sent by either side.
	FrameHangup FrameType = 0x00
	// FrameUUID carries the call identifier, normally as the 36-byte
	// ASCII UUID form. Always the first frame on a connection.
	FrameUUID FrameType = 0x01
	// FrameDTMF carries a single keypad digit as an ASCII byte.
	FrameDTMF FrameType = 0x03
	// FrameAudio carries PCM audio.
	FrameAudio FrameType = 0x10
	// FrameError reports a switch-side error condition.
	FrameError FrameType = 0xFF
)

// MaxPayload is the largest payload a frame may carry, bounded by the
// 16-bit length field.
const MaxPayload = 65536

// headerLen is the fixed frame header size: type byte + u16 length.
const headerLen = 3

// ErrPayloadTooLarge is returned by [WriteFrame] when the payload exceeds
// [MaxPayload].
var ErrPayloadTooLarge = errors.New("audiosocket: payload exceeds maximum frame size")

// String returns a short name for logging.
func (t FrameType) String() string {
	switch t {
	case FrameHangup:
		return "hangup"
	case FrameUUID:
		return "uuid"
	case FrameDTMF:
		return "dtmf"
	case FrameAudio:
		return "audio"
	case FrameError:
		return "error"
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Frame is one decoded AudioSocket message.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// ReadFrame reads exactly one frame from r. It blocks until a full frame
// arrives or the reader fails; a clean EOF before any header byte is
// returned as [io.EOF]. A zero-length frame has a nil payload.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("audiosocket: truncated frame header: %w", err)
		}
		return Frame{}, err
	}
	f := Frame{Type: FrameType(hdr[0])}
	n := int(binary.BigEndian.Uint16(hdr[1:]))
	if n == 0 {
		return f, nil
	}
	f.Payload = make([]byte, n)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return Frame{}, fmt.Errorf("audiosocket: truncated %s payload (%d bytes): %w", f.Type, n, err)
	}
	return f, nil
}

// WriteFrame encodes f and writes it to w in a single Write call so that
// concurrent writers never interleave partial frames.
func WriteFrame(w io.Writer, f Frame) error {
	// The length field is 16 bits, so the full MaxPayload is not encodable.
	if len(f.Payload) >= MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}
	buf := make([]byte, headerLen+len(f.Payload))
	buf[0] = byte(f.Type)
	binary.BigEndian.PutUint16(buf[1:], uint16(len(f.Payload)))
	copy(buf[headerLen:], f.Payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("audiosocket: write %s frame: %w", f.Type, err)
	}
	return nil
}

// AudioFrame builds an audio frame around pcm without copying it.
func AudioFrame(pcm []byte) Frame {
	return Frame{Type: FrameAudio, Payload: pcm}
}

// HangupFrame builds the zero-length hangup frame.
func HangupFrame() Frame {
	return Frame{Type: FrameHangup}
}
