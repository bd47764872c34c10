package audiosocket_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/MrWong99/payphone/internal/audiosocket"
)

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()

	frames := []audiosocket.Frame{
		{Type: audiosocket.FrameAudio, Payload: bytes.Repeat([]byte{0xAB}, 320)},
		{Type: audiosocket.FrameDTMF, Payload: []byte{'5'}},
		{Type: audiosocket.FrameUUID, Payload: bytes.Repeat([]byte{1}, 16)},
		{Type: audiosocket.FrameHangup},
	}

	var buf bytes.Buffer
	for _, f := range frames {
		if err := audiosocket.WriteFrame(&buf, f); err != nil {
			t.Fatalf("write %s: %v", f.Type, err)
		}
	}
	for _, want := range frames {
		got, err := audiosocket.ReadFrame(&buf)
		if err != nil {
			t.Fatalf("read %s: %v", want.Type, err)
		}
		if got.Type != want.Type {
			t.Errorf("type = %s, want %s", got.Type, want.Type)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("%s payload mismatch: %d bytes, want %d", want.Type, len(got.Payload), len(want.Payload))
		}
	}
	if _, err := audiosocket.ReadFrame(&buf); !errors.Is(err, io.EOF) {
		t.Errorf("drained reader returned %v, want io.EOF", err)
	}
}

func TestReadFrameZeroLengthHasNilPayload(t *testing.T) {
	t.Parallel()

	f, err := audiosocket.ReadFrame(bytes.NewReader([]byte{0x00, 0x00, 0x00}))
	if err != nil {
		t.Fatal(err)
	}
	if f.Type != audiosocket.FrameHangup || f.Payload != nil {
		t.Errorf("got %+v, want hangup with nil payload", f)
	}
}

func TestReadFrameTruncatedHeader(t *testing.T) {
	t.Parallel()

	if _, err := audiosocket.ReadFrame(bytes.NewReader([]byte{0x10, 0x01})); err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	t.Parallel()

	// Declares 4 payload bytes, supplies 2.
	if _, err := audiosocket.ReadFrame(bytes.NewReader([]byte{0x10, 0x00, 0x04, 1, 2})); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	err := audiosocket.WriteFrame(io.Discard, audiosocket.Frame{
		Type:    audiosocket.FrameAudio,
		Payload: make([]byte, audiosocket.MaxPayload),
	})
	if !errors.Is(err, audiosocket.ErrPayloadTooLarge) {
		t.Errorf("got %v, want ErrPayloadTooLarge", err)
	}
}

func TestFrameTypeString(t *testing.T) {
	t.Parallel()

	if got := audiosocket.FrameType(0x42).String(); got != "unknown(0x42)" {
		t.Errorf("String() = %q", got)
	}
	if got := audiosocket.FrameAudio.String(); got != "audio" {
		t.Errorf("String() = %q, want audio", got)
	}
}
