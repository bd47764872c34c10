package audio_test

import (
	"testing"

	"github.com/MrWong99/payphone/pkg/audio"
)

func TestInt16BytesRoundTrip(t *testing.T) {
	t.Parallel()

	in := []int16{0, 1, -1, 32767, -32768, 12345, -12345}
	got := audio.BytesToInt16(audio.Int16ToBytes(in))
	if len(got) != len(in) {
		t.Fatalf("round trip length = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], in[i])
		}
	}
}

func TestBytesToInt16IgnoresTrailingOddByte(t *testing.T) {
	t.Parallel()

	got := audio.BytesToInt16([]byte{0x01, 0x00, 0xFF})
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v, want [1]", got)
	}
}

func TestDenormalizeClips(t *testing.T) {
	t.Parallel()

	got := audio.Denormalize([]float32{2.0, -2.0, 0})
	if got[0] != 32767 {
		t.Errorf("positive overshoot = %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("negative overshoot = %d, want -32768", got[1])
	}
	if got[2] != 0 {
		t.Errorf("zero = %d, want 0", got[2])
	}
}

func TestNormalizeRange(t *testing.T) {
	t.Parallel()

	got := audio.Normalize([]int16{32767, -32768})
	if got[0] >= 1.0 || got[0] < 0.999 {
		t.Errorf("max sample normalized to %v", got[0])
	}
	if got[1] != -1.0 {
		t.Errorf("min sample normalized to %v, want -1", got[1])
	}
}
