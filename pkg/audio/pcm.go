// Package audio provides the signal-processing primitives used by the
// payphone pipeline: PCM format conversion, rational (polyphase) resampling,
// a telephone-band Butterworth filter, frame chunking, and a bounded
// duration buffer.
//
// All byte-oriented functions operate on 16-bit signed little-endian PCM,
// which is what the AudioSocket protocol carries. Float samples are
// normalized to [-1, 1].
package audio

import "encoding/binary"

// BytesToInt16 decodes little-endian 16-bit PCM bytes into samples. A
// trailing odd byte is ignored.
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Int16ToBytes encodes samples as little-endian 16-bit PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Normalize converts 16-bit PCM samples to float32 in [-1, 1).
func Normalize(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Denormalize converts float samples in [-1, 1] back to 16-bit PCM,
// clipping anything outside that range.
func Denormalize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767.0
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// FloatsToBytes is the composition of [Denormalize] and [Int16ToBytes].
func FloatsToBytes(samples []float32) []byte {
	return Int16ToBytes(Denormalize(samples))
}

// BytesToFloats is the composition of [BytesToInt16] and [Normalize].
func BytesToFloats(b []byte) []float32 {
	return Normalize(BytesToInt16(b))
}
