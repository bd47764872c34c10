package whisper

import "encoding/binary"

// encodeWAV wraps normalized float samples in a minimal 16-bit mono PCM
// RIFF container. whisper-server insists on a WAV upload; no external
// dependencies are required for this header.
func encodeWAV(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVE")

	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)                       // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:], 1)                        // PCM
	binary.LittleEndian.PutUint16(buf[22:], 1)                        // mono
	binary.LittleEndian.PutUint32(buf[24:], uint32(sampleRate))       // sample rate
	binary.LittleEndian.PutUint32(buf[28:], uint32(sampleRate*2))     // byte rate
	binary.LittleEndian.PutUint16(buf[32:], 2)                        // block align
	binary.LittleEndian.PutUint16(buf[34:], 16)                       // bits per sample

	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))

	for i, s := range samples {
		v := s * 32767
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(int16(v)))
	}
	return buf
}
