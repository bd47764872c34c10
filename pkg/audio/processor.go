package audio

import (
	"fmt"
	"iter"
)

// DefaultChunkSize is 320 bytes: 20 ms of 16-bit mono PCM at 8 kHz, the
// frame size Asterisk expects on an AudioSocket connection.
const DefaultChunkSize = 320

// ProcessorConfig holds the sample rates and telephone band the payphone
// pipeline converts between.
type ProcessorConfig struct {
	// InputRate is the rate of audio arriving from the switch (8000).
	InputRate int
	// STTRate is the rate the transcriber wants (16000).
	STTRate int
	// OutputRate is the rate sent back to the switch (8000).
	OutputRate int
	// LowHz and HighHz bound the playback band-pass (300, 3400).
	LowHz, HighHz float64
	// FilterOrder is the Butterworth prototype order (4).
	FilterOrder int
	// ChunkSize is the playback frame size in bytes (320).
	ChunkSize int
}

// DefaultProcessorConfig returns the standard telephony configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		InputRate:   8000,
		STTRate:     16000,
		OutputRate:  8000,
		LowHz:       300,
		HighHz:      3400,
		FilterOrder: 4,
		ChunkSize:   DefaultChunkSize,
	}
}

// Processor converts audio between the switch, the transcriber, and the
// synthesizer. It is immutable after construction and safe for concurrent
// use by every active call.
type Processor struct {
	cfg  ProcessorConfig
	band *BandPass
}

// NewProcessor validates cfg and designs the playback band-pass filter.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.InputRate <= 0 || cfg.STTRate <= 0 || cfg.OutputRate <= 0 {
		return nil, fmt.Errorf("audio: processor rates must be positive: %+v", cfg)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	band, err := NewBandPass(cfg.FilterOrder, cfg.LowHz, cfg.HighHz, cfg.OutputRate)
	if err != nil {
		return nil, err
	}
	return &Processor{cfg: cfg, band: band}, nil
}

// ForSTT converts raw switch audio (16-bit LE PCM at the input rate) into
// normalized float samples at the transcriber rate.
func (p *Processor) ForSTT(b []byte) ([]float32, error) {
	samples := BytesToFloats(b)
	out, err := Resample(samples, p.cfg.InputRate, p.cfg.STTRate)
	if err != nil {
		return nil, fmt.Errorf("audio: resample for stt: %w", err)
	}
	return out, nil
}

// ForPlayback converts synthesized audio at fromRate into band-limited
// 16-bit LE PCM at the output rate, ready to chunk onto the wire.
func (p *Processor) ForPlayback(samples []float32, fromRate int) ([]byte, error) {
	res, err := Resample(samples, fromRate, p.cfg.OutputRate)
	if err != nil {
		return nil, fmt.Errorf("audio: resample for playback: %w", err)
	}
	return FloatsToBytes(p.band.Apply(res)), nil
}

// Chunks iterates over b in frames of the configured chunk size. The final
// frame may be short.
func (p *Processor) Chunks(b []byte) iter.Seq[[]byte] {
	return Chunks(b, p.cfg.ChunkSize)
}

// ChunkDuration returns the wall-clock duration of one full output chunk in
// milliseconds.
func (p *Processor) ChunkDuration() int {
	bytesPerMs := p.cfg.OutputRate * 2 / 1000
	return p.cfg.ChunkSize / bytesPerMs
}

// Chunks iterates over b in frames of size bytes; the final frame may be
// short. A non-positive size yields the whole input as one frame.
func Chunks(b []byte, size int) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if size <= 0 {
			if len(b) > 0 {
				yield(b)
			}
			return
		}
		for off := 0; off < len(b); off += size {
			end := off + size
			if end > len(b) {
				end = len(b)
			}
			if !yield(b[off:end]) {
				return
			}
		}
	}
}
