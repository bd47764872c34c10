package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"vad": {"silero"},
	"stt": {"whisper", "whisper-native", "deepgram"},
	"llm": {"ollama", "openai", "anthropic", "mistral", "groq", "llamacpp"},
	"tts": {"kokoro"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Fields absent from the file keep their defaults.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.InputRate <= 0 || cfg.Audio.STTRate <= 0 || cfg.Audio.TTSRate <= 0 || cfg.Audio.OutputRate <= 0 {
		errs = append(errs, errors.New("audio: all sample rates must be positive"))
	}
	if cfg.Audio.ChunkSize <= 0 || cfg.Audio.ChunkSize%2 != 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_size %d must be a positive even number of bytes", cfg.Audio.ChunkSize))
	}
	if cfg.Audio.BandLowHz >= cfg.Audio.BandHighHz {
		errs = append(errs, fmt.Errorf("audio: band_low_hz %.0f must be below band_high_hz %.0f", cfg.Audio.BandLowHz, cfg.Audio.BandHighHz))
	} else if cfg.Audio.OutputRate > 0 && cfg.Audio.BandHighHz >= float64(cfg.Audio.OutputRate)/2 {
		errs = append(errs, fmt.Errorf("audio.band_high_hz %.0f must be below the Nyquist frequency %d", cfg.Audio.BandHighHz, cfg.Audio.OutputRate/2))
	}

	// VAD
	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		errs = append(errs, fmt.Errorf("vad.threshold %.2f is out of range [0, 1]", cfg.VAD.Threshold))
	}
	if cfg.VAD.MinSpeechMs < 0 || cfg.VAD.MinSilenceMs < 0 || cfg.VAD.PreRollMs < 0 {
		errs = append(errs, errors.New("vad: durations must not be negative"))
	}
	if cfg.VAD.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("vad.pool_size %d must be at least 1", cfg.VAD.PoolSize))
	}
	if cfg.VAD.MaxUtteranceS <= 0 {
		errs = append(errs, fmt.Errorf("vad.max_utterance_s %d must be positive", cfg.VAD.MaxUtteranceS))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// LLM
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %.2f is out of range [0, 2]", cfg.LLM.Temperature))
	}
	if cfg.LLM.TopP <= 0 || cfg.LLM.TopP > 1 {
		errs = append(errs, fmt.Errorf("llm.top_p %.2f is out of range (0, 1]", cfg.LLM.TopP))
	}
	if cfg.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens %d must be positive", cfg.LLM.MaxTokens))
	}
	if cfg.LLM.FirstTokenTimeoutS <= 0 || cfg.LLM.InterTokenTimeoutS <= 0 {
		errs = append(errs, errors.New("llm: stream timeouts must be positive"))
	}

	// TTS
	if cfg.TTS.Voice == "" {
		errs = append(errs, errors.New("tts.voice is required"))
	}
	if cfg.TTS.Speed != 0 && (cfg.TTS.Speed < 0.5 || cfg.TTS.Speed > 2.0) {
		errs = append(errs, fmt.Errorf("tts.speed %.2f is out of range [0.5, 2.0]", cfg.TTS.Speed))
	}
	if cfg.TTS.MinSentenceLength < 1 {
		errs = append(errs, fmt.Errorf("tts.min_sentence_length %d must be at least 1", cfg.TTS.MinSentenceLength))
	}
	if cfg.TTS.SentenceDelimiters == "" {
		errs = append(errs, errors.New("tts.sentence_delimiters must not be empty"))
	}

	// Timeouts
	if cfg.Timeouts.SilencePromptS <= 0 || cfg.Timeouts.SilenceGoodbyeS <= 0 {
		errs = append(errs, errors.New("timeouts: silence timers must be positive"))
	} else if cfg.Timeouts.SilenceGoodbyeS <= cfg.Timeouts.SilencePromptS {
		errs = append(errs, fmt.Errorf("timeouts.silence_goodbye_s %d must be greater than silence_prompt_s %d", cfg.Timeouts.SilenceGoodbyeS, cfg.Timeouts.SilencePromptS))
	}
	if cfg.Timeouts.InterDigitS <= 0 {
		errs = append(errs, fmt.Errorf("timeouts.inter_digit_s %d must be positive", cfg.Timeouts.InterDigitS))
	}
	if cfg.Timeouts.MaxCallS <= 0 {
		errs = append(errs, fmt.Errorf("timeouts.max_call_s %d must be positive", cfg.Timeouts.MaxCallS))
	}

	// CDR
	if cfg.CDR.Enabled && cfg.CDR.PostgresDSN == "" {
		errs = append(errs, errors.New("cdr.postgres_dsn is required when cdr.enabled is true"))
	}
	if !cfg.CDR.Enabled && cfg.CDR.PostgresDSN != "" {
		slog.Warn("cdr.postgres_dsn is set but cdr.enabled is false; call records will not be stored")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
