package config_test

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/MrWong99/payphone/internal/config"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()
	if err := config.Validate(config.Default()); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestDefault_TelephonyValues(t *testing.T) {
	t.Parallel()
	cfg := config.Default()

	if cfg.Server.ListenAddr != "0.0.0.0:9092" {
		t.Errorf("listen_addr = %q, want 0.0.0.0:9092", cfg.Server.ListenAddr)
	}
	if cfg.Server.HealthAddr != ":8090" {
		t.Errorf("health_addr = %q, want :8090", cfg.Server.HealthAddr)
	}
	if cfg.Audio.InputRate != 8000 || cfg.Audio.STTRate != 16000 || cfg.Audio.TTSRate != 24000 || cfg.Audio.OutputRate != 8000 {
		t.Errorf("unexpected sample rates: %+v", cfg.Audio)
	}
	if cfg.Audio.ChunkSize != 320 {
		t.Errorf("chunk_size = %d, want 320", cfg.Audio.ChunkSize)
	}
	if cfg.VAD.Threshold != 0.5 || cfg.VAD.PoolSize != 3 {
		t.Errorf("unexpected VAD defaults: %+v", cfg.VAD)
	}
	if cfg.TTS.Voice != "af_bella" {
		t.Errorf("tts.voice = %q, want af_bella", cfg.TTS.Voice)
	}
	if cfg.Timeouts.SilencePromptS != 10 || cfg.Timeouts.SilenceGoodbyeS != 30 {
		t.Errorf("unexpected silence timers: %+v", cfg.Timeouts)
	}
}

func TestLogLevel_Level(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{config.LogLevel("bananas"), slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := tc.in.Level(); got != tc.want {
			t.Errorf("LogLevel(%q).Level() = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTimeouts_DurationAccessors(t *testing.T) {
	t.Parallel()
	cfg := config.Default()

	if got := cfg.Timeouts.SilencePrompt().Seconds(); got != 10 {
		t.Errorf("SilencePrompt = %.0fs, want 10s", got)
	}
	if got := cfg.Timeouts.MaxCall().Minutes(); got != 30 {
		t.Errorf("MaxCall = %.0fm, want 30m", got)
	}
	if got := cfg.VAD.MaxUtterance().Seconds(); got != 30 {
		t.Errorf("MaxUtterance = %.0fs, want 30s", got)
	}
	if got := cfg.LLM.FirstTokenTimeout().Seconds(); got != 25 {
		t.Errorf("FirstTokenTimeout = %.0fs, want 25s", got)
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Server.LogLevel = "loud"
	cfg.VAD.Threshold = 1.5
	cfg.LLM.MaxTokens = 0
	cfg.TTS.Voice = ""

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"server.log_level", "vad.threshold", "llm.max_tokens", "tts.voice"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_SilenceGoodbyeMustExceedPrompt(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Timeouts.SilencePromptS = 30
	cfg.Timeouts.SilenceGoodbyeS = 30

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error for goodbye timer <= prompt timer, got nil")
	}
	if !strings.Contains(err.Error(), "silence_goodbye_s") {
		t.Errorf("error should mention silence_goodbye_s, got: %v", err)
	}
}

func TestValidate_CDREnabledRequiresDSN(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.CDR.Enabled = true

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error for enabled CDR without DSN, got nil")
	}
	if !strings.Contains(err.Error(), "postgres_dsn") {
		t.Errorf("error should mention postgres_dsn, got: %v", err)
	}
}

func TestValidate_BandMustFitBelowNyquist(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Audio.BandHighHz = 4000

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error for band edge at Nyquist, got nil")
	}
	if !strings.Contains(err.Error(), "Nyquist") {
		t.Errorf("error should mention Nyquist, got: %v", err)
	}
}
