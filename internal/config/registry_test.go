package config_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/payphone/internal/config"
	"github.com/MrWong99/payphone/pkg/provider/stt"
	sttmock "github.com/MrWong99/payphone/pkg/provider/stt/mock"
	"github.com/MrWong99/payphone/pkg/provider/vad"
	vadmock "github.com/MrWong99/payphone/pkg/provider/vad/mock"
)

func TestRegistry_CreateSTT(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var gotEntry config.ProviderEntry
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		gotEntry = entry
		return &sttmock.Transcriber{}, nil
	})

	tr, err := reg.CreateSTT(config.ProviderEntry{Name: "whisper", BaseURL: "http://localhost:8771"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if tr == nil {
		t.Fatal("CreateSTT returned nil transcriber")
	}
	if gotEntry.BaseURL != "http://localhost:8771" {
		t.Errorf("factory received base_url %q, want http://localhost:8771", gotEntry.BaseURL)
	}
}

func TestRegistry_CreateVADFactory(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterVAD("silero", func(_ config.ProviderEntry) (config.DetectorFactory, error) {
		return func() (vad.Detector, error) {
			return &vadmock.Detector{Probabilities: []float64{0.1}}, nil
		}, nil
	})

	factory, err := reg.CreateVAD(config.ProviderEntry{Name: "silero"})
	if err != nil {
		t.Fatalf("CreateVAD: %v", err)
	}
	det, err := factory()
	if err != nil {
		t.Fatalf("detector factory: %v", err)
	}
	if det == nil {
		t.Fatal("factory returned nil detector")
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	_, err := reg.CreateLLM(config.ProviderEntry{Name: "missing"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}

	_, err = reg.CreateTTS(config.ProviderEntry{Name: "missing"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_OverwriteRegistration(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	reg.RegisterSTT("whisper", func(_ config.ProviderEntry) (stt.Transcriber, error) {
		t.Error("overwritten factory must not be called")
		return nil, nil
	})
	reg.RegisterSTT("whisper", func(_ config.ProviderEntry) (stt.Transcriber, error) {
		return &sttmock.Transcriber{}, nil
	})

	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "whisper"}); err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
}
