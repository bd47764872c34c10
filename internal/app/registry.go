package app

import (
	"context"
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/payphone/internal/config"
	"github.com/MrWong99/payphone/pkg/provider/llm"
	"github.com/MrWong99/payphone/pkg/provider/llm/anyllm"
	openaillm "github.com/MrWong99/payphone/pkg/provider/llm/openai"
	"github.com/MrWong99/payphone/pkg/provider/stt"
	"github.com/MrWong99/payphone/pkg/provider/stt/deepgram"
	"github.com/MrWong99/payphone/pkg/provider/stt/whisper"
	"github.com/MrWong99/payphone/pkg/provider/tts"
	"github.com/MrWong99/payphone/pkg/provider/tts/kokoro"
	"github.com/MrWong99/payphone/pkg/provider/vad"
	"github.com/MrWong99/payphone/pkg/provider/vad/silero"
)

// anyLLMBackends are the any-llm-go backends selectable by name in the llm
// provider entry. "openai" is handled separately through the native client.
var anyLLMBackends = []string{"ollama", "anthropic", "mistral", "groq", "llamacpp"}

// DefaultRegistry returns a registry with every built-in provider
// registered. main.go resolves the configured entries against it; tests can
// build their own registry with mock factories instead.
func DefaultRegistry() *config.Registry {
	r := config.NewRegistry()
	registerVAD(r)
	registerSTT(r)
	registerLLM(r)
	registerTTS(r)
	return r
}

func registerVAD(r *config.Registry) {
	r.RegisterVAD("silero", func(entry config.ProviderEntry) (config.DetectorFactory, error) {
		if entry.BaseURL == "" {
			return nil, fmt.Errorf("app: silero vad requires base_url")
		}
		url := entry.BaseURL
		// One websocket per pool slot; the ONNX session behind it is
		// stateful.
		return func() (vad.Detector, error) {
			return silero.Dial(context.Background(), url)
		}, nil
	})
}

func registerSTT(r *config.Registry) {
	r.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		if entry.BaseURL == "" {
			return nil, fmt.Errorf("app: whisper stt requires base_url")
		}
		var opts []whisper.RemoteOption
		if lang, ok := entry.Options["language"].(string); ok {
			opts = append(opts, whisper.WithRemoteLanguage(lang))
		}
		return whisper.NewRemote(entry.BaseURL, opts...)
	})
	r.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if lang, ok := entry.Options["language"].(string); ok {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})
	r.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		if entry.Model == "" {
			return nil, fmt.Errorf("app: whisper-native stt requires model (a ggml file path)")
		}
		var opts []whisper.NativeOption
		if lang, ok := entry.Options["language"].(string); ok {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(entry.Model, opts...)
	})
}

func registerLLM(r *config.Registry) {
	r.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, openaillm.WithBaseURL(entry.BaseURL))
		}
		return openaillm.New(entry.APIKey, entry.Model, opts...)
	})
	for _, backend := range anyLLMBackends {
		r.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}
}

func registerTTS(r *config.Registry) {
	r.RegisterTTS("kokoro", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		if entry.BaseURL == "" {
			return nil, fmt.Errorf("app: kokoro tts requires base_url")
		}
		var opts []kokoro.Option
		if voice, ok := entry.Options["voice"].(string); ok && voice != "" {
			opts = append(opts, kokoro.WithDefaultVoice(voice))
		}
		if speed, ok := entry.Options["speed"].(float64); ok && speed != 0 {
			opts = append(opts, kokoro.WithSpeed(speed))
		}
		return kokoro.New(entry.BaseURL, opts...)
	})
}

// BuildProviders resolves the four configured provider entries against the
// registry. The tts entry's options are seeded from the tts tuning section
// so voice and speed need only be set once in config.
func BuildProviders(reg *config.Registry, cfg *config.Config) (*Providers, error) {
	vadFactory, err := reg.CreateVAD(cfg.Providers.VAD)
	if err != nil {
		return nil, fmt.Errorf("app: build vad provider: %w", err)
	}
	transcriber, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("app: build stt provider: %w", err)
	}
	provider, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("app: build llm provider: %w", err)
	}

	ttsEntry := cfg.Providers.TTS
	if ttsEntry.Options == nil {
		ttsEntry.Options = map[string]any{}
	}
	if _, ok := ttsEntry.Options["voice"]; !ok && cfg.TTS.Voice != "" {
		ttsEntry.Options["voice"] = cfg.TTS.Voice
	}
	if _, ok := ttsEntry.Options["speed"]; !ok && cfg.TTS.Speed != 0 {
		ttsEntry.Options["speed"] = cfg.TTS.Speed
	}
	synthesizer, err := reg.CreateTTS(ttsEntry)
	if err != nil {
		return nil, fmt.Errorf("app: build tts provider: %w", err)
	}

	return &Providers{
		VAD: vadFactory,
		STT: transcriber,
		LLM: provider,
		TTS: synthesizer,
	}, nil
}
