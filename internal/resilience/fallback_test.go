package resilience

import (
	"errors"
	"testing"
	"time"
)

// ttsGroup builds a two-endpoint fallback group the way the app wraps a
// synthesizer with a standby instance.
func ttsGroup(cfg CircuitBreakerConfig) *FallbackGroup[string] {
	fg := NewFallbackGroup("http://tts-a:8125", "kokoro-a", FallbackConfig{CircuitBreaker: cfg})
	fg.AddFallback("kokoro-b", "http://tts-b:8125")
	return fg
}

func TestFallbackGroup_PrimaryServes(t *testing.T) {
	fg := ttsGroup(CircuitBreakerConfig{MaxFailures: 3})

	var endpoint string
	err := fg.Execute(func(url string) error {
		endpoint = url
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if endpoint != "http://tts-a:8125" {
		t.Fatalf("served by %q, want the primary", endpoint)
	}
}

func TestFallbackGroup_FailoverToStandby(t *testing.T) {
	fg := ttsGroup(CircuitBreakerConfig{MaxFailures: 3})

	var endpoint string
	err := fg.Execute(func(url string) error {
		if url == "http://tts-a:8125" {
			return errTest
		}
		endpoint = url
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if endpoint != "http://tts-b:8125" {
		t.Fatalf("served by %q, want the standby", endpoint)
	}
}

func TestFallbackGroup_AllEndpointsDown(t *testing.T) {
	fg := ttsGroup(CircuitBreakerConfig{MaxFailures: 3})

	err := fg.Execute(func(string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipsPrimary(t *testing.T) {
	var transitions []State
	fg := ttsGroup(CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, to)
		},
	})

	// Two failures trip the primary's breaker.
	for i := 0; i < 2; i++ {
		_ = fg.Execute(func(url string) error {
			if url == "http://tts-a:8125" {
				return errTest
			}
			return nil
		})
	}
	if len(transitions) == 0 || transitions[len(transitions)-1] != StateOpen {
		t.Fatalf("breaker transitions = %v, want final StateOpen", transitions)
	}

	var endpoint string
	if err := fg.Execute(func(url string) error {
		endpoint = url
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if endpoint != "http://tts-b:8125" {
		t.Fatalf("served by %q, want the standby while the primary is open", endpoint)
	}
}

func TestExecuteWithResult(t *testing.T) {
	fg := NewFallbackGroup(8124, "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("whisper-standby", 8224)

	transcript, err := ExecuteWithResult(fg, func(port int) (string, error) {
		if port == 8124 {
			return "dial a joke", nil
		}
		return "", errTest
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript != "dial a joke" {
		t.Fatalf("result = %q, want the primary's transcript", transcript)
	}
}

func TestExecuteWithResult_Failover(t *testing.T) {
	fg := NewFallbackGroup(8124, "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("whisper-standby", 8224)

	transcript, err := ExecuteWithResult(fg, func(port int) (string, error) {
		if port == 8124 {
			return "", errTest
		}
		return "the operator please", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript != "the operator please" {
		t.Fatalf("result = %q, want the standby's transcript", transcript)
	}
}

func TestExecuteWithResult_AllFail(t *testing.T) {
	fg := NewFallbackGroup(8124, "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	if _, err := ExecuteWithResult(fg, func(int) (string, error) {
		return "", errTest
	}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
