package deepgram_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/payphone/pkg/provider/stt/deepgram"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := deepgram.New(""); err == nil {
		t.Fatal("New accepted an empty api key")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{
			"results": {"channels": [{"alternatives": [
				{"transcript": "  dial a joke please  ", "confidence": 0.93}
			]}]}
		}`)
	}))
	t.Cleanup(srv.Close)

	c, err := deepgram.New("dg-key", deepgram.WithBaseURL(srv.URL), deepgram.WithModel("base"))
	if err != nil {
		t.Fatal(err)
	}

	// One second of audio.
	samples := make([]float32, 16000)
	tr, err := c.Transcribe(context.Background(), samples)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Text != "dial a joke please" {
		t.Errorf("Text = %q", tr.Text)
	}
	if tr.Confidence != 0.93 {
		t.Errorf("Confidence = %v, want 0.93", tr.Confidence)
	}
	if tr.AudioDuration != time.Second {
		t.Errorf("AudioDuration = %v, want 1s", tr.AudioDuration)
	}

	if gotAuth != "Token dg-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	for _, want := range []string{"encoding=linear16", "sample_rate=16000", "model=base", "channels=1"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	// 16-bit mono PCM, two bytes per sample.
	if len(gotBody) != len(samples)*2 {
		t.Errorf("body size = %d, want %d", len(gotBody), len(samples)*2)
	}
}

func TestTranscribe_EmptyInput(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for empty input")
	}))
	t.Cleanup(srv.Close)

	c, err := deepgram.New("dg-key", deepgram.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := c.Transcribe(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Empty() {
		t.Errorf("expected empty transcription, got %+v", tr)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c, err := deepgram.New("bad-key", deepgram.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Transcribe(context.Background(), make([]float32, 160)); err == nil {
		t.Fatal("expected error from 401 response")
	}
}
