package intent_test

import (
	"testing"

	"github.com/MrWong99/payphone/internal/intent"
)

func TestDetectExact(t *testing.T) {
	t.Parallel()

	d := intent.NewDetector()
	tests := []struct {
		transcript string
		want       intent.Intent
	}{
		{"take me back to the main menu", intent.MainMenu},
		{"menu please", intent.MainMenu},
		{"can we go back", intent.MainMenu},
		{"goodbye", intent.Goodbye},
		{"okay bye now", intent.Goodbye},
		{"I want to hang up", intent.Goodbye},
		{"Goodbye!", intent.Goodbye},
		{"tell me a joke", intent.None},
		{"what's on the lunch menu at school", intent.MainMenu},
		{"", intent.None},
	}
	for _, tt := range tests {
		if got := d.Detect(tt.transcript); got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.transcript, got, tt.want)
		}
	}
}

func TestDetectGoodbyeWinsOverMenu(t *testing.T) {
	t.Parallel()

	d := intent.NewDetector()
	if got := d.Detect("go back? no, goodbye"); got != intent.Goodbye {
		t.Errorf("Detect = %v, want goodbye", got)
	}
}

func TestDetectPhonetic(t *testing.T) {
	t.Parallel()

	d := intent.NewDetector()
	// Common STT mishearings of the command words.
	if got := d.Detect("take me to the menue"); got != intent.MainMenu {
		t.Errorf("Detect(menue) = %v, want main_menu", got)
	}
	if got := d.Detect("goodby operator"); got != intent.Goodbye {
		t.Errorf("Detect(goodby) = %v, want goodbye", got)
	}
}

func TestDetectNoFalsePositiveOnOrdinaryWords(t *testing.T) {
	t.Parallel()

	d := intent.NewDetector()
	for _, s := range []string{
		"tell me about the weather in March",
		"what is a good recipe for dinner",
		"I would like to hear a story",
	} {
		if got := d.Detect(s); got != intent.None {
			t.Errorf("Detect(%q) = %v, want none", s, got)
		}
	}
}
