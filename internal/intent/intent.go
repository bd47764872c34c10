// Package intent detects navigation commands in caller transcripts.
//
// Phone-line STT regularly mangles short command words ("menu" comes back
// as "men you", "goodbye" as "good by"), so detection runs in two stages:
// exact substring matching first, then Double Metaphone phonetic overlap
// ranked by Jaro-Winkler similarity for words the first stage missed.
package intent

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Intent is a recognized navigation command.
type Intent int

const (
	// None means the transcript is ordinary conversation.
	None Intent = iota

	// MainMenu returns the caller to the operator.
	MainMenu

	// Goodbye ends the call.
	Goodbye
)

// String implements fmt.Stringer.
func (i Intent) String() string {
	switch i {
	case MainMenu:
		return "main_menu"
	case Goodbye:
		return "goodbye"
	default:
		return "none"
	}
}

const defaultPhoneticThreshold = 0.80

// menuPhrases and goodbyePhrases are matched as substrings of the whole
// transcript; goodbyeWords must match a full word so "bye" does not fire
// inside "bye-laws" read from a dictionary entry.
var (
	menuPhrases    = []string{"main menu", "go back"}
	menuWords      = []string{"menu"}
	goodbyePhrases = []string{"hang up"}
	goodbyeWords   = []string{"goodbye", "bye"}

	// phoneticTargets are checked per-token when no exact match fires.
	// "bye" is excluded: its metaphone code is too short to be selective.
	phoneticTargets = map[string]Intent{
		"menu":    MainMenu,
		"goodbye": Goodbye,
	}
)

// Option is a functional option for Detector.
type Option func(*Detector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetic match. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.phoneticThreshold = threshold
	}
}

// Detector recognizes navigation intents. Read-only after construction and
// safe for concurrent use.
type Detector struct {
	phoneticThreshold float64
}

// NewDetector returns a Detector configured with the supplied options.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{phoneticThreshold: defaultPhoneticThreshold}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect classifies a transcript. Goodbye wins over MainMenu when both
// somehow appear ("go back? no, goodbye" should hang up).
func (d *Detector) Detect(transcript string) Intent {
	lower := strings.ToLower(strings.TrimSpace(transcript))
	if lower == "" {
		return None
	}
	words := strings.Fields(strings.Map(stripPunct, lower))

	if matchExact(lower, words, goodbyePhrases, goodbyeWords) {
		return Goodbye
	}
	if matchExact(lower, words, menuPhrases, menuWords) {
		return MainMenu
	}

	// Phonetic fallback for misheard command words.
	best := None
	bestScore := 0.0
	for _, w := range words {
		for target, it := range phoneticTargets {
			if !codesOverlap(w, target) {
				continue
			}
			if score := matchr.JaroWinkler(w, target, false); score >= d.phoneticThreshold && score > bestScore {
				best = it
				bestScore = score
			}
		}
	}
	return best
}

func matchExact(lower string, words, phrases, fullWords []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, w := range words {
		for _, fw := range fullWords {
			if w == fw {
				return true
			}
		}
	}
	return false
}

// codesOverlap reports whether two words share a Double Metaphone code.
func codesOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	if ap == "" && as == "" {
		return false
	}
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || (bs != "" && x == bs) {
			return true
		}
	}
	return false
}

func stripPunct(r rune) rune {
	switch r {
	case '.', ',', '!', '?', ';', ':', '\'', '"':
		return ' '
	}
	return r
}
