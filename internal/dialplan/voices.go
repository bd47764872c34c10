package dialplan

// DefaultVoice is the Kokoro voice used when no mapping applies.
const DefaultVoice = "af_bella"

// voiceMap picks a Kokoro voice per feature or persona.
var voiceMap = map[string]string{
	// Features.
	"operator":   "af_bella",  // American female, warm
	"jokes":      "am_adam",   // American male, energetic
	"fortune":    "bf_emma",   // British female, mysterious
	"horoscope":  "bf_emma",
	"trivia":     "am_michael", // Game show energy
	"time_temp":  "af_sky",     // Clear, professional
	"stories":    "af_nicole",  // Warm storytelling
	"compliment": "af_bella",
	"advice":     "af_sarah",

	// Personas.
	"detective": "am_adam",
	"grandma":   "af_sarah",
	"robot":     "am_michael",
}

// VoiceFor returns the voice for the current feature and persona. The
// persona's voice wins when both are set.
func VoiceFor(feature, persona string) string {
	if v, ok := voiceMap[persona]; ok && persona != "" {
		return v
	}
	if v, ok := voiceMap[feature]; ok {
		return v
	}
	return DefaultVoice
}
