// Package dialplan maps dialed numbers and DTMF digits to the payphone's
// features, personas, and easter eggs, and carries the system prompts and
// TTS voices that go with them.
package dialplan

// EntryType classifies a directory entry.
type EntryType string

const (
	// TypeFeature is a distinct service like Dial-A-Joke or Trivia.
	TypeFeature EntryType = "feature"

	// TypePersona is a character personality for the operator.
	TypePersona EntryType = "persona"

	// TypeEasterEgg is a hidden number with special behavior.
	TypeEasterEgg EntryType = "easter_egg"

	// TypeInvalid marks a number that is not in service.
	TypeInvalid EntryType = "invalid"
)

// Entry is one line in the phone directory.
type Entry struct {
	// Feature is the internal feature key (e.g. "jokes").
	Feature string

	// Name is the spoken service name (e.g. "Dial-A-Joke").
	Name string

	// Alias is the vanity dialing mnemonic, when the line has one.
	Alias string

	// Type classifies the entry.
	Type EntryType

	// PersonaKey selects the persona prompt for TypePersona entries.
	PersonaKey string
}

// OperatorNumber is the default line every caller can fall back to.
const OperatorNumber = "555-0000"

// NotInServiceGreeting is played for numbers with no directory entry.
const NotInServiceGreeting = "We're sorry. The number you have dialed is not in service. " +
	"Please check the number and try again, " +
	"or dial 555-0000 for the operator."

// directory is the static phone book, keyed by XXX-XXXX numbers.
var directory = map[string]Entry{
	// Core services.
	"555-0000": {Feature: "operator", Name: "The Operator", Type: TypeFeature},

	// Historic numbers (actual 80s-90s service numbers).
	"767-2676": {Feature: "time_temp", Name: "Time & Temperature", Alias: "POPCORN", Type: TypeFeature},
	"777-3456": {Feature: "moviefone", Name: "Moviefone", Alias: "777-FILM", Type: TypeFeature},
	"867-5309": {Feature: "easter_jenny", Name: "Jenny", Type: TypeEasterEgg},

	// Information.
	"555-9328": {Feature: "weather", Name: "Weather Forecast", Alias: "WEAT", Type: TypeFeature},
	"555-4676": {Feature: "horoscope", Name: "Daily Horoscope", Alias: "HORO", Type: TypeFeature},
	"555-6397": {Feature: "news", Name: "News Headlines", Alias: "NEWS", Type: TypeFeature},
	"555-7767": {Feature: "sports", Name: "Sports Scores", Alias: "SPOR", Type: TypeFeature},

	// Entertainment.
	"555-5653": {Feature: "jokes", Name: "Dial-A-Joke", Alias: "JOKE", Type: TypeFeature},
	"555-8748": {Feature: "trivia", Name: "Trivia Challenge", Alias: "TRIV", Type: TypeFeature},
	"555-7867": {Feature: "stories", Name: "Story Time", Alias: "STOR", Type: TypeFeature},
	"555-3678": {Feature: "fortune", Name: "Fortune Teller", Alias: "FORT", Type: TypeFeature},
	"555-6235": {Feature: "madlibs", Name: "Mad Libs", Alias: "MADL", Type: TypeFeature},
	"555-9687": {Feature: "would_you_rather", Name: "Would You Rather", Alias: "WRTH", Type: TypeFeature},
	"555-2090": {Feature: "twenty_questions", Name: "20 Questions", Alias: "20QS", Type: TypeFeature},

	// Advice and support.
	"555-2384": {Feature: "advice", Name: "Advice Line", Alias: "ADVI", Type: TypeFeature},
	"555-2667": {Feature: "compliment", Name: "Compliment Line", Alias: "COMP", Type: TypeFeature},
	"555-7627": {Feature: "roast", Name: "Roast Line", Alias: "ROAS", Type: TypeFeature},
	"555-5433": {Feature: "life_coach", Name: "Life Coach", Alias: "LIFE", Type: TypeFeature},
	"555-2663": {Feature: "confession", Name: "Confession Line", Alias: "CONF", Type: TypeFeature},
	"555-8368": {Feature: "vent", Name: "Vent Line", Alias: "VENT", Type: TypeFeature},

	// Nostalgic.
	"555-2655": {Feature: "collect_call", Name: "Collect Call Simulator", Alias: "COLL", Type: TypeFeature},
	"555-8477": {Feature: "nintendo_tips", Name: "Nintendo Tip Line", Alias: "TIPS", Type: TypeFeature},
	"555-8463": {Feature: "time_traveler", Name: "Time Traveler's Line", Alias: "TRAV", Type: TypeFeature},

	// Utilities.
	"555-2252": {Feature: "calculator", Name: "Calculator", Alias: "CALC", Type: TypeFeature},
	"555-8726": {Feature: "translator", Name: "Translator", Alias: "TRAN", Type: TypeFeature},
	"555-7735": {Feature: "spelling", Name: "Spelling Bee", Alias: "SPEL", Type: TypeFeature},
	"555-3428": {Feature: "dictionary", Name: "Dictionary", Alias: "DICT", Type: TypeFeature},
	"555-7324": {Feature: "recipe", Name: "Recipe Line", Alias: "RECI", Type: TypeFeature},
	"555-3322": {Feature: "debate", Name: "Debate Partner", Alias: "DEBA", Type: TypeFeature},
	"555-4688": {Feature: "interview", Name: "Interview Mode", Alias: "INTV", Type: TypeFeature},

	// Personas.
	"555-7243": {Feature: "persona_sage", Name: "Wise Sage", Alias: "SAGE", Type: TypePersona, PersonaKey: "sage"},
	"555-5264": {Feature: "persona_comedian", Name: "Comedian", Alias: "LAFF", Type: TypePersona, PersonaKey: "comedian"},
	"555-3383": {Feature: "persona_detective", Name: "Noir Detective", Alias: "DETE", Type: TypePersona, PersonaKey: "detective"},
	"555-4726": {Feature: "persona_grandma", Name: "Southern Grandma", Alias: "GRAN", Type: TypePersona, PersonaKey: "grandma"},
	"555-2687": {Feature: "persona_robot", Name: "Robot from Future", Alias: "BOTT", Type: TypePersona, PersonaKey: "robot"},
	"555-8255": {Feature: "persona_valley", Name: "Valley Girl", Alias: "VALL", Type: TypePersona, PersonaKey: "valley"},
	"555-7638": {Feature: "persona_beatnik", Name: "Beatnik Poet", Alias: "POET", Type: TypePersona, PersonaKey: "beatnik"},
	"555-4263": {Feature: "persona_gameshow", Name: "Game Show Host", Alias: "GAME", Type: TypePersona, PersonaKey: "gameshow"},
	"555-9427": {Feature: "persona_conspiracy", Name: "Conspiracy Theorist", Alias: "XFIL", Type: TypePersona, PersonaKey: "conspiracy"},

	// Easter eggs.
	"555-2600": {Feature: "easter_phreaker", Name: "Blue Box Secret", Type: TypeEasterEgg},
	"555-1337": {Feature: "easter_hacker", Name: "Hacker Mode", Type: TypeEasterEgg},
	"555-7492": {Feature: "easter_pizza", Name: "Joe's Pizza", Type: TypeEasterEgg},
	"555-1313": {Feature: "easter_haunted", Name: "Haunted Booth", Type: TypeEasterEgg},
}

// dtmfShortcuts gives single-digit quick access during a call.
var dtmfShortcuts = map[string]string{
	"0": "operator",
	"1": "jokes",
	"2": "trivia",
	"3": "fortune",
	"4": "horoscope",
	"5": "stories",
	"6": "compliment",
	"7": "advice",
	"8": "time_temp",
	"9": "roast",
}

// featureToNumber is the reverse index, built once at startup.
var featureToNumber = func() map[string]string {
	m := make(map[string]string, len(directory))
	for number, entry := range directory {
		m[entry.Feature] = number
	}
	return m
}()

// Lookup returns the directory entry for a normalized number.
func Lookup(number string) (Entry, bool) {
	e, ok := directory[number]
	return e, ok
}

// NumberFor returns the phone number assigned to a feature.
func NumberFor(feature string) (string, bool) {
	n, ok := featureToNumber[feature]
	return n, ok
}

// Numbers returns every number in the directory. Useful for menu prompts
// and coverage tests.
func Numbers() []string {
	out := make([]string, 0, len(directory))
	for n := range directory {
		out = append(out, n)
	}
	return out
}
