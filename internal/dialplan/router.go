package dialplan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// birthdayPattern matches 555-MMDD for valid month/day combinations
// (555-0314 reaches the March 14th birthday line, 555-1345 does not).
var birthdayPattern = regexp.MustCompile(`^555-(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])$`)

var nonDigits = regexp.MustCompile(`\D`)

// Route is the outcome of resolving a dialed number.
type Route struct {
	// Feature is the internal feature key to switch the session to.
	Feature string

	// Name is the spoken service name.
	Name string

	// Type classifies the destination; TypeInvalid for unknown numbers.
	Type EntryType

	// Greeting is the line played when the caller lands on the service.
	Greeting string

	// PersonaKey is set for persona destinations.
	PersonaKey string

	// DirectDial reports whether the caller dialed the full number rather
	// than using a DTMF shortcut.
	DirectDial bool
}

// Normalize reduces a dialed number to XXX-XXXX form. 11-digit numbers
// starting with the country code and 10-digit numbers lose their prefix;
// anything that is not 7 digits after cleanup comes back as bare digits and
// will not match the directory.
func Normalize(number string) string {
	digits := nonDigits.ReplaceAllString(number, "")

	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[4:]
	} else if len(digits) == 10 {
		digits = digits[3:]
	}

	if len(digits) == 7 {
		return digits[:3] + "-" + digits[3:]
	}
	return digits
}

// Resolve routes a dialed number to a feature, persona, or easter egg.
// Unknown numbers route to the not-in-service message.
func Resolve(dialed string) Route {
	normalized := Normalize(dialed)

	if entry, ok := Lookup(normalized); ok {
		return Route{
			Feature:    entry.Feature,
			Name:       entry.Name,
			Type:       entry.Type,
			Greeting:   greetingFor(entry),
			PersonaKey: entry.PersonaKey,
			DirectDial: true,
		}
	}

	if m := birthdayPattern.FindStringSubmatch(normalized); m != nil {
		return Route{
			Feature:    "easter_birthday",
			Name:       "Birthday Line",
			Type:       TypeEasterEgg,
			Greeting:   birthdayGreeting(m[1], m[2]),
			DirectDial: true,
		}
	}

	return Route{
		Feature:  "invalid",
		Name:     "Not In Service",
		Type:     TypeInvalid,
		Greeting: NotInServiceGreeting,
	}
}

// ResolveDTMF routes digits entered during a call: a single digit hits the
// shortcut table, anything longer is treated as a dialed number.
func ResolveDTMF(digits string) Route {
	if len(digits) == 1 {
		if feature, ok := dtmfShortcuts[digits]; ok {
			r := Route{Feature: feature, Type: TypeFeature}
			if number, found := NumberFor(feature); found {
				entry, _ := Lookup(number)
				r.Name = entry.Name
				r.Greeting = greetingFor(entry)
			} else {
				r.Name = titleCase(feature)
				r.Greeting = fmt.Sprintf("Welcome to %s!", r.Name)
			}
			return r
		}
	}
	return Resolve(digits)
}

func greetingFor(entry Entry) string {
	switch entry.Feature {
	case "operator":
		return "Welcome to the AI Payphone! This is the operator speaking. " +
			"You can ask me anything, or dial a service number any time. " +
			"Press pound after the number, or press star to hear the main menu. " +
			"How can I help you today?"
	case "easter_jenny":
		return "Jenny speaking! Eight six seven, five three oh nine. " +
			"You actually dialed it, didn't you? I got your number."
	default:
		return fmt.Sprintf("Welcome to %s!", entry.Name)
	}
}

func birthdayGreeting(month, day string) string {
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return fmt.Sprintf(
		"You've reached the Birthday Line! A very happy birthday to everyone celebrating on %s %d. "+
			"We hope your day is full of cake and good calls!",
		time.Month(m).String(), d,
	)
}

func titleCase(feature string) string {
	words := strings.Split(feature, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
