// Package mood holds the fixed list of moods a chum can be in.
package mood

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownMood = errors.New("unknown mood")

// Mood is a lower-case mood name.
type Mood string

const (
	Chummy    Mood = "chummy"
	Offline   Mood = "offline"
	Abscond   Mood = "abscond"
	Rancorous Mood = "rancorous"
)

// All lists every mood in menu order.
var All = []Mood{
	"chummy", "rancorous", "offline", "pleasant", "distraught",
	"pranky", "smooth", "ecstatic", "relaxed", "discontent",
	"devious", "sleek", "detestful", "mirthful", "manipulative",
	"vigorous", "perky", "acceptant", "protective", "mystified",
	"amazed", "insolent", "bemused", "abscond",
}

// Parse looks a mood up by name, ignoring case and surrounding space.
func Parse(name string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range All {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMood, name)
}

// Offline reports whether the mood hides the user's presence.
func (m Mood) Offline() bool {
	return m == Offline || m == Abscond
}

// Status is the presence text advertised for the mood, e.g. "Feeling CHUMMY".
func (m Mood) Status() string {
	return "Feeling " + strings.ToUpper(string(m))
}

// Names returns the mood names as strings, for completion.
func Names() []string {
	names := make([]string, len(All))
	for i, m := range All {
		names[i] = string(m)
	}
	return names
}
