package format

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// InitialsOptions controls how Initials decorates the two letters.
type InitialsOptions struct {
	Bracket bool
	Prefix  string
	Suffix  string
}

// Initials returns a chumhandle's initials: the first character upper-cased
// followed by the first upper-case letter after it, or by the last character
// when the handle has no capitals. "ghostDunk" gives "GD", "/me's" style
// suffixes are upper-cased onto the end ("GD'S"). The first character is never
// the second initial, so "GhostDunk" also gives "GD" rather than "GG".
func Initials(name string, opts InitialsOptions) string {
	if name == "" {
		return ""
	}
	first, rest, _, _ := uniseg.FirstGraphemeClusterInString(name, -1)

	second := ""
	for _, r := range rest {
		if unicode.IsUpper(r) {
			second = string(r)
			break
		}
	}
	if second == "" {
		last, _ := utf8.DecodeLastRuneInString(name)
		second = string(last)
	}

	init := strings.ToUpper(first) + strings.ToUpper(second)
	if opts.Suffix != "" {
		init += strings.ToUpper(opts.Suffix)
	}
	if opts.Prefix != "" {
		init = opts.Prefix + init
	}
	if opts.Bracket {
		init = "[" + init + "]"
	}
	return init
}

// ColoredInitials is Initials wrapped in a span of the given color.
func ColoredInitials(name, color string, opts InitialsOptions) string {
	return fmt.Sprintf(`<span style="color:%s">%s</span>`, color, EscapeHTML(Initials(name, opts)))
}
