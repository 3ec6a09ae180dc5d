// Package format renders chat traffic into the HTML fragments the interface
// displays: chum lines with initials and timestamps, /me actions, mood
// changes, memo lines and spoiler markup.
package format

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/lessucettes/pesterchum-tui/internal/platform"
)

// systemColor is the grey used for action and memo notices.
const systemColor = "#646464"

// Options are the conversation display settings.
type Options struct {
	TimeStamps  bool
	ShowSeconds bool
}

// Formatter holds the display context message formatting depends on.
type Formatter struct {
	Options    Options
	Background colorful.Color
	// TextColor is used for timestamps.
	TextColor string
	// AssetPath is the theme directory mood images are resolved against.
	AssetPath string
	Now       func() time.Time
}

// New returns a Formatter for a background given as a CSS color.
func New(opts Options, background, textColor, assetPath string) *Formatter {
	bg, err := colorful.Hex(background)
	if err != nil {
		bg = colorful.Color{R: 1, G: 1, B: 1}
	}
	if textColor == "" {
		textColor = "black"
	}
	return &Formatter{
		Options:    opts,
		Background: bg,
		TextColor:  textColor,
		AssetPath:  assetPath,
		Now:        time.Now,
	}
}

// Clock formats t as HH:MM or HH:MM:SS in UTC.
func (f *Formatter) Clock(t time.Time) string {
	t = t.UTC()
	if f.Options.ShowSeconds {
		return t.Format("15:04:05")
	}
	return t.Format("15:04")
}

func (f *Formatter) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

func userColor(u platform.User) string {
	if u.Color == "" {
		return platform.DefaultColor
	}
	return u.Color
}

// MeMessage formats a /me style action: "/me's cat says hi" from ghostDunk
// becomes " -- ghostDunk's [GD'S] cat says hi --".
func (f *Formatter) MeMessage(msg string, user platform.User, withTime bool) string {
	var at time.Time
	if withTime {
		at = f.now()
	}
	suffix, predicate := splitMe(msg)
	return f.action(suffix, EscapeHTML(predicate), user, at)
}

// splitMe separates "/me's rest" into the suffix after /me and the predicate.
func splitMe(msg string) (suffix, predicate string) {
	msg = strings.TrimSpace(msg)
	if fields := strings.Fields(msg); len(fields) > 0 && strings.HasPrefix(fields[0], "/me") {
		suffix = fields[0][len("/me"):]
		msg = msg[len(fields[0]):]
	}
	return suffix, strings.TrimSpace(msg)
}

// action renders an already escaped predicate as a /me line, stamped with at
// unless it is zero.
func (f *Formatter) action(suffix, predicate string, user platform.User, at time.Time) string {
	init := ColoredInitials(user.Name, userColor(user), InitialsOptions{Bracket: true, Suffix: suffix})

	timefmt := ""
	if !at.IsZero() && f.Options.TimeStamps {
		timefmt = fmt.Sprintf(`<span style="color:%s;">[%s]</span>`, f.TextColor, f.Clock(at))
	}

	parts := []string{" --", EscapeHTML(user.Name + suffix), init}
	if predicate != "" {
		parts = append(parts, predicate)
	}
	parts = append(parts, "--")

	return fmt.Sprintf(`<b>%s<span style="color:%s;">%s</span></b><br />`,
		timefmt, systemColor, strings.Join(parts, " "))
}

// BeginMessage announces that from began pestering to.
func (f *Formatter) BeginMessage(from, to platform.User) string {
	return f.pesterNotice("began", from, to)
}

// CeaseMessage announces that from ceased pestering to.
func (f *Formatter) CeaseMessage(from, to platform.User) string {
	return f.pesterNotice("ceased", from, to)
}

func (f *Formatter) pesterNotice(verb string, from, to platform.User) string {
	predicate := fmt.Sprintf("%s pestering %s %s at %s",
		verb,
		EscapeHTML(to.Name),
		ColoredInitials(to.Name, userColor(to), InitialsOptions{Bracket: true}),
		f.Clock(f.now()))
	return f.action("", predicate, from, time.Time{})
}

// MoodMessage announces a mood change with the theme's mood icon.
func (f *Formatter) MoodMessage(mood string, user platform.User) string {
	icon := Img(path.Join(f.AssetPath, strings.ToLower(mood)+".png"), mood)
	predicate := fmt.Sprintf("changed their mood to %s %s", EscapeHTML(strings.ToUpper(mood)), icon)
	return f.action("", predicate, user, time.Time{})
}

// DisplayMessage formats an incoming chat line. Without a user the escaped
// text is returned unchanged. /me messages become actions; everything else is
// colorized, prefixed with the sender's initials and timestamp, and has its
// spoilers marked up.
func (f *Formatter) DisplayMessage(msg string, sentAt time.Time, user *platform.User) string {
	if user == nil {
		return EscapeHTML(msg)
	}
	if strings.HasPrefix(msg, "/me") {
		suffix, predicate := splitMe(msg)
		return f.action(suffix, EscapeHTML(predicate), *user, sentAt)
	}

	body := ColorToSpan(strings.TrimSpace(ReplaceCustomEmoji(msg)))
	body = Spoilers(body)

	stamp := ""
	if f.Options.TimeStamps {
		stamp = "[" + f.Clock(sentAt) + "]"
	}
	color := AdjustContrast(userColor(*user), f.Background)
	init := EscapeHTML(Initials(user.Name, InitialsOptions{}))

	return fmt.Sprintf(`<b><span style="color:%s;">%s <span style="color:%s;">%s: %s</span></span></b><br />`,
		f.TextColor, stamp, color, init, body)
}
