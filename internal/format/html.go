package format

import (
	"fmt"
	"regexp"
	"strings"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&apos;",
	">", "&gt;",
	"<", "&lt;",
)

// EscapeHTML replaces the characters that are special in HTML with entities.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// Img returns an image tag; alt is what text-only renderers show instead.
func Img(src, alt string) string {
	return fmt.Sprintf(`<img src="%s" alt="%s"/>`, EscapeHTML(src), EscapeHTML(alt))
}

var customEmojiRe = regexp.MustCompile(`<a?:(\w+):\d+>`)

// ReplaceCustomEmoji turns platform custom emoji references such as
// <:pesterchum:1234> into their :name: shortcode.
func ReplaceCustomEmoji(msg string) string {
	return customEmojiRe.ReplaceAllString(msg, ":$1:")
}
