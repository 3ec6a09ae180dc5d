package format

import "strings"

// Segment is a run of message text that is either plain or hidden behind a spoiler.
type Segment struct {
	Text    string
	Spoiler bool
}

// spoilerDelims returns the offsets of "||" pairs that open or close a
// spoiler. A delimiter escaped with a backslash, or preceded by another pipe,
// does not count; "|||x|||" therefore hides "|x" and leaves the last pipe.
func spoilerDelims(msg string) []int {
	var delims []int
	for i := 0; i+1 < len(msg); i++ {
		if msg[i] != '|' || msg[i+1] != '|' {
			continue
		}
		if i > 0 && (msg[i-1] == '\\' || msg[i-1] == '|') {
			continue
		}
		delims = append(delims, i)
	}
	if len(delims)%2 == 1 {
		delims = delims[:len(delims)-1]
	}
	return delims
}

// SpoilerSegments splits msg on paired spoiler delimiters. Empty plain runs
// are omitted; a message without pairs yields a single plain segment.
func SpoilerSegments(msg string) []Segment {
	delims := spoilerDelims(msg)
	if len(delims) == 0 {
		return []Segment{{Text: msg}}
	}

	segments := make([]Segment, 0, len(delims)+1)
	spoiler := false
	prev := 0
	for _, d := range delims {
		if text := msg[prev:d]; text != "" || spoiler {
			segments = append(segments, Segment{Text: text, Spoiler: spoiler})
		}
		spoiler = !spoiler
		prev = d + 2
	}
	if rest := msg[prev:]; rest != "" {
		segments = append(segments, Segment{Text: rest})
	}
	return segments
}

// Spoilers wraps spoilered runs of msg in <div class="spoiler"> blocks.
func Spoilers(msg string) string {
	if !strings.Contains(msg, "||") {
		return msg
	}
	var b strings.Builder
	for _, seg := range SpoilerSegments(msg) {
		if seg.Spoiler {
			b.WriteString(`<div class="spoiler">`)
			b.WriteString(seg.Text)
			b.WriteString(`</div>`)
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}
