package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var colorTagRe = regexp.MustCompile(`<c=([^>]*)>|</c>`)

// NormalizeColor turns the color operand of a <c=...> tag into a CSS color.
// Hex triplets become rgb(r, g, b), bare "r,g,b" lists are wrapped in rgb(),
// and anything else (rgb(...) or a named color) passes through.
func NormalizeColor(c string) string {
	c = strings.TrimSpace(c)
	switch {
	case strings.HasPrefix(c, "#"):
		r, g, b, err := ParseRGB(c)
		if err != nil {
			return c
		}
		return fmt.Sprintf("rgb(%d, %d, %d)", r, g, b)
	case strings.HasPrefix(c, "rgb"):
		return c
	case strings.Contains(c, ","):
		return "rgb(" + strings.Trim(c, "rgb()") + ")"
	default:
		return c
	}
}

// ParseRGB parses "#rrggbb", "rgb(r,g,b)" or "r,g,b" with decimal components.
func ParseRGB(color string) (r, g, b uint8, err error) {
	color = strings.TrimSpace(color)
	if strings.HasPrefix(color, "#") {
		c, err := colorful.Hex(color)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid hex color %q: %w", color, err)
		}
		r, g, b = c.RGB255()
		return r, g, b, nil
	}

	parts := strings.Split(strings.Trim(color, "rgb() "), ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid rgb color %q", color)
	}
	var out [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid rgb component %q in %q", p, color)
		}
		out[i] = uint8(n)
	}
	return out[0], out[1], out[2], nil
}

// RGBToHex formats components as #rrggbb.
func RGBToHex(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// FormatColorCommand builds the "COLOR >r,g,b" line announcing a chum's color.
func FormatColorCommand(color string) (string, error) {
	r, g, b, err := ParseRGB(color)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("COLOR >%d,%d,%d", r, g, b), nil
}

// ColorToSpan converts <c=color>...</c> markup into HTML spans. Text outside
// the tags is HTML-escaped, unmatched closing tags are dropped and spans left
// open at the end are closed.
func ColorToSpan(msg string) string {
	var b strings.Builder
	open := 0
	last := 0
	for _, m := range colorTagRe.FindAllStringSubmatchIndex(msg, -1) {
		b.WriteString(EscapeHTML(msg[last:m[0]]))
		last = m[1]
		if m[2] < 0 {
			if open > 0 {
				b.WriteString("</span>")
				open--
			}
			continue
		}
		color := NormalizeColor(msg[m[2]:m[3]])
		fmt.Fprintf(&b, `<span style="color:%s">`, EscapeHTML(color))
		open++
	}
	b.WriteString(EscapeHTML(msg[last:]))
	b.WriteString(strings.Repeat("</span>", open))
	return b.String()
}

// ColorWrap wraps an already formatted fragment in a colored span.
func ColorWrap(msg, color string) string {
	return fmt.Sprintf(`<span style="color:%s">%s</span>`, color, msg)
}

func luma(r, g, b uint8) float64 {
	return 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
}

// AdjustContrast keeps a chum color readable against the background: very
// dark colors on a dark background are brightened and very light colors on a
// light background are darkened. Unparsable colors are returned as is.
func AdjustContrast(color string, background colorful.Color) string {
	r, g, b, err := ParseRGB(color)
	if err != nil {
		return color
	}
	bgLuma := luma(background.RGB255())
	colorLuma := luma(r, g, b)

	brighten := func(v uint8) uint8 {
		x := float64(v) * 1.5
		if x > 255 {
			return 255
		}
		return uint8(x)
	}

	switch {
	case bgLuma < 40 && colorLuma < 40:
		r, g, b = brighten(r), brighten(g), brighten(b)
		if luma(r, g, b) < 40 {
			// pure black stays black when scaled
			c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
			return c.BlendRgb(colorful.Color{R: 1, G: 1, B: 1}, 0.5).Clamped().Hex()
		}
		return RGBToHex(r, g, b)
	case bgLuma > 215 && colorLuma > 215:
		return RGBToHex(uint8(float64(r)/1.5), uint8(float64(g)/1.5), uint8(float64(b)/1.5))
	}
	return color
}
