package tui

import (
	"strings"

	"github.com/rivo/tview"
	"golang.org/x/net/html"

	"github.com/lessucettes/pesterchum-tui/internal/format"
)

// renderer turns the formatter's HTML subset into tview color tags.
type renderer struct {
	b       strings.Builder
	colors  []string
	bold    int
	spoiler string
	hidden  bool
	reveal  bool
}

// Render converts an HTML fragment (b, span with a color style,
// div.spoiler, img, br and entities) into tview markup. Unless reveal is set,
// spoiler text is painted in spoilerColor on spoilerColor.
func Render(fragment, spoilerColor string, reveal bool) string {
	r := &renderer{spoiler: tagColor(spoilerColor), reveal: reveal}
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return r.b.String()
		case html.TextToken:
			r.b.WriteString(tview.Escape(string(z.Text())))
		case html.StartTagToken, html.SelfClosingTagToken:
			r.start(z.Token())
		case html.EndTagToken:
			name, _ := z.TagName()
			r.end(string(name))
		}
	}
}

func (r *renderer) start(tok html.Token) {
	switch tok.Data {
	case "b", "strong":
		r.bold++
		if r.bold == 1 && !r.hidden {
			r.b.WriteString("[::b]")
		}
	case "span":
		c := styleColor(attr(tok, "style"))
		r.colors = append(r.colors, c)
		if c != "" && !r.hidden {
			r.b.WriteString("[" + c + "]")
		}
	case "div":
		if attr(tok, "class") == "spoiler" && !r.reveal {
			r.hidden = true
			r.b.WriteString("[" + r.spoiler + ":" + r.spoiler + "]")
		}
	case "br":
		r.b.WriteString("\n")
	case "img":
		if alt := attr(tok, "alt"); alt != "" {
			r.b.WriteString(tview.Escape(":" + alt + ":"))
		}
	}
}

func (r *renderer) end(name string) {
	switch name {
	case "b", "strong":
		if r.bold == 0 {
			return
		}
		r.bold--
		if r.bold == 0 && !r.hidden {
			r.b.WriteString("[::-]")
		}
	case "span":
		if len(r.colors) == 0 {
			return
		}
		popped := r.colors[len(r.colors)-1]
		r.colors = r.colors[:len(r.colors)-1]
		if popped != "" && !r.hidden {
			r.b.WriteString("[" + r.current() + "]")
		}
	case "div":
		if r.hidden {
			r.hidden = false
			r.b.WriteString("[" + r.current() + ":-]")
		}
	}
}

// current is the innermost color still open, or "-" for the default.
func (r *renderer) current() string {
	for i := len(r.colors) - 1; i >= 0; i-- {
		if r.colors[i] != "" {
			return r.colors[i]
		}
	}
	return "-"
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// styleColor extracts the color property of an inline style.
func styleColor(style string) string {
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if ok && strings.TrimSpace(prop) == "color" {
			return tagColor(strings.TrimSpace(val))
		}
	}
	return ""
}

// tagColor converts a CSS color to something tview accepts in a tag.
func tagColor(css string) string {
	if r, g, b, err := format.ParseRGB(css); err == nil {
		return format.RGBToHex(r, g, b)
	}
	return strings.ToLower(css)
}
