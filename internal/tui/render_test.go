package tui

import (
	"testing"

	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
)

func TestRenderChumLine(t *testing.T) {
	in := `<b><span style="color:black;">[12:00] <span style="color:rgb(0,86,255);">GD: hi</span></span></b><br />`
	want := "[::b][black]" + tview.Escape("[12:00]") + " [#0056ff]GD: hi[black][-][::-]\n"
	assert.Equal(t, want, Render(in, "#000000", false))
}

func TestRenderEntitiesAndImages(t *testing.T) {
	assert.Equal(t, "<3 & :chummy:", Render(`&lt;3 &amp; <img src="themes/pesterchum/chummy.png" alt="chummy" />`, "#000000", false))
}

func TestRenderEscapesTags(t *testing.T) {
	assert.Equal(t, tview.Escape("a [red] b"), Render("a [red] b", "#000000", false))
}

func TestRenderSpoilerHidden(t *testing.T) {
	in := `a<div class="spoiler">b<span style="color:red">c</span></div>d`
	assert.Equal(t, "a[#000000:#000000]bc[-:-]d", Render(in, "#000000", false))
}

func TestRenderSpoilerRevealed(t *testing.T) {
	in := `a<div class="spoiler">b</div>c`
	assert.Equal(t, "abc", Render(in, "#000000", true))
}

func TestRenderSpoilerInsideColor(t *testing.T) {
	in := `<span style="color:#ff0000">x<div class="spoiler">y</div>z</span>`
	assert.Equal(t, "[#ff0000]x[#000000:#000000]y[#ff0000:-]z[-]", Render(in, "#000000", false))
}

func TestTagColor(t *testing.T) {
	assert.Equal(t, "#0056ff", tagColor("rgb(0,86,255)"))
	assert.Equal(t, "#c59400", tagColor("#C59400"))
	assert.Equal(t, "black", tagColor("Black"))
}
