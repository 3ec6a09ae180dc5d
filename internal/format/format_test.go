package format

import (
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessucettes/pesterchum-tui/internal/platform"
)

var ghostDunk = platform.User{ID: "1", Name: "ghostDunk", Color: "rgb(1,2,3)"}

func TestSpoilers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single pair", "hello ||secret|| world", `hello <div class="spoiler">secret</div> world`},
		{"trailing unpaired delimiter", "||a|| b ||c", `<div class="spoiler">a</div> b ||c`},
		{"escaped delimiter", `\||not||`, `\||not||`},
		{"triple pipes", "|||text|||", `<div class="spoiler">|text</div>|`},
		{"two pairs", "||a|| and ||b||", `<div class="spoiler">a</div> and <div class="spoiler">b</div>`},
		{"single pipes", "a | b", "a | b"},
		{"no pipes", "plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Spoilers(tt.in))
		})
	}
}

func TestSpoilerSegments(t *testing.T) {
	assert.Equal(t, []Segment{
		{Text: "x"},
		{Text: "y", Spoiler: true},
		{Text: "z"},
	}, SpoilerSegments("x||y||z"))

	assert.Equal(t, []Segment{{Text: "||"}}, SpoilerSegments("||"))
}

func TestColorToSpan(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<c=#ff0000>red</c> plain", `<span style="color:rgb(255, 0, 0)">red</span> plain`},
		{"<c=0,255,0>g</c>", `<span style="color:rgb(0,255,0)">g</span>`},
		{"<c=rgb(1,2,3)>x</c>", `<span style="color:rgb(1,2,3)">x</span>`},
		{"a < b & c", "a &lt; b &amp; c"},
		{"x</c>y", "xy"},
		{"<c=red>open", `<span style="color:red">open</span>`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColorToSpan(tt.in), tt.in)
	}
}

func TestParseRGB(t *testing.T) {
	r, g, b, err := ParseRGB("#0a0B0c")
	require.NoError(t, err)
	assert.Equal(t, [3]uint8{10, 11, 12}, [3]uint8{r, g, b})

	r, g, b, err = ParseRGB("rgb(1, 2, 3)")
	require.NoError(t, err)
	assert.Equal(t, [3]uint8{1, 2, 3}, [3]uint8{r, g, b})

	r, g, b, err = ParseRGB("4,5,6")
	require.NoError(t, err)
	assert.Equal(t, [3]uint8{4, 5, 6}, [3]uint8{r, g, b})

	_, _, _, err = ParseRGB("nope")
	assert.Error(t, err)
	_, _, _, err = ParseRGB("rgb(300,0,0)")
	assert.Error(t, err)
}

func TestFormatColorCommand(t *testing.T) {
	got, err := FormatColorCommand("#010203")
	require.NoError(t, err)
	assert.Equal(t, "COLOR >1,2,3", got)
	assert.Equal(t, "#0a0b0c", RGBToHex(10, 11, 12))
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "GD", Initials("ghostDunk", InitialsOptions{}))
	assert.Equal(t, "GD", Initials("GhostDunk", InitialsOptions{}))
	assert.Equal(t, "AC", Initials("abc", InitialsOptions{}))
	assert.Equal(t, "[GD'S]", Initials("ghostDunk", InitialsOptions{Bracket: true, Suffix: "'s"}))
	assert.Equal(t, "[CGD]", Initials("ghostDunk", InitialsOptions{Bracket: true, Prefix: "C"}))
	assert.Equal(t, "", Initials("", InitialsOptions{Bracket: true}))
}

func TestAdjustContrast(t *testing.T) {
	black := colorful.Color{}
	white := colorful.Color{R: 1, G: 1, B: 1}

	assert.Equal(t, "#1e2d1e", AdjustContrast("rgb(20,30,20)", black))
	assert.Equal(t, "#808080", AdjustContrast("rgb(0,0,0)", black))
	assert.Equal(t, "#a0a0a0", AdjustContrast("rgb(240,240,240)", white))
	assert.Equal(t, "rgb(20,30,20)", AdjustContrast("rgb(20,30,20)", white))
	assert.Equal(t, "red", AdjustContrast("red", black))
}

func fixedFormatter(opts Options) *Formatter {
	f := New(opts, "#ffffff", "black", "themes/pesterchum")
	f.Now = func() time.Time { return time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC) }
	return f
}

func TestMeMessage(t *testing.T) {
	f := fixedFormatter(Options{})
	got := f.MeMessage("/me's cat says hi", ghostDunk, false)
	want := `<b><span style="color:#646464;"> -- ghostDunk&apos;s <span style="color:rgb(1,2,3)">[GD&apos;S]</span> cat says hi --</span></b><br />`
	assert.Equal(t, want, got)
}

func TestMeMessageWithTime(t *testing.T) {
	f := fixedFormatter(Options{TimeStamps: true, ShowSeconds: true})
	got := f.MeMessage("/me waves", ghostDunk, true)
	want := `<b><span style="color:black;">[03:04:05]</span><span style="color:#646464;"> -- ghostDunk <span style="color:rgb(1,2,3)">[GD]</span> waves --</span></b><br />`
	assert.Equal(t, want, got)
}

func TestBeginAndCeaseMessages(t *testing.T) {
	f := fixedFormatter(Options{})
	other := platform.User{Name: "turntechGodhead", Color: "#e00707"}

	got := f.BeginMessage(ghostDunk, other)
	assert.Contains(t, got, `began pestering turntechGodhead <span style="color:#e00707">[TG]</span> at 03:04 --`)

	got = f.CeaseMessage(ghostDunk, other)
	assert.Contains(t, got, `ceased pestering turntechGodhead`)
}

func TestMoodMessage(t *testing.T) {
	f := fixedFormatter(Options{})
	got := f.MoodMessage("chummy", ghostDunk)
	assert.Contains(t, got, `changed their mood to CHUMMY <img src="themes/pesterchum/chummy.png" alt="chummy"/> --`)
}

func TestDisplayMessage(t *testing.T) {
	f := fixedFormatter(Options{TimeStamps: true})
	user := platform.User{Name: "ghostDunk", Color: "rgb(10,20,30)"}
	sent := time.Date(2021, 5, 6, 7, 8, 9, 0, time.UTC)

	got := f.DisplayMessage("hi ||there||", sent, &user)
	want := `<b><span style="color:black;">[07:08] <span style="color:rgb(10,20,30);">GD: hi <div class="spoiler">there</div></span></span></b><br />`
	assert.Equal(t, want, got)

	got = f.DisplayMessage("/me dunks", sent, &user)
	assert.Contains(t, got, "[07:08]")
	assert.Contains(t, got, " -- ghostDunk ")

	assert.Equal(t, "&lt;b&gt;", f.DisplayMessage("<b>", sent, nil))
}

func TestDisplayMessageEmoji(t *testing.T) {
	f := fixedFormatter(Options{})
	got := f.DisplayMessage("look <:pesterchum:1234>", time.Now(), &ghostDunk)
	assert.Contains(t, got, "GD: look :pesterchum:")
}

func TestReplaceCustomEmoji(t *testing.T) {
	assert.Equal(t, "hi :pc: :x_y:", ReplaceCustomEmoji("hi <:pc:123> <a:x_y:9>"))
}

func TestMemoMessages(t *testing.T) {
	assert.Equal(t, "<c=rgb(1,2,3)>GD: hello</c>", MemoMessage("hello", ghostDunk))
	assert.Equal(t,
		`<b><span style="color:rgb(1,2,3);"><span style="color:red">x</span></span></b><br />`,
		DisplayMemo("<c=red>x</c>", ghostDunk))
}

func TestMemoJoin(t *testing.T) {
	got, err := MemoJoin(ghostDunk, "i", "", false, false)
	require.NoError(t, err)
	assert.Equal(t,
		`<b><span style="color:rgb(1,2,3)">CURRENT ghostDunk [CGD]</span> <span style="color:#646464">RIGHT NOW responded to memo.</span></b><br />`,
		got)

	got, err = MemoJoin(ghostDunk, "P01:05", "", true, false)
	require.NoError(t, err)
	assert.Contains(t, got, "PAST ghostDunk [PGD]")
	assert.Contains(t, got, "1:05 HOURS AGO ceased responding to memo.")

	got, err = MemoJoin(ghostDunk, "F00:10", "homestuck", false, true)
	require.NoError(t, err)
	assert.Contains(t, got, "FUTURE ghostDunk [FGD]")
	assert.Contains(t, got, "10 MINUTES FROM NOW opened memo on board homestuck.")

	for _, bad := range []string{"", "X", "F1", "Pa:10", "F01:99"} {
		_, err := MemoJoin(ghostDunk, bad, "", false, false)
		assert.ErrorIs(t, err, ErrTimeframe, bad)
	}
}
