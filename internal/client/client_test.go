package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lessucettes/pesterchum-tui/internal/config"
	"github.com/lessucettes/pesterchum-tui/internal/platform"
	"github.com/lessucettes/pesterchum-tui/internal/quirks"
	"github.com/lessucettes/pesterchum-tui/internal/theme"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sent struct {
	conversation string
	content      string
	tts          bool
}

type moodCall struct {
	mood      string
	invisible bool
}

type fakePlatform struct {
	mu          sync.Mutex
	self        platform.User
	connectErrs []error
	connects    int
	sent        []sent
	moods       []moodCall
	convs       []platform.Conversation
	boards      []platform.Board
	closed      bool
}

var ghost = platform.User{ID: "u-gd", Name: "ghostDunk", Color: "rgb(0,86,255)"}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		self: platform.User{ID: "u-self", Name: "carcinoGeneticist", Color: "rgb(98,98,98)"},
		convs: []platform.Conversation{
			{ID: "dm1", Kind: platform.KindDM, Name: "ghostDunk", Recipients: []platform.User{ghost}},
		},
		boards: []platform.Board{{
			ID:   "g1",
			Name: "skaia",
			Memos: []platform.Conversation{
				{ID: "m1", Kind: platform.KindMemo, Name: "#lobby", Board: "skaia", BoardID: "g1"},
			},
		}},
	}
}

func (f *fakePlatform) Connect(_ context.Context, h platform.Handler) error {
	f.mu.Lock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		f.mu.Unlock()
		return err
	}
	self := f.self
	f.mu.Unlock()
	h.OnReady(self)
	return nil
}

func (f *fakePlatform) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakePlatform) Self() platform.User { return f.self }

func (f *fakePlatform) Send(_ context.Context, id, content string, tts bool) error {
	f.mu.Lock()
	f.sent = append(f.sent, sent{id, content, tts})
	f.mu.Unlock()
	return nil
}

func (f *fakePlatform) SetMood(_ context.Context, mood string, invisible bool) error {
	f.mu.Lock()
	f.moods = append(f.moods, moodCall{mood, invisible})
	f.mu.Unlock()
	return nil
}

func (f *fakePlatform) Conversations() []platform.Conversation { return f.convs }

func (f *fakePlatform) Boards() []platform.Board { return f.boards }

func (f *fakePlatform) OpenDM(_ context.Context, userID string) (platform.Conversation, error) {
	return platform.Conversation{ID: "dm-" + userID, Kind: platform.KindDM}, nil
}

func (f *fakePlatform) sentMessages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func (f *fakePlatform) lastMood() moodCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.moods) == 0 {
		return moodCall{}
	}
	return f.moods[len(f.moods)-1]
}

type harness struct {
	c       *Client
	fp      *fakePlatform
	cfg     *config.Config
	actions chan UserAction
	events  chan DisplayEvent
	done    chan error
}

func newHarness(t *testing.T, fp *fakePlatform) *harness {
	t.Helper()
	t.Setenv(config.TokenEnv, "")
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		fp:      fp,
		cfg:     cfg,
		actions: make(chan UserAction),
		events:  make(chan DisplayEvent, 1024),
		done:    make(chan error, 1),
	}
	h.c, err = New(cfg, fp, nil, h.actions, h.events)
	require.NoError(t, err)
	return h
}

func (h *harness) start() {
	go func() { h.done <- h.c.Run(context.Background()) }()
}

func (h *harness) startReady(t *testing.T) {
	t.Helper()
	h.start()
	h.waitFor(t, "STATE_UPDATE", func(ev DisplayEvent) bool {
		return ev.Payload.(StateUpdate).Connected
	})
}

func (h *harness) do(typ, payload string) {
	h.actions <- UserAction{Type: typ, Payload: payload}
}

func (h *harness) waitFor(t *testing.T, typ string, match func(DisplayEvent) bool) DisplayEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Type == typ && (match == nil || match(ev)) {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", typ)
			return DisplayEvent{}
		}
	}
}

func (h *harness) quit(t *testing.T) {
	t.Helper()
	h.do("QUIT", "")
	h.waitFor(t, "SHUTDOWN", nil)
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after QUIT")
	}
}

func TestPrepareOutgoing(t *testing.T) {
	upper := func(s string) (string, error) { return strings.ToUpper(s), nil }

	cases := []struct {
		in      string
		content string
		tts     bool
	}{
		{"hello", "HELLO", false},
		{"  hello  ", "HELLO", false},
		{"/me says hi", "_SAYS HI_", false},
		{"/me's cat sleeps", "_'s CAT SLEEPS_", false},
		{"/me's", "_'s_", false},
		{"/ooc brb", "((brb))", false},
		{"/tts hello", "HELLO", true},
		{"/tts /me waves", "_WAVES_", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			content, tts, err := prepareOutgoing(tc.in, upper)
			require.NoError(t, err)
			assert.Equal(t, tc.content, content)
			assert.Equal(t, tc.tts, tts)
		})
	}
}

func TestPrepareOutgoingLeavesOOCUnquirked(t *testing.T) {
	upper := func(s string) (string, error) { return strings.ToUpper(s), nil }
	content, tts, err := prepareOutgoing("/ooc be right back", upper)
	require.NoError(t, err)
	assert.Equal(t, "((be right back))", content)
	assert.False(t, tts)

	content, tts, err = prepareOutgoing("/tts /ooc brb", upper)
	require.NoError(t, err)
	assert.Equal(t, "((brb))", content)
	assert.True(t, tts)
}

func TestPrepareOutgoingEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "/tts ", "/me"} {
		_, _, err := prepareOutgoing(in, nil)
		assert.ErrorIs(t, err, errEmptyMessage, in)
	}
}

func TestPrepareOutgoingQuirkFailure(t *testing.T) {
	broken := func(s string) (string, error) { return s, fmt.Errorf("bad pattern") }
	content, _, err := prepareOutgoing("hello", broken)
	assert.Error(t, err)
	assert.Equal(t, "hello", content)
}

func TestMeFromWire(t *testing.T) {
	assert.Equal(t, "/me waves", meFromWire("_waves_"))
	assert.Equal(t, "/me's cat", meFromWire("_'s cat_"))
	assert.Equal(t, "hello", meFromWire("hello"))
	assert.Equal(t, "__", meFromWire("__"))
	assert.Equal(t, "_x", meFromWire("_x"))
}

func TestReadyCreatesQuirksAndRestoresMood(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	_, err := os.Stat(h.cfg.QuirksPath())
	assert.NoError(t, err)
	assert.Equal(t, moodCall{"chummy", false}, fp.lastMood())

	h.quit(t)
	fp.mu.Lock()
	assert.True(t, fp.closed)
	fp.mu.Unlock()
}

func TestRepeatedReadyKeepsUnsavedQuirks(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	h.do("QUIRK_ADD", "replace o 0")
	h.waitFor(t, "INFO", func(ev DisplayEvent) bool { return strings.HasPrefix(ev.Content, "Added quirk 1") })

	h.c.OnReady(fp.self)
	h.do("QUIRK_LIST", "")
	ev := h.waitFor(t, "INFO", nil)
	assert.Contains(t, ev.Content, `replace "o" -> "0"`)

	h.quit(t)

	store, err := quirks.Open(h.cfg.QuirksPath(), fp.self.ID)
	require.NoError(t, err)
	assert.Equal(t, []quirks.Rule{{Kind: quirks.KindReplace, Operand: "o", Replacement: "0"}}, store.Rules())
}

func TestReadyAsAnotherUserLoadsTheirQuirks(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	h.do("QUIRK_ADD", `suffix "!"`)
	h.waitFor(t, "INFO", func(ev DisplayEvent) bool { return strings.HasPrefix(ev.Content, "Added quirk 1") })

	h.c.OnReady(platform.User{ID: "u-other", Name: "gamzeeMakara"})
	h.do("QUIRK_LIST", "")
	ev := h.waitFor(t, "INFO", nil)
	assert.Equal(t, "You have no quirks.", ev.Content)

	h.quit(t)

	store, err := quirks.Open(h.cfg.QuirksPath(), fp.self.ID)
	require.NoError(t, err)
	assert.Equal(t, []quirks.Rule{{Kind: quirks.KindSuffix, Operand: "!"}}, store.Rules())
}

func TestQuitSavesQuirks(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	h.do("QUIRK_ADD", `prefix "::"`)
	h.waitFor(t, "INFO", func(ev DisplayEvent) bool { return strings.HasPrefix(ev.Content, "Added quirk 1") })
	h.quit(t)

	store, err := quirks.Open(h.cfg.QuirksPath(), fp.self.ID)
	require.NoError(t, err)
	assert.Equal(t, []quirks.Rule{{Kind: quirks.KindPrefix, Operand: "::"}}, store.Rules())
}

func TestQuitSurvivesUnwritableQuirks(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	h.do("QUIRK_ADD", `prefix "::"`)
	h.waitFor(t, "INFO", func(ev DisplayEvent) bool { return strings.HasPrefix(ev.Content, "Added quirk 1") })

	path := h.cfg.QuirksPath()
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "keep"), nil, 0644))

	h.quit(t)

	fp.mu.Lock()
	assert.True(t, fp.closed)
	fp.mu.Unlock()
}

func TestLoginFailureRetries(t *testing.T) {
	fp := newFakePlatform()
	fp.connectErrs = []error{fmt.Errorf("%w: 4004", platform.ErrLoginFailure)}
	h := newHarness(t, fp)
	h.c.loginBackoff = time.Millisecond

	h.start()
	ev := h.waitFor(t, "ERROR", nil)
	assert.Contains(t, ev.Content, "Login failed")
	assert.Contains(t, ev.Content, h.cfg.Path())
	h.waitFor(t, "STATUS", func(ev DisplayEvent) bool {
		return strings.HasPrefix(ev.Content, "Logged in as")
	})

	fp.mu.Lock()
	assert.Equal(t, 2, fp.connects)
	fp.mu.Unlock()
	h.quit(t)
}

func TestIncomingPesterOpensConversation(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	msg := platform.Message{ID: "1", Conversation: fp.convs[0], Author: ghost, Content: "hi", CreatedAt: time.Now()}
	h.c.OnMessage(msg)
	ev := h.waitFor(t, "NEW_MESSAGE", nil)
	assert.Equal(t, "dm1", ev.Conversation)
	assert.Contains(t, ev.HTML, "GD: hi")
	assert.False(t, ev.IsOwnMessage)

	state := h.waitFor(t, "STATE_UPDATE", func(ev DisplayEvent) bool {
		return len(ev.Payload.(StateUpdate).Conversations) > 0
	}).Payload.(StateUpdate)
	require.Len(t, state.Conversations, 1)
	assert.Equal(t, "dm1", state.Active)

	h.c.OnMessage(msg)
	h.c.OnMessage(platform.Message{ID: "2", Conversation: fp.convs[0], Author: ghost, Content: "_waves_"})
	ev = h.waitFor(t, "NEW_MESSAGE", nil)
	assert.Equal(t, "/me waves", ev.Content)

	h.quit(t)
}

func TestMemoShownOnlyWhileBoardOpen(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	memo := fp.boards[0].Memos[0]
	h.c.OnMessage(platform.Message{ID: "a", Conversation: memo, Author: ghost, Content: "first"})

	h.do("OPEN_BOARD", "skaia")
	h.waitFor(t, "INFO", func(ev DisplayEvent) bool { return strings.Contains(ev.Content, "Opened board skaia") })

	h.c.OnMessage(platform.Message{ID: "b", Conversation: memo, Author: ghost, Content: "second"})
	ev := h.waitFor(t, "NEW_MESSAGE", nil)
	assert.Equal(t, "m1", ev.Conversation)
	assert.Equal(t, "second", ev.Content)

	h.quit(t)
}

func TestSendAppliesQuirks(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	h.do("OPEN_CONVERSATION", "ghostDunk")
	ev := h.waitFor(t, "NEW_MESSAGE", nil)
	assert.Contains(t, ev.HTML, "began pestering ghostDunk")

	h.do("QUIRK_ADD", "replace o 0")
	h.waitFor(t, "INFO", func(ev DisplayEvent) bool { return strings.HasPrefix(ev.Content, "Added quirk 1") })

	h.do("SEND_MESSAGE", "hello")
	h.do("SEND_MESSAGE", "/tts /me knocks")
	h.do("SEND_MESSAGE", "/ooc lol")
	require.Eventually(t, func() bool { return len(fp.sentMessages()) == 3 }, 2*time.Second, 10*time.Millisecond)

	got := fp.sentMessages()
	assert.ElementsMatch(t, []sent{
		{"dm1", "hell0", false},
		{"dm1", "_kn0cks_", true},
		{"dm1", "((lol))", false},
	}, got)

	h.do("CLOSE_CONVERSATION", "")
	ev = h.waitFor(t, "NEW_MESSAGE", nil)
	assert.Contains(t, ev.HTML, "ceased pestering ghostDunk")

	h.do("SEND_MESSAGE", "anyone?")
	h.waitFor(t, "ERROR", func(ev DisplayEvent) bool { return strings.Contains(ev.Content, "No active conversation") })

	h.quit(t)
}

func TestQuirkCommands(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)

	h.c.listQuirks()
	h.waitFor(t, "ERROR", func(ev DisplayEvent) bool { return strings.Contains(ev.Content, "not loaded") })
	h.startReady(t)

	h.do("QUIRK_ADD", `prefix "::"`)
	h.waitFor(t, "INFO", nil)
	h.do("QUIRK_TEST", "hi")
	ev := h.waitFor(t, "INFO", nil)
	assert.Equal(t, "Quirked: ::hi", ev.Content)

	h.do("QUIRK_REMOVE", "3")
	h.waitFor(t, "ERROR", nil)
	h.do("QUIRK_REMOVE", "1")
	ev = h.waitFor(t, "INFO", nil)
	assert.Contains(t, ev.Content, "Removed quirk")

	h.do("QUIRK_LIST", "")
	ev = h.waitFor(t, "INFO", nil)
	assert.Equal(t, "You have no quirks.", ev.Content)

	h.quit(t)
}

func TestSetMood(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	h.do("TOGGLE_IDLE", "")
	h.waitFor(t, "STATUS", func(ev DisplayEvent) bool { return ev.Content == "Idle: true" })

	h.do("SET_MOOD", "Rancorous")
	state := h.waitFor(t, "STATE_UPDATE", func(ev DisplayEvent) bool {
		return ev.Payload.(StateUpdate).Mood == "rancorous"
	}).Payload.(StateUpdate)
	assert.False(t, state.Idle)
	assert.Equal(t, moodCall{"rancorous", false}, fp.lastMood())

	h.do("SET_MOOD", "offline")
	h.waitFor(t, "STATE_UPDATE", func(ev DisplayEvent) bool {
		return ev.Payload.(StateUpdate).Mood == "offline"
	})
	assert.Equal(t, moodCall{"offline", true}, fp.lastMood())

	h.do("SET_MOOD", "sparkly")
	h.waitFor(t, "ERROR", nil)

	h.quit(t)

	saved, err := config.Load(h.cfg.Dir())
	require.NoError(t, err)
	assert.Equal(t, "offline", saved.Mood)
}

func TestSetTheme(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	h.do("SET_THEME", "Trollian")
	ev := h.waitFor(t, "THEME_UPDATE", nil)
	th, ok := ev.Payload.(*theme.Theme)
	require.True(t, ok)
	assert.Equal(t, "Trollian", th.Name)

	saved, err := config.Load(h.cfg.Dir())
	require.NoError(t, err)
	assert.Equal(t, "Trollian", saved.Theme)

	h.do("SET_THEME", "Vaporwave")
	h.waitFor(t, "ERROR", nil)

	h.quit(t)
}

func TestCompletion(t *testing.T) {
	fp := newFakePlatform()
	h := newHarness(t, fp)
	h.startReady(t)

	h.c.OnMessage(platform.Message{ID: "1", Conversation: fp.convs[0], Author: ghost, Content: "hi"})
	h.c.OnMessage(platform.Message{
		ID:           "2",
		Conversation: platform.Conversation{ID: "dm2", Kind: platform.KindDM},
		Author:       platform.User{ID: "u-gg", Name: "gardenGnostic"},
		Content:      "hey",
	})

	h.do("REQUEST_COMPLETION", "g")
	ev := h.waitFor(t, "COMPLETION_RESULT", nil)
	assert.Equal(t, []string{"gardenGnostic", "ghostDunk"}, ev.Payload)

	h.quit(t)
}

func TestJoinMemoUnsupported(t *testing.T) {
	h := newHarness(t, newFakePlatform())
	h.startReady(t)

	h.do("JOIN_MEMO", "alternia")
	ev := h.waitFor(t, "ERROR", nil)
	assert.Contains(t, ev.Content, "/board")

	h.quit(t)
}

func TestNewFallsBackToDefaults(t *testing.T) {
	t.Setenv(config.TokenEnv, "")
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.Theme = "Nonexistent"
	cfg.Mood = "sparkly"

	c, err := New(cfg, newFakePlatform(), nil, nil, make(chan DisplayEvent, 1))
	require.NoError(t, err)
	assert.Equal(t, theme.DefaultName, cfg.Theme)
	assert.Equal(t, "chummy", cfg.Mood)
	c.cancel()
}
