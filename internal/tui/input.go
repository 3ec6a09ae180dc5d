package tui

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lessucettes/pesterchum-tui/internal/client"
	"github.com/lessucettes/pesterchum-tui/internal/mood"
	"github.com/lessucettes/pesterchum-tui/internal/theme"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errUsage          = errors.New("usage")
)

// commands maps every slash-command and alias to its canonical name.
var commands = map[string]string{
	"/pester":  "/pester",
	"/p":       "/pester",
	"/memo":    "/memo",
	"/m":       "/memo",
	"/close":   "/close",
	"/c":       "/close",
	"/board":   "/board",
	"/b":       "/board",
	"/unboard": "/unboard",
	"/ub":      "/unboard",
	"/join":    "/join",
	"/j":       "/join",
	"/leave":   "/leave",
	"/mood":    "/mood",
	"/moods":   "/moods",
	"/idle":    "/idle",
	"/theme":   "/theme",
	"/themes":  "/themes",
	"/quirk":   "/quirk",
	"/list":    "/list",
	"/l":       "/list",
	"/help":    "/help",
	"/h":       "/help",
	"/quit":    "/quit",
	"/q":       "/quit",
	"/me":      "/me",
	"/ooc":     "/ooc",
	"/tts":     "/tts",
}

var quirkSubcommands = []string{"add", "list", "del", "test", "save"}

// parseCommand turns a slash-command line into the action the client runs.
// /me, /ooc and /tts are message forms and go out as SEND_MESSAGE.
func parseCommand(text string) (client.UserAction, error) {
	word, payload, _ := strings.Cut(strings.TrimSpace(text), " ")
	payload = strings.TrimSpace(payload)
	cmd, ok := commands[word]
	if !ok {
		if strings.HasPrefix(word, "/me") {
			return client.UserAction{Type: "SEND_MESSAGE", Payload: text}, nil
		}
		return client.UserAction{}, fmt.Errorf("%w: %s", errUnknownCommand, word)
	}

	need := func(typ, usage string) (client.UserAction, error) {
		if payload == "" {
			return client.UserAction{}, fmt.Errorf("%w: %s", errUsage, usage)
		}
		return client.UserAction{Type: typ, Payload: payload}, nil
	}

	switch cmd {
	case "/me", "/ooc", "/tts":
		return client.UserAction{Type: "SEND_MESSAGE", Payload: text}, nil
	case "/pester":
		return need("OPEN_CONVERSATION", "/pester <chum>")
	case "/memo":
		return need("OPEN_CONVERSATION", "/memo <memo> [i|Fhh:mm|Phh:mm]")
	case "/close":
		return client.UserAction{Type: "CLOSE_CONVERSATION", Payload: payload}, nil
	case "/board":
		return need("OPEN_BOARD", "/board <board>")
	case "/unboard":
		return need("CLOSE_BOARD", "/unboard <board>")
	case "/join":
		return need("JOIN_MEMO", "/join <chat>...")
	case "/leave":
		return client.UserAction{Type: "LEAVE_MEMO", Payload: payload}, nil
	case "/mood":
		if payload == "" {
			return client.UserAction{Type: "LIST_MOODS"}, nil
		}
		return client.UserAction{Type: "SET_MOOD", Payload: payload}, nil
	case "/moods":
		return client.UserAction{Type: "LIST_MOODS"}, nil
	case "/idle":
		return client.UserAction{Type: "TOGGLE_IDLE"}, nil
	case "/theme":
		if payload == "" {
			return client.UserAction{Type: "LIST_THEMES"}, nil
		}
		return client.UserAction{Type: "SET_THEME", Payload: payload}, nil
	case "/themes":
		return client.UserAction{Type: "LIST_THEMES"}, nil
	case "/quirk":
		return parseQuirkCommand(payload)
	case "/list":
		return client.UserAction{Type: "LIST_CONVERSATIONS"}, nil
	case "/help":
		return client.UserAction{Type: "GET_HELP"}, nil
	case "/quit":
		return client.UserAction{Type: "QUIT"}, nil
	}
	return client.UserAction{}, fmt.Errorf("%w: %s", errUnknownCommand, word)
}

func parseQuirkCommand(payload string) (client.UserAction, error) {
	sub, rest, _ := strings.Cut(payload, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(sub) {
	case "", "list":
		return client.UserAction{Type: "QUIRK_LIST"}, nil
	case "add":
		if rest == "" {
			return client.UserAction{}, fmt.Errorf("%w: /quirk add <prefix|suffix|replace|regex|random> <args...>", errUsage)
		}
		return client.UserAction{Type: "QUIRK_ADD", Payload: rest}, nil
	case "del", "remove", "rm":
		if rest == "" {
			return client.UserAction{}, fmt.Errorf("%w: /quirk del <number>", errUsage)
		}
		return client.UserAction{Type: "QUIRK_REMOVE", Payload: rest}, nil
	case "test":
		return client.UserAction{Type: "QUIRK_TEST", Payload: rest}, nil
	case "save":
		return client.UserAction{Type: "QUIRK_SAVE"}, nil
	default:
		return client.UserAction{}, fmt.Errorf("%w: /quirk %s", errUnknownCommand, sub)
	}
}

// chumQuery reports the partial chum name of a "/pester NAME" line.
func chumQuery(text string) (string, bool) {
	word, rest, ok := strings.Cut(text, " ")
	if !ok || commands[word] != "/pester" {
		return "", false
	}
	if rest == "" || strings.ContainsAny(rest, " \t") {
		return "", false
	}
	return rest, true
}

// completeCommand completes command names, moods, themes and quirk
// subcommands.
func completeCommand(text string) []string {
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	word, rest, hasArg := strings.Cut(text, " ")
	if !hasArg {
		var out []string
		for name, canonical := range commands {
			if name == canonical && strings.HasPrefix(name, word) {
				out = append(out, name)
			}
		}
		sort.Strings(out)
		return out
	}

	var candidates []string
	switch commands[word] {
	case "/mood":
		candidates = mood.Names()
	case "/theme":
		candidates = theme.Names()
	case "/quirk":
		if strings.Contains(rest, " ") {
			return nil
		}
		candidates = quirkSubcommands
	default:
		return nil
	}

	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), strings.ToLower(rest)) {
			out = append(out, word+" "+c)
		}
	}
	return out
}

// setupHandlers configures all the logic for handling user input.
func (t *tui) setupHandlers() {
	t.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		defer t.input.SetText("")

		text := strings.TrimSpace(t.input.GetText())
		if text == "" {
			return
		}

		if !strings.HasPrefix(text, "/") {
			t.actionsChan <- client.UserAction{Type: "SEND_MESSAGE", Payload: text}
			return
		}
		action, err := parseCommand(text)
		if err != nil {
			t.localError(err)
			return
		}
		t.actionsChan <- action
	})

	// Set up global key handlers for focus, exiting, etc.
	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if t.logsMaximized || t.outputMaximized {
			return t.handleMaximizedViewKeys(event)
		}

		switch event.Key() {
		case tcell.KeyTab:
			t.cycleFocus(true)
			return nil
		case tcell.KeyBacktab:
			t.cycleFocus(false)
			return nil
		}

		if event.Modifiers() == tcell.ModAlt {
			switch event.Rune() {
			case 'c':
				t.app.SetFocus(t.convList)
			case 'o':
				t.app.SetFocus(t.output)
			case 'i':
				t.app.SetFocus(t.input)
			case 'l':
				t.app.SetFocus(t.logs)
			case 'n':
				t.app.SetFocus(t.detailsView)
			case 's':
				t.revealSpoilers = !t.revealSpoilers
				t.redrawOutput()
			}
			t.updateFocusBorders()
			t.updateHints()
			return nil
		}

		currentFocus := t.app.GetFocus()

		if currentFocus == t.convList {
			return t.handleConvListKeys(event)
		}

		if currentFocus == t.logs && event.Key() == tcell.KeyRune && event.Rune() == '`' {
			t.logsMaximized = true
			t.app.SetRoot(t.maximizedLogsFlex, true).SetFocus(t.logs)
			t.updateHints()
			return nil
		}

		if currentFocus == t.output && event.Key() == tcell.KeyRune && event.Rune() == '`' {
			t.outputMaximized = true
			t.app.SetRoot(t.maximizedOutputFlex, true).SetFocus(t.output)
			t.updateHints()
			return nil
		}

		if event.Key() == tcell.KeyCtrlC {
			t.actionsChan <- client.UserAction{Type: "QUIT"}
			return nil
		}

		return event
	})
}

// localError reports an input mistake without a round trip to the client.
func (t *tui) localError(err error) {
	fmt.Fprintf(t.logs, "\n[%s]%s ERROR: %s[-]", t.theme.Styles.LogError, time.Now().Format("15:04:05"), tview.Escape(err.Error()))
	t.logs.ScrollToEnd()
}

// cycleFocus cycles the focus between the main UI primitives.
func (t *tui) cycleFocus(forward bool) {
	primitives := []tview.Primitive{t.input, t.convList, t.output, t.logs, t.detailsView}
	for i, p := range primitives {
		if p.HasFocus() {
			var next int
			if forward {
				next = (i + 1) % len(primitives)
			} else {
				next = (i - 1 + len(primitives)) % len(primitives)
			}
			t.app.SetFocus(primitives[next])
			t.updateFocusBorders()
			t.updateHints()
			return
		}
	}
}

// handleMaximizedViewKeys handles key events when a view is maximized.
func (t *tui) handleMaximizedViewKeys(event *tcell.EventKey) *tcell.EventKey {
	currentFocus := t.app.GetFocus()
	switch event.Key() {
	case tcell.KeyRune:
		if event.Rune() == '`' {
			if currentFocus == t.logs {
				t.logsMaximized = false
				t.app.SetRoot(t.mainFlex, true).SetFocus(t.logs)
			}
			if currentFocus == t.output {
				t.outputMaximized = false
				t.app.SetRoot(t.mainFlex, true).SetFocus(t.output)
			}
			t.updateHints()
			return nil
		}
		if event.Modifiers() == tcell.ModAlt && event.Rune() == 's' {
			t.revealSpoilers = !t.revealSpoilers
			t.redrawOutput()
			return nil
		}
	case tcell.KeyCtrlC:
		t.actionsChan <- client.UserAction{Type: "QUIT"}
		return nil
	case tcell.KeyTab, tcell.KeyBacktab:
		return nil
	case tcell.KeyUp, tcell.KeyDown, tcell.KeyPgUp, tcell.KeyPgDn, tcell.KeyHome, tcell.KeyEnd:
		return event
	}
	return nil
}

// handleConvListKeys handles key events for the conversation list.
func (t *tui) handleConvListKeys(event *tcell.EventKey) *tcell.EventKey {
	if key := event.Key(); key == tcell.KeyUp || key == tcell.KeyDown || key == tcell.KeyHome || key == tcell.KeyEnd {
		return event
	}

	cur := t.convList.GetCurrentItem()
	if cur < 0 || cur >= len(t.state.Conversations) {
		return event
	}

	selected := t.state.Conversations[cur]
	switch event.Key() {
	case tcell.KeyEnter:
		t.actionsChan <- client.UserAction{Type: "OPEN_CONVERSATION", Payload: selected.ID}
		return nil
	case tcell.KeyDelete:
		t.actionsChan <- client.UserAction{Type: "CLOSE_CONVERSATION", Payload: selected.ID}
		return nil
	}
	return event
}
