package tui

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lessucettes/pesterchum-tui/internal/client"
	"github.com/lessucettes/pesterchum-tui/internal/platform"
	"github.com/lessucettes/pesterchum-tui/internal/theme"
)

// line is one entry of a conversation buffer: either a rendered HTML fragment
// from the client or a plain notice.
type line struct {
	html   string
	notice string
}

// tui is the main struct that holds all tui components.
type tui struct {
	app         *tview.Application
	actionsChan chan<- client.UserAction

	// UI Components
	mainFlex            *tview.Flex
	convList            *tview.List
	detailsView         *tview.TextView
	logs                *tview.TextView
	maximizedLogsFlex   *tview.Flex
	output              *tview.TextView
	maximizedOutputFlex *tview.Flex
	input               *tview.InputField
	hints               *tview.TextView

	// UI State
	logsMaximized   bool
	outputMaximized bool
	narrowMode      bool
	revealSpoilers  bool
	theme           *theme.Theme

	// App Data
	state   client.StateUpdate
	buffers map[string][]line
	notices []line

	// Input-specific state
	completionEntries []string
	lastQuery         string
}

// New creates and initializes the entire TUI application.
func New(actions chan<- client.UserAction, events <-chan client.DisplayEvent, th *theme.Theme) *tui {
	if th == nil {
		th = theme.Default()
	}
	t := &tui{
		app:         tview.NewApplication(),
		actionsChan: actions,
		theme:       th,
		buffers:     make(map[string][]line),
	}

	t.setupViews()
	t.setupHandlers()
	t.updateInputLabel()
	t.app.SetRoot(t.mainFlex, true).SetFocus(t.input)
	t.updateFocusBorders()
	t.updateHints()
	t.updateDetailsView()

	go t.listenForEvents(events)

	return t
}

// LogWriter returns the writer feeding the log pane. ANSI colors are
// translated to tview tags.
func (t *tui) LogWriter() io.Writer {
	return tview.ANSIWriter(t.logs)
}

// Widget titles.
const (
	titleLogs     = "Logs (Alt+L)"
	titleChums    = "Conversations (Alt+C)"
	titleInfo     = "Chumroll (Alt+N)"
	titleMessages = "Messages (Alt+O)"
	titleInput    = "Input (Alt+I)"

	titleLogsShort     = "Alt+L"
	titleChumsShort    = "Alt+C"
	titleInfoShort     = "Alt+N"
	titleMessagesShort = "Alt+O"
	titleInputShort    = "Alt+I"
)

// setupViews creates and configures all the visual primitives of the TUI.
func (t *tui) setupViews() {
	t.applyTheme()
	t.initViews()
	t.initLayout()
}

// applyTheme sets the global styles for the application based on the current theme.
func (t *tui) applyTheme() {
	s := t.theme.Styles
	tview.Styles.PrimitiveBackgroundColor = theme.Color(s.Background)
	tview.Styles.ContrastBackgroundColor = theme.Color(s.InputBg)
	tview.Styles.PrimaryTextColor = theme.Color(s.Text)
	tview.Styles.BorderColor = theme.Color(s.Border)
	tview.Styles.TitleColor = theme.Color(s.Title)
}

// restyle repaints the existing widgets after a theme switch.
func (t *tui) restyle() {
	t.applyTheme()
	s := t.theme.Styles
	bg := theme.Color(s.Background)
	for _, box := range []*tview.Box{t.logs.Box, t.convList.Box, t.detailsView.Box, t.output.Box, t.input.Box, t.hints.Box} {
		box.SetBackgroundColor(bg).SetTitleColor(theme.Color(s.Title))
	}
	t.logs.SetTextColor(theme.Color(s.Text))
	t.detailsView.SetTextColor(theme.Color(s.Text))
	t.output.SetTextColor(theme.Color(s.Text))
	t.convList.SetMainTextColor(theme.Color(s.Text)).
		SetSelectedBackgroundColor(theme.Color(s.Border))
	t.input.SetLabelStyle(tcell.StyleDefault.Foreground(theme.Color(s.Title))).
		SetFieldBackgroundColor(theme.Color(s.InputBg)).
		SetFieldTextColor(theme.Color(s.InputText))
	t.updateFocusBorders()
	t.updateHints()
	t.updateDetailsView()
	t.redrawOutput()
}

// initViews initializes all the individual widgets for the TUI.
func (t *tui) initViews() {
	s := t.theme.Styles

	t.logs = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() { t.app.Draw() })
	t.logs.SetBorder(true).SetTitle(titleLogs).SetTitleAlign(tview.AlignLeft)

	t.convList = tview.NewList().
		ShowSecondaryText(false).
		SetSelectedBackgroundColor(theme.Color(s.Border))
	t.convList.SetBorder(true).SetTitle(titleChums).SetTitleAlign(tview.AlignLeft)

	t.detailsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() { t.app.Draw() })
	t.detailsView.SetBorder(true).SetTitle(titleInfo).SetTitleAlign(tview.AlignLeft)

	t.output = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true).
		SetChangedFunc(func() { t.app.Draw() })
	t.output.SetBorder(true).SetTitle(titleMessages).SetTitleAlign(tview.AlignLeft)

	t.input = tview.NewInputField().
		SetLabelStyle(tcell.StyleDefault.Foreground(theme.Color(s.Title))).
		SetFieldBackgroundColor(theme.Color(s.InputBg)).
		SetFieldTextColor(theme.Color(s.InputText))
	t.input.SetBorder(true).SetTitle(titleInput).SetTitleAlign(tview.AlignLeft)
	t.input.SetAutocompleteFunc(t.handleAutocomplete)
	t.input.SetAcceptanceFunc(func(textToCheck string, lastChar rune) bool {
		return graphemeLen(textToCheck) <= client.MaxMsgLen
	})
	t.input.SetChangedFunc(func(text string) {
		query, ok := chumQuery(text)
		if !ok {
			t.lastQuery = ""
			return
		}
		if query != t.lastQuery {
			t.lastQuery = query
			t.actionsChan <- client.UserAction{Type: "REQUEST_COMPLETION", Payload: query}
		}
	})

	t.hints = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
}

// initLayout composes the widgets into the final layout and sets up responsiveness.
func (t *tui) initLayout() {
	sidebarFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.convList, 0, 1, true).
		AddItem(t.detailsView, 0, 1, false)

	sidebarFlexHorizontal := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.convList, 0, 1, true).
		AddItem(t.detailsView, 0, 1, false)

	contentGrid := tview.NewGrid().SetBorders(false)

	const narrowWidth = 100
	t.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		w, _ := screen.Size()
		contentGrid.Clear()

		if w < narrowWidth {
			if !t.narrowMode {
				t.narrowMode = true
				t.logs.SetTitle(titleLogsShort)
				t.output.SetTitle(titleMessagesShort)
				t.convList.SetTitle(titleChumsShort)
				t.detailsView.SetTitle(titleInfoShort)
				t.input.SetTitle(titleInputShort)
				t.input.SetLabel("> ")
			}
			contentGrid.SetRows(0, 6)
			contentGrid.SetColumns(0)
			contentGrid.AddItem(t.output, 0, 0, 1, 1, 0, 0, false)
			contentGrid.AddItem(sidebarFlexHorizontal, 1, 0, 1, 1, 0, 0, false)
		} else {
			if t.narrowMode {
				t.narrowMode = false
				t.logs.SetTitle(titleLogs)
				t.output.SetTitle(titleMessages)
				t.convList.SetTitle(titleChums)
				t.detailsView.SetTitle(titleInfo)
				t.input.SetTitle(titleInput)
				t.updateInputLabel()
			}
			contentGrid.SetRows(0)
			contentGrid.SetColumns(0, 32)
			contentGrid.AddItem(t.output, 0, 0, 1, 1, 0, 0, false)
			contentGrid.AddItem(sidebarFlex, 0, 1, 1, 1, 0, 0, false)
		}
		return false
	})

	bottomFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.input, 0, 1, true).
		AddItem(t.hints, 1, 0, false)

	t.mainFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.logs, 4, 0, false).
		AddItem(contentGrid, 0, 1, false).
		AddItem(bottomFlex, 4, 0, true)

	t.maximizedLogsFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.logs, 0, 1, true).
		AddItem(t.hints, 1, 0, false)

	t.maximizedOutputFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.output, 0, 1, true).
		AddItem(t.hints, 1, 0, false)
}

// handleAutocomplete provides completion entries for the input field.
func (t *tui) handleAutocomplete(currentText string) []string {
	if _, ok := chumQuery(currentText); ok {
		if len(t.completionEntries) == 0 {
			return nil
		}
		cmd, _, _ := strings.Cut(currentText, " ")
		out := make([]string, 0, len(t.completionEntries))
		for _, e := range t.completionEntries {
			out = append(out, cmd+" "+e)
		}
		return out
	}
	return completeCommand(currentText)
}

// listenForEvents is the main event loop that processes events from the client.
func (t *tui) listenForEvents(events <-chan client.DisplayEvent) {
	for event := range events {
		if event.Type == "SHUTDOWN" {
			break
		}

		t.app.QueueUpdateDraw(func() {
			switch event.Type {
			case "NEW_MESSAGE":
				t.handleNewMessage(event)
			case "INFO":
				t.handleInfoMessage(event)
			case "STATUS", "ERROR":
				t.handleLogMessage(event)
			case "STATE_UPDATE":
				t.handleStateUpdate(event)
			case "THEME_UPDATE":
				t.handleThemeUpdate(event)
			case "COMPLETION_RESULT":
				t.handleCompletion(event)
			}
		})
	}
	t.app.Stop()
}

// handleNewMessage stores the line in its conversation and shows it if that
// conversation is active.
func (t *tui) handleNewMessage(event client.DisplayEvent) {
	l := line{html: event.HTML}
	t.buffers[event.Conversation] = append(t.buffers[event.Conversation], l)
	if event.Conversation == t.state.Active {
		t.writeLine(l)
	}
}

// handleInfoMessage displays a generic informational message in the output view.
func (t *tui) handleInfoMessage(event client.DisplayEvent) {
	l := line{notice: strings.TrimSpace(event.Content)}
	if t.state.Active == "" {
		t.notices = append(t.notices, l)
	} else {
		t.buffers[t.state.Active] = append(t.buffers[t.state.Active], l)
	}
	t.writeLine(l)
}

// handleLogMessage displays a status or error message in the logs view.
func (t *tui) handleLogMessage(event client.DisplayEvent) {
	color := t.theme.Styles.LogWarn
	if event.Type == "ERROR" {
		color = t.theme.Styles.LogError
	}
	fmt.Fprintf(t.logs, "\n[%s]%s %s: %s[-]", color, time.Now().Format("15:04:05"), event.Type, tview.Escape(event.Content))
	if !t.logsMaximized {
		t.logs.ScrollToEnd()
	}
}

// handleStateUpdate updates the TUI's state based on data from the client.
func (t *tui) handleStateUpdate(event client.DisplayEvent) {
	state, ok := event.Payload.(client.StateUpdate)
	if !ok {
		fmt.Fprintf(t.logs, "\n[%s]ERROR: Invalid STATE_UPDATE payload[-]", t.theme.Styles.LogError)
		return
	}
	activeChanged := state.Active != t.state.Active
	t.state = state
	t.updateConvList()
	t.updateDetailsView()
	t.updateInputLabel()
	if activeChanged {
		t.redrawOutput()
	}
}

// handleThemeUpdate switches the interface to the new theme.
func (t *tui) handleThemeUpdate(event client.DisplayEvent) {
	th, ok := event.Payload.(*theme.Theme)
	if !ok {
		fmt.Fprintf(t.logs, "\n[%s]ERROR: Invalid THEME_UPDATE payload[-]", t.theme.Styles.LogError)
		return
	}
	t.theme = th
	t.restyle()
}

// handleCompletion provides completion entries to the input field.
func (t *tui) handleCompletion(event client.DisplayEvent) {
	entries, ok := event.Payload.([]string)
	if !ok {
		return
	}
	t.completionEntries = entries
	t.input.Autocomplete()
}

// writeLine appends one buffer entry to the output view.
func (t *tui) writeLine(l line) {
	if l.html != "" {
		text := strings.TrimRight(Render(l.html, t.theme.Styles.Spoiler, t.revealSpoilers), "\n")
		fmt.Fprintf(t.output, "\n%s", text)
	} else {
		fmt.Fprintf(t.output, "\n[%s]-- %s[-]", t.theme.Styles.Title, tview.Escape(l.notice))
	}
	if !t.outputMaximized {
		t.output.ScrollToEnd()
	}
}

// redrawOutput replays the active conversation's buffer.
func (t *tui) redrawOutput() {
	t.output.Clear()
	lines := t.notices
	if t.state.Active != "" {
		lines = t.buffers[t.state.Active]
	}
	for _, l := range lines {
		t.writeLine(l)
	}
	t.output.SetTitle(t.outputTitle())
}

func (t *tui) outputTitle() string {
	if t.narrowMode {
		return titleMessagesShort
	}
	for _, v := range t.state.Conversations {
		if v.ID == t.state.Active {
			return fmt.Sprintf("%s (Alt+O)", convLabel(v))
		}
	}
	return titleMessages
}

// activeIndex is the position of the active conversation in the list.
func (t *tui) activeIndex() int {
	return slices.IndexFunc(t.state.Conversations, func(v client.ConversationView) bool {
		return v.ID == t.state.Active
	})
}

// convLabel names a conversation the way the list shows it.
func convLabel(v client.ConversationView) string {
	switch v.Kind {
	case platform.KindMemo:
		if v.Board != "" {
			return fmt.Sprintf("%s (%s)", v.Name, v.Board)
		}
		return v.Name
	case platform.KindGroup:
		return "+" + v.Name
	default:
		return "@" + v.Name
	}
}

// Run starts the TUI application.
func (t *tui) Run() error {
	return t.app.Run()
}

// Stop ends the TUI application.
func (t *tui) Stop() {
	t.app.Stop()
}
