package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// updateConvList refreshes the conversation list, marking the active one.
func (t *tui) updateConvList() {
	currentItem := t.convList.GetCurrentItem()
	t.convList.Clear()
	if len(t.state.Conversations) == 0 {
		return
	}

	active := t.activeIndex()
	for i, v := range t.state.Conversations {
		prefix := " "
		if i == active {
			prefix = "▶"
		}
		t.convList.AddItem(fmt.Sprintf(" %s %s", prefix, tview.Escape(convLabel(v))), "", 0, nil)
	}

	if currentItem >= len(t.state.Conversations) {
		currentItem = len(t.state.Conversations) - 1
	}
	if currentItem < 0 {
		currentItem = 0
	}
	t.convList.SetCurrentItem(currentItem)
}

// updateDetailsView shows the own status, the chumroll and the boards.
func (t *tui) updateDetailsView() {
	s := t.theme.Styles
	t.detailsView.Clear()

	var b strings.Builder
	status := "offline"
	statusColor := s.LogError
	if t.state.Connected {
		status = "online"
		statusColor = s.Title
	}
	fmt.Fprintf(&b, "[%s]●[-] %s on %s\n", statusColor, status, orDash(t.state.Platform))
	fmt.Fprintf(&b, "[%s]Mood:[-] %s", s.LogWarn, strings.ToUpper(orDash(t.state.Mood)))
	if t.state.Idle {
		b.WriteString(" (idle)")
	}
	fmt.Fprintf(&b, "\n[%s]Theme:[-] %s\n", s.LogWarn, tview.Escape(t.theme.Name))

	if len(t.state.Chums) > 0 {
		fmt.Fprintf(&b, "\n[%s]Chumroll:[-]\n", s.LogWarn)
		for _, v := range t.state.Chums {
			fmt.Fprintf(&b, " %s\n", tview.Escape(convLabel(v)))
		}
	}

	if len(t.state.Boards) > 0 {
		fmt.Fprintf(&b, "\n[%s]Boards:[-]\n", s.LogWarn)
		for _, bv := range t.state.Boards {
			marker := fmt.Sprintf("[%s]○[-]", s.LogInfo)
			if bv.Open {
				marker = fmt.Sprintf("[%s]●[-]", s.Title)
			}
			fmt.Fprintf(&b, " %s %s\n", marker, tview.Escape(bv.Name))
			if bv.Open {
				for _, m := range bv.Memos {
					fmt.Fprintf(&b, "    %s\n", tview.Escape(m.Name))
				}
			}
		}
	}
	fmt.Fprint(t.detailsView, b.String())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// updateInputLabel sets the prompt label for the input field, including the
// user's handle and the active conversation.
func (t *tui) updateInputLabel() {
	if t.narrowMode {
		t.input.SetLabel("> ")
		return
	}
	label := "> "
	if t.state.Nick != "" {
		label = t.state.Nick + " > "
	}
	if i := t.activeIndex(); i >= 0 {
		label = fmt.Sprintf("%s → %s > ", orDash(t.state.Nick), convLabel(t.state.Conversations[i]))
	}
	t.input.SetLabel(label)
}

// updateFocusBorders changes widget border colors to highlight the focused element.
func (t *tui) updateFocusBorders() {
	currentFocus := t.app.GetFocus()
	unfocusedColor := tview.Styles.BorderColor
	focusedColor := tview.Styles.TitleColor

	for _, p := range []interface {
		tview.Primitive
		SetBorderColor(tcell.Color) *tview.Box
	}{t.logs, t.convList, t.detailsView, t.output, t.input} {
		if p == currentFocus {
			p.SetBorderColor(focusedColor)
		} else {
			p.SetBorderColor(unfocusedColor)
		}
	}
}

// updateHints displays context-sensitive hints for the user.
func (t *tui) updateHints() {
	var hintText string
	highlight := t.theme.Styles.Title
	baseHints := fmt.Sprintf("[%[1]s]Alt+...[-]: Focus | [%[1]s]Alt+S[-]: Spoilers | [%[1]s]Ctrl+C[-]: Quit", highlight)

	if t.logsMaximized || t.outputMaximized {
		hintText = fmt.Sprintf("[%[1]s]`[-]: Restore | [%[1]s]↑/↓[-]: Scroll | [%[1]s]Ctrl+C[-]: Quit", highlight)
	} else {
		switch t.app.GetFocus() {
		case t.input:
			hintText = fmt.Sprintf("[%[1]s]Enter[-]: Send | [%[1]s]/help[-]: Commands | [%[1]s]Tab/Shift+Tab[-]: Cycle Focus | %s", highlight, baseHints)
		case t.output:
			hintText = fmt.Sprintf("[%[1]s]`[-]: Maximize | [%[1]s]↑/↓[-]: Scroll | [%[1]s]Tab/Shift+Tab[-]: Cycle Focus | %s", highlight, baseHints)
		case t.detailsView:
			hintText = fmt.Sprintf("[%[1]s]↑/↓[-]: Scroll | [%[1]s]Tab/Shift+Tab[-]: Cycle Focus | %s", highlight, baseHints)
		case t.convList:
			hintText = fmt.Sprintf("[%[1]s]Enter[-]: Activate | [%[1]s]Del[-]: Close | [%[1]s]Tab/Shift+Tab[-]: Cycle Focus | %s", highlight, baseHints)
		case t.logs:
			hintText = fmt.Sprintf("[%[1]s]`[-]: Maximize | [%[1]s]Tab/Shift+Tab[-]: Cycle Focus | %s", highlight, baseHints)
		default:
			hintText = baseHints
		}
	}
	t.hints.SetText(hintText)
}
