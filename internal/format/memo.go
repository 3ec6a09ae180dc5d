package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lessucettes/pesterchum-tui/internal/platform"
)

// ErrTimeframe is returned for memo timeframes that are not "i", "Fhh:mm" or "Phh:mm".
var ErrTimeframe = errors.New("invalid memo timeframe")

// MemoMessage formats an outgoing memo line as <c=color>XY: msg</c>.
func MemoMessage(msg string, user platform.User) string {
	return fmt.Sprintf("<c=%s>%s: %s</c>", userColor(user), Initials(user.Name, InitialsOptions{}), msg)
}

// DisplayMemo renders a memo line in the sender's color.
func DisplayMemo(msg string, user platform.User) string {
	return fmt.Sprintf(`<b><span style="color:%s;">%s</span></b><br />`, userColor(user), ColorToSpan(msg))
}

// MemoJoin announces a chum responding to, opening or leaving a memo.
// timeframe is "i" for now, or "F" / "P" followed by hh:mm for a future or
// past self.
func MemoJoin(user platform.User, timeframe, board string, part, opened bool) (string, error) {
	var action string
	switch {
	case part:
		action = "ceased responding to memo."
	case opened:
		action = fmt.Sprintf("opened memo on board %s.", EscapeHTML(board))
	default:
		action = "responded to memo."
	}

	if timeframe == "" {
		return "", ErrTimeframe
	}

	var frame, when string
	prefix := timeframe[:1]
	switch prefix {
	case "i":
		frame, prefix, when = "CURRENT", "C", "RIGHT NOW"
	case "F", "P":
		hours, minutes, err := parseOffset(timeframe[1:])
		if err != nil {
			return "", err
		}
		frame = "FUTURE"
		direction := "FROM NOW"
		if prefix == "P" {
			frame = "PAST"
			direction = "AGO"
		}
		if hours > 0 {
			when = fmt.Sprintf("%d:%02d HOURS %s", hours, minutes, direction)
		} else {
			when = fmt.Sprintf("%d MINUTES %s", minutes, direction)
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrTimeframe, timeframe)
	}

	clr := fmt.Sprintf(`<span style="color:%s">%s %s %s</span>`,
		userColor(user), frame, EscapeHTML(user.Name),
		EscapeHTML(Initials(user.Name, InitialsOptions{Bracket: true, Prefix: prefix})))

	return fmt.Sprintf(`<b>%s <span style="color:%s">%s %s</span></b><br />`, clr, systemColor, when, action), nil
}

func parseOffset(s string) (hours, minutes int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrTimeframe, s)
	}
	hours, err = strconv.Atoi(h)
	if err != nil || hours < 0 {
		return 0, 0, fmt.Errorf("%w: bad hours %q", ErrTimeframe, h)
	}
	minutes, err = strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, 0, fmt.Errorf("%w: bad minutes %q", ErrTimeframe, m)
	}
	return hours, minutes, nil
}
