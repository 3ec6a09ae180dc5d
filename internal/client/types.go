package client

import (
	"time"

	"github.com/lessucettes/pesterchum-tui/internal/platform"
)

// Constants for the client's operation.
const (
	seenCacheSize        = 8192
	userContextCacheSize = 4096
	MaxMsgLen            = 2000
	maxCompletions       = 10
	sendInterval         = 250 * time.Millisecond
	sendBurst            = 5
	sendTimeout          = 15 * time.Second
	requestTimeout       = 10 * time.Second
	initialLoginBackoff  = time.Second
	maxLoginBackoff      = 2 * time.Minute
)

// UserAction represents an action initiated by the user from the TUI.
type UserAction struct {
	Type    string
	Payload string
}

// DisplayEvent represents an event sent from the client to the TUI for display.
type DisplayEvent struct {
	Type         string
	Conversation string
	HTML         string
	Content      string
	IsOwnMessage bool
	Payload      any
}

// ConversationView is a conversation as the TUI lists it.
type ConversationView struct {
	ID    string
	Name  string
	Kind  platform.Kind
	Board string
}

// BoardView is a board with its memos and whether it is open.
type BoardView struct {
	ID    string
	Name  string
	Open  bool
	Memos []ConversationView
}

// StateUpdate is a specific payload for a DisplayEvent to update the TUI's state.
type StateUpdate struct {
	Conversations []ConversationView
	Active        string
	Chums         []ConversationView
	Boards        []BoardView
	Nick          string
	Mood          string
	Idle          bool
	Theme         string
	Platform      string
	Connected     bool
}

// openConversation is a conversation with a window in the TUI.
type openConversation struct {
	conv      platform.Conversation
	timeframe string
}

func viewOf(conv platform.Conversation) ConversationView {
	return ConversationView{ID: conv.ID, Name: conv.Name, Kind: conv.Kind, Board: conv.Board}
}
