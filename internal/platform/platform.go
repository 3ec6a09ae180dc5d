// Package platform defines the chat-network neutral types the client works
// with. Backends live in sub-packages and own the network connection.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrLoginFailure is returned by Connect when the network rejects the credentials.
var ErrLoginFailure = errors.New("login failure")

// ErrUnsupported is returned when a backend cannot perform an operation.
var ErrUnsupported = errors.New("operation not supported by platform")

// Kind classifies a conversation.
type Kind int

const (
	KindDM Kind = iota
	KindGroup
	KindMemo
)

func (k Kind) String() string {
	switch k {
	case KindDM:
		return "pester"
	case KindGroup:
		return "group"
	case KindMemo:
		return "memo"
	default:
		return "unknown"
	}
}

// DefaultColor is used for users the platform reports no color for.
const DefaultColor = "rgb(0,0,0)"

// User is a chum as reported by the platform.
type User struct {
	ID    string
	Name  string
	Color string
}

// Conversation is a channel messages can be sent to.
type Conversation struct {
	ID         string
	Kind       Kind
	Name       string
	Board      string
	BoardID    string
	Recipients []User
}

// Board groups memos, i.e. a Discord guild or a Nostr relay set.
type Board struct {
	ID    string
	Name  string
	Memos []Conversation
}

// Message is an incoming chat message.
type Message struct {
	ID           string
	Conversation Conversation
	Author       User
	Content      string
	CreatedAt    time.Time
}

// Handler receives callbacks from a platform. Calls may arrive on any goroutine.
type Handler interface {
	OnReady(self User)
	OnMessage(msg Message)
	OnDisconnect(err error)
}

// Platform is a connected chat network.
type Platform interface {
	// Connect opens the session and blocks until it is ready or fails.
	Connect(ctx context.Context, h Handler) error
	Close() error
	Self() User
	Send(ctx context.Context, conversationID, content string, tts bool) error
	SetMood(ctx context.Context, mood string, invisible bool) error
	Conversations() []Conversation
	Boards() []Board
	OpenDM(ctx context.Context, userID string) (Conversation, error)
}

// MemoJoiner is implemented by platforms whose memos are joined by name
// rather than discovered.
type MemoJoiner interface {
	Join(ctx context.Context, name string) (Conversation, error)
	Leave(ctx context.Context, name string) error
	Chats() []string
}
