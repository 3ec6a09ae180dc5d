package client

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/lessucettes/pesterchum-tui/internal/format"
	"github.com/lessucettes/pesterchum-tui/internal/platform"
	"github.com/lessucettes/pesterchum-tui/internal/quirks"
)

var errEmptyMessage = errors.New("empty message")

// OnReady records the session's own user and loads that user's quirks. A
// repeated Ready for the same user keeps the rules already in memory.
func (c *Client) OnReady(self platform.User) {
	c.mu.Lock()
	prev := c.quirks
	c.mu.Unlock()
	loaded := prev != nil && prev.UserID() == self.ID

	var store *quirks.Store
	if !loaded {
		if prev != nil {
			if err := prev.Save(); err != nil {
				c.logger.Error("Could not save quirks", zap.Error(err))
			}
		}
		var err error
		if store, err = quirks.Open(c.config.QuirksPath(), self.ID); err != nil {
			c.logger.Error("Could not load quirks", zap.Error(err))
			c.emitError("Could not load quirks: %v", err)
		}
	}

	c.mu.Lock()
	c.self = self
	c.connected = true
	if !loaded {
		c.quirks = store
	}
	m := c.mood
	c.mu.Unlock()

	c.logger.Info("Ready", zap.String("nick", self.Name), zap.String("id", self.ID))
	c.emit(DisplayEvent{Type: "STATUS", Content: "Logged in as " + self.Name})

	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()
	if err := c.platform.SetMood(ctx, string(m), m.Offline()); err != nil {
		c.logger.Warn("Could not restore mood", zap.Error(err))
	}
	c.sendStateUpdate()
}

// OnDisconnect is informational; platforms reconnect on their own.
func (c *Client) OnDisconnect(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.logger.Warn("Disconnected", zap.Error(err))
	c.emit(DisplayEvent{Type: "STATUS", Content: "Disconnected: " + err.Error()})
	c.sendStateUpdate()
}

// OnMessage formats an incoming message for its conversation. Private
// conversations open on their first message; memo messages are shown only
// while their board is open.
func (c *Client) OnMessage(msg platform.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Dropped message that could not be formatted",
				zap.String("id", msg.ID), zap.Any("panic", r))
		}
	}()

	if c.markSeen(msg.ID) {
		return
	}
	c.userContext.Add(msg.Author.ID, msg.Author)

	conv := msg.Conversation
	content := meFromWire(msg.Content)

	c.mu.Lock()
	if conv.Kind == platform.KindMemo && !c.openBoards[conv.BoardID] {
		c.mu.Unlock()
		return
	}
	opened := c.openLocked(conv, "i")
	own := msg.Author.ID == c.self.ID
	f := c.formatter
	c.mu.Unlock()

	author := msg.Author
	var html string
	if conv.Kind == platform.KindMemo && strings.HasPrefix(content, "<c=") {
		html = format.DisplayMemo(content, author)
	} else {
		html = f.DisplayMessage(content, msg.CreatedAt, &author)
	}

	c.emit(DisplayEvent{
		Type:         "NEW_MESSAGE",
		Conversation: conv.ID,
		HTML:         html,
		Content:      content,
		IsOwnMessage: own,
	})
	if opened {
		c.sendStateUpdate()
	}
}

// markSeen reports whether id was already handled and records it otherwise.
func (c *Client) markSeen(id string) bool {
	if id == "" {
		return false
	}
	c.seenCacheMu.Lock()
	defer c.seenCacheMu.Unlock()
	if c.seenCache.Contains(id) {
		return true
	}
	c.seenCache.Add(id, true)
	return false
}

// meFromWire turns an underscore-wrapped action ("_waves_", "_'s cat_") back
// into its /me form.
func meFromWire(content string) string {
	if len(content) < 3 || !strings.HasPrefix(content, "_") || !strings.HasSuffix(content, "_") {
		return content
	}
	inner := content[1 : len(content)-1]
	if strings.HasPrefix(inner, "'") || strings.HasPrefix(inner, " ") {
		return "/me" + inner
	}
	return "/me " + inner
}

// prepareOutgoing applies the send-time commands and the quirks to text.
// /tts requests speech, /ooc wraps the text in double parentheses without
// quirks, and /me becomes an underscore-wrapped action whose predicate is
// quirked. A quirk failure leaves the text unquirked and is returned along
// with it.
func prepareOutgoing(text string, quirk func(string) (string, error)) (content string, tts bool, err error) {
	msg := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(msg, "/tts "); ok {
		msg = strings.TrimSpace(rest)
		tts = true
	}
	if msg == "" {
		return "", tts, errEmptyMessage
	}
	if quirk == nil {
		quirk = func(s string) (string, error) { return s, nil }
	}

	if rest, ok := strings.CutPrefix(msg, "/ooc"); ok {
		return "((" + strings.TrimSpace(rest) + "))", tts, nil
	}

	if rest, ok := strings.CutPrefix(msg, "/me"); ok {
		suffix, predicate := rest, ""
		if i := strings.IndexByte(rest, ' '); i >= 0 {
			suffix, predicate = rest[:i], strings.TrimSpace(rest[i+1:])
		}
		body := suffix
		if predicate != "" {
			predicate, err = quirk(predicate)
			if body != "" {
				body += " "
			}
			body += predicate
		}
		if body == "" {
			return "", tts, errEmptyMessage
		}
		return "_" + body + "_", tts, err
	}

	content, err = quirk(msg)
	return content, tts, err
}

// sendMessage sends text to the active conversation without blocking the
// action loop; delivery failures are reported as errors.
func (c *Client) sendMessage(text string) {
	c.mu.Lock()
	oc := c.open[c.active]
	store := c.quirks
	self := c.self
	c.mu.Unlock()

	if oc == nil {
		c.emitError("No active conversation. Open one with /pester or /memo.")
		return
	}

	var quirk func(string) (string, error)
	if store != nil {
		quirk = store.Apply
	}
	content, tts, err := prepareOutgoing(text, quirk)
	if errors.Is(err, errEmptyMessage) {
		return
	}
	if err != nil {
		c.logger.Warn("Quirks failed, sending unquirked", zap.Error(err))
		c.emitError("Quirks failed: %v", err)
	}
	if oc.conv.Kind == platform.KindMemo && c.config.Conversations.MemoColorTags {
		content = format.MemoMessage(content, self)
	}

	convID := oc.conv.ID
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.limiter.Wait(c.ctx); err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
		defer cancel()
		if err := c.platform.Send(ctx, convID, content, tts); err != nil {
			c.logger.Warn("Send failed", zap.String("conversation", convID), zap.Error(err))
			c.emitError("Could not send message: %v", err)
		}
	}()
}
