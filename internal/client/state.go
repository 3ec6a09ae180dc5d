package client

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lessucettes/pesterchum-tui/internal/format"
	"github.com/lessucettes/pesterchum-tui/internal/mood"
	"github.com/lessucettes/pesterchum-tui/internal/platform"
	"github.com/lessucettes/pesterchum-tui/internal/quirks"
	"github.com/lessucettes/pesterchum-tui/internal/theme"
)

// Conversations

// openLocked adds conv to the open conversations and reports whether it was
// new. The first open conversation becomes the active one. c.mu must be held.
func (c *Client) openLocked(conv platform.Conversation, timeframe string) bool {
	if oc, ok := c.open[conv.ID]; ok {
		oc.conv = conv
		return false
	}
	c.open[conv.ID] = &openConversation{conv: conv, timeframe: timeframe}
	c.order = append(c.order, conv.ID)
	if c.active == "" {
		c.active = conv.ID
	}
	return true
}

// resolveConversation finds a conversation by ID or display name among open
// conversations, known private conversations and board memos.
func (c *Client) resolveConversation(target string) (platform.Conversation, bool) {
	name := strings.ToLower(strings.TrimPrefix(target, "#"))
	matches := func(conv platform.Conversation) bool {
		return conv.ID == target || strings.ToLower(strings.TrimPrefix(conv.Name, "#")) == name
	}

	c.mu.Lock()
	for _, id := range c.order {
		if conv := c.open[id].conv; matches(conv) {
			c.mu.Unlock()
			return conv, true
		}
	}
	c.mu.Unlock()

	for _, conv := range c.platform.Conversations() {
		if matches(conv) {
			return conv, true
		}
	}
	for _, board := range c.platform.Boards() {
		for _, memo := range board.Memos {
			if matches(memo) {
				return memo, true
			}
		}
	}
	return platform.Conversation{}, false
}

// resolveUser finds a chum seen this session by ID or name.
func (c *Client) resolveUser(target string) (platform.User, bool) {
	if u, ok := c.userContext.Get(target); ok {
		return u, true
	}
	for _, key := range c.userContext.Keys() {
		if u, ok := c.userContext.Peek(key); ok && strings.EqualFold(u.Name, target) {
			return u, true
		}
	}
	return platform.User{}, false
}

// openConversationByName handles "/pester NAME" and "/memo NAME [timeframe]":
// the target conversation opens and becomes active.
func (c *Client) openConversationByName(payload string) {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		c.emitError("Usage: /pester <chum> or /memo <memo> [i|Fhh:mm|Phh:mm]")
		return
	}
	target := fields[0]
	timeframe := "i"
	if len(fields) > 1 {
		timeframe = fields[1]
	}

	conv, ok := c.resolveConversation(target)
	if !ok {
		user, found := c.resolveUser(strings.TrimPrefix(target, "@"))
		if !found {
			c.emitError("No chum or memo called '%s'.", target)
			return
		}
		ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
		defer cancel()
		var err error
		if conv, err = c.platform.OpenDM(ctx, user.ID); err != nil {
			c.emitError("Could not pester %s: %v", user.Name, err)
			return
		}
		if len(conv.Recipients) == 0 {
			conv.Recipients = []platform.User{user}
		}
	}

	var notice string
	if conv.Kind == platform.KindMemo {
		c.mu.Lock()
		self := c.self
		c.mu.Unlock()
		var err error
		if notice, err = format.MemoJoin(self, timeframe, conv.Board, false, false); err != nil {
			c.emitError("%v", err)
			return
		}
	}

	c.mu.Lock()
	opened := c.openLocked(conv, timeframe)
	c.active = conv.ID
	if conv.BoardID != "" {
		c.openBoards[conv.BoardID] = true
	}
	self := c.self
	f := c.formatter
	c.mu.Unlock()

	if opened {
		if conv.Kind != platform.KindMemo {
			notice = f.BeginMessage(self, chumOf(conv))
		}
		c.emit(DisplayEvent{Type: "NEW_MESSAGE", Conversation: conv.ID, HTML: notice})
	}
	c.sendStateUpdate()
}

// chumOf returns the user a private conversation is with.
func chumOf(conv platform.Conversation) platform.User {
	if len(conv.Recipients) == 1 {
		return conv.Recipients[0]
	}
	return platform.User{ID: conv.ID, Name: conv.Name, Color: platform.DefaultColor}
}

// closeConversation closes the named conversation, or the active one.
func (c *Client) closeConversation(payload string) {
	c.mu.Lock()
	id := c.active
	if target := strings.TrimSpace(payload); target != "" {
		id = ""
		for _, oid := range c.order {
			conv := c.open[oid].conv
			if oid == target || strings.EqualFold(strings.TrimPrefix(conv.Name, "#"), strings.TrimPrefix(target, "#")) {
				id = oid
				break
			}
		}
	}
	oc, ok := c.open[id]
	if !ok {
		c.mu.Unlock()
		c.emitError("No open conversation '%s'.", payload)
		return
	}
	delete(c.open, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	if c.active == id {
		c.active = ""
		if len(c.order) > 0 {
			c.active = c.order[len(c.order)-1]
		}
	}
	self := c.self
	f := c.formatter
	c.mu.Unlock()

	var notice string
	if oc.conv.Kind == platform.KindMemo {
		notice, _ = format.MemoJoin(self, oc.timeframe, oc.conv.Board, true, false)
	} else {
		notice = f.CeaseMessage(self, chumOf(oc.conv))
	}
	if notice != "" {
		c.emit(DisplayEvent{Type: "NEW_MESSAGE", Conversation: id, HTML: notice})
	}
	c.sendStateUpdate()
}

// Boards

func (c *Client) findBoard(target string) (platform.Board, bool) {
	for _, b := range c.platform.Boards() {
		if b.ID == target || strings.EqualFold(b.Name, target) {
			return b, true
		}
	}
	return platform.Board{}, false
}

func (c *Client) openBoard(payload string) {
	target := strings.TrimSpace(payload)
	b, ok := c.findBoard(target)
	if !ok {
		c.emitError("No board called '%s'.", target)
		return
	}
	c.mu.Lock()
	c.openBoards[b.ID] = true
	c.mu.Unlock()

	names := make([]string, 0, len(b.Memos))
	for _, m := range b.Memos {
		names = append(names, m.Name)
	}
	c.emitInfo("Opened board %s. Memos: %s", b.Name, strings.Join(names, ", "))
	c.sendStateUpdate()
}

func (c *Client) closeBoard(payload string) {
	target := strings.TrimSpace(payload)
	b, ok := c.findBoard(target)
	if !ok {
		c.emitError("No board called '%s'.", target)
		return
	}
	c.mu.Lock()
	delete(c.openBoards, b.ID)
	c.mu.Unlock()
	c.emitInfo("Closed board %s.", b.Name)
	c.sendStateUpdate()
}

// joinMemo adds a memo on platforms where memos are joined by name.
func (c *Client) joinMemo(payload string) {
	joiner, ok := c.platform.(platform.MemoJoiner)
	if !ok {
		c.emitError("Memos on this platform are chosen from its boards; use /board.")
		return
	}
	for _, name := range strings.Fields(payload) {
		ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
		conv, err := joiner.Join(ctx, name)
		cancel()
		if err != nil {
			c.emitError("Could not join %s: %v", name, err)
			continue
		}
		c.openConversationByName(conv.ID)
	}
	c.config.Nostr.Chats = joiner.Chats()
	c.saveConfig()
}

func (c *Client) leaveMemo(payload string) {
	joiner, ok := c.platform.(platform.MemoJoiner)
	if !ok {
		c.emitError("Memos on this platform cannot be left; use /close.")
		return
	}
	name := strings.TrimSpace(payload)
	c.mu.Lock()
	if name == "" {
		name = c.active
	}
	_, isOpen := c.open[name]
	c.mu.Unlock()

	if isOpen {
		c.closeConversation(name)
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()
	if err := joiner.Leave(ctx, name); err != nil {
		c.emitError("Could not leave %s: %v", name, err)
		return
	}
	c.config.Nostr.Chats = joiner.Chats()
	c.saveConfig()
	c.sendStateUpdate()
}

// Mood, idle and theme

// changeMood updates presence, announces the mood in every open conversation
// and leaves idle.
func (c *Client) changeMood(payload string) {
	m, err := mood.Parse(payload)
	if err != nil {
		c.emitError("%v. Moods: %s", err, strings.Join(mood.Names(), ", "))
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()
	if err := c.platform.SetMood(ctx, string(m), m.Offline()); err != nil {
		c.logger.Warn("Could not update presence", zap.Error(err))
		c.emitError("Could not update presence: %v", err)
	}

	c.mu.Lock()
	c.mood = m
	c.idle = false
	self := c.self
	f := c.formatter
	ids := slices.Clone(c.order)
	c.mu.Unlock()
	c.config.Mood = string(m)

	line := f.MoodMessage(string(m), self)
	for _, id := range ids {
		c.emit(DisplayEvent{Type: "NEW_MESSAGE", Conversation: id, HTML: line})
	}
	c.sendStateUpdate()
}

func (c *Client) toggleIdle() {
	c.mu.Lock()
	c.idle = !c.idle
	idle := c.idle
	self := c.self
	f := c.formatter
	ids := slices.Clone(c.order)
	c.mu.Unlock()

	if idle {
		line := f.MeMessage("/me is now an idle chum!", self, true)
		for _, id := range ids {
			c.emit(DisplayEvent{Type: "NEW_MESSAGE", Conversation: id, HTML: line})
		}
	}
	c.emit(DisplayEvent{Type: "STATUS", Content: fmt.Sprintf("Idle: %t", idle)})
	c.sendStateUpdate()
}

// changeTheme switches to a registered theme and persists the choice.
func (c *Client) changeTheme(payload string) {
	name := strings.TrimSpace(payload)
	th, err := theme.Get(name)
	if err != nil {
		c.emitError("%v. Themes: %s", err, strings.Join(theme.Names(), ", "))
		return
	}

	c.mu.Lock()
	c.theme = th
	c.formatter = c.newFormatter(th)
	c.mu.Unlock()

	c.config.Theme = th.Name
	c.saveConfig()
	c.emit(DisplayEvent{Type: "THEME_UPDATE", Payload: th})
	c.sendStateUpdate()
}

func (c *Client) listThemes() {
	c.mu.Lock()
	current := c.theme.Name
	c.mu.Unlock()
	var b strings.Builder
	b.WriteString("THEMES:")
	for _, name := range theme.Names() {
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Fprintf(&b, "\n%s %s", marker, name)
	}
	c.emitInfo("%s", b.String())
}

func (c *Client) listMoods() {
	c.emitInfo("MOODS: %s", strings.Join(mood.Names(), ", "))
}

// Quirks

func (c *Client) quirkStore() *quirks.Store {
	c.mu.Lock()
	store := c.quirks
	c.mu.Unlock()
	if store == nil {
		c.emitError("Quirks are not loaded until you are logged in.")
	}
	return store
}

func (c *Client) addQuirk(payload string) {
	store := c.quirkStore()
	if store == nil {
		return
	}
	rule, err := quirks.ParseCommand(payload)
	if err != nil {
		c.emitError("Could not add quirk: %v", err)
		return
	}
	store.Append(rule)
	c.emitInfo("Added quirk %d: %s", len(store.Rules()), rule)
}

func (c *Client) listQuirks() {
	store := c.quirkStore()
	if store == nil {
		return
	}
	rules := store.Rules()
	if len(rules) == 0 {
		c.emitInfo("You have no quirks.")
		return
	}
	var b strings.Builder
	b.WriteString("QUIRKS (applied in order):")
	for i, r := range rules {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, r)
	}
	c.emitInfo("%s", b.String())
}

func (c *Client) removeQuirk(payload string) {
	store := c.quirkStore()
	if store == nil {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		c.emitError("Usage: /quirk del <number>")
		return
	}
	removed, err := store.Remove(n - 1)
	if err != nil {
		c.emitError("%v", err)
		return
	}
	c.emitInfo("Removed quirk: %s", removed)
}

func (c *Client) testQuirks(payload string) {
	store := c.quirkStore()
	if store == nil {
		return
	}
	out, err := store.Apply(payload)
	if err != nil {
		c.emitError("Quirks failed: %v", err)
		return
	}
	c.emitInfo("Quirked: %s", out)
}

func (c *Client) saveQuirks() {
	store := c.quirkStore()
	if store == nil {
		return
	}
	if err := store.Save(); err != nil {
		c.emitError("Could not save quirks: %v", err)
		return
	}
	c.emitInfo("Quirks saved.")
}

// Listings and help

func (c *Client) listConversations() {
	state := c.buildState()
	var b strings.Builder
	b.WriteString("OPEN:")
	for _, v := range state.Conversations {
		marker := " "
		if v.ID == state.Active {
			marker = "*"
		}
		fmt.Fprintf(&b, "\n%s %s (%s)", marker, v.Name, v.Kind)
	}
	if len(state.Chums) > 0 {
		b.WriteString("\nCHUMS:")
		for _, v := range state.Chums {
			fmt.Fprintf(&b, "\n  %s (%s)", v.Name, v.Kind)
		}
	}
	if len(state.Boards) > 0 {
		b.WriteString("\nBOARDS:")
		for _, bv := range state.Boards {
			status := "closed"
			if bv.Open {
				status = "open"
			}
			fmt.Fprintf(&b, "\n  %s (%s, %d memos)", bv.Name, status, len(bv.Memos))
		}
	}
	c.emitInfo("%s", b.String())
}

// handleCompletion answers with chum names starting with prefix.
func (c *Client) handleCompletion(prefix string) {
	prefix = strings.ToLower(strings.TrimPrefix(prefix, "@"))
	seen := make(map[string]struct{})
	var entries []string
	add := func(name string) {
		if name == "" || !strings.HasPrefix(strings.ToLower(name), prefix) {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		entries = append(entries, name)
	}

	for _, key := range c.userContext.Keys() {
		if u, ok := c.userContext.Peek(key); ok {
			add(u.Name)
		}
	}
	for _, conv := range c.platform.Conversations() {
		add(conv.Name)
	}

	sort.Strings(entries)
	if len(entries) > maxCompletions {
		entries = entries[:maxCompletions]
	}
	c.emit(DisplayEvent{Type: "COMPLETION_RESULT", Payload: entries})
}

func (c *Client) getHelp() {
	helpText := "COMMANDS:\n" +
		"* /pester <chum> - Opens a private conversation and makes it active. (Alias: /p)\n" +
		"* /memo <memo> [i|Fhh:mm|Phh:mm] - Opens a memo with a timeframe. (Alias: /m)\n" +
		"* /close [name] - Ceases pestering or leaves the memo; the active one without a name. (Alias: /c)\n" +
		"* /board <board> - Opens a board so its memos are shown. (Alias: /b)\n" +
		"* /unboard <board> - Closes a board. (Alias: /ub)\n" +
		"* /join <chat>... - Joins named or geohash memos where the platform supports it. (Alias: /j)\n" +
		"* /leave [chat] - Leaves a joined memo.\n" +
		"* /mood [mood] - Changes your mood. Without a mood, lists the moods.\n" +
		"* /idle - Toggles idle.\n" +
		"* /theme [name] - Changes the theme. Without a name, lists the themes.\n" +
		"* /quirk add <prefix|suffix|replace|regex|random> <args...> - Adds a quirk.\n" +
		"* /quirk list | del <n> | test <text> | save - Manages your quirks.\n" +
		"* /list - Lists conversations, chums and boards. (Alias: /l)\n" +
		"* /me <action>, /ooc <text>, /tts <text> - Message forms.\n" +
		"* /quit - Exits the application. (Alias: /q)"

	c.emitInfo("%s", helpText)
}

// Core State Primitives

func (c *Client) buildState() StateUpdate {
	convs := c.platform.Conversations()
	boards := c.platform.Boards()

	c.mu.Lock()
	defer c.mu.Unlock()

	state := StateUpdate{
		Active:    c.active,
		Nick:      c.self.Name,
		Mood:      string(c.mood),
		Idle:      c.idle,
		Theme:     c.theme.Name,
		Platform:  c.config.Platform,
		Connected: c.connected,
	}
	for _, id := range c.order {
		state.Conversations = append(state.Conversations, viewOf(c.open[id].conv))
	}
	for _, conv := range convs {
		if _, isOpen := c.open[conv.ID]; !isOpen {
			state.Chums = append(state.Chums, viewOf(conv))
		}
	}
	for _, b := range boards {
		bv := BoardView{ID: b.ID, Name: b.Name, Open: c.openBoards[b.ID]}
		for _, m := range b.Memos {
			bv.Memos = append(bv.Memos, viewOf(m))
		}
		state.Boards = append(state.Boards, bv)
	}
	return state
}

func (c *Client) sendStateUpdate() {
	c.emit(DisplayEvent{Type: "STATE_UPDATE", Payload: c.buildState()})
}

func (c *Client) saveConfig() {
	if err := c.config.Save(); err != nil {
		c.logger.Error("Error saving config", zap.Error(err))
		c.emitError("Failed to save configuration: %v", err)
	}
}
