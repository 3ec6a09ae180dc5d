// Package discord is the Discord backend built on discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lessucettes/pesterchum-tui/internal/mood"
	"github.com/lessucettes/pesterchum-tui/internal/platform"
)

// closeAuthenticationFailed is the gateway close code for a rejected token.
const closeAuthenticationFailed = 4004

const intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMembers |
	discordgo.IntentGuildMessages |
	discordgo.IntentDirectMessages |
	discordgo.IntentMessageContent

// Options configure a Backend.
type Options struct {
	Token  string
	Bot    bool
	Logger *zap.Logger
}

// Backend implements platform.Platform over a discordgo session.
type Backend struct {
	opts    Options
	logger  *zap.Logger
	session *discordgo.Session

	mu       sync.RWMutex
	self     platform.User
	handler  platform.Handler
	removers []func()
}

var _ platform.Platform = (*Backend)(nil)

// New validates the options; the session is created by Connect.
func New(opts Options) (*Backend, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("discord token is empty: %w", platform.ErrLoginFailure)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	} else {
		redirectLogger(logger)
	}
	return &Backend{opts: opts, logger: logger.Named("discord")}, nil
}

// redirectLogger routes discordgo's own log lines into logger.
func redirectLogger(logger *zap.Logger) {
	l := logger.Named("discordgo")
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		msg := fmt.Sprintf(format, a...)
		switch msgL {
		case discordgo.LogError:
			l.Error(msg)
		case discordgo.LogWarning:
			l.Warn(msg)
		case discordgo.LogInformational:
			l.Info(msg)
		default:
			l.Debug(msg)
		}
	}
}

// Connect opens the gateway and blocks until READY arrives.
func (b *Backend) Connect(ctx context.Context, h platform.Handler) error {
	token := strings.TrimSpace(b.opts.Token)
	if b.opts.Bot && !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}

	s, err := discordgo.New(token)
	if err != nil {
		return fmt.Errorf("could not create discord session: %w", err)
	}
	s.Identify.Intents = intents
	s.LogLevel = discordgo.LogWarning
	s.State.MaxMessageCount = 0

	ready := make(chan struct{})
	var readyOnce sync.Once

	b.mu.Lock()
	b.handler = h
	b.removers = []func(){
		s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
			self := platform.User{ID: r.User.ID, Name: displayName(r.User, nil), Color: platform.DefaultColor}
			b.mu.Lock()
			b.self = self
			b.mu.Unlock()
			readyOnce.Do(func() { close(ready) })
			h.OnReady(self)
		}),
		s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			b.onMessageCreate(s, m)
		}),
		s.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
			h.OnDisconnect(errors.New("discord gateway disconnected"))
		}),
	}
	b.session = s
	b.mu.Unlock()

	if err := s.Open(); err != nil {
		b.teardown()
		if isLoginFailure(err) {
			return fmt.Errorf("%w: %v", platform.ErrLoginFailure, err)
		}
		return fmt.Errorf("could not open discord gateway: %w", err)
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		b.teardown()
		return ctx.Err()
	}
}

// teardown closes the session and drops its handlers.
func (b *Backend) teardown() error {
	b.mu.Lock()
	s := b.session
	removers := b.removers
	b.session = nil
	b.removers = nil
	b.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	if s == nil {
		return nil
	}
	return s.Close()
}

func (b *Backend) Close() error {
	return b.teardown()
}

func (b *Backend) Self() platform.User {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.self
}

func (b *Backend) getSession() (*discordgo.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return nil, errors.New("discord session is not connected")
	}
	return b.session, nil
}

func (b *Backend) Send(ctx context.Context, conversationID, content string, tts bool) error {
	s, err := b.getSession()
	if err != nil {
		return err
	}
	_, err = s.ChannelMessageSendComplex(conversationID, &discordgo.MessageSend{
		Content: content,
		TTS:     tts,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("could not send message: %w", err)
	}
	return nil
}

// SetMood advertises the mood as the playing status, or goes invisible.
func (b *Backend) SetMood(_ context.Context, name string, invisible bool) error {
	s, err := b.getSession()
	if err != nil {
		return err
	}
	if err := s.UpdateStatusComplex(presence(name, invisible)); err != nil {
		return fmt.Errorf("could not update presence: %w", err)
	}
	return nil
}

func presence(name string, invisible bool) discordgo.UpdateStatusData {
	data := discordgo.UpdateStatusData{Status: string(discordgo.StatusOnline)}
	if invisible {
		data.Status = string(discordgo.StatusInvisible)
	} else if name != "" {
		data.Activities = []*discordgo.Activity{{
			Name: mood.Mood(name).Status(),
			Type: discordgo.ActivityTypeGame,
		}}
	}
	return data
}

// Conversations lists the private channels the session knows about.
func (b *Backend) Conversations() []platform.Conversation {
	s, err := b.getSession()
	if err != nil {
		return nil
	}
	selfID := b.Self().ID

	s.State.RLock()
	defer s.State.RUnlock()
	convs := make([]platform.Conversation, 0, len(s.State.PrivateChannels))
	for _, ch := range s.State.PrivateChannels {
		convs = append(convs, conversationFromChannel(ch, nil, selfID))
	}
	return convs
}

// Boards lists the guilds with their text channels as memos.
func (b *Backend) Boards() []platform.Board {
	s, err := b.getSession()
	if err != nil {
		return nil
	}
	s.State.RLock()
	defer s.State.RUnlock()

	boards := make([]platform.Board, 0, len(s.State.Guilds))
	for _, g := range s.State.Guilds {
		board := platform.Board{ID: g.ID, Name: g.Name}
		for _, ch := range g.Channels {
			if ch.Type != discordgo.ChannelTypeGuildText {
				continue
			}
			board.Memos = append(board.Memos, conversationFromChannel(ch, g, ""))
		}
		boards = append(boards, board)
	}
	return boards
}

func (b *Backend) OpenDM(ctx context.Context, userID string) (platform.Conversation, error) {
	s, err := b.getSession()
	if err != nil {
		return platform.Conversation{}, err
	}
	ch, err := s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Conversation{}, fmt.Errorf("could not open private channel: %w", err)
	}
	return conversationFromChannel(ch, nil, b.Self().ID), nil
}

func (b *Backend) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	ch, err := s.State.Channel(m.ChannelID)
	if err != nil {
		if ch, err = s.Channel(m.ChannelID); err != nil {
			b.logger.Warn("Message from unknown channel", zap.String("channel", m.ChannelID), zap.Error(err))
			return
		}
	}

	var guild *discordgo.Guild
	var member *discordgo.Member
	if m.GuildID != "" {
		guild, _ = s.State.Guild(m.GuildID)
		member = m.Member
		if member == nil {
			member, _ = s.State.Member(m.GuildID, m.Author.ID)
		}
	}

	color := platform.DefaultColor
	if m.GuildID != "" {
		color = colorString(s.State.MessageColor(m.Message))
	}

	msg := platform.Message{
		ID:           m.ID,
		Conversation: conversationFromChannel(ch, guild, b.Self().ID),
		Author: platform.User{
			ID:    m.Author.ID,
			Name:  displayName(m.Author, member),
			Color: color,
		},
		Content:   m.ContentWithMentionsReplaced(),
		CreatedAt: m.Timestamp,
	}

	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h != nil {
		h.OnMessage(msg)
	}
}

// displayName prefers the guild nickname, then the global display name.
func displayName(u *discordgo.User, member *discordgo.Member) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// colorString renders a Discord integer color; zero means no role color.
func colorString(c int) string {
	if c == 0 {
		return platform.DefaultColor
	}
	return fmt.Sprintf("rgb(%d,%d,%d)", (c>>16)&0xff, (c>>8)&0xff, c&0xff)
}

func conversationFromChannel(ch *discordgo.Channel, guild *discordgo.Guild, selfID string) platform.Conversation {
	conv := platform.Conversation{ID: ch.ID, Name: ch.Name}
	switch ch.Type {
	case discordgo.ChannelTypeDM, discordgo.ChannelTypeGroupDM:
		conv.Kind = platform.KindDM
		if ch.Type == discordgo.ChannelTypeGroupDM {
			conv.Kind = platform.KindGroup
		}
		var names []string
		for _, u := range ch.Recipients {
			if u.ID == selfID {
				continue
			}
			conv.Recipients = append(conv.Recipients, platform.User{
				ID:    u.ID,
				Name:  displayName(u, nil),
				Color: platform.DefaultColor,
			})
			names = append(names, displayName(u, nil))
		}
		if conv.Name == "" {
			conv.Name = strings.Join(names, ", ")
		}
	default:
		conv.Kind = platform.KindMemo
		conv.Name = "#" + ch.Name
		conv.BoardID = ch.GuildID
		if guild != nil {
			conv.Board = guild.Name
			conv.BoardID = guild.ID
		}
	}
	return conv
}

// isLoginFailure recognises a rejected token from either the gateway or REST.
func isLoginFailure(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == closeAuthenticationFailed {
		return true
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusUnauthorized {
		return true
	}
	return false
}
