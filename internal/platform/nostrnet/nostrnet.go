// Package nostrnet is the Nostr backend. Named chats and geohash chats are
// memos; each run signs with the identity from the configuration.
package nostrnet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"go.uber.org/zap"

	"github.com/lessucettes/pesterchum-tui/internal/platform"
)

const (
	defaultRelayCount  = 5
	geochatKind        = 20000
	namedChatKind      = 23333
	seenCacheSize      = 8192
	MaxMsgLen          = 2000
	maxChatNameLen     = 12
	orderingFlushDelay = 200 * time.Millisecond
	perStreamBufferMax = 256
	connectTimeout     = 5 * time.Second
	clientTag          = "pesterchum-tui"
)

// Board identifiers. Every chat is a memo on one of the two boards.
const (
	BoardNamed   = "named"
	BoardGeohash = "geohash"
)

var ErrNoRelays = errors.New("no relay reachable")

// defaultNamedChatRelays serves named chats and geohash chats without a
// usable relay list.
var defaultNamedChatRelays = []string{
	"wss://relay.damus.io",
	"wss://relay.primal.net",
	"wss://offchain.pub",
	"wss://adre.su",
}

// Options configure a Backend.
type Options struct {
	PrivateKey string
	Nick       string
	Chats      []string
	CacheDir   string
	Logger     *zap.Logger
}

type orderItem struct {
	msg       platform.Message
	createdAt int64
	id        string
}

// Backend implements platform.Platform over Nostr relays.
type Backend struct {
	sk     string
	pk     string
	nick   string
	logger *zap.Logger
	geo    *geoRelays
	online atomic.Bool

	mu      sync.RWMutex
	chats   []string
	mood    string
	handler platform.Handler

	relays   map[string]*managedRelay
	relaysMu sync.Mutex

	seenCache   *lru.Cache[string, bool]
	seenCacheMu sync.Mutex

	orderMu     sync.Mutex
	orderBuf    map[string][]orderItem
	orderTimers map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	_ platform.Platform   = (*Backend)(nil)
	_ platform.MemoJoiner = (*Backend)(nil)
)

// New prepares a backend; nothing touches the network until Connect.
func New(opts Options) (*Backend, error) {
	sk := opts.PrivateKey
	if sk == "" {
		sk = nostr.GeneratePrivateKey()
	}
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("invalid nostr private key: %w", err)
	}

	seenCache, err := lru.New[string, bool](seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen cache: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	nick := sanitizeString(opts.Nick)
	if nick == "" {
		nick = npubToTokiPona(pk)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		sk:          sk,
		pk:          pk,
		nick:        nick,
		logger:      logger.Named("nostr"),
		geo:         newGeoRelays(opts.CacheDir),
		relays:      make(map[string]*managedRelay),
		seenCache:   seenCache,
		orderBuf:    make(map[string][]orderItem),
		orderTimers: make(map[string]*time.Timer),
		ctx:         ctx,
		cancel:      cancel,
	}

	for _, name := range opts.Chats {
		chat, err := normalizeChat(name)
		if err != nil {
			b.logger.Warn("Ignoring configured chat", zap.String("chat", name), zap.Error(err))
			continue
		}
		if !slices.Contains(b.chats, chat) {
			b.chats = append(b.chats, chat)
		}
	}
	return b, nil
}

// Connect subscribes to every joined chat and reports ready once at least one
// relay answers. With no chats joined it is ready immediately.
func (b *Backend) Connect(ctx context.Context, h platform.Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()

	npub, _ := nip19.EncodePublicKey(b.pk)
	b.logger.Info("Using nostr identity", zap.String("npub", npub), zap.String("nick", b.nick))

	b.online.Store(true)
	b.updateSubscriptions()

	if len(b.Chats()) > 0 && b.connectedCount() == 0 {
		b.online.Store(false)
		return ErrNoRelays
	}
	h.OnReady(b.Self())
	return nil
}

// Close drops every relay and waits for the listeners to stop.
func (b *Backend) Close() error {
	b.online.Store(false)
	b.cancel()

	b.orderMu.Lock()
	for key, t := range b.orderTimers {
		t.Stop()
		delete(b.orderTimers, key)
	}
	b.orderMu.Unlock()

	b.relaysMu.Lock()
	for url, mr := range b.relays {
		mr.close()
		delete(b.relays, url)
	}
	b.relaysMu.Unlock()

	b.wg.Wait()
	return nil
}

func (b *Backend) Self() platform.User {
	return platform.User{ID: b.pk, Name: b.nick, Color: pubkeyColor(b.pk)}
}

// Send publishes content to a joined chat. Nostr has no speech synthesis
// flag, so tts is ignored.
func (b *Backend) Send(ctx context.Context, conversationID, content string, tts bool) error {
	chat := conversationID
	if !slices.Contains(b.Chats(), chat) {
		return fmt.Errorf("not in chat %q", chat)
	}

	kind, tagKey := namedChatKind, "d"
	if isGeohash(chat) {
		kind, tagKey = geochatKind, "g"
	}

	tags := nostr.Tags{{tagKey, chat}, {"n", b.nick}, {"client", clientTag}}
	b.mu.RLock()
	if b.mood != "" {
		tags = append(tags, nostr.Tag{"mood", b.mood})
	}
	b.mu.RUnlock()

	ev := nostr.Event{
		CreatedAt: nostr.Now(),
		PubKey:    b.pk,
		Content:   truncateString(content, MaxMsgLen),
		Kind:      kind,
		Tags:      tags,
	}
	if err := ev.Sign(b.sk); err != nil {
		return fmt.Errorf("could not sign event: %w", err)
	}

	targets := b.relaysForChat(chat)
	if len(targets) == 0 {
		return fmt.Errorf("not connected to any relay for chat %s: %w", chat, ErrNoRelays)
	}
	return b.publish(ctx, ev, chat, targets)
}

// SetMood records the mood sent with every following message. Nostr has no
// presence, so invisibility has no effect.
func (b *Backend) SetMood(_ context.Context, mood string, _ bool) error {
	b.mu.Lock()
	b.mood = mood
	b.mu.Unlock()
	return nil
}

// Chats lists the joined chats in join order.
func (b *Backend) Chats() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.chats)
}

func (b *Backend) Conversations() []platform.Conversation {
	chats := b.Chats()
	convs := make([]platform.Conversation, 0, len(chats))
	for _, chat := range chats {
		convs = append(convs, conversation(chat))
	}
	return convs
}

func (b *Backend) Boards() []platform.Board {
	named := platform.Board{ID: BoardNamed, Name: "Named chats"}
	geo := platform.Board{ID: BoardGeohash, Name: "Geohash chats"}
	for _, conv := range b.Conversations() {
		if conv.BoardID == BoardGeohash {
			geo.Memos = append(geo.Memos, conv)
		} else {
			named.Memos = append(named.Memos, conv)
		}
	}
	return []platform.Board{named, geo}
}

// OpenDM is not available: Nostr chats carry no private channel.
func (b *Backend) OpenDM(context.Context, string) (platform.Conversation, error) {
	return platform.Conversation{}, fmt.Errorf("nostr direct messages: %w", platform.ErrUnsupported)
}

// Join adds a chat and, when connected, subscribes to it.
func (b *Backend) Join(_ context.Context, name string) (platform.Conversation, error) {
	chat, err := normalizeChat(name)
	if err != nil {
		return platform.Conversation{}, err
	}

	b.mu.Lock()
	if slices.Contains(b.chats, chat) {
		b.mu.Unlock()
		return conversation(chat), nil
	}
	b.chats = append(b.chats, chat)
	b.mu.Unlock()

	b.updateSubscriptions()
	return conversation(chat), nil
}

// Leave drops a chat and its subscriptions.
func (b *Backend) Leave(_ context.Context, name string) error {
	chat, err := normalizeChat(name)
	if err != nil {
		return err
	}

	b.mu.Lock()
	i := slices.Index(b.chats, chat)
	if i < 0 {
		b.mu.Unlock()
		return fmt.Errorf("not in chat %q", chat)
	}
	b.chats = slices.Delete(b.chats, i, i+1)
	b.mu.Unlock()

	b.updateSubscriptions()
	return nil
}

func conversation(chat string) platform.Conversation {
	board, boardID := "Named chats", BoardNamed
	if isGeohash(chat) {
		board, boardID = "Geohash chats", BoardGeohash
	}
	return platform.Conversation{
		ID:      chat,
		Kind:    platform.KindMemo,
		Name:    "#" + chat,
		Board:   board,
		BoardID: boardID,
	}
}

func (b *Backend) getHandler() platform.Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handler
}
