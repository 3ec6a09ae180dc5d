package nostrnet

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/lessucettes/pesterchum-tui/internal/platform"
)

// managedRelay wraps a nostr.Relay with the subscription it currently serves.
type managedRelay struct {
	url          string
	relay        *nostr.Relay
	latency      time.Duration
	subscription *nostr.Subscription
	connected    bool
	mu           sync.Mutex
}

func (mr *managedRelay) close() {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.subscription != nil {
		mr.subscription.Unsub()
		mr.subscription = nil
	}
	if mr.relay != nil {
		mr.relay.Close()
	}
	mr.connected = false
}

func retryWithBackoff(ctx context.Context, fn func() error) error {
	delay := 500 * time.Millisecond
	for {
		if err := fn(); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			if delay < 30*time.Second {
				delay *= 2
			}
		}
	}
}

// relayURLsForChat picks the relays a chat lives on: the closest geo relays
// for geohash chats, the default set otherwise.
func (b *Backend) relayURLsForChat(chat string) []string {
	if !isGeohash(chat) {
		return defaultNamedChatRelays
	}
	ctx, cancel := context.WithTimeout(b.ctx, connectTimeout)
	defer cancel()
	urls, err := b.geo.closest(ctx, chat, defaultRelayCount)
	if err != nil || len(urls) == 0 {
		b.logger.Warn("Falling back to default relays", zap.String("chat", chat), zap.Error(err))
		return defaultNamedChatRelays
	}
	return urls
}

func (b *Backend) updateSubscriptions() {
	if !b.online.Load() {
		return
	}

	desired := make(map[string][]string)
	for _, chat := range b.Chats() {
		for _, url := range b.relayURLsForChat(chat) {
			if !slices.Contains(desired[url], chat) {
				desired[url] = append(desired[url], chat)
			}
		}
	}
	b.updateRelaySubscriptions(desired)
}

// updateRelaySubscriptions reconciles the relay set with desired and waits
// until new relays have either connected or failed.
func (b *Backend) updateRelaySubscriptions(desired map[string][]string) {
	b.relaysMu.Lock()
	current := make(map[string]*managedRelay, len(b.relays))
	maps.Copy(current, b.relays)
	b.relaysMu.Unlock()

	var wg sync.WaitGroup
	for url, chats := range desired {
		wg.Add(1)
		if mr, exists := current[url]; exists {
			go func(mr *managedRelay, chats []string) {
				defer wg.Done()
				if _, err := b.replaceSubscription(mr, chats); err != nil {
					b.logger.Error("Resubscribe failed", zap.String("relay", mr.url), zap.Error(err))
				}
			}(mr, chats)
		} else {
			go func(url string, chats []string) {
				defer wg.Done()
				b.manageRelayConnection(url, chats)
			}(url, chats)
		}
	}

	b.relaysMu.Lock()
	for url, mr := range b.relays {
		if _, needed := desired[url]; !needed {
			b.logger.Info("Disconnecting from unneeded relay", zap.String("relay", url))
			mr.close()
			delete(b.relays, url)
		}
	}
	b.relaysMu.Unlock()

	wg.Wait()
}

func (b *Backend) manageRelayConnection(url string, chats []string) {
	ctx, cancel := context.WithTimeout(b.ctx, connectTimeout)
	defer cancel()

	start := time.Now()
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		b.logger.Warn("Failed to connect", zap.String("relay", url), zap.Error(err))
		return
	}
	latency := time.Since(start)
	b.logger.Info("Connected", zap.String("relay", url), zap.Duration("latency", latency))

	mr := &managedRelay{
		url:       url,
		relay:     relay,
		latency:   latency,
		connected: true,
	}

	b.relaysMu.Lock()
	if _, exists := b.relays[url]; exists {
		b.relaysMu.Unlock()
		relay.Close()
		return
	}
	b.relays[url] = mr
	b.relaysMu.Unlock()

	if _, err := b.replaceSubscription(mr, chats); err != nil {
		b.logger.Warn("Initial subscription failed", zap.String("relay", url), zap.Error(err))
		relay.Close()
		b.relaysMu.Lock()
		delete(b.relays, url)
		b.relaysMu.Unlock()
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.listen(mr)
	}()
}

func (b *Backend) replaceSubscription(mr *managedRelay, chats []string) (bool, error) {
	mr.mu.Lock()
	oldChats := currentChats(mr.subscription)
	mr.mu.Unlock()

	if sameStringSet(oldChats, chats) {
		return false, nil
	}

	now := nostr.Now()
	filters := make(nostr.Filters, 0, len(chats))
	for _, ch := range chats {
		since := now
		if isGeohash(ch) {
			filters = append(filters, nostr.Filter{
				Kinds: []int{geochatKind},
				Tags:  nostr.TagMap{"g": []string{ch}},
				Since: &since,
			})
		} else {
			filters = append(filters, nostr.Filter{
				Kinds: []int{namedChatKind},
				Tags:  nostr.TagMap{"d": []string{ch}},
				Since: &since,
			})
		}
	}

	newSub, err := mr.relay.Subscribe(b.ctx, filters)
	if err != nil {
		return false, fmt.Errorf("subscribe failed: %w", err)
	}

	mr.mu.Lock()
	oldSub := mr.subscription
	mr.subscription = newSub
	mr.connected = true
	mr.mu.Unlock()

	if oldSub != nil {
		oldSub.Unsub()
	}
	b.logger.Debug("Updated subscription", zap.String("relay", mr.url), zap.Int("chats", len(chats)))
	return true, nil
}

func (b *Backend) listen(mr *managedRelay) {
	b.logger.Debug("Listener started", zap.String("relay", mr.url))
	defer b.logger.Debug("Listener stopped", zap.String("relay", mr.url))

	for {
		if b.ctx.Err() != nil {
			return
		}

		mr.mu.Lock()
		sub := mr.subscription
		mr.mu.Unlock()

		if sub == nil {
			return
		}

		select {
		case <-b.ctx.Done():
			return

		case ev, ok := <-sub.Events:
			if !ok {
				oldChats := currentChats(sub)

				mr.mu.Lock()
				if mr.subscription != sub {
					mr.mu.Unlock()
					continue
				}
				mr.subscription = nil
				mr.connected = false
				mr.mu.Unlock()

				if len(oldChats) == 0 {
					return
				}

				err := retryWithBackoff(b.ctx, func() error {
					_, err := b.replaceSubscription(mr, oldChats)
					return err
				})
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						b.logger.Error("Could not re-establish subscription", zap.String("relay", mr.url), zap.Error(err))
					}
					if b.connectedCount() == 0 {
						if h := b.getHandler(); h != nil {
							h.OnDisconnect(fmt.Errorf("lost every relay: %w", ErrNoRelays))
						}
					}
					return
				}
				b.logger.Info("Reconnected", zap.String("relay", mr.url))
				continue
			}

			if ev == nil {
				continue
			}
			b.processEvent(ev, mr.url)
		}
	}
}

func (b *Backend) connectedCount() int {
	b.relaysMu.Lock()
	defer b.relaysMu.Unlock()
	n := 0
	for _, mr := range b.relays {
		mr.mu.Lock()
		if mr.connected {
			n++
		}
		mr.mu.Unlock()
	}
	return n
}

// relaysForChat returns the connected relays serving chat, fastest first.
func (b *Backend) relaysForChat(chat string) []*managedRelay {
	b.relaysMu.Lock()
	var out []*managedRelay
	for _, mr := range b.relays {
		mr.mu.Lock()
		if mr.connected && slices.Contains(currentChats(mr.subscription), chat) {
			out = append(out, mr)
		}
		mr.mu.Unlock()
	}
	b.relaysMu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].latency < out[j].latency })
	return out
}

func (b *Backend) processEvent(ev *nostr.Event, relayURL string) {
	b.seenCacheMu.Lock()
	if b.seenCache.Contains(ev.ID) {
		b.seenCacheMu.Unlock()
		return
	}
	b.seenCache.Add(ev.ID, true)
	b.seenCacheMu.Unlock()

	var chat string
	if gTag := ev.Tags.Find("g"); len(gTag) > 1 {
		chat = gTag[1]
	} else if dTag := ev.Tags.Find("d"); len(dTag) > 1 {
		chat = dTag[1]
	}
	if chat == "" || !slices.Contains(b.Chats(), chat) {
		return
	}

	nick := npubToTokiPona(ev.PubKey)
	if nickTag := ev.Tags.Find("n"); len(nickTag) > 1 {
		if s := sanitizeString(nickTag[1]); s != "" {
			nick = s
		}
	}

	msg := platform.Message{
		ID:           ev.ID,
		Conversation: conversation(chat),
		Author: platform.User{
			ID:    ev.PubKey,
			Name:  nick,
			Color: pubkeyColor(ev.PubKey),
		},
		Content:   sanitizeString(truncateString(ev.Content, MaxMsgLen)),
		CreatedAt: ev.CreatedAt.Time(),
	}
	b.logger.Debug("Event received", zap.String("relay", relayURL), zap.String("chat", chat))
	b.enqueueOrdered(chat, msg, int64(ev.CreatedAt), ev.ID)
}

// enqueueOrdered holds messages of a chat briefly so that events arriving
// from several relays are delivered in creation order.
func (b *Backend) enqueueOrdered(streamKey string, msg platform.Message, createdAt int64, id string) {
	b.orderMu.Lock()
	defer b.orderMu.Unlock()
	if b.ctx.Err() != nil {
		return
	}
	if len(b.orderBuf[streamKey]) >= perStreamBufferMax {
		b.orderBuf[streamKey] = b.orderBuf[streamKey][1:]
	}
	b.orderBuf[streamKey] = append(b.orderBuf[streamKey], orderItem{msg: msg, createdAt: createdAt, id: id})
	if _, ok := b.orderTimers[streamKey]; !ok {
		b.orderTimers[streamKey] = time.AfterFunc(orderingFlushDelay, func() { b.flushOrdered(streamKey) })
	}
}

func (b *Backend) flushOrdered(streamKey string) {
	b.orderMu.Lock()
	buf := b.orderBuf[streamKey]
	delete(b.orderBuf, streamKey)
	delete(b.orderTimers, streamKey)
	b.orderMu.Unlock()

	h := b.getHandler()
	if len(buf) == 0 || h == nil {
		return
	}

	sort.Slice(buf, func(i, j int) bool {
		if buf[i].createdAt == buf[j].createdAt {
			return buf[i].id < buf[j].id
		}
		return buf[i].createdAt < buf[j].createdAt
	})

	for _, it := range buf {
		if b.ctx.Err() != nil {
			return
		}
		h.OnMessage(it.msg)
	}
}

func (b *Backend) publish(ctx context.Context, ev nostr.Event, chat string, targets []*managedRelay) error {
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successCount int
		errs         []error
	)

	for _, r := range targets {
		wg.Add(1)
		go func(r *managedRelay) {
			defer wg.Done()
			if err := r.relay.Publish(ctx, ev); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", r.url, err))
				mu.Unlock()
				return
			}
			mu.Lock()
			successCount++
			mu.Unlock()
		}(r)
	}
	wg.Wait()

	b.logger.Debug("Event published",
		zap.String("chat", chat),
		zap.Int("ok", successCount),
		zap.Int("relays", len(targets)))

	if successCount == 0 {
		return fmt.Errorf("publish failed: %w", errors.Join(errs...))
	}
	for _, err := range errs {
		b.logger.Warn("Publish failed on relay", zap.Error(err))
	}
	return nil
}
