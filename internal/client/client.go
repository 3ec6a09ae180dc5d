// Package client is the application shell between the interface and a chat
// platform: it runs user actions, reacts to platform callbacks and formats
// every line the interface shows.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lessucettes/pesterchum-tui/internal/config"
	"github.com/lessucettes/pesterchum-tui/internal/format"
	"github.com/lessucettes/pesterchum-tui/internal/mood"
	"github.com/lessucettes/pesterchum-tui/internal/platform"
	"github.com/lessucettes/pesterchum-tui/internal/quirks"
	"github.com/lessucettes/pesterchum-tui/internal/theme"
)

// Client is the application shell. It implements platform.Handler.
type Client struct {
	config      *config.Config
	platform    platform.Platform
	logger      *zap.Logger
	limiter     *rate.Limiter
	seenCache   *lru.Cache[string, bool]
	seenCacheMu sync.Mutex
	userContext *lru.Cache[string, platform.User]
	actionsChan <-chan UserAction
	eventsChan  chan<- DisplayEvent

	loginBackoff    time.Duration
	maxLoginBackoff time.Duration

	// mu guards the state below; platform callbacks arrive on their own goroutines.
	mu         sync.Mutex
	self       platform.User
	connected  bool
	quirks     *quirks.Store
	theme      *theme.Theme
	formatter  *format.Formatter
	mood       mood.Mood
	idle       bool
	open       map[string]*openConversation
	order      []string
	active     string
	openBoards map[string]bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutOnce sync.Once
}

var _ platform.Handler = (*Client)(nil)

// New creates a new instance of the client.
func New(cfg *config.Config, p platform.Platform, logger *zap.Logger, actions <-chan UserAction, events chan<- DisplayEvent) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	seenCache, err := lru.New[string, bool](seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen cache: %w", err)
	}
	userContextCache, err := lru.New[string, platform.User](userContextCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create user context cache: %w", err)
	}

	th, err := theme.Get(cfg.Theme)
	if err != nil {
		logger.Warn("Using default theme", zap.Error(err))
		cfg.Theme = th.Name
	}
	m, err := mood.Parse(cfg.Mood)
	if err != nil {
		logger.Warn("Using default mood", zap.Error(err))
		m = mood.Chummy
		cfg.Mood = string(m)
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		config:          cfg,
		platform:        p,
		logger:          logger.Named("client"),
		limiter:         rate.NewLimiter(rate.Every(sendInterval), sendBurst),
		seenCache:       seenCache,
		userContext:     userContextCache,
		actionsChan:     actions,
		eventsChan:      events,
		loginBackoff:    initialLoginBackoff,
		maxLoginBackoff: maxLoginBackoff,
		theme:           th,
		mood:            m,
		open:            make(map[string]*openConversation),
		openBoards:      make(map[string]bool),
		ctx:             ctx,
		cancel:          cancel,
	}
	c.formatter = c.newFormatter(th)
	return c, nil
}

func (c *Client) newFormatter(th *theme.Theme) *format.Formatter {
	opts := format.Options{
		TimeStamps:  c.config.Conversations.TimeStamps,
		ShowSeconds: c.config.Conversations.ShowSeconds,
	}
	return format.New(opts, th.Styles.Background, th.Styles.Text, th.Path)
}

// Run connects the platform and processes user actions until QUIT, the
// actions channel closing, or ctx ending.
func (c *Client) Run(ctx context.Context) error {
	c.sendStateUpdate()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runPlatform()
	}()

	for {
		select {
		case action, ok := <-c.actionsChan:
			if !ok {
				c.shutdown()
				return nil
			}
			c.handleAction(action)
		case <-ctx.Done():
			c.shutdown()
			return nil
		case <-c.ctx.Done():
			return nil
		}
	}
}

// runPlatform connects, waiting and doubling the wait after every failure.
func (c *Client) runPlatform() {
	delay := c.loginBackoff
	for {
		c.emit(DisplayEvent{Type: "STATUS", Content: "Connecting..."})
		err := c.platform.Connect(c.ctx, c)
		if err == nil {
			return
		}
		if c.ctx.Err() != nil {
			return
		}

		if errors.Is(err, platform.ErrLoginFailure) {
			c.logger.Error("Login failed", zap.Error(err), zap.Duration("retry_in", delay))
			c.emit(DisplayEvent{
				Type:    "ERROR",
				Content: fmt.Sprintf("Login failed: %v. Check the token in %s. Retrying in %s.", err, c.config.Path(), delay),
			})
		} else {
			c.logger.Warn("Connection failed", zap.Error(err), zap.Duration("retry_in", delay))
			c.emit(DisplayEvent{
				Type:    "ERROR",
				Content: fmt.Sprintf("Connection failed: %v. Retrying in %s.", err, delay),
			})
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, c.maxLoginBackoff)
	}
}

// handleAction dispatches user actions to their respective handlers.
func (c *Client) handleAction(action UserAction) {
	switch action.Type {
	case "SEND_MESSAGE":
		c.sendMessage(action.Payload)
	case "OPEN_CONVERSATION":
		c.openConversationByName(action.Payload)
	case "CLOSE_CONVERSATION":
		c.closeConversation(action.Payload)
	case "OPEN_BOARD":
		c.openBoard(action.Payload)
	case "CLOSE_BOARD":
		c.closeBoard(action.Payload)
	case "JOIN_MEMO":
		c.joinMemo(action.Payload)
	case "LEAVE_MEMO":
		c.leaveMemo(action.Payload)
	case "SET_MOOD":
		c.changeMood(action.Payload)
	case "TOGGLE_IDLE":
		c.toggleIdle()
	case "SET_THEME":
		c.changeTheme(action.Payload)
	case "LIST_THEMES":
		c.listThemes()
	case "LIST_MOODS":
		c.listMoods()
	case "QUIRK_ADD":
		c.addQuirk(action.Payload)
	case "QUIRK_LIST":
		c.listQuirks()
	case "QUIRK_REMOVE":
		c.removeQuirk(action.Payload)
	case "QUIRK_TEST":
		c.testQuirks(action.Payload)
	case "QUIRK_SAVE":
		c.saveQuirks()
	case "LIST_CONVERSATIONS":
		c.listConversations()
	case "REQUEST_COMPLETION":
		c.handleCompletion(action.Payload)
	case "GET_HELP":
		c.getHelp()
	case "QUIT":
		c.shutdown()
	default:
		c.logger.Debug("Ignoring unknown action", zap.String("type", action.Type))
	}
}

// emit delivers an event unless the client is shutting down.
func (c *Client) emit(ev DisplayEvent) {
	select {
	case c.eventsChan <- ev:
	case <-c.ctx.Done():
	}
}

func (c *Client) emitError(format string, args ...any) {
	c.emit(DisplayEvent{Type: "ERROR", Content: fmt.Sprintf(format, args...)})
}

func (c *Client) emitInfo(format string, args ...any) {
	c.emit(DisplayEvent{Type: "INFO", Content: fmt.Sprintf(format, args...)})
}

// shutdown saves options and quirks, closes the platform and tells the TUI to
// stop. Save failures are logged and otherwise ignored.
func (c *Client) shutdown() {
	c.shutOnce.Do(func() {
		c.cancel()

		if err := c.config.Save(); err != nil {
			c.logger.Error("Could not save configuration", zap.Error(err))
		}
		c.mu.Lock()
		store := c.quirks
		c.mu.Unlock()
		if store != nil {
			if err := store.Save(); err != nil {
				c.logger.Error("Could not save quirks", zap.Error(err))
			}
		}
		if err := c.platform.Close(); err != nil {
			c.logger.Warn("Could not close platform", zap.Error(err))
		}

		c.wg.Wait()
		select {
		case c.eventsChan <- DisplayEvent{Type: "SHUTDOWN"}:
		case <-time.After(200 * time.Millisecond):
		}
	})
}
