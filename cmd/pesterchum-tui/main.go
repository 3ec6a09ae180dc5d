package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lessucettes/pesterchum-tui/internal/client"
	"github.com/lessucettes/pesterchum-tui/internal/config"
	"github.com/lessucettes/pesterchum-tui/internal/logging"
	"github.com/lessucettes/pesterchum-tui/internal/platform"
	"github.com/lessucettes/pesterchum-tui/internal/platform/discord"
	"github.com/lessucettes/pesterchum-tui/internal/platform/nostrnet"
	"github.com/lessucettes/pesterchum-tui/internal/theme"
	"github.com/lessucettes/pesterchum-tui/internal/tui"
)

var (
	version = "dev"
	commit  = "local"
	date    = ""
)

var (
	configDir    string
	platformName string
	debug        bool
)

var rootCmd = &cobra.Command{
	Use:   "pesterchum-tui",
	Short: "A Pesterchum-style chat client for the terminal",
	Long: `pesterchum-tui pesters chums and responds to memos over Discord or Nostr,
with moods, themes and typing quirks.

The Discord token is read from the config file or from $` + config.TokenEnv + `.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Version}} (%s, %s)\n", commit, date))
	rootCmd.Flags().StringVar(&configDir, "config-dir", "", "directory holding config.json and quirks.json (default: user config dir)")
	rootCmd.Flags().StringVar(&platformName, "platform", "", "chat platform to use: discord or nostr (overrides the config)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "log at debug level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if platformName != "" {
		cfg.Platform = platformName
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	actionsChan := make(chan client.UserAction, 16)
	eventsChan := make(chan client.DisplayEvent, 256)

	th, _ := theme.Get(cfg.Theme)
	appUI := tui.New(actionsChan, eventsChan, th)

	logger := logging.New(appUI.LogWriter(), debug)
	defer func() { _ = logger.Sync() }()
	restoreStdLog := logging.RedirectStdLog(logger)
	defer restoreStdLog()

	p, err := newPlatform(cfg, logger)
	if err != nil {
		return err
	}

	c, err := client.New(cfg, p, logger, actionsChan, eventsChan)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer appUI.Stop()
		return c.Run(gctx)
	})
	g.Go(func() error {
		defer stop()
		if err := appUI.Run(); err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// newPlatform builds the backend the config selects.
func newPlatform(cfg *config.Config, logger *zap.Logger) (platform.Platform, error) {
	switch cfg.Platform {
	case config.PlatformDiscord:
		p, err := discord.New(discord.Options{Token: cfg.Token, Bot: cfg.Bot, Logger: logger})
		if errors.Is(err, platform.ErrLoginFailure) {
			return nil, fmt.Errorf("no Discord token: set \"token\" in %s or $%s", cfg.Path(), config.TokenEnv)
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.PlatformNostr:
		p, err := nostrnet.New(nostrnet.Options{
			PrivateKey: cfg.Nostr.PrivateKey,
			Nick:       cfg.Nostr.Nick,
			Chats:      cfg.Nostr.Chats,
			CacheDir:   cfg.Dir(),
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownPlatform, cfg.Platform)
	}
}
