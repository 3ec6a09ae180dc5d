// Package config loads and saves the user's options and credentials.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nbd-wtf/go-nostr"

	"github.com/lessucettes/pesterchum-tui/internal/quirks"
	"github.com/lessucettes/pesterchum-tui/internal/theme"
)

const (
	AppName  = "pesterchum-tui"
	FileName = "config.json"
	TokenEnv = "PESTERCHUM_TOKEN"
)

const (
	PlatformDiscord = "discord"
	PlatformNostr   = "nostr"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// ConversationOptions controls how messages are stamped.
type ConversationOptions struct {
	TimeStamps  bool `json:"time_stamps"`
	ShowSeconds bool `json:"show_seconds"`
	// MemoColorTags sends memo lines as <c=color>XY: text</c>.
	MemoColorTags bool `json:"memo_color_tags"`
}

// NostrOptions holds the identity and chats of the nostr backend.
type NostrOptions struct {
	PrivateKey string   `json:"private_key"`
	Nick       string   `json:"nick,omitempty"`
	Chats      []string `json:"chats"`
}

// Config is the main structure of the configuration file.
type Config struct {
	Platform      string              `json:"platform"`
	Token         string              `json:"token,omitempty"`
	Bot           bool                `json:"bot"`
	Theme         string              `json:"theme"`
	Mood          string              `json:"mood"`
	Conversations ConversationOptions `json:"conversations"`
	Nostr         NostrOptions        `json:"nostr"`

	path      string
	fileToken string
}

// DefaultDir is the per-user configuration directory of the program.
func DefaultDir() (string, error) {
	// os.UserConfigDir() returns the right location on Windows, macOS and Linux.
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(configDir, AppName), nil
}

// Load reads config.json from dir, creating a default one when missing. An
// empty dir means DefaultDir. The token environment variable, when set,
// overrides the stored token without being written back.
func Load(dir string) (*Config, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}
	configPath := filepath.Join(dir, FileName)

	conf, err := read(configPath)
	if err != nil {
		return nil, err
	}
	conf.fileToken = conf.Token
	if tok := os.Getenv(TokenEnv); tok != "" {
		conf.Token = tok
	}
	return conf, conf.Validate()
}

func read(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return createDefaultConfig(path)
		}
		return nil, fmt.Errorf("could not open config file: %w", err)
	}
	defer file.Close()

	conf := Default()
	conf.path = path
	if err := json.NewDecoder(file).Decode(conf); err != nil {
		return nil, fmt.Errorf("could not decode config file: %w", err)
	}
	conf.fileToken = conf.Token
	if conf.Nostr.PrivateKey == "" {
		conf.Nostr.PrivateKey = nostr.GeneratePrivateKey()
		if err := conf.Save(); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

// Default returns the options of a fresh install.
func Default() *Config {
	return &Config{
		Platform: PlatformDiscord,
		Theme:    theme.DefaultName,
		Mood:     "chummy",
		Conversations: ConversationOptions{
			TimeStamps: true,
		},
		Nostr: NostrOptions{Chats: []string{}},
	}
}

// createDefaultConfig writes a default config with a new nostr identity.
func createDefaultConfig(path string) (*Config, error) {
	conf := Default()
	conf.Nostr.PrivateKey = nostr.GeneratePrivateKey()
	conf.path = path
	return conf, conf.Save()
}

// Validate checks the fields that cannot be repaired silently.
func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformDiscord, PlatformNostr:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, c.Platform)
	}
}

// Dir is the directory holding the config file.
func (c *Config) Dir() string { return filepath.Dir(c.path) }

// Path is the location of the config file.
func (c *Config) Path() string { return c.path }

// QuirksPath is the location of the quirks file beside the config.
func (c *Config) QuirksPath() string {
	return filepath.Join(c.Dir(), quirks.FileName)
}

// Save writes the current configuration back to the file.
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	out := *c
	out.Token = c.fileToken
	if os.Getenv(TokenEnv) == "" {
		out.Token = c.Token
	}

	file, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("could not create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&out); err != nil {
		return fmt.Errorf("could not encode config file: %w", err)
	}
	return nil
}
