// Package theme is the static registry of interface themes. Built-in themes
// register themselves at init; a theme never changes once registered.
package theme

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// DefaultName is the theme used when none or an unknown one is configured.
const DefaultName = "Pesterchum 2.5"

var ErrUnknownTheme = errors.New("unknown theme")

// Styles is the terminal style sheet of a theme. Colors are CSS hex strings
// so the formatter can reason about them as well as the interface.
type Styles struct {
	Background string
	Text       string
	Border     string
	Title      string
	InputBg    string
	InputText  string
	LogInfo    string
	LogWarn    string
	LogError   string
	Spoiler    string
}

// Theme is a named style sheet plus the directory holding its assets.
type Theme struct {
	Name   string
	Path   string
	Styles Styles
}

// Color resolves one of the theme's CSS colors for tcell.
func Color(css string) tcell.Color {
	return tcell.GetColor(css)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]*Theme)
)

// Register adds a theme. Registering a name twice is an error.
func Register(t *Theme) error {
	if t == nil || t.Name == "" {
		return errors.New("theme must have a name")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[t.Name]; exists {
		return fmt.Errorf("theme %q already registered", t.Name)
	}
	registry[t.Name] = t
	return nil
}

// MustRegister is Register for init-time registration.
func MustRegister(t *Theme) {
	if err := Register(t); err != nil {
		panic(err)
	}
}

// Get returns the theme called name. Unknown names yield the default theme
// together with ErrUnknownTheme.
func Get(name string) (*Theme, error) {
	mu.RLock()
	defer mu.RUnlock()
	if t, ok := registry[name]; ok {
		return t, nil
	}
	return registry[DefaultName], fmt.Errorf("%w: %q", ErrUnknownTheme, name)
}

// Default returns the default theme.
func Default() *Theme {
	t, _ := Get(DefaultName)
	return t
}

// Names lists registered themes alphabetically.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
