package quirks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// FileName is the quirks file kept beside the configuration.
const FileName = "quirks.json"

// Store holds every user's quirks from one file and exposes those of the
// active user.
type Store struct {
	mu     sync.Mutex
	path   string
	userID string
	all    map[string][]Rule
	intn   func(int) int
}

// Open loads the quirks file at path, creating it with an empty rule list for
// userID when it does not exist.
func Open(path, userID string) (*Store, error) {
	s := &Store{path: path, userID: userID, all: make(map[string][]Rule)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.all[userID] = []Rule{}
		if err := s.Save(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("could not read quirks file: %w", err)
	}

	if err := json.Unmarshal(data, &s.all); err != nil {
		return nil, fmt.Errorf("could not decode quirks file: %w", err)
	}
	if s.all == nil {
		s.all = make(map[string][]Rule)
	}
	if _, ok := s.all[userID]; !ok {
		s.all[userID] = []Rule{}
	}
	return s, nil
}

// UserID is the identifier whose quirks Rules returns.
func (s *Store) UserID() string { return s.userID }

// Rules returns a copy of the active user's rules in application order.
func (s *Store) Rules() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.all[s.userID])
}

// Append adds a rule to the end of the active user's list.
func (s *Store) Append(r Rule) {
	s.mu.Lock()
	s.all[s.userID] = append(s.all[s.userID], r)
	s.mu.Unlock()
}

// Remove deletes the rule at the zero-based index and returns it.
func (s *Store) Remove(index int) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := s.all[s.userID]
	if index < 0 || index >= len(rules) {
		return Rule{}, fmt.Errorf("no quirk number %d", index+1)
	}
	removed := rules[index]
	s.all[s.userID] = slices.Delete(rules, index, index+1)
	return removed, nil
}

// Apply runs the active user's rules over msg.
func (s *Store) Apply(msg string) (string, error) {
	return Apply(s.Rules(), msg, s.intn)
}

// Save writes every user's quirks back to the file.
func (s *Store) Save() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.all, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("could not encode quirks: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("could not create quirks directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("could not write quirks file: %w", err)
	}
	return os.Rename(tmpPath, s.path)
}
