// Package session persists the bearer token obtained from the backend login
// endpoint. The token lifecycle is owned here; every network-calling component
// receives the token explicitly instead of reading shared mutable state.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrNotLoggedIn = errors.New("no stored session, run login first")

// Session is the on-disk login state.
type Session struct {
	Token   string    `json:"token"`
	Email   string    `json:"email,omitempty"`
	SavedAt time.Time `json:"savedAt"`
}

func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".tickdash", "session.json"), nil
}

// Load reads the stored session and validates that it carries a token.
func Load(path string) (Session, error) {
	content, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, ErrNotLoggedIn
		}
		return Session{}, fmt.Errorf("read session file: %w", err)
	}

	var state Session
	if err := json.Unmarshal(content, &state); err != nil {
		return Session{}, fmt.Errorf("decode session file: %w", err)
	}
	if strings.TrimSpace(state.Token) == "" {
		return Session{}, ErrNotLoggedIn
	}
	return state, nil
}

// Save writes the session with owner-only permissions, creating the parent
// directory if needed.
func Save(path string, state Session) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("session file path is required")
	}
	if strings.TrimSpace(state.Token) == "" {
		return errors.New("refusing to save a session without a token")
	}
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	content, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Clear removes the stored session. A missing file is not an error.
func Clear(path string) error {
	err := os.Remove(strings.TrimSpace(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
