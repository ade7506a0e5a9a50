// ABOUTME: TOML persistence for session state under the user config directory
// ABOUTME: Handles rehydration at startup and invalidation on verification redirects

package session

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// persistedState is the on-disk shape of the session file.
type persistedState struct {
	User          *User `toml:"user"`
	Authenticated bool  `toml:"authenticated"`
}

// Rehydrate loads persisted state from disk into the session. A missing file
// is not an error; the session simply stays unauthenticated. When launchQuery
// carries email-verification parameters (message or error), persisted state is
// discarded instead of loaded, and the file is cleared.
func (s *Session) Rehydrate(launchQuery url.Values) error {
	if s.path == "" {
		return nil
	}

	if launchQuery.Get("message") != "" || launchQuery.Get("error") != "" {
		s.logger.Info("verification redirect detected, discarding persisted session")
		s.Clear()
		return nil
	}

	var state persistedState
	if _, err := toml.DecodeFile(s.path, &state); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.user = state.User
	s.authenticated = state.Authenticated && state.User != nil
	if state.User != nil && state.User.PreferredLanguage != "" {
		s.language = state.User.PreferredLanguage
	}
	s.mu.Unlock()

	if s.Authenticated() {
		s.logger.Debug("session rehydrated", "user_id", s.UserID())
	}
	return nil
}

// persist writes the current state to disk. Failures are logged, not fatal:
// a client that cannot write its config directory still works for the
// current process.
func (s *Session) persist() {
	if s.path == "" {
		return
	}

	s.mu.RLock()
	state := persistedState{
		User:          s.user,
		Authenticated: s.authenticated,
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		s.logger.Warn("failed to create session directory", "error", err)
		return
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		s.logger.Warn("failed to open session file", "error", err)
		return
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(state); err != nil {
		s.logger.Warn("failed to write session file", "error", err)
	}
}
