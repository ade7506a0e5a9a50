// ABOUTME: In-memory session state for the authenticated user
// ABOUTME: Tracks the user profile, authenticated flag, and preferred language

package session

import (
	"log/slog"
	"sync"
)

// User is the authenticated user's profile as returned by the backend.
type User struct {
	ID                string `json:"id" toml:"id"`
	Email             string `json:"email" toml:"email"`
	FirstName         string `json:"first_name" toml:"first_name"`
	LastName          string `json:"last_name" toml:"last_name"`
	PreferredLanguage string `json:"preferred_language" toml:"preferred_language"`
}

// languageNames maps a language code to the full name the backend expects.
var languageNames = map[string]string{
	"en": "English",
	"ar": "Arabic",
}

// LanguageName returns the full language name for a code, defaulting to English.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return "English"
}

// Session holds the current authentication state. All methods are safe for
// concurrent use.
type Session struct {
	mu            sync.RWMutex
	user          *User
	authenticated bool
	language      string

	path   string
	logger *slog.Logger
}

// New creates an empty, unauthenticated session. State is persisted to path;
// pass an empty path to disable persistence. Pass nil logger for default.
func New(path string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		language: "en",
		path:     path,
		logger:   logger.With("component", "session"),
	}
}

// SetUser records a successful login or a profile refresh. A non-nil user
// marks the session authenticated.
func (s *Session) SetUser(u *User) {
	s.mu.Lock()
	s.user = u
	s.authenticated = u != nil
	if u != nil && u.PreferredLanguage != "" {
		s.language = u.PreferredLanguage
	}
	s.mu.Unlock()

	s.persist()
}

// Clear resets the session to unauthenticated. Safe to call repeatedly.
func (s *Session) Clear() {
	s.mu.Lock()
	wasAuthenticated := s.authenticated
	s.user = nil
	s.authenticated = false
	s.mu.Unlock()

	if wasAuthenticated {
		s.logger.Info("session cleared")
	}
	s.persist()
}

// User returns the current user profile, or nil when signed out.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// UserID returns the current user's ID, or empty when signed out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Language returns the active language code.
func (s *Session) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage switches the active language code.
func (s *Session) SetLanguage(code string) {
	s.mu.Lock()
	s.language = code
	s.mu.Unlock()
}

// LanguageName returns the full name of the active language, as sent to the
// message endpoints.
func (s *Session) LanguageName() string {
	return LanguageName(s.Language())
}
