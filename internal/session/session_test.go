// ABOUTME: Tests for session state, persistence, and rehydration
// ABOUTME: Covers login/logout transitions, language mapping, and verification invalidation

package session

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *User {
	return &User{
		ID:                "u-1",
		Email:             "amira@example.com",
		FirstName:         "Amira",
		LastName:          "Hassan",
		PreferredLanguage: "ar",
	}
}

func TestSession_SetUserAndClear(t *testing.T) {
	s := New("", nil)

	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())

	s.SetUser(testUser())
	assert.True(t, s.Authenticated())
	assert.Equal(t, "u-1", s.UserID())
	assert.Equal(t, "ar", s.Language())

	s.Clear()
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())
	assert.Empty(t, s.UserID())

	// Clear is idempotent
	s.Clear()
	assert.False(t, s.Authenticated())
}

func TestSession_LanguageName(t *testing.T) {
	s := New("", nil)
	assert.Equal(t, "English", s.LanguageName())

	s.SetLanguage("ar")
	assert.Equal(t, "Arabic", s.LanguageName())

	s.SetLanguage("fr")
	assert.Equal(t, "English", s.LanguageName(), "unknown codes fall back to English")
}

func TestSession_PersistAndRehydrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neora", "session.toml")

	s := New(path, nil)
	s.SetUser(testUser())

	restored := New(path, nil)
	require.NoError(t, restored.Rehydrate(url.Values{}))

	assert.True(t, restored.Authenticated())
	require.NotNil(t, restored.User())
	assert.Equal(t, "amira@example.com", restored.User().Email)
	assert.Equal(t, "ar", restored.Language())
}

func TestSession_RehydrateMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.toml"), nil)
	require.NoError(t, s.Rehydrate(url.Values{}))
	assert.False(t, s.Authenticated())
}

func TestSession_RehydrateClearsOnVerificationParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")

	s := New(path, nil)
	s.SetUser(testUser())

	tests := []struct {
		name  string
		query url.Values
	}{
		{"message param", url.Values{"message": {"verified_success"}}},
		{"error param", url.Values{"error": {"invalid_token"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Re-seed persisted state before each case
			seed := New(path, nil)
			seed.SetUser(testUser())

			restored := New(path, nil)
			require.NoError(t, restored.Rehydrate(tt.query))
			assert.False(t, restored.Authenticated())
			assert.Nil(t, restored.User())

			// The cleared state must also have been written back
			again := New(path, nil)
			require.NoError(t, again.Rehydrate(url.Values{}))
			assert.False(t, again.Authenticated())
		})
	}
}

func TestSession_LogoutPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")

	s := New(path, nil)
	s.SetUser(testUser())
	s.Clear()

	restored := New(path, nil)
	require.NoError(t, restored.Rehydrate(url.Values{}))
	assert.False(t, restored.Authenticated())
}
