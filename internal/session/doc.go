// Package session holds the client's authentication session state.
//
// # Lifecycle
//
// A Session is created at process start, optionally rehydrated from a
// persisted TOML file, mutated by login/logout/profile updates, and cleared
// on sign-out. Rehydration is skipped (and any persisted state discarded)
// when email-verification query parameters are present on launch, so a
// verification round trip never resurrects a stale login.
//
// # Persistence
//
// Only the user profile and the authenticated flag are persisted, under a
// namespaced file in the user config directory:
//
//	~/.config/neora/session.toml
//
// Credentials themselves live in the HTTP cookie jar and are never written
// to disk by this package.
package session
