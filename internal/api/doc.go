// Package api implements the credentialed HTTP transport for the neora backend.
//
// # Overview
//
// This package provides a Client that attaches ambient credentials (HTTP-only
// cookies held in a jar) to every request and transparently coordinates
// session renewal when the backend answers 401.
//
// # Endpoints
//
// The Client wraps these backend operations:
//
//   - Login / Logout / Refresh: session lifecycle
//   - Register / VerifyEmail / ForgotPassword / ResetPassword: account flows
//   - Messages: paginated conversation history, newest first
//   - SendMessage / SendVoice: submit a conversational turn
//   - ClearMessages: delete the conversation
//   - Me / UpdateMe: profile access
//
// # Session Renewal
//
// On an Unauthorized response for any endpoint other than the renewal
// endpoint itself, the Client starts at most one renewal call; concurrent
// requests that hit 401 while it is in flight attach to the same attempt.
// After a successful renewal each suspended request is re-issued exactly
// once. After a failed renewal every attached request fails with the
// renewal's error and the sign-out hook fires exactly once. When no
// credential cookie is present at all, 401 is surfaced immediately without a
// renewal attempt.
//
// # Error Taxonomy
//
// Calls fail with ErrUnauthorized, *NetworkError, or *ServerError. Callers
// never retry; retry policy lives in the renewal flow above and in the
// stream channel's reconnect logic.
package api
