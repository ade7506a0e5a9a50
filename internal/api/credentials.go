// ABOUTME: Cookie jar inspection and access token extraction for the stream channel
// ABOUTME: Parses JWT expiry (unverified) to avoid handing out dead tokens

package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Cookie names set by the backend on login.
const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// hasCredential reports whether any auth cookie is present for the backend.
// Expiry is not checked here: a stale access token with a live refresh token
// is exactly the case renewal exists for.
func (c *Client) hasCredential() bool {
	if c.httpc.Jar == nil {
		return false
	}
	for _, ck := range c.httpc.Jar.Cookies(c.baseURL) {
		if ck.Name == accessTokenCookie || ck.Name == refreshTokenCookie {
			return true
		}
	}
	return false
}

// StreamToken returns the current access token for use as a query parameter
// on the stream endpoint, for transports that cannot carry the cookie.
// Returns empty when no token is present or the token is already expired.
// The token is not signature-verified; only the client's own copy of the
// expiry claim is read.
func (c *Client) StreamToken() string {
	if c.httpc.Jar == nil {
		return ""
	}

	var raw string
	for _, ck := range c.httpc.Jar.Cookies(c.baseURL) {
		if ck.Name == accessTokenCookie {
			raw = ck.Value
			break
		}
	}
	if raw == "" {
		return ""
	}

	if tokenExpired(raw, time.Now()) {
		c.logger.Debug("access token expired, omitting stream token")
		return ""
	}
	return raw
}

// tokenExpired reports whether a JWT's exp claim is in the past. Unparseable
// tokens are treated as expired.
func tokenExpired(raw string, now time.Time) bool {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return true
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.Before(now)
}
