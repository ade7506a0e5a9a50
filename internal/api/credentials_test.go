// ABOUTME: Tests for credential inspection and stream token extraction
// ABOUTME: Uses locally signed JWTs to exercise the unverified expiry check

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "u-1",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	assert.False(t, tokenExpired(signedToken(t, time.Hour), now))
	assert.True(t, tokenExpired(signedToken(t, -time.Hour), now))
	assert.True(t, tokenExpired("garbage", now), "unparseable tokens count as expired")
}

func TestStreamToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	t.Run("no cookie", func(t *testing.T) {
		c := newTestClient(t, server, false)
		assert.Empty(t, c.StreamToken())
	})

	t.Run("live token", func(t *testing.T) {
		c := newTestClient(t, server, false)
		raw := signedToken(t, time.Hour)
		c.httpc.Jar.SetCookies(c.baseURL, []*http.Cookie{{Name: accessTokenCookie, Value: raw}})
		assert.Equal(t, raw, c.StreamToken())
	})

	t.Run("expired token", func(t *testing.T) {
		c := newTestClient(t, server, false)
		c.httpc.Jar.SetCookies(c.baseURL, []*http.Cookie{
			{Name: accessTokenCookie, Value: signedToken(t, -time.Hour)},
		})
		assert.Empty(t, c.StreamToken())
	})
}

func TestHasCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	c := newTestClient(t, server, false)
	assert.False(t, c.hasCredential())

	c.httpc.Jar.SetCookies(c.baseURL, []*http.Cookie{{Name: refreshTokenCookie, Value: "r"}})
	assert.True(t, c.hasCredential(), "a refresh cookie alone is a credential")
}
