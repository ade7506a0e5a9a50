// ABOUTME: Profile endpoints for reading and updating the authenticated user
// ABOUTME: PATCH /me accepts a sparse field map, mirroring the backend serializer

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lmajedshbeir/neora-client/internal/session"
)

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*session.User, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/me", "", nil)
	if err != nil {
		return nil, err
	}

	var user session.User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &user, nil
}

// UpdateMe patches profile fields (first_name, last_name, preferred_language)
// and returns the updated profile.
func (c *Client) UpdateMe(ctx context.Context, fields map[string]any) (*session.User, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding profile update: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPatch, "/me", "application/json", body)
	if err != nil {
		return nil, err
	}

	var user session.User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &user, nil
}
