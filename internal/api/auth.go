// ABOUTME: Authentication endpoints: login, logout, refresh, and account flows
// ABOUTME: Login resets the sign-out guard so a later renewal failure fires it again

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lmajedshbeir/neora-client/internal/session"
)

// loginRequest is the JSON body sent to POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the JSON response from POST /auth/login. The credential
// itself arrives as HTTP-only cookies and lands in the jar.
type loginResponse struct {
	User *session.User `json:"user"`
}

// RegisterRequest is the JSON body sent to POST /auth/register.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

// Login authenticates with email and password and returns the user profile.
func (c *Client) Login(ctx context.Context, email, password string) (*session.User, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/auth/login", "application/json", body)
	if err != nil {
		return nil, err
	}

	var resp loginResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}

	c.resetAuth()
	c.logger.Info("logged in", "email", email)
	return resp.User, nil
}

// Logout ends the server-side session and drops the credential cookies.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", "application/json", nil)
	return err
}

// Refresh explicitly renews the session, sharing the same single flight used
// by the transparent 401 path.
func (c *Client) Refresh(ctx context.Context) error {
	return c.renew(ctx)
}

// Register creates a new account. The account must be verified by email
// before login succeeds.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding register request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/auth/register", "application/json", body)
	return err
}

// VerifyEmail submits an email verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return fmt.Errorf("encoding verify request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/auth/verify", "application/json", body)
	return err
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("encoding forgot request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/auth/forgot", "application/json", body)
	return err
}

// ResetPassword completes a password reset with the emailed token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	body, err := json.Marshal(map[string]string{
		"token":        token,
		"new_password": newPassword,
	})
	if err != nil {
		return fmt.Errorf("encoding reset request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/auth/reset", "application/json", body)
	return err
}
