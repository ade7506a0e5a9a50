// ABOUTME: Message endpoints: paginated history, text sends, and conversation clearing
// ABOUTME: History is returned newest first, matching the backend's ordering

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Message is one conversational turn as serialized by the backend.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	AudioURL  string    `json:"audio_url,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// messagesResponse is the JSON response from GET /messages/.
type messagesResponse struct {
	Results []Message `json:"results"`
}

// sendMessageRequest is the JSON body sent to POST /messages/.
type sendMessageRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// sendMessageResponse is the JSON response from POST /messages/. The
// assistant reply arrives over the stream channel, not here.
type sendMessageResponse struct {
	UserMessage Message `json:"user_message"`
}

// Messages fetches the canonical message list, newest first.
func (c *Client) Messages(ctx context.Context, limit int) ([]Message, error) {
	path := "/messages/"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	respBody, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding messages response: %w", err)
	}
	return resp.Results, nil
}

// SendMessage submits a text turn and returns the server-confirmed user
// message that replaces the caller's optimistic entry.
func (c *Client) SendMessage(ctx context.Context, text, language string) (*Message, error) {
	body, err := json.Marshal(sendMessageRequest{Text: text, Language: language})
	if err != nil {
		return nil, fmt.Errorf("encoding send request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/messages/", "application/json", body)
	if err != nil {
		return nil, err
	}

	var resp sendMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding send response: %w", err)
	}
	return &resp.UserMessage, nil
}

// ClearMessages deletes the entire conversation on the server.
func (c *Client) ClearMessages(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/messages/clear/", "", nil)
	return err
}
