// ABOUTME: Voice upload endpoint using multipart form encoding
// ABOUTME: Streams the captured audio file without owning or releasing the handle

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/lmajedshbeir/neora-client/internal/voice"
)

// SendVoice submits a voice turn as multipart form data and returns the
// server-confirmed user message. The capture handle stays owned by the
// caller; this method only reads it.
func (c *Client) SendVoice(ctx context.Context, audio *voice.Capture, language string) (*Message, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="audio_file"; filename=%q`, audio.FileName()))
	contentType := audio.ContentType()
	if contentType == "" {
		contentType = "audio/webm;codecs=opus"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating audio part: %w", err)
	}

	reader, err := audio.Open()
	if err != nil {
		return nil, fmt.Errorf("opening captured audio: %w", err)
	}
	_, copyErr := io.Copy(part, reader)
	reader.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("reading captured audio: %w", copyErr)
	}

	if err := writer.WriteField("language", language); err != nil {
		return nil, fmt.Errorf("writing language field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/voice/", writer.FormDataContentType(), buf.Bytes())
	if err != nil {
		return nil, err
	}

	var resp sendMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding voice response: %w", err)
	}
	return &resp.UserMessage, nil
}
