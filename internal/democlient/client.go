// Package democlient is a small HTTP client for the Tool Facade's
// /tools/:name shim, used by cmd/democlient's terminal demo. Grounded on
// memohai-Memoh/cmd/cli/main.go's http.Client + json request/response
// idiom, adapted from the chat/login endpoints to the Tool Facade's
// uniform tool-call envelope.
package democlient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls Tool Facade operations over HTTP as a given session.
type Client struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
}

// New returns a Client against baseURL, presenting sessionID on every call.
func New(baseURL, sessionID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		sessionID:  sessionID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) call(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + "/tools/" + tool
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.Header.Set("X-Session-Id", c.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: %s", tool, strings.TrimSpace(string(payload)))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if isErr, _ := result["isError"].(bool); isErr {
		return nil, fmt.Errorf("%s: %s", tool, extractErrorText(result))
	}
	data, _ := result["data"].(map[string]any)
	return data, nil
}

func extractErrorText(result map[string]any) string {
	content, _ := result["content"].([]any)
	for _, item := range content {
		if m, ok := item.(map[string]any); ok {
			if text, ok := m["text"].(string); ok {
				return text
			}
		}
	}
	return "tool call failed"
}

// JoinChannel calls join_channel with an invite or rejoin code.
func (c *Client) JoinChannel(ctx context.Context, inviteOrRejoin string) (map[string]any, error) {
	return c.call(ctx, "join_channel", map[string]any{"invite_code": inviteOrRejoin})
}

// PostMessage posts a plain text chat message.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) (map[string]any, error) {
	return c.call(ctx, "post_message", map[string]any{
		"channel_id": channelID,
		"body":       map[string]any{"text": text},
	})
}

// SyncMessages long-polls for new messages past cursor.
func (c *Client) SyncMessages(ctx context.Context, channelID string, cursor int64, timeout time.Duration) (map[string]any, error) {
	return c.call(ctx, "sync_messages", map[string]any{
		"channel_id": channelID,
		"cursor":     cursor,
		"timeout_ms": timeout.Milliseconds(),
	})
}
