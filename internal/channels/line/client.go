package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAPIBase     = "https://api.line.me"
	defaultHTTPTimeout = 10 * time.Second
)

// Client sends replies through the LINE Messaging API.
type Client struct {
	accessToken string
	apiBase     string
	httpClient  *http.Client
}

// NewClient creates a Messaging API client.
func NewClient(channelAccessToken string) *Client {
	return &Client{
		accessToken: channelAccessToken,
		apiBase:     defaultAPIBase,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetAPIBase overrides the API base URL (useful for testing).
func (c *Client) SetAPIBase(base string) {
	c.apiBase = base
}

// Reply answers an event using its reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages []OutMessage) error {
	if replyToken == "" {
		return fmt.Errorf("line: missing reply token")
	}
	if len(messages) == 0 {
		return nil
	}

	body, err := json.Marshal(ReplyRequest{ReplyToken: replyToken, Messages: messages})
	if err != nil {
		return fmt.Errorf("line: marshal reply: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v2/bot/message/reply", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("line: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("line: send reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr ErrorResponse
	if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("line: API error %d: %s", resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("line: unexpected status %d: %s", resp.StatusCode, string(respBody))
}
