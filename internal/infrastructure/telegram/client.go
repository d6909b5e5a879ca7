package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"velestra/internal/domain"
	"velestra/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Client talks to the Telegram Bot API. Sends use a bounded retry policy and
// a bounded per-attempt timeout; a final failure is reported to the caller,
// which treats it as "not yet sent" rather than fatal.
type Client struct {
	apiBase  string
	botToken string
	http     *retryablehttp.Client
}

var _ ports.Transport = (*Client)(nil)

// NewClient wires a bot token with a bounded-retry HTTP client.
func NewClient(botToken string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		http:     rc,
	}
}

// WithAPIBase points the client at a different API host (tests).
func (c *Client) WithAPIBase(base string) *Client {
	c.apiBase = strings.TrimSuffix(base, "/")
	return c
}

// Send posts a Markdown message to the destination chat.
func (c *Client) Send(ctx context.Context, destination, message string) error {
	if c.botToken == "" || destination == "" {
		return fmt.Errorf("telegram send: %w", domain.ErrUnconfigured)
	}

	form := url.Values{}
	form.Set("chat_id", destination)
	form.Set("text", message)
	form.Set("parse_mode", "Markdown")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

// getUpdates fetches pending bot updates starting at the given offset.
func (c *Client) getUpdates(ctx context.Context, offset int64) ([]update, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d", c.apiBase, c.botToken, offset)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram error: %s", resp.Status)
	}

	var payload struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !payload.OK {
		return nil, fmt.Errorf("telegram getUpdates returned not ok")
	}
	return payload.Result, nil
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"message"`
}
