// Package telegram provides a Telegram Bot API client used for both
// outbound message delivery and inbound command polling.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIURL  = "https://api.telegram.org/bot%s/%s"
	defaultTimeout = 10 * time.Second

	// Bot API allows ~30 messages per second globally.
	defaultRateLimit = 25.0

	// ParseModeMarkdownV2 is the markup dialect all outbound messages use.
	ParseModeMarkdownV2 = "MarkdownV2"
)

// Config holds Telegram client configuration.
type Config struct {
	BotToken  string
	RateLimit float64       // outbound messages per second, default 25
	Timeout   time.Duration // per-request timeout for non-polling calls
}

// Client talks to the Telegram Bot API over HTTP.
type Client struct {
	config     Config
	httpClient *http.Client
	pollClient *http.Client // no client timeout; long polls are bounded per-call
	limiter    *rate.Limiter
	apiURL     string // format string taking token and method
}

// NewClient creates a Telegram client. Returns an error if the bot token
// is missing.
func NewClient(config Config) (*Client, error) {
	if config.BotToken == "" {
		return nil, errors.New("telegram client: bot token is required")
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("telegram client configured", "rate_limit", config.RateLimit)

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		pollClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		apiURL:     defaultAPIURL,
	}, nil
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// SendMessage delivers a MarkdownV2 message to a chat. Delivery errors
// are classified: 429 becomes a *RateLimitError, 4xx a *PermanentError,
// everything else a wrapped transport error.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req := sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             ParseModeMarkdownV2,
		DisableWebPagePreview: true,
	}

	_, err := c.call(ctx, c.httpClient, "sendMessage", req)
	return err
}

// User is a Telegram user or bot identity.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username,omitempty"`
}

// Chat is a Telegram chat.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type,omitempty"`
	Username string `json:"username,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// Update is one entry from the getUpdates stream.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// GetMe verifies the bot token and returns the bot identity.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	resp, err := c.call(ctx, c.httpClient, "getMe", struct{}{})
	if err != nil {
		return nil, err
	}

	var me User
	if err := json.Unmarshal(resp.Result, &me); err != nil {
		return nil, fmt.Errorf("decode getMe result: %w", err)
	}
	return &me, nil
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// GetUpdates long-polls for new updates starting at offset. The call
// blocks up to pollTimeout server-side; the request itself is bounded a
// few seconds beyond that.
func (c *Client) GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]Update, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(pollTimeout.Seconds()),
		AllowedUpdates: []string{"message"},
	}

	callCtx, cancel := context.WithTimeout(ctx, pollTimeout+5*time.Second)
	defer cancel()

	resp, err := c.call(callCtx, c.pollClient, "getUpdates", req)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// call executes one Bot API method and decodes the envelope, mapping
// API-level failures to the error taxonomy.
func (c *Client) call(ctx context.Context, client *http.Client, method string, payload any) (apiResponse, error) {
	var decoded apiResponse

	body, err := json.Marshal(payload)
	if err != nil {
		return decoded, fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf(c.apiURL, c.config.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return decoded, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return decoded, fmt.Errorf("%s request: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return decoded, fmt.Errorf("read %s response: %w", method, err)
	}

	if err := json.Unmarshal(raw, &decoded); err != nil {
		return decoded, fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if !decoded.OK {
		return decoded, classifyError(method, resp.StatusCode, decoded)
	}
	return decoded, nil
}

func classifyError(method string, status int, resp apiResponse) error {
	code := resp.ErrorCode
	if code == 0 {
		code = status
	}

	switch {
	case code == http.StatusTooManyRequests:
		retryAfter := 0
		if resp.Parameters != nil {
			retryAfter = resp.Parameters.RetryAfter
		}
		return &RateLimitError{
			RetryAfter:  time.Duration(retryAfter) * time.Second,
			Description: resp.Description,
		}

	case code >= 400 && code < 500:
		// chat not found, bot blocked by the user, bad request markup
		return &PermanentError{Code: code, Message: resp.Description}

	default:
		return fmt.Errorf("telegram %s error %d: %s", method, code, resp.Description)
	}
}

// PermanentError indicates a delivery failure that retrying cannot fix.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RateLimitError indicates the Bot API asked us to slow down.
type RateLimitError struct {
	RetryAfter  time.Duration
	Description string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telegram rate limited, retry after %s: %s", e.RetryAfter, e.Description)
}

// IsRetryable returns true as these errors are temporary.
func (e *RateLimitError) IsRetryable() bool { return true }
