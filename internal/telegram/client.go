package telegram

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

const defaultBaseURL = "https://api.telegram.org"

// Client talks to the Bot API for one bot token.
type Client struct {
	base       string
	token      string
	httpClient *http.Client
}

// New builds a client for token. baseURL is the API host; empty selects the
// public endpoint.
func New(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		base:       strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
}

func (c *Client) callJSON(ctx context.Context, method string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("telegram %s: encode: %w", method, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), body)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return fmt.Errorf("telegram %s: read: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(b, &api); err != nil {
		return fmt.Errorf("telegram %s: decode: %w (body=%s)", method, err, strings.TrimSpace(string(b)))
	}
	if !api.OK {
		return fmt.Errorf("telegram %s: %s", method, api.Description)
	}
	if out == nil || len(api.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(api.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

// SendMessage sends an HTML-formatted message, optionally with an inline
// keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb *InlineKeyboardMarkup) (*Message, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if kb != nil {
		payload["reply_markup"] = kb
	}
	var msg Message
	if err := c.callJSON(ctx, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageText replaces a previously sent message's text and keyboard.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, kb *InlineKeyboardMarkup) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if kb != nil {
		payload["reply_markup"] = kb
	}
	return c.callJSON(ctx, "editMessageText", payload, nil)
}

// AnswerCallbackQuery acknowledges a button press so the chat client stops
// its spinner. text is optional and shows as a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, id, text string) error {
	payload := map[string]any{"callback_query_id": id}
	if text != "" {
		payload["text"] = text
	}
	return c.callJSON(ctx, "answerCallbackQuery", payload, nil)
}

// SetWebhook points Telegram at url and restricts which update types get
// pushed.
func (c *Client) SetWebhook(ctx context.Context, url string, allowedUpdates []string, dropPending bool) error {
	payload := map[string]any{
		"url":                  url,
		"drop_pending_updates": dropPending,
	}
	if len(allowedUpdates) > 0 {
		payload["allowed_updates"] = allowedUpdates
	}
	return c.callJSON(ctx, "setWebhook", payload, nil)
}

// DeleteWebhook removes the webhook so long polling can take over.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	payload := map[string]any{"drop_pending_updates": dropPending}
	return c.callJSON(ctx, "deleteWebhook", payload, nil)
}

// GetUpdates long-polls for updates starting at offset, holding the request
// open up to timeoutSecs. Keep timeoutSecs under the client's transport
// timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSecs int, allowedUpdates []string) ([]Update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": timeoutSecs,
	}
	if len(allowedUpdates) > 0 {
		payload["allowed_updates"] = allowedUpdates
	}
	var updates []Update
	if err := c.callJSON(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
