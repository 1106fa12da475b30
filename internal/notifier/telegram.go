package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultAPIURL is the public Telegram Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// MaxMessageLen is the longest text Telegram accepts in one message.
const MaxMessageLen = 4096

// Sender delivers formatted messages to a chat.
type Sender interface {
	Send(text string) error
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// APIError is a failed Bot API call.
type APIError struct {
	StatusCode  int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error: status %d: %s", e.StatusCode, e.Description)
}

// Temporary reports whether repeating the same call may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// TelegramNotifier talks to the Telegram Bot API for one authorized chat.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIURL   string
	Client   *http.Client
	// Backoff is the first send retry delay; it doubles per attempt.
	Backoff time.Duration
	// PollTimeout is the long-poll window passed to getUpdates.
	PollTimeout time.Duration
	// PollBackoff is the pause after a failed getUpdates call.
	PollBackoff time.Duration
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken:    botToken,
		ChatID:      chatID,
		APIURL:      DefaultAPIURL,
		Backoff:     time.Second,
		PollTimeout: 30 * time.Second,
		PollBackoff: 5 * time.Second,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// call posts payload to a Bot API method and decodes the result into out.
func (t *TelegramNotifier) call(ctx context.Context, client *http.Client, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.APIURL, t.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var ar apiResponse
	decodeErr := json.Unmarshal(raw, &ar)
	if resp.StatusCode != http.StatusOK || decodeErr != nil || !ar.OK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Description: ar.Description}
		if apiErr.Description == "" {
			apiErr.Description = strings.TrimSpace(string(raw))
		}
		if ar.Parameters != nil {
			apiErr.RetryAfter = time.Duration(ar.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, chatID, text string) error {
	return t.call(ctx, t.Client, "sendMessage", map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
}

// sendTo delivers text to chatID, split into as many messages as needed.
func (t *TelegramNotifier) sendTo(ctx context.Context, chatID, text string) error {
	for _, part := range splitMessage(text, MaxMessageLen) {
		if err := t.sendMessage(ctx, chatID, part); err != nil {
			return err
		}
	}
	return nil
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(text string) error {
	return t.sendTo(context.Background(), t.ChatID, text)
}

// SendWithRetry sends a message, retrying each part with exponential backoff.
// Rejections that cannot succeed on repeat (bad request, bad token) are not retried.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	for _, part := range splitMessage(text, MaxMessageLen) {
		if err := t.retry(ctx, maxRetries, func() error { return t.sendMessage(ctx, t.ChatID, part) }); err != nil {
			return err
		}
	}
	return nil
}

func (t *TelegramNotifier) retry(ctx context.Context, maxRetries int, send func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := send()
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return fmt.Errorf("message rejected: %w", err)
		}
		if attempt == maxRetries {
			break
		}
		wait := t.Backoff << uint(attempt)
		if apiErr != nil && apiErr.RetryAfter > wait {
			wait = apiErr.RetryAfter
		}
		log.Printf("[WARN] Telegram send failed (attempt %d/%d): %v, retrying in %v", attempt+1, maxRetries+1, err, wait)
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// splitMessage cuts text into parts of at most limit runes, preferring line
// breaks so that HTML tags on a line are never separated.
func splitMessage(text string, limit int) []string {
	var parts []string
	for utf8.RuneCountInString(text) > limit {
		cut := runeOffset(text, limit)
		if i := strings.LastIndexByte(text[:cut], '\n'); i > 0 {
			cut = i
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" || len(parts) == 0 {
		parts = append(parts, text)
	}
	return parts
}

// runeOffset returns the byte offset of the n-th rune of s.
func runeOffset(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}
