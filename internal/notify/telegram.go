package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	telegramAPI           = "https://api.telegram.org"
	telegramMaxMessageLen = 4096
)

// TelegramChannel posts messages to one Telegram chat through the Bot API.
type TelegramChannel struct {
	chatID  string
	baseURL string
	client  *http.Client
}

// TelegramOption configures a TelegramChannel.
type TelegramOption func(*TelegramChannel)

// WithAPIURL points the channel at another Bot API host.
func WithAPIURL(apiURL, token string) TelegramOption {
	return func(t *TelegramChannel) {
		t.baseURL = strings.TrimRight(apiURL, "/") + "/bot" + token
	}
}

// NewTelegramChannel creates a Telegram channel that posts to chatID.
func NewTelegramChannel(token, chatID string, opts ...TelegramOption) (*TelegramChannel, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required (SHEETS_TELEGRAM_BOT_TOKEN)")
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram chat id is required (SHEETS_TELEGRAM_CHAT_ID)")
	}
	t := &TelegramChannel{
		chatID:  chatID,
		baseURL: telegramAPI + "/bot" + token,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *TelegramChannel) Send(ctx context.Context, msg Message) error {
	for _, part := range SplitMessage(msg.Text, telegramMaxMessageLen) {
		params := url.Values{
			"chat_id": {t.chatID},
			"text":    {part},
		}
		if msg.ParseMode != "" {
			params.Set("parse_mode", msg.ParseMode)
		}

		status, err := t.post(ctx, params)
		if err != nil {
			return fmt.Errorf("sending Telegram message: %w", err)
		}
		if status == http.StatusOK {
			continue
		}

		// Bad Markdown is rejected with 400; retry the part as plain text.
		if msg.ParseMode != "" && status == http.StatusBadRequest {
			slog.Warn("Telegram markdown parse failed, retrying plain")
			params.Del("parse_mode")
			status, err = t.post(ctx, params)
			if err != nil {
				return fmt.Errorf("sending Telegram message (retry): %w", err)
			}
			if status != http.StatusOK {
				return fmt.Errorf("telegram API error %d on retry", status)
			}
			continue
		}
		return fmt.Errorf("telegram API error %d", status)
	}
	return nil
}

func (t *TelegramChannel) post(ctx context.Context, params url.Values) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/sendMessage", strings.NewReader(params.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// SplitMessage splits text into chunks that fit Telegram's max message length.
func SplitMessage(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		// Find last newline or space within limit
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > 0 {
			cutAt = idx + 1
		} else if idx := strings.LastIndex(text[:maxLen], " "); idx > 0 {
			cutAt = idx + 1
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}
