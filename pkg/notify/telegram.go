// Package notify delivers captured charts via the Telegram Bot API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// TelegramNotifier sends chart images and messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	APIBase  string // Overridable for tests
	Client   *http.Client
}

// NewTelegramNotifier creates a notifier for the given bot token.
func NewTelegramNotifier(botToken string) *TelegramNotifier {
	return &TelegramNotifier{
		BotToken: botToken,
		APIBase:  defaultAPIBase,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendPhoto uploads a PNG to the given chat with an optional caption.
func (t *TelegramNotifier) SendPhoto(ctx context.Context, chatID string, png []byte, caption string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("chat_id", chatID); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("write caption field: %w", err)
		}
	}
	part, err := w.CreateFormFile("photo", "chart.png")
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(png); err != nil {
		return fmt.Errorf("write photo part: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	apiURL := fmt.Sprintf("%s/bot%s/sendPhoto", t.apiBase(), t.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return t.do(req)
}

// SendMessage sends a plain text message to the given chat.
func (t *TelegramNotifier) SendMessage(ctx context.Context, chatID, text string) error {
	payload := map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase(), t.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return t.do(req)
}

func (t *TelegramNotifier) do(req *http.Request) error {
	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send to Telegram: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (t *TelegramNotifier) apiBase() string {
	if t.APIBase != "" {
		return t.APIBase
	}
	return defaultAPIBase
}
