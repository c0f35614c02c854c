package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Vantorrr/yauberu-backend/pkg/config"
	pkgerrors "github.com/Vantorrr/yauberu-backend/pkg/errors"
)

// TelegramClient delivers messages through the Bot API. An empty token
// makes every send a silent no-op so local environments need no bot.
type TelegramClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewTelegramClient builds a Bot API client from configuration.
func NewTelegramClient(cfg config.TelegramConfig) *TelegramClient {
	return &TelegramClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		token:      cfg.BotToken,
	}
}

// Enabled reports whether a bot token is configured.
func (c *TelegramClient) Enabled() bool {
	return c.token != ""
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage posts a text message to one chat.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	if !c.Enabled() {
		return nil
	}

	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("encode telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deliver telegram message")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read telegram response")
	}

	var decoded sendMessageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("telegram returned status %d", resp.StatusCode))
	}
	if !decoded.OK {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("telegram rejected message: %s", decoded.Description))
	}
	return nil
}
