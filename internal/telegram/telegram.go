// Package telegram wraps the Telegram Bot API for AgentMint.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the subset of Bot API operations the messaging layer uses.
type TelegramSender interface {
	SendMessage(ctx context.Context, chatID int64, body string) error
	SendMarkdown(ctx context.Context, chatID int64, body string) error
	SetWebhook(ctx context.Context, url string) error
	DeleteWebhook(ctx context.Context) error
}

// botAPI is satisfied by *tgbotapi.BotAPI.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Opts holds configuration options for the Telegram client.
type Opts struct {
	Token    string
	Endpoint string
	Debug    bool
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithToken sets the bot token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithAPIEndpoint overrides the Bot API endpoint format string.
func WithAPIEndpoint(endpoint string) Option {
	return func(o *Opts) { o.Endpoint = endpoint }
}

// WithDebug enables request logging inside the Bot API library.
func WithDebug(debug bool) Option {
	return func(o *Opts) { o.Debug = debug }
}

// Client wraps the Bot API for sending replies and managing the webhook.
type Client struct {
	bot      botAPI
	username string
}

// NewClient authenticates against the Bot API. The token falls back to BOT_TOKEN.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("BOT_TOKEN")
	}
	slog.Debug("Telegram client config loaded", "Token_set", cfg.Token != "", "custom_endpoint", cfg.Endpoint != "")
	if cfg.Token == "" {
		return nil, fmt.Errorf("BOT_TOKEN must be provided")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	slog.Info("Telegram bot authenticated", "username", bot.Self.UserName)

	return &Client{bot: bot, username: bot.Self.UserName}, nil
}

// Username returns the bot's Telegram handle.
func (c *Client) Username() string {
	return c.username
}

// SendMessage sends a plain text message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, body string) error {
	return c.send(chatID, body, "")
}

// SendMarkdown sends a message rendered with Telegram's Markdown parse mode.
func (c *Client) SendMarkdown(ctx context.Context, chatID int64, body string) error {
	return c.send(chatID, body, tgbotapi.ModeMarkdown)
}

func (c *Client) send(chatID int64, body, parseMode string) error {
	msg := tgbotapi.NewMessage(chatID, body)
	msg.ParseMode = parseMode
	if _, err := c.bot.Send(msg); err != nil {
		slog.Error("Telegram SendMessage failed", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	slog.Debug("Telegram message sent", "chat_id", chatID, "parse_mode", parseMode)
	return nil
}

// SetWebhook points the bot's updates at url.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the registered webhook.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// ParseUpdate decodes a webhook request body into an Update.
func ParseUpdate(r *http.Request) (*tgbotapi.Update, error) {
	if r.Method != http.MethodPost {
		return nil, fmt.Errorf("wrong HTTP method %s, POST required", r.Method)
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		return nil, fmt.Errorf("failed to decode update: %w", err)
	}
	return &update, nil
}

// MockClient records outbound calls for tests.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	Webhooks     []string
	Deletes      int
	SendErr      error
}

// SentMessage is a message captured by MockClient.
type SentMessage struct {
	ChatID   int64
	Body     string
	Markdown bool
}

func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

func (m *MockClient) SendMessage(ctx context.Context, chatID int64, body string) error {
	return m.record(chatID, body, false)
}

func (m *MockClient) SendMarkdown(ctx context.Context, chatID int64, body string) error {
	return m.record(chatID, body, true)
}

func (m *MockClient) record(chatID int64, body string, markdown bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.SentMessages = append(m.SentMessages, SentMessage{ChatID: chatID, Body: body, Markdown: markdown})
	return nil
}

func (m *MockClient) SetWebhook(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Webhooks = append(m.Webhooks, url)
	return nil
}

func (m *MockClient) DeleteWebhook(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes++
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockClient) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}
