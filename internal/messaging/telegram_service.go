package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/AgentMint/internal/models"
	"github.com/BTreeMap/AgentMint/internal/telegram"
)

// TelegramService implements Service on top of the Telegram Bot API using webhooks.
type TelegramService struct {
	emitter
	client     telegram.TelegramSender
	webhookURL string
	unhook     sync.Once
}

// webhookDeleteTimeout bounds the deleteWebhook call made by Stop.
const webhookDeleteTimeout = 5 * time.Second

// NewTelegramService creates a TelegramService. When webhookURL is non-empty
// Start registers it with Telegram.
func NewTelegramService(client telegram.TelegramSender, webhookURL string) *TelegramService {
	return &TelegramService{
		emitter:    newEmitter("TelegramService"),
		client:     client,
		webhookURL: webhookURL,
	}
}

// WebhookPath returns the route Telegram posts updates to for a bot token.
func WebhookPath(token string) string {
	return "/telegram/" + token
}

// WebhookURL builds the public webhook URL for a domain and bot token.
func WebhookURL(domain, token string) string {
	domain = strings.TrimSuffix(strings.TrimPrefix(domain, "https://"), "/")
	return "https://" + domain + WebhookPath(token)
}

// ValidateAndCanonicalizeRecipient checks that the recipient is a numeric chat id.
func (s *TelegramService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	id, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram chat id %q: %w", recipient, err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Start registers the webhook if one is configured.
func (s *TelegramService) Start(ctx context.Context) error {
	if s.webhookURL == "" {
		slog.Debug("TelegramService Start: no webhook url configured")
		return nil
	}
	if err := s.client.SetWebhook(ctx, s.webhookURL); err != nil {
		slog.Error("TelegramService failed to set webhook", "error", err)
		return err
	}
	slog.Info("TelegramService webhook registered")
	return nil
}

// Stop removes the registered webhook, then closes channels. Telegram holds
// updates sent while no webhook is set and delivers them on the next Start.
func (s *TelegramService) Stop() error {
	if s.webhookURL != "" {
		s.unhook.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), webhookDeleteTimeout)
			defer cancel()
			if err := s.client.DeleteWebhook(ctx); err != nil {
				slog.Warn("TelegramService failed to delete webhook", "error", err)
				return
			}
			slog.Info("TelegramService webhook deleted")
		})
	}
	s.stop()
	return nil
}

// SendMessage sends a plain message and emits a receipt
func (s *TelegramService) SendMessage(ctx context.Context, to string, body string) error {
	return s.send(ctx, to, body, false)
}

// SendMarkdown sends a Markdown message and emits a receipt
func (s *TelegramService) SendMarkdown(ctx context.Context, to string, body string) error {
	return s.send(ctx, to, body, true)
}

func (s *TelegramService) send(ctx context.Context, to, body string, markdown bool) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TelegramService send validation error", "error", err, "to", to)
		return err
	}
	chatID, _ := strconv.ParseInt(canonicalTo, 10, 64)

	if markdown {
		err = s.client.SendMarkdown(ctx, chatID, body)
	} else {
		err = s.client.SendMessage(ctx, chatID, body)
	}
	if err != nil {
		s.safeEmitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusFailed, Time: time.Now().Unix()})
		return err
	}

	s.safeEmitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// WebhookHandler handles Telegram update deliveries. Text messages are
// emitted on Responses(); every other update is acknowledged and ignored so
// Telegram does not redeliver it.
func (s *TelegramService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	update, err := telegram.ParseUpdate(r)
	if err != nil {
		slog.Error("Failed to parse Telegram update", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		slog.Debug("Telegram update ignored (no text message)", "update_id", update.UpdateID)
		w.WriteHeader(http.StatusOK)
		return
	}

	response := models.Response{
		From:      strconv.FormatInt(msg.Chat.ID, 10),
		Body:      msg.Text,
		Time:      int64(msg.Date),
		MessageID: "tg:" + strconv.Itoa(update.UpdateID),
	}
	if msg.IsCommand() {
		response.Command = msg.Command()
	}
	if response.Time == 0 {
		response.Time = time.Now().Unix()
	}

	slog.Info("Inbound Telegram message", "from", response.From, "update_id", update.UpdateID, "command", response.Command)
	s.safeEmitResponse(response)
	w.WriteHeader(http.StatusOK)
}
