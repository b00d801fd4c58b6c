package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Bot struct {
	h      *Handlers
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewBot authenticates with token and points the webhook at webhookURL.
func NewBot(token, webhookURL string, svc Analyst, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	webhook, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	if _, err := api.Request(webhook); err != nil {
		return nil, err
	}
	logger.Info("telegram webhook set", zap.String("url", webhookURL), zap.String("bot", api.Self.UserName))

	return newBot(NewHandlers(api, svc, logger), logger), nil
}

func newBot(h *Handlers, logger *zap.Logger) *Bot {
	return &Bot{h: h, logger: logger.Named("telegram")}
}

// WebhookHandler decodes an update and handles its message in the background
// (registered at /telegram/webhook).
func (b *Bot) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	if update.Message == nil || update.Message.Chat == nil {
		b.logger.Debug("non-message update received", zap.Int("update_id", update.UpdateID))
		w.WriteHeader(http.StatusOK)
		return
	}
	b.logger.Info("webhook message",
		zap.Int64("chat_id", update.Message.Chat.ID),
		zap.String("text", update.Message.Text))

	b.wg.Add(1)
	go func(m *tgbotapi.Message) {
		defer b.wg.Done()
		b.h.HandleMessage(context.Background(), m)
	}(update.Message)
	w.WriteHeader(http.StatusOK)
}

// Wait blocks until in-flight messages are handled.
func (b *Bot) Wait() { b.wg.Wait() }
