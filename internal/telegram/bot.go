package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"meal-buddy/internal/app"
	"meal-buddy/internal/config"
	"meal-buddy/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handlerTimeout bounds the work done for one update, model calls included.
const handlerTimeout = 2 * time.Minute

// Sender is the part of the Telegram API the bot talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Bot routes Telegram updates to the application.
type Bot struct {
	api          Sender
	app          *app.App
	metricsStore *metrics.Store
	dataDir      string
	allowed      map[int64]struct{}
	sessions     *SessionRepository
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, svc *app.Services, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("authorized on telegram", "account", api.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	logger.Info("webhook set", "description", resp.Description)

	return newBot(api, svc, cfg.TelegramAllowedUserIDs, logger), nil
}

func newBot(api Sender, svc *app.Services, allowedIDs []int64, logger *slog.Logger) *Bot {
	allowed := make(map[int64]struct{}, len(allowedIDs))
	for _, id := range allowedIDs {
		allowed[id] = struct{}{}
	}
	return &Bot{
		api:          api,
		app:          svc.App,
		metricsStore: svc.Metrics,
		dataDir:      svc.DataDir,
		allowed:      allowed,
		sessions:     NewSessionRepository(DefaultSessionTTL),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

// Router returns the HTTP handler serving the webhook and health check.
func (b *Bot) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/webhook", b.handleWebhook)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return r
}

// CleanupSessions drops expired pending plans until ctx is done.
func (b *Bot) CleanupSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.sessions.CleanupExpired(); n > 0 {
				b.logger.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.logger.Warn("error parsing update", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	switch {
	case update.CallbackQuery != nil:
		if !b.isAllowed(update.CallbackQuery.From) {
			return
		}
		go b.withTimeout(func(ctx context.Context) { b.handleCallbackQuery(ctx, update.CallbackQuery) })
	case update.Message != nil:
		if !b.isAllowed(update.Message.From) {
			return
		}
		go b.withTimeout(func(ctx context.Context) { b.processMessage(ctx, update.Message) })
	}
}

func (b *Bot) withTimeout(fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	fn(ctx)
}

func (b *Bot) isAllowed(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	if _, ok := b.allowed[from.ID]; ok {
		return true
	}
	b.logger.Warn("unauthorized access attempt", "user_id", from.ID, "username", from.UserName)
	return false
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}
