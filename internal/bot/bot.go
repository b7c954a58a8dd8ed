// Package bot is the Telegram transport. It maps chat events onto the
// economy services and renders their results; it holds no business rules.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PercyTuncar/bot-2026-sub001/internal/economy"
	"github.com/PercyTuncar/bot-2026-sub001/internal/groupconfig"
	"github.com/PercyTuncar/bot-2026-sub001/internal/identity"
	"github.com/PercyTuncar/bot-2026-sub001/internal/ledger"
	"github.com/PercyTuncar/bot-2026-sub001/internal/messages"
	"github.com/PercyTuncar/bot-2026-sub001/internal/moderation"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
)

// apiClient is the subset of *tgbotapi.BotAPI the bot uses.
type apiClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

type Config struct {
	Token             string
	Language          string
	AdminIDs          []int64
	WebhookURL        string // webhook mode when set, long polling otherwise
	WebhookListenAddr string
	WebhookSecret     string
}

// Services are the workflows the bot drives.
type Services struct {
	Identity   *identity.Resolver
	Ledger     *ledger.Ledger
	Economy    *economy.Engine
	Moderation *moderation.Service
	Configs    *groupconfig.Service
	Contacts   storage.ContactStore // optional
}

type Bot struct {
	api    apiClient
	cfg    Config
	svc    Services
	text   *messages.Formatter
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg Config, svc Services, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	b := newBot(api, cfg, svc, logger)
	b.logger.Info("authorized", "account", api.Self.UserName)
	return b, nil
}

func newBot(api apiClient, cfg Config, svc Services, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:    api,
		cfg:    cfg,
		svc:    svc,
		text:   messages.New(cfg.Language),
		logger: logger,
		now:    time.Now,
	}
}

// Run receives updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.cfg.WebhookURL != "" {
		return b.runWebhook(ctx)
	}
	return b.runPolling(ctx)
}

func (b *Bot) runPolling(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("failed to clear webhook", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message"}
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("receiving updates", "mode", "polling")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) runWebhook(ctx context.Context) error {
	if b.cfg.WebhookSecret == "" {
		return errors.New("webhook mode needs a secret")
	}
	hook, err := tgbotapi.NewWebhook(strings.TrimRight(b.cfg.WebhookURL, "/") + "/telegram/" + b.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	hook.AllowedUpdates = []string{"message"}
	if _, err := b.api.Request(hook); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}

	srv := &http.Server{
		Addr:              b.cfg.WebhookListenAddr,
		Handler:           b.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		b.logger.Info("receiving updates", "mode", "webhook", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Router serves the webhook endpoint and a health check. Updates are handled
// under base so they outlive a client that hangs up.
func (b *Bot) Router(base context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/telegram/{secret}", func(w http.ResponseWriter, req *http.Request) {
		if b.cfg.WebhookSecret == "" || chi.URLParam(req, "secret") != b.cfg.WebhookSecret {
			http.NotFound(w, req)
			return
		}
		update, err := b.api.HandleUpdate(req)
		if err != nil {
			b.logger.Warn("bad webhook payload", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.HandleUpdate(base, *update)
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("error sending message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(to *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(to.Chat.ID, text)
	msg.ReplyToMessageID = to.MessageID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("error sending reply", "chat_id", to.Chat.ID, "error", err)
	}
}

// notifyAdmins sends a private message to every configured admin.
// Delivery failures are logged and otherwise ignored.
func (b *Bot) notifyAdmins(text string) {
	for _, id := range b.cfg.AdminIDs {
		b.sendMessage(id, text)
	}
}

// notifyMember sends a private message to a member when their id maps to a
// Telegram user. Members who never opened a chat with the bot are skipped.
func (b *Bot) notifyMember(memberID, text string) {
	if id, ok := userIDOf(memberID); ok {
		b.sendMessage(id, text)
	}
}

// isStaff reports whether userID administers chatID or is a configured admin.
func (b *Bot) isStaff(chatID, userID int64) bool {
	if slices.Contains(b.cfg.AdminIDs, userID) {
		return true
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		b.logger.Warn("admin check failed", "chat_id", chatID, "user_id", userID, "error", err)
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

// kick removes a member without a permanent ban.
func (b *Bot) kick(chatID, userID int64) error {
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	}
	if _, err := b.api.Request(ban); err != nil {
		return fmt.Errorf("ban member: %w", err)
	}
	unban := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	}
	if _, err := b.api.Request(unban); err != nil {
		return fmt.Errorf("unban member: %w", err)
	}
	return nil
}
