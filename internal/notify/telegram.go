package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v3"
)

var (
	ErrNoToken = errors.New("telegram token not set")
	ErrNoChat  = errors.New("no telegram chat id configured")
)

// TelegramConfig is everything needed to post to one or more chats.
type TelegramConfig struct {
	Token   string
	ChatIDs []int64
	// URL overrides the Bot API endpoint.
	URL     string
	Timeout time.Duration
}

// Telegram posts messages through the Bot API.
type Telegram struct {
	bot    *tele.Bot
	chats  []int64
	logger *slog.Logger
	now    func() time.Time
}

// NewTelegram builds a sender for cfg. No request is made until Send.
func NewTelegram(cfg TelegramConfig, logger *slog.Logger) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, ErrNoChat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.URL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: cfg.Timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	return &Telegram{
		bot:    b,
		chats:  append([]int64(nil), cfg.ChatIDs...),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Send signs text and posts it to every configured chat. A failed chat does
// not stop delivery to the others; all failures are returned together.
func (t *Telegram) Send(ctx context.Context, text string) error {
	msg := text + Signature(t.now())

	var errs []error
	for _, id := range t.chats {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(&tele.Chat{ID: id}, msg); err != nil {
			t.logger.Error("telegram send failed", "chat_id", id, "error", err)
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
			continue
		}
		t.logger.Info("notification sent", "chat_id", id)
	}
	return errors.Join(errs...)
}
