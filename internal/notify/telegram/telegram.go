// Package telegram sends notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vietddude/pulse/internal/notify"
)

var _ notify.Sender = (*Sender)(nil)

// Config holds the bot settings.
type Config struct {
	Token string
	// APIEndpoint overrides the Bot API URL template (bot token, method).
	APIEndpoint string
	Timeout     time.Duration
}

// Sender implements notify.Sender on top of a Bot API client.
type Sender struct {
	bot *tgbotapi.BotAPI
}

// New creates a sender without contacting Telegram, so startup never depends
// on the Bot API being reachable. Use Verify to check the token.
func New(cfg Config) (*Sender, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	bot := &tgbotapi.BotAPI{
		Token:  cfg.Token,
		Buffer: 100,
		Client: &http.Client{Timeout: cfg.Timeout},
	}
	bot.SetAPIEndpoint(cfg.APIEndpoint)

	return &Sender{bot: bot}, nil
}

// Verify calls getMe and returns the bot username.
func (s *Sender) Verify() (string, error) {
	me, err := s.bot.GetMe()
	if err != nil {
		return "", classify(fmt.Errorf("getMe: %w", err))
	}
	return me.UserName, nil
}

// Send posts an HTML message to a numeric chat ID or an @channel username.
func (s *Sender) Send(ctx context.Context, recipient string, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := newMessage(recipient, html)
	if err != nil {
		return err
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		return classify(fmt.Errorf("send to %s: %w", recipient, err))
	}
	return nil
}

func newMessage(recipient, text string) (tgbotapi.MessageConfig, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return tgbotapi.MessageConfig{}, fmt.Errorf("empty chat id: %w", notify.ErrPermanent)
	}
	if id, err := strconv.ParseInt(recipient, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text), nil
	}
	if !strings.HasPrefix(recipient, "@") {
		recipient = "@" + recipient
	}
	return tgbotapi.NewMessageToChannel(recipient, text), nil
}

// classify marks Bot API rejections that retrying cannot fix as permanent.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%w: %w", notify.ErrPermanent, err)
		}
	}
	return err
}
