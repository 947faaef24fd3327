package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MessageSender is the part of the Bot API the bot and the notification
// channel use.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api         *tgbotapi.BotAPI
	handlers    *Handlers
	pollTimeout int
}

func NewAPI(token string, requestTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: requestTimeout})
}

// WithRequestTimeout returns a copy of api whose requests are bounded by
// timeout. The copy shares the token and bot identity of api.
func WithRequestTimeout(api *tgbotapi.BotAPI, timeout time.Duration) *tgbotapi.BotAPI {
	clone := *api
	clone.Client = &http.Client{Timeout: timeout}
	return &clone
}

func NewBot(api *tgbotapi.BotAPI, handlers *Handlers, pollTimeout int) *Bot {
	return &Bot{api: api, handlers: handlers, pollTimeout: pollTimeout}
}

func (b *Bot) Start(ctx context.Context) error {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(config)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handlers.HandleUpdate(ctx, b.api, update)
		}
	}
}

// Sender delivers alert notifications as Telegram chat messages. Message.To
// is the recipient's chat id. The Bot API call cannot be cancelled, so a
// request still in flight when ctx ends is awaited and its outcome returned;
// the api client timeout bounds that wait.
type Sender struct {
	api    MessageSender
	logger *zap.Logger
}

func NewSender(api MessageSender, logger *zap.Logger) *Sender {
	return &Sender{api: api, logger: logger}
}

func (s *Sender) Send(ctx context.Context, msg domain.Message) error {
	chatID, err := strconv.ParseInt(msg.To, 10, 64)
	if err != nil || chatID == 0 {
		return fmt.Errorf("invalid telegram chat id %q", msg.To)
	}

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.api.Send(tgbotapi.NewMessage(chatID, text))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		s.logger.Debug("telegram notification sent", zap.Int64("chat_id", chatID))
		return nil
	case <-ctx.Done():
	}

	if err := <-done; err != nil {
		return fmt.Errorf("telegram send: %w", errors.Join(ctx.Err(), err))
	}
	s.logger.Warn("telegram notification sent after deadline", zap.Int64("chat_id", chatID))
	return nil
}
