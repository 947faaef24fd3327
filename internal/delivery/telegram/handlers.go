package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/NasaVasa/shopalerts/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Handlers struct {
	userUC  *usecase.UserUsecase
	alertUC *usecase.AlertUsecase
	logger  *zap.Logger
}

func NewHandlers(userUC *usecase.UserUsecase, alertUC *usecase.AlertUsecase, logger *zap.Logger) *Handlers {
	return &Handlers{userUC: userUC, alertUC: alertUC, logger: logger}
}

func (h *Handlers) HandleUpdate(ctx context.Context, api MessageSender, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	if update.Message.From == nil {
		return
	}
	if update.Message.IsCommand() {
		h.handleCommand(ctx, api, update)
		return
	}
}

func (h *Handlers) handleCommand(ctx context.Context, api MessageSender, update tgbotapi.Update) {
	command := update.Message.Command()
	args := update.Message.CommandArguments()
	chatID := update.Message.Chat.ID
	telegramUserID := update.Message.From.ID
	username := update.Message.From.UserName

	h.logger.Info(
		"telegram command received",
		zap.Int64("chat_id", chatID),
		zap.Int64("telegram_user_id", telegramUserID),
		zap.String("username", username),
		zap.String("command", command),
		zap.String("args", args),
	)

	switch command {
	case "start":
		if _, err := h.userUC.StartOrGetUser(ctx, telegramUserID, username); err != nil {
			h.logger.Warn("start command failed", zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
			h.reply(api, chatID, "Failed to register. Please try again.")
			return
		}
		h.reply(api, chatID, "Welcome to Shop Alerts.\n\n"+HelpText)
	case "help":
		h.reply(api, chatID, HelpText)
	case "price_alert":
		productID, target, err := ParsePriceAlertArgs(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /price_alert <product_id> <target_price>")
			return
		}
		user, ok := h.user(ctx, api, chatID, telegramUserID)
		if !ok {
			return
		}
		alert, err := h.alertUC.CreatePriceAlert(ctx, user.ID, productID, target)
		if err != nil {
			h.logger.Warn("price_alert failed", zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
			h.reply(api, chatID, h.alertErrorMessage(err))
			return
		}
		h.logger.Info("price_alert complete", zap.Int64("telegram_user_id", telegramUserID), zap.Uint("alert_id", alert.ID))
		h.reply(api, chatID, fmt.Sprintf(
			"Price alert #%d created for product %d: notify at %s or below (now %s).",
			alert.ID, alert.ProductID, alert.Price.TargetPrice.StringFixed(2), alert.Price.CurrentPrice.StringFixed(2),
		))
	case "stock_alert":
		productID, threshold, err := ParseStockAlertArgs(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /stock_alert <product_id> [threshold]")
			return
		}
		user, ok := h.user(ctx, api, chatID, telegramUserID)
		if !ok {
			return
		}
		alert, err := h.alertUC.CreateStockAlert(ctx, user.ID, productID, threshold)
		if err != nil {
			h.logger.Warn("stock_alert failed", zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
			h.reply(api, chatID, h.alertErrorMessage(err))
			return
		}
		h.logger.Info("stock_alert complete", zap.Int64("telegram_user_id", telegramUserID), zap.Uint("alert_id", alert.ID))
		h.reply(api, chatID, fmt.Sprintf(
			"Stock alert #%d created for product %d: notify when more than %d are available.",
			alert.ID, alert.ProductID, alert.Stock.Threshold,
		))
	case "alerts":
		user, ok := h.user(ctx, api, chatID, telegramUserID)
		if !ok {
			return
		}
		active := true
		var all []domain.Alert
		for _, kind := range domain.AlertKinds {
			alerts, err := h.alertUC.ListAlerts(ctx, user.ID, kind, &active)
			if err != nil {
				h.logger.Warn("alerts list failed", zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
				h.reply(api, chatID, h.alertErrorMessage(err))
				return
			}
			all = append(all, alerts...)
		}
		if len(all) == 0 {
			h.reply(api, chatID, "No active alerts. Use /price_alert or /stock_alert to create one.")
			return
		}
		h.reply(api, chatID, formatAlertList(all))
	case "disable", "delete":
		kind, alertID, err := ParseAlertRef(args)
		if err != nil {
			h.reply(api, chatID, fmt.Sprintf("Usage: /%s <price|stock> <alert_id>", command))
			return
		}
		user, ok := h.user(ctx, api, chatID, telegramUserID)
		if !ok {
			return
		}
		if command == "disable" {
			err = h.alertUC.DisableAlert(ctx, user.ID, kind, alertID)
		} else {
			err = h.alertUC.DeleteAlert(ctx, user.ID, kind, alertID)
		}
		if err != nil {
			h.logger.Warn(command+" failed", zap.Int64("telegram_user_id", telegramUserID), zap.Uint("alert_id", alertID), zap.Error(err))
			h.reply(api, chatID, h.alertErrorMessage(err))
			return
		}
		h.logger.Info(command+" complete", zap.Int64("telegram_user_id", telegramUserID), zap.Uint("alert_id", alertID))
		h.reply(api, chatID, fmt.Sprintf("%s alert #%d %sd.", capitalize(string(kind)), alertID, command))
	case "stats":
		user, ok := h.user(ctx, api, chatID, telegramUserID)
		if !ok {
			return
		}
		stats, err := h.alertUC.Stats(ctx, user.ID)
		if err != nil {
			h.reply(api, chatID, h.alertErrorMessage(err))
			return
		}
		h.reply(api, chatID, fmt.Sprintf(
			"Price alerts: %d total, %d active, %d triggered\nStock alerts: %d total, %d active, %d triggered",
			stats.Price.Total, stats.Price.Active, stats.Price.Triggered,
			stats.Stock.Total, stats.Stock.Active, stats.Stock.Triggered,
		))
	case "email":
		address, err := ParseEmailArgs(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /email <address|off>")
			return
		}
		user, ok := h.user(ctx, api, chatID, telegramUserID)
		if !ok {
			return
		}
		if _, err := h.userUC.SetEmail(ctx, user.ID, address); err != nil {
			h.logger.Warn("email failed", zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
			h.reply(api, chatID, h.alertErrorMessage(err))
			return
		}
		if address == "" {
			h.reply(api, chatID, "Email alerts turned off. Alerts will arrive here.")
			return
		}
		h.reply(api, chatID, fmt.Sprintf("Alerts will be emailed to %s.", address))
	default:
		h.logger.Warn("unknown command", zap.Int64("telegram_user_id", telegramUserID), zap.String("command", command))
		h.reply(api, chatID, "Unknown command.\n\n"+HelpText)
	}
}

func (h *Handlers) user(ctx context.Context, api MessageSender, chatID, telegramUserID int64) (*domain.User, bool) {
	user, err := h.userUC.TelegramUser(ctx, telegramUserID)
	if err != nil {
		h.reply(api, chatID, h.alertErrorMessage(err))
		return nil, false
	}
	return user, true
}

func (h *Handlers) alertErrorMessage(err error) string {
	switch {
	case errors.Is(err, usecase.ErrUserNotRegistered):
		return "Please /start to register first."
	case errors.Is(err, usecase.ErrProductNotFound):
		return "Product not found."
	case errors.Is(err, usecase.ErrAlertExists):
		return "You already have an active alert of that kind for this product."
	case errors.Is(err, usecase.ErrInvalidTargetPrice):
		return "Invalid target price. Use a non-negative amount like 949.50."
	case errors.Is(err, usecase.ErrInvalidThreshold):
		return "Invalid threshold. Use a whole number of 0 or more."
	case errors.Is(err, usecase.ErrAlertNotFound):
		return "Alert not found."
	case errors.Is(err, usecase.ErrInvalidEmail):
		return "That does not look like an email address."
	}

	h.logger.Warn("unhandled error", zap.Error(err))
	return "Something went wrong. Please try again."
}

func formatAlertList(alerts []domain.Alert) string {
	const maxMessageLen = 3800

	var builder strings.Builder
	builder.WriteString("Your alerts:\n")
	for i, alert := range alerts {
		line := formatAlertLine(alert)
		if builder.Len()+len(line) > maxMessageLen {
			builder.WriteString(fmt.Sprintf("...and %d more", len(alerts)-i))
			break
		}
		builder.WriteString(line)
	}
	return builder.String()
}

func formatAlertLine(alert domain.Alert) string {
	status := "watching"
	switch {
	case alert.NotificationSent:
		status = "notified"
	case alert.IsTriggered:
		status = "triggered"
	}

	switch alert.Kind {
	case domain.AlertKindPrice:
		return fmt.Sprintf("#%d [price, %s] product %d: target %s, last seen %s\n",
			alert.ID, status, alert.ProductID, alert.Price.TargetPrice.StringFixed(2), alert.Price.CurrentPrice.StringFixed(2))
	default:
		return fmt.Sprintf("#%d [stock, %s] product %d: more than %d in stock\n",
			alert.ID, status, alert.ProductID, alert.Stock.Threshold)
	}
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

func (h *Handlers) reply(api MessageSender, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := api.Send(msg); err != nil {
		h.logger.Warn("failed to send message", zap.Error(err))
	}
}
