package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/NasaVasa/shopalerts/internal/infra/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Notification outcomes, also used as metric labels.
const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
	outcomeOptedOut  = "opted_out"
	outcomeSkipped   = "skipped"
)

type DispatchResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type DispatcherConfig struct {
	SendTimeout   time.Duration
	RatePerSecond float64
	Burst         int
	FrontendURL   string
}

// NotificationDispatcher delivers notifications for triggered alerts and
// records the outcome. It only reads the trigger flag; it never evaluates or
// triggers alerts.
type NotificationDispatcher struct {
	alerts   domain.AlertRepository
	users    domain.UserRepository
	products domain.ProductRepository
	senders  map[domain.Channel]domain.Sender
	limiter  *rate.Limiter
	cfg      DispatcherConfig
	metrics  *metrics.Recorder
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[uint]struct{}
}

// NewNotificationDispatcher builds a dispatcher over the configured senders.
// Channels missing from senders are treated as disabled.
func NewNotificationDispatcher(
	alerts domain.AlertRepository,
	users domain.UserRepository,
	products domain.ProductRepository,
	senders map[domain.Channel]domain.Sender,
	cfg DispatcherConfig,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *NotificationDispatcher {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}

	active := make(map[domain.Channel]domain.Sender, len(senders))
	for channel, sender := range senders {
		if sender != nil {
			active[channel] = sender
		}
	}

	return &NotificationDispatcher{
		alerts:   alerts,
		users:    users,
		products: products,
		senders:  active,
		limiter:  rate.NewLimiter(limit, burst),
		cfg:      cfg,
		metrics:  recorder,
		logger:   logger,
		inFlight: make(map[uint]struct{}),
	}
}

// DispatchPending attempts delivery for every triggered, not yet notified
// alert of both kinds. Failed alerts stay pending for the next sweep.
func (d *NotificationDispatcher) DispatchPending(ctx context.Context) (DispatchResult, error) {
	var (
		result DispatchResult
		errs   []error
	)

	for _, kind := range domain.AlertKinds {
		pending, err := d.alerts.ListPendingNotification(ctx, kind)
		if err != nil {
			d.logger.Error("failed to list pending notifications", zap.String("kind", string(kind)), zap.Error(err))
			errs = append(errs, fmt.Errorf("list pending %s alerts: %w", kind, err))
			continue
		}

		for _, alert := range pending {
			switch d.dispatch(ctx, alert) {
			case outcomeDelivered, outcomeOptedOut:
				result.Delivered++
			case outcomeFailed:
				result.Failed++
			}
		}
	}

	d.logger.Info("notification sweep complete",
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed),
	)
	return result, errors.Join(errs...)
}

// DispatchOne attempts delivery for a single alert and reports whether it is
// now recorded as notified. Alerts that are not awaiting delivery are left
// alone.
func (d *NotificationDispatcher) DispatchOne(ctx context.Context, alert domain.Alert) bool {
	outcome := d.dispatch(ctx, alert)
	return outcome == outcomeDelivered || outcome == outcomeOptedOut
}

// SendTest sends a test message to an email address.
func (d *NotificationDispatcher) SendTest(ctx context.Context, address string) error {
	if address == "" {
		return ErrNoRecipient
	}
	sender, ok := d.senders[domain.ChannelEmail]
	if !ok {
		return ErrChannelDisabled
	}

	subject, body := buildTestMessage()
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	return sender.Send(sendCtx, domain.Message{
		Channel: domain.ChannelEmail,
		To:      address,
		Subject: subject,
		Body:    body,
	})
}

type NotificationStats struct {
	Price domain.NotificationCounts `json:"price"`
	Stock domain.NotificationCounts `json:"stock"`
}

func (d *NotificationDispatcher) Stats(ctx context.Context) (NotificationStats, error) {
	price, err := d.alerts.NotificationCounts(ctx, domain.AlertKindPrice)
	if err != nil {
		return NotificationStats{}, err
	}
	stock, err := d.alerts.NotificationCounts(ctx, domain.AlertKindStock)
	if err != nil {
		return NotificationStats{}, err
	}
	return NotificationStats{Price: price, Stock: stock}, nil
}

func (d *NotificationDispatcher) dispatch(ctx context.Context, alert domain.Alert) string {
	if !alert.AwaitingDelivery() {
		return outcomeSkipped
	}
	if !d.claim(alert.ID) {
		d.logger.Debug("notification already in flight", zap.Uint("alert_id", alert.ID))
		return outcomeSkipped
	}
	defer d.release(alert.ID)

	current, err := d.alerts.GetByID(ctx, alert.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return outcomeSkipped
		}
		d.logger.Warn("failed to reload alert before delivery", zap.Uint("alert_id", alert.ID), zap.Error(err))
		return outcomeFailed
	}
	if !current.AwaitingDelivery() {
		return outcomeSkipped
	}

	outcome := d.deliver(ctx, *current)
	d.metrics.Notification(string(alert.Kind), outcome)
	return outcome
}

func (d *NotificationDispatcher) deliver(ctx context.Context, alert domain.Alert) string {
	fields := []zap.Field{
		zap.Uint("alert_id", alert.ID),
		zap.String("kind", string(alert.Kind)),
		zap.Uint("user_id", alert.UserID),
	}

	user, err := d.users.GetByID(ctx, alert.UserID)
	if err != nil {
		d.logger.Warn("failed to load alert recipient", append(fields, zap.Error(err))...)
		return outcomeFailed
	}
	product, err := d.products.GetByID(ctx, alert.ProductID)
	if err != nil {
		d.logger.Warn("failed to load alert product", append(fields, zap.Uint("product_id", alert.ProductID), zap.Error(err))...)
		return outcomeFailed
	}

	channel, to, err := d.resolveRecipient(*user)
	if errors.Is(err, ErrChannelDisabled) {
		d.logger.Warn("no configured channel reaches recipient", fields...)
		return outcomeFailed
	}
	if errors.Is(err, ErrNoRecipient) {
		if err := d.alerts.MarkNotificationSent(ctx, alert.ID); err != nil {
			d.logger.Error("failed to mark notification sent", append(fields, zap.Error(err))...)
			return outcomeFailed
		}
		d.logger.Info("recipient has no notification channel, marked as notified", fields...)
		return outcomeOptedOut
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Warn("notification rate wait aborted", append(fields, zap.Error(err))...)
		return outcomeFailed
	}

	subject, body := buildAlertMessage(alert, *product, d.cfg.FrontendURL)
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	err = d.senders[channel].Send(sendCtx, domain.Message{
		Channel: channel,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	cancel()
	if err != nil {
		d.logger.Warn("notification send failed", append(fields, zap.String("channel", string(channel)), zap.Error(err))...)
		return outcomeFailed
	}

	if err := d.alerts.MarkNotificationSent(ctx, alert.ID); err != nil {
		d.logger.Error("notification sent but not recorded", append(fields, zap.Error(err))...)
		return outcomeFailed
	}

	d.logger.Info("notification delivered", append(fields, zap.String("channel", string(channel)))...)
	return outcomeDelivered
}

// resolveRecipient prefers email, then Telegram. ErrNoRecipient means the
// user has opted out of every channel; ErrChannelDisabled means the user is
// reachable only over channels this process has no sender for.
func (d *NotificationDispatcher) resolveRecipient(user domain.User) (domain.Channel, string, error) {
	wantsEmail := user.EmailNotifications && user.Email != ""
	wantsTelegram := user.TelegramUserID != 0

	if _, ok := d.senders[domain.ChannelEmail]; ok && wantsEmail {
		return domain.ChannelEmail, user.Email, nil
	}
	if _, ok := d.senders[domain.ChannelTelegram]; ok && wantsTelegram {
		return domain.ChannelTelegram, strconv.FormatInt(user.TelegramUserID, 10), nil
	}
	if wantsEmail || wantsTelegram {
		return "", "", ErrChannelDisabled
	}
	return "", "", ErrNoRecipient
}

func (d *NotificationDispatcher) claim(alertID uint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[alertID]; busy {
		return false
	}
	d.inFlight[alertID] = struct{}{}
	return true
}

func (d *NotificationDispatcher) release(alertID uint) {
	d.mu.Lock()
	delete(d.inFlight, alertID)
	d.mu.Unlock()
}
