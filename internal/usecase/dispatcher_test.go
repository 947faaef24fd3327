package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func triggerNow(t *testing.T, env *testEnv, alertID uint) domain.Alert {
	t.Helper()
	applied, err := env.store.Alerts.ConditionalTrigger(context.Background(), alertID, domain.TriggerUpdate{TriggeredAt: time.Now().UTC()})
	require.NoError(t, err)
	require.True(t, applied)
	return env.alert(t, alertID)
}

func TestDispatchPendingIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "asha@example.com")
	product := env.addProduct(t, 1, "10", 4)

	priceAlert, err := env.alerts.CreatePriceAlert(ctx, user.ID, product.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	stockAlert, err := env.alerts.CreateStockAlert(ctx, user.ID, product.ID, 0)
	require.NoError(t, err)
	triggerNow(t, env, priceAlert.ID)
	triggerNow(t, env, stockAlert.ID)

	first, err := env.dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	second, err := env.dispatcher.DispatchPending(ctx)
	require.NoError(t, err)

	assert.Equal(t, DispatchResult{Delivered: 2}, first)
	assert.Equal(t, DispatchResult{}, second)
	assert.Len(t, env.email.messages(), 2)
}

func TestDispatchFailureStaysPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "asha@example.com")
	product := env.addProduct(t, 1, "10", 4)

	alert, err := env.alerts.CreatePriceAlert(ctx, user.ID, product.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	triggerNow(t, env, alert.ID)

	env.email.setFail(true)
	for i := 0; i < 3; i++ {
		result, err := env.dispatcher.DispatchPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, DispatchResult{Failed: 1}, result)
	}
	stored := env.alert(t, alert.ID)
	assert.True(t, stored.IsTriggered)
	assert.False(t, stored.NotificationSent)
	assert.Equal(t, 3, env.email.failures)

	env.email.setFail(false)
	result, err := env.dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{Delivered: 1}, result)
	assert.True(t, env.alert(t, alert.ID).NotificationSent)
}

func TestDispatchOneRequiresTrigger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "asha@example.com")
	product := env.addProduct(t, 1, "10", 4)

	alert, err := env.alerts.CreatePriceAlert(ctx, user.ID, product.ID, decimal.NewFromInt(20))
	require.NoError(t, err)

	assert.False(t, env.dispatcher.DispatchOne(ctx, *alert))
	stored := env.alert(t, alert.ID)
	assert.False(t, stored.NotificationSent)
	assert.Empty(t, env.email.messages())

	// A stale copy claiming to be triggered is checked against storage.
	forged := stored
	forged.IsTriggered = true
	assert.False(t, env.dispatcher.DispatchOne(ctx, forged))
	stored = env.alert(t, alert.ID)
	assert.False(t, stored.NotificationSent)
	assert.False(t, stored.IsTriggered)
	assert.Empty(t, env.email.messages())
}

func TestDispatchOneSkipsNotifiedAlert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "asha@example.com")
	product := env.addProduct(t, 1, "10", 4)

	alert, err := env.alerts.CreatePriceAlert(ctx, user.ID, product.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	triggered := triggerNow(t, env, alert.ID)

	require.True(t, env.dispatcher.DispatchOne(ctx, triggered))
	assert.False(t, env.dispatcher.DispatchOne(ctx, env.alert(t, alert.ID)))
	assert.Len(t, env.email.messages(), 1)
}

func TestDispatchRecipientResolution(t *testing.T) {
	tests := []struct {
		name         string
		user         domain.User
		noEmail      bool
		delivered    bool
		emailSent    int
		telegramSent int
		telegramTo   string
	}{
		{
			name:      "email preferred",
			user:      domain.User{Email: "asha@example.com", EmailNotifications: true, TelegramUserID: 42},
			delivered: true,
			emailSent: 1,
		},
		{
			name:         "email disabled falls back to telegram",
			user:         domain.User{Email: "asha@example.com", EmailNotifications: false, TelegramUserID: 42},
			delivered:    true,
			telegramSent: 1,
			telegramTo:   "42",
		},
		{
			name:         "telegram only user",
			user:         domain.User{TelegramUserID: 7, EmailNotifications: true},
			delivered:    true,
			telegramSent: 1,
			telegramTo:   "7",
		},
		{
			name:      "opted out of every channel",
			user:      domain.User{Email: "asha@example.com", EmailNotifications: false},
			delivered: true,
		},
		{
			name:    "email unconfigured keeps alert pending",
			user:    domain.User{Email: "asha@example.com", EmailNotifications: true},
			noEmail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			user := tt.user
			require.NoError(t, env.store.Users.Create(ctx, &user))
			product := env.addProduct(t, 1, "10", 4)

			alert, err := env.alerts.CreateStockAlert(ctx, user.ID, product.ID, 0)
			require.NoError(t, err)
			triggered := triggerNow(t, env, alert.ID)

			dispatcher := env.dispatcher
			if tt.noEmail {
				dispatcher = NewNotificationDispatcher(
					env.store.Alerts,
					env.store.Users,
					env.store.Products,
					map[domain.Channel]domain.Sender{domain.ChannelEmail: nil},
					DispatcherConfig{SendTimeout: time.Second},
					nil,
					zap.NewNop(),
				)
			}

			assert.Equal(t, tt.delivered, dispatcher.DispatchOne(ctx, triggered))
			assert.Equal(t, tt.delivered, env.alert(t, alert.ID).NotificationSent)
			assert.Len(t, env.email.messages(), tt.emailSent)
			telegram := env.telegram.messages()
			require.Len(t, telegram, tt.telegramSent)
			if tt.telegramSent > 0 {
				assert.Equal(t, tt.telegramTo, telegram[0].To)
				assert.Equal(t, domain.ChannelTelegram, telegram[0].Channel)
			}
		})
	}
}

func TestDispatchMissingProductCountsAsFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "asha@example.com")
	product := env.addProduct(t, 1, "10", 4)

	alert, err := env.alerts.CreatePriceAlert(ctx, user.ID, product.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	triggerNow(t, env, alert.ID)
	env.store.Products.Delete(product.ID)

	result, err := env.dispatcher.DispatchPending(ctx)
	require.NoError(t, err)

	assert.Equal(t, DispatchResult{Failed: 1}, result)
	assert.False(t, env.alert(t, alert.ID).NotificationSent)
}

func TestNotifiedImpliesTriggered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "asha@example.com")

	var ids []uint
	for i := 0; i < 6; i++ {
		product := env.addProduct(t, 1, "100", i%2)
		alert, err := env.alerts.CreatePriceAlert(ctx, user.ID, product.ID, decimal.NewFromInt(int64(80+i*5)))
		require.NoError(t, err)
		ids = append(ids, alert.ID)
		_, err = env.products.UpdatePrice(ctx, 1, product.ID, decimal.NewFromInt(90))
		require.NoError(t, err)
	}
	_, err := env.executor.Sweep(ctx)
	require.NoError(t, err)
	_, err = env.dispatcher.DispatchPending(ctx)
	require.NoError(t, err)

	for _, id := range ids {
		alert := env.alert(t, id)
		if alert.NotificationSent {
			assert.True(t, alert.IsTriggered, "alert %d notified before trigger", id)
		}
	}
}

func TestSendTest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.ErrorIs(t, env.dispatcher.SendTest(ctx, ""), ErrNoRecipient)
	require.NoError(t, env.dispatcher.SendTest(ctx, "ops@example.com"))

	messages := env.email.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "ops@example.com", messages[0].To)
	assert.Equal(t, domain.ChannelEmail, messages[0].Channel)

	noEmail := NewNotificationDispatcher(env.store.Alerts, env.store.Users, env.store.Products, nil, DispatcherConfig{}, nil, zap.NewNop())
	require.ErrorIs(t, noEmail.SendTest(ctx, "ops@example.com"), ErrChannelDisabled)
}

func TestNotificationStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "asha@example.com")
	first := env.addProduct(t, 1, "10", 4)
	second := env.addProduct(t, 1, "10", 4)

	sent, err := env.alerts.CreatePriceAlert(ctx, user.ID, first.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	pending, err := env.alerts.CreatePriceAlert(ctx, user.ID, second.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	_, err = env.alerts.CreateStockAlert(ctx, user.ID, first.ID, 0)
	require.NoError(t, err)

	require.True(t, env.dispatcher.DispatchOne(ctx, triggerNow(t, env, sent.ID)))
	triggerNow(t, env, pending.ID)

	stats, err := env.dispatcher.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationCounts{Triggered: 2, Notified: 1, Pending: 1}, stats.Price)
	assert.Equal(t, domain.NotificationCounts{}, stats.Stock)
}
