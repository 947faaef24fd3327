package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/NasaVasa/shopalerts/internal/infra/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errSendFailed = errors.New("smtp unavailable")

type fakeSender struct {
	mu       sync.Mutex
	sent     []domain.Message
	failures int
	fail     bool
}

func (s *fakeSender) Send(ctx context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		s.failures++
		return errSendFailed
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *fakeSender) messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.sent...)
}

type testEnv struct {
	store      *memory.Store
	email      *fakeSender
	telegram   *fakeSender
	dispatcher *NotificationDispatcher
	executor   *TriggerExecutor
	products   *ProductUsecase
	alerts     *AlertUsecase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	email := &fakeSender{}
	telegram := &fakeSender{}
	logger := zap.NewNop()

	dispatcher := NewNotificationDispatcher(
		store.Alerts,
		store.Users,
		store.Products,
		map[domain.Channel]domain.Sender{
			domain.ChannelEmail:    email,
			domain.ChannelTelegram: telegram,
		},
		DispatcherConfig{SendTimeout: time.Second, FrontendURL: "http://shop.test"},
		nil,
		logger,
	)
	executor := NewTriggerExecutor(store.Alerts, store.Products, dispatcher, true, nil, logger)

	return &testEnv{
		store:      store,
		email:      email,
		telegram:   telegram,
		dispatcher: dispatcher,
		executor:   executor,
		products:   NewProductUsecase(store.Products, executor, logger),
		alerts:     NewAlertUsecase(store.Users, store.Alerts, store.Products),
	}
}

func (e *testEnv) addUser(t *testing.T, email string) domain.User {
	t.Helper()
	user := &domain.User{Name: "Asha", Email: email, EmailNotifications: true}
	require.NoError(t, e.store.Users.Create(context.Background(), user))
	return *user
}

func (e *testEnv) addProduct(t *testing.T, sellerID uint, price string, quantity int) domain.Product {
	t.Helper()
	product := &domain.Product{
		SellerID: sellerID,
		Name:     "Walnut Desk",
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
	}
	require.NoError(t, e.store.Products.Create(context.Background(), product))
	return *product
}

func (e *testEnv) alert(t *testing.T, alertID uint) domain.Alert {
	t.Helper()
	alert, err := e.store.Alerts.GetByID(context.Background(), alertID)
	require.NoError(t, err)
	return *alert
}

// faultyAlerts fails ConditionalTrigger for selected alert ids.
type faultyAlerts struct {
	domain.AlertRepository
	failTrigger map[uint]bool
	failList    bool
}

func (f *faultyAlerts) ConditionalTrigger(ctx context.Context, alertID uint, update domain.TriggerUpdate) (bool, error) {
	if f.failTrigger[alertID] {
		return false, errors.New("connection reset")
	}
	return f.AlertRepository.ConditionalTrigger(ctx, alertID, update)
}

func (f *faultyAlerts) ListActiveUntriggered(ctx context.Context, kind domain.AlertKind, productID *uint) ([]domain.Alert, error) {
	if f.failList {
		return nil, errors.New("connection reset")
	}
	return f.AlertRepository.ListActiveUntriggered(ctx, kind, productID)
}
