package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/NasaVasa/shopalerts/internal/infra/memory"
	"github.com/NasaVasa/shopalerts/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []domain.Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.sent...)
}

type apiEnv struct {
	store  *memory.Store
	email  *recordingSender
	server *httptest.Server
}

func newAPIEnv(t *testing.T, health func(context.Context) error) *apiEnv {
	t.Helper()

	logger := zap.NewNop()
	store := memory.NewStore()
	email := &recordingSender{}

	dispatcher := usecase.NewNotificationDispatcher(
		store.Alerts,
		store.Users,
		store.Products,
		map[domain.Channel]domain.Sender{domain.ChannelEmail: email},
		usecase.DispatcherConfig{SendTimeout: time.Second, FrontendURL: "http://shop.test"},
		nil,
		logger,
	)
	executor := usecase.NewTriggerExecutor(store.Alerts, store.Products, dispatcher, true, nil, logger)
	products := usecase.NewProductUsecase(store.Products, executor, logger)
	scheduler := usecase.NewAlertScheduler(executor, dispatcher, store.Alerts, usecase.SchedulerConfig{
		CheckInterval:        time.Hour,
		NotificationInterval: time.Hour,
		CleanupInterval:      time.Hour,
		Warmup:               time.Hour,
		RetentionDays:        30,
	}, nil, logger)

	handler := NewHandler(Deps{
		Users:         usecase.NewUserUsecase(store.Users),
		Alerts:        usecase.NewAlertUsecase(store.Users, store.Alerts, store.Products),
		Products:      products,
		Catalog:       usecase.NewCatalogSync(nil, store.Products, products, 10, logger),
		Scheduler:     scheduler,
		Notifications: dispatcher,
		RetentionDays: 30,
		Health:        health,
	}, logger)

	server := httptest.NewServer(NewRouter(handler, http.NotFoundHandler(), 5*time.Second, logger))
	t.Cleanup(server.Close)

	return &apiEnv{store: store, email: email, server: server}
}

func (e *apiEnv) seed(t *testing.T) (domain.User, domain.Product) {
	t.Helper()
	ctx := context.Background()

	user := &domain.User{Name: "Asha", Email: "asha@example.com", EmailNotifications: true}
	require.NoError(t, e.store.Users.Create(ctx, user))

	product := &domain.Product{SellerID: 7, Name: "Walnut Desk", Price: decimal.RequireFromString("100"), Quantity: 0}
	require.NoError(t, e.store.Products.Create(ctx, product))
	return *user, *product
}

func (e *apiEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	var decoded any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	if object, ok := decoded.(map[string]any); ok {
		return resp.StatusCode, object
	}
	return resp.StatusCode, map[string]any{"items": decoded}
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestPriceDropThroughSellerEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)
	user, product := env.seed(t)
	alertsPath := fmt.Sprintf("/api/v1/users/%d/alerts/price", user.ID)

	status, body := env.do(t, http.MethodPost, alertsPath, fmt.Sprintf(`{"product_id":%d,"target_price":"80"}`, product.ID))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "80", body["target_price"])
	assert.Equal(t, "100", body["current_price"])
	assert.Equal(t, false, body["is_triggered"])

	status, body = env.do(t, http.MethodPost, alertsPath, fmt.Sprintf(`{"product_id":%d,"target_price":"70"}`, product.ID))
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "alert_exists", errorCode(body))

	pricePath := fmt.Sprintf("/api/v1/sellers/%d/products/%d/price", product.SellerID, product.ID)
	status, body = env.do(t, http.MethodPut, pricePath, `{"price":75}`)
	require.Equal(t, http.StatusOK, status)
	triggered := body["alerts_triggered"].(map[string]any)
	assert.EqualValues(t, 1, triggered["price"])

	messages := env.email.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "asha@example.com", messages[0].To)

	status, body = env.do(t, http.MethodGet, alertsPath+"?active=true", "")
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	alert := items[0].(map[string]any)
	assert.Equal(t, true, alert["is_triggered"])
	assert.Equal(t, true, alert["notification_sent"])
}

func TestRestockThroughSellerEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)
	user, product := env.seed(t)

	status, _ := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/alerts/stock", user.ID), fmt.Sprintf(`{"product_id":%d}`, product.ID))
	require.Equal(t, http.StatusCreated, status)

	status, body := env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/sellers/%d/products/%d/stock", product.SellerID, product.ID), `{"quantity":5}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["alerts_triggered"].(map[string]any)["stock"])
	assert.Len(t, env.email.messages(), 1)

	status, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sellers/%d/products/%d/alerts", product.SellerID, product.ID), "")
	require.Equal(t, http.StatusOK, status)
	stock := body["stock_alerts"].(map[string]any)
	assert.EqualValues(t, 1, stock["active"])
	assert.EqualValues(t, 0, stock["pending_notifications"])
}

func TestBulkUpdateThroughSellerEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)
	user, product := env.seed(t)

	status, _ := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/alerts/stock", user.ID), fmt.Sprintf(`{"product_id":%d}`, product.ID))
	require.Equal(t, http.StatusCreated, status)

	bulkPath := fmt.Sprintf("/api/v1/sellers/%d/products/bulk", product.SellerID)
	status, body := env.do(t, http.MethodPost, bulkPath, fmt.Sprintf(`{"updates":[
		{"product_id":404,"price":"50"},
		{"product_id":%d,"price":"90","quantity":3},
		{"product_id":%d}
	]}`, product.ID, product.ID))
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["successful"])
	assert.EqualValues(t, 2, body["failed"])

	results := body["results"].([]any)
	require.Len(t, results, 3)

	missing := results[0].(map[string]any)
	assert.Equal(t, false, missing["success"])
	assert.Equal(t, "not_found", errorCode(missing))
	assert.Nil(t, missing["product"])

	updated := results[1].(map[string]any)
	assert.Equal(t, true, updated["success"])
	assert.Nil(t, updated["error"])
	assert.Equal(t, "90", updated["product"].(map[string]any)["price"])
	assert.EqualValues(t, 3, updated["product"].(map[string]any)["quantity"])
	assert.EqualValues(t, 1, updated["alerts_triggered"].(map[string]any)["stock"])

	empty := results[2].(map[string]any)
	assert.Equal(t, "invalid_request", errorCode(empty))

	assert.Len(t, env.email.messages(), 1)

	status, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sellers/%d/dashboard", product.SellerID), "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total_products"])
	assert.EqualValues(t, 1, body["products_with_alerts"])
	assert.EqualValues(t, 1, body["low_stock_products"])
	assert.EqualValues(t, 0, body["out_of_stock_products"])
}

func TestBulkUpdateRejectsMalformedBatch(t *testing.T) {
	env := newAPIEnv(t, nil)
	_, product := env.seed(t)
	bulkPath := fmt.Sprintf("/api/v1/sellers/%d/products/bulk", product.SellerID)

	oversized := make([]string, maxBulkUpdates+1)
	for i := range oversized {
		oversized[i] = fmt.Sprintf(`{"product_id":%d,"quantity":1}`, product.ID)
	}

	cases := []struct {
		name string
		body string
	}{
		{name: "empty batch", body: `{"updates":[]}`},
		{name: "missing updates", body: `{}`},
		{name: "oversized batch", body: `{"updates":[` + strings.Join(oversized, ",") + `]}`},
		{name: "malformed json", body: `{"updates":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, bulkPath, tc.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "invalid_request", errorCode(body))
		})
	}

	stored, err := env.store.Products.GetByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Quantity)
}

func TestUpdateEmail(t *testing.T) {
	env := newAPIEnv(t, nil)
	user, _ := env.seed(t)
	emailPath := fmt.Sprintf("/api/v1/users/%d/email", user.ID)

	cases := []struct {
		name       string
		path       string
		body       string
		status     int
		code       string
		wantEmail  string
		wantNotify bool
	}{
		{name: "new address", path: emailPath, body: `{"email":"asha@shop.test"}`, status: http.StatusOK, wantEmail: "asha@shop.test", wantNotify: true},
		{name: "malformed address", path: emailPath, body: `{"email":"asha at shop"}`, status: http.StatusBadRequest, code: "invalid_request", wantEmail: "asha@shop.test", wantNotify: true},
		{name: "missing field", path: emailPath, body: `{}`, status: http.StatusBadRequest, code: "invalid_request", wantEmail: "asha@shop.test", wantNotify: true},
		{name: "unknown user", path: "/api/v1/users/404/email", body: `{"email":"x@shop.test"}`, status: http.StatusNotFound, code: "not_found", wantEmail: "asha@shop.test", wantNotify: true},
		{name: "clear", path: emailPath, body: `{"email":""}`, status: http.StatusOK, wantEmail: "", wantNotify: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPut, tc.path, tc.body)
			require.Equal(t, tc.status, status)
			if tc.code != "" {
				assert.Equal(t, tc.code, errorCode(body))
			} else {
				assert.Equal(t, tc.wantNotify, body["email_notifications"])
			}

			stored, err := env.store.Users.GetByID(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantEmail, stored.Email)
			assert.Equal(t, tc.wantNotify, stored.EmailNotifications)
		})
	}
}

func TestAlertErrors(t *testing.T) {
	env := newAPIEnv(t, nil)
	user, product := env.seed(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{
			name:   "unknown kind",
			method: http.MethodPost,
			path:   fmt.Sprintf("/api/v1/users/%d/alerts/bundle", user.ID),
			body:   fmt.Sprintf(`{"product_id":%d}`, product.ID),
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "non numeric user",
			method: http.MethodGet,
			path:   "/api/v1/users/abc/alerts/price",
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "missing target price",
			method: http.MethodPost,
			path:   fmt.Sprintf("/api/v1/users/%d/alerts/price", user.ID),
			body:   fmt.Sprintf(`{"product_id":%d}`, product.ID),
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "unknown product",
			method: http.MethodPost,
			path:   fmt.Sprintf("/api/v1/users/%d/alerts/price", user.ID),
			body:   `{"product_id":999,"target_price":"10"}`,
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "unknown user",
			method: http.MethodGet,
			path:   "/api/v1/users/999/alerts/stats",
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "malformed body",
			method: http.MethodPost,
			path:   fmt.Sprintf("/api/v1/users/%d/alerts/stock", user.ID),
			body:   `{"product_id":`,
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "bad active filter",
			method: http.MethodGet,
			path:   fmt.Sprintf("/api/v1/users/%d/alerts/price?active=maybe", user.ID),
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "negative price",
			method: http.MethodPut,
			path:   fmt.Sprintf("/api/v1/sellers/%d/products/%d/price", product.SellerID, product.ID),
			body:   `{"price":"-1"}`,
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "other seller's product",
			method: http.MethodPut,
			path:   fmt.Sprintf("/api/v1/sellers/%d/products/%d/stock", product.SellerID+1, product.ID),
			body:   `{"quantity":3}`,
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "catalog not configured",
			method: http.MethodPost,
			path:   fmt.Sprintf("/api/v1/sellers/%d/catalog/import", product.SellerID),
			status: http.StatusServiceUnavailable,
			code:   "unavailable",
		},
		{
			name:   "negative cleanup days",
			method: http.MethodPost,
			path:   "/api/v1/admin/scheduler/cleanup?days=-3",
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, errorCode(body))
		})
	}
}

func TestUpdateAndDeleteAlert(t *testing.T) {
	env := newAPIEnv(t, nil)
	user, product := env.seed(t)

	status, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/alerts/price", user.ID), fmt.Sprintf(`{"product_id":%d,"target_price":"80"}`, product.ID))
	require.Equal(t, http.StatusCreated, status)
	alertPath := fmt.Sprintf("/api/v1/users/%d/alerts/price/%v", user.ID, body["id"])

	status, body = env.do(t, http.MethodPatch, alertPath, `{"target_price":"90"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "90", body["target_price"])

	status, _ = env.do(t, http.MethodPatch, alertPath, `{"is_active":false}`)
	require.Equal(t, http.StatusOK, status)

	listPath := fmt.Sprintf("/api/v1/users/%d/alerts/price", user.ID)
	status, body = env.do(t, http.MethodGet, listPath, "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["items"])
	status, body = env.do(t, http.MethodGet, listPath+"?active=all", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)

	status, body = env.do(t, http.MethodPatch, alertPath, `{"is_active":true}`)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "reactivation_not_allowed", errorCode(body))

	status, _ = env.do(t, http.MethodDelete, alertPath, "")
	require.Equal(t, http.StatusNoContent, status)

	status, body = env.do(t, http.MethodDelete, alertPath, "")
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", errorCode(body))

	status, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/alerts/stats", user.ID), "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["price_alerts"].(map[string]any)["total"])
}

func TestAdminEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	user, product := env.seed(t)
	ctx := context.Background()

	alert := domain.NewPriceAlert(user.ID, product.ID, decimal.RequireFromString("90"), product.Price)
	require.NoError(t, env.store.Alerts.Create(ctx, alert))
	// Lower the price behind the write path so only the sweep sees it.
	_, err := env.store.Products.UpdatePrice(ctx, 0, product.ID, decimal.RequireFromString("85"))
	require.NoError(t, err)

	status, body := env.do(t, http.MethodPost, "/api/v1/admin/scheduler/run", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["price"])
	assert.EqualValues(t, 1, body["delivered"])

	status, body = env.do(t, http.MethodGet, "/api/v1/admin/scheduler", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["running"])
	assert.NotNil(t, body["last_cycle"])

	status, body = env.do(t, http.MethodGet, "/api/v1/admin/notifications/stats", "")
	require.Equal(t, http.StatusOK, status)
	price := body["price"].(map[string]any)
	assert.EqualValues(t, 1, price["triggered"])
	assert.EqualValues(t, 1, price["notified"])
	assert.EqualValues(t, 0, price["pending"])

	status, body = env.do(t, http.MethodPost, "/api/v1/admin/scheduler/cleanup?days=0", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["price_removed"])

	status, body = env.do(t, http.MethodPost, "/api/v1/admin/notifications/test", `{"email":""}`)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", errorCode(body))

	status, body = env.do(t, http.MethodPost, "/api/v1/admin/notifications/test", `{"email":"ops@example.com"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sent", body["status"])

	env.email.mu.Lock()
	env.email.err = errors.New("smtp unavailable")
	env.email.mu.Unlock()
	status, body = env.do(t, http.MethodPost, "/api/v1/admin/notifications/test", `{"email":"ops@example.com"}`)
	require.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "delivery_failed", errorCode(body))
}

func TestHealth(t *testing.T) {
	cases := []struct {
		name   string
		health func(context.Context) error
		status int
	}{
		{name: "no probe", status: http.StatusOK},
		{name: "store reachable", health: func(context.Context) error { return nil }, status: http.StatusOK},
		{name: "store down", health: func(context.Context) error { return errors.New("dial tcp: refused") }, status: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newAPIEnv(t, tc.health)
			status, _ := env.do(t, http.MethodGet, "/health", "")
			assert.Equal(t, tc.status, status)
		})
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: usecase.ErrAlertNotFound, status: http.StatusNotFound, code: "not_found"},
		{err: fmt.Errorf("lookup: %w", usecase.ErrProductNotFound), status: http.StatusNotFound, code: "not_found"},
		{err: usecase.ErrAlertExists, status: http.StatusConflict, code: "alert_exists"},
		{err: usecase.ErrCycleInProgress, status: http.StatusConflict, code: "cycle_in_progress"},
		{err: usecase.ErrInvalidThreshold, status: http.StatusBadRequest, code: "invalid_request"},
		{err: usecase.ErrEmptyPatch, status: http.StatusBadRequest, code: "invalid_request"},
		{err: usecase.ErrInvalidEmail, status: http.StatusBadRequest, code: "invalid_request"},
		{err: usecase.ErrChannelDisabled, status: http.StatusServiceUnavailable, code: "unavailable"},
		{err: usecase.ErrSchedulerStopped, status: http.StatusServiceUnavailable, code: "unavailable"},
		{err: errors.New("pq: connection refused"), status: http.StatusInternalServerError, code: "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, code, message := errorStatus(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, code)
			if status == http.StatusInternalServerError {
				assert.NotContains(t, message, "pq")
			}
		})
	}
}
