package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/NasaVasa/shopalerts/internal/usecase"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errInvalidID = errors.New("invalid id")

const maxBulkUpdates = 100

// Deps are the usecases served over HTTP. Health is optional and reports
// whether the backing store is reachable.
type Deps struct {
	Users         *usecase.UserUsecase
	Alerts        *usecase.AlertUsecase
	Products      *usecase.ProductUsecase
	Catalog       *usecase.CatalogSync
	Scheduler     *usecase.AlertScheduler
	Notifications *usecase.NotificationDispatcher
	RetentionDays int
	Health        func(ctx context.Context) error
}

type Handler struct {
	deps   Deps
	logger *zap.Logger
}

func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{deps: deps, logger: logger}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "unavailable", "store unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Email == nil {
		h.fail(w, r, usecase.ErrInvalidEmail)
		return
	}

	user, err := h.deps.Users.SetEmail(r.Context(), userID, *req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*user))
}

func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	kind, ok := h.pathKind(w, r)
	if !ok {
		return
	}
	var req createAlertRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		alert *domain.Alert
		err   error
	)
	switch kind {
	case domain.AlertKindPrice:
		if req.TargetPrice == nil {
			h.fail(w, r, usecase.ErrInvalidTargetPrice)
			return
		}
		alert, err = h.deps.Alerts.CreatePriceAlert(r.Context(), userID, req.ProductID, *req.TargetPrice)
	case domain.AlertKindStock:
		threshold := 0
		if req.StockThreshold != nil {
			threshold = *req.StockThreshold
		}
		alert, err = h.deps.Alerts.CreateStockAlert(r.Context(), userID, req.ProductID, threshold)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAlertResponse(*alert))
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	kind, ok := h.pathKind(w, r)
	if !ok {
		return
	}

	onlyActive := true
	active := &onlyActive
	switch raw := r.URL.Query().Get("active"); raw {
	case "":
	case "all":
		active = nil
	default:
		value, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "active must be true, false or all")
			return
		}
		active = &value
	}

	alerts, err := h.deps.Alerts.ListAlerts(r.Context(), userID, kind, active)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertResponses(alerts))
}

func (h *Handler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	userID, kind, alertID, ok := h.alertRef(w, r)
	if !ok {
		return
	}
	var req updateAlertRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := domain.AlertPatch{
		TargetPrice:    req.TargetPrice,
		StockThreshold: req.StockThreshold,
		IsActive:       req.IsActive,
	}
	alert, err := h.deps.Alerts.UpdateAlert(r.Context(), userID, kind, alertID, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertResponse(*alert))
}

func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	userID, kind, alertID, ok := h.alertRef(w, r)
	if !ok {
		return
	}
	if err := h.deps.Alerts.DeleteAlert(r.Context(), userID, kind, alertID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	stats, err := h.deps.Alerts.Stats(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	sellerID, productID, ok := h.productRef(w, r)
	if !ok {
		return
	}
	var req priceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Price == nil {
		h.fail(w, r, usecase.ErrInvalidPrice)
		return
	}

	update, err := h.deps.Products.UpdatePrice(r.Context(), sellerID, productID, *req.Price)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductUpdateResponse(update))
}

func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	sellerID, productID, ok := h.productRef(w, r)
	if !ok {
		return
	}
	var req stockRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		h.fail(w, r, usecase.ErrInvalidQuantity)
		return
	}

	update, err := h.deps.Products.UpdateQuantity(r.Context(), sellerID, productID, *req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductUpdateResponse(update))
}

func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.pathID(w, r, "sellerID")
	if !ok {
		return
	}
	var req bulkUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Updates) == 0 || len(req.Updates) > maxBulkUpdates {
		writeError(w, http.StatusBadRequest, "invalid_request", "updates must hold between 1 and "+strconv.Itoa(maxBulkUpdates)+" items")
		return
	}

	patches := make([]usecase.ProductPatch, 0, len(req.Updates))
	for _, item := range req.Updates {
		patches = append(patches, usecase.ProductPatch{
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	results := h.deps.Products.BulkUpdate(r.Context(), sellerID, patches)
	writeJSON(w, http.StatusOK, toBulkUpdateResponse(results))
}

func (h *Handler) SellerDashboard(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.pathID(w, r, "sellerID")
	if !ok {
		return
	}
	dashboard, err := h.deps.Alerts.SellerDashboard(r.Context(), sellerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) ProductAlerts(w http.ResponseWriter, r *http.Request) {
	sellerID, productID, ok := h.productRef(w, r)
	if !ok {
		return
	}
	summary, err := h.deps.Alerts.ProductAlertSummary(r.Context(), sellerID, productID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.pathID(w, r, "sellerID")
	if !ok {
		return
	}
	result, err := h.deps.Catalog.Import(r.Context(), sellerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Catalog.RefreshPrices(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Scheduler.Status())
}

func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Scheduler.RunCycle(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days := h.deps.RetentionDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "days must be a non-negative integer")
			return
		}
		days = value
	}

	removed, err := h.deps.Scheduler.Cleanup(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"retention_days": days,
		"price_removed":  removed[domain.AlertKindPrice],
		"stock_removed":  removed[domain.AlertKindStock],
	})
}

func (h *Handler) NotificationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Notifications.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) TestNotification(w http.ResponseWriter, r *http.Request) {
	var req testNotificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.deps.Notifications.SendTest(r.Context(), req.Email); err != nil {
		if errors.Is(err, usecase.ErrNoRecipient) || errors.Is(err, usecase.ErrChannelDisabled) {
			h.fail(w, r, err)
			return
		}
		h.logger.Warn("test notification failed", zap.String("email", req.Email), zap.Error(err))
		writeError(w, http.StatusBadGateway, "delivery_failed", "test notification could not be delivered")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent", "email": req.Email})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := parseID(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) pathKind(w http.ResponseWriter, r *http.Request) (domain.AlertKind, bool) {
	kind, err := domain.ParseAlertKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, r, usecase.ErrInvalidKind)
		return "", false
	}
	return kind, true
}

func (h *Handler) alertRef(w http.ResponseWriter, r *http.Request) (uint, domain.AlertKind, uint, bool) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return 0, "", 0, false
	}
	kind, ok := h.pathKind(w, r)
	if !ok {
		return 0, "", 0, false
	}
	alertID, ok := h.pathID(w, r, "alertID")
	if !ok {
		return 0, "", 0, false
	}
	return userID, kind, alertID, true
}

func (h *Handler) productRef(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	sellerID, ok := h.pathID(w, r, "sellerID")
	if !ok {
		return 0, 0, false
	}
	productID, ok := h.pathID(w, r, "productID")
	if !ok {
		return 0, 0, false
	}
	return sellerID, productID, true
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}
