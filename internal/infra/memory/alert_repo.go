package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
)

type AlertRepository struct {
	mu     sync.Mutex
	nextID uint
	alerts map[uint]domain.Alert
}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{alerts: make(map[uint]domain.Alert)}
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	alert.ID = r.nextID
	alert.CreatedAt = now()
	alert.UpdatedAt = alert.CreatedAt
	r.alerts[alert.ID] = cloneAlert(*alert)
	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, alertID uint) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[alertID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneAlert(alert)
	return &out, nil
}

func (r *AlertRepository) FindActive(ctx context.Context, userID, productID uint, kind domain.AlertKind) (*domain.Alert, error) {
	matches := r.list(func(a domain.Alert) bool {
		return a.UserID == userID && a.ProductID == productID && a.Kind == kind && a.IsActive
	})
	if len(matches) == 0 {
		return nil, domain.ErrNotFound
	}
	return &matches[0], nil
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID uint, filter domain.AlertFilter) ([]domain.Alert, error) {
	alerts := r.list(func(a domain.Alert) bool {
		if a.UserID != userID {
			return false
		}
		if filter.Kind != "" && a.Kind != filter.Kind {
			return false
		}
		return filter.Active == nil || a.IsActive == *filter.Active
	})
	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].ID > alerts[j].ID })
	return alerts, nil
}

func (r *AlertRepository) UpdateFields(ctx context.Context, alertID uint, patch domain.AlertPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[alertID]
	if !ok {
		return domain.ErrNotFound
	}
	if patch.TargetPrice != nil && alert.Price != nil {
		alert.Price.TargetPrice = *patch.TargetPrice
	}
	if patch.StockThreshold != nil && alert.Stock != nil {
		alert.Stock.Threshold = *patch.StockThreshold
	}
	if patch.IsActive != nil {
		alert.IsActive = *patch.IsActive
	}
	alert.UpdatedAt = now()
	r.alerts[alertID] = alert
	return nil
}

func (r *AlertRepository) Delete(ctx context.Context, alertID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[alertID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.alerts, alertID)
	return nil
}

func (r *AlertRepository) ConditionalTrigger(ctx context.Context, alertID uint, update domain.TriggerUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[alertID]
	if !ok || !alert.IsActive || alert.IsTriggered {
		return false, nil
	}
	triggeredAt := update.TriggeredAt
	alert.IsTriggered = true
	alert.TriggeredAt = &triggeredAt
	if update.CurrentPrice != nil && alert.Price != nil {
		alert.Price.CurrentPrice = *update.CurrentPrice
	}
	alert.UpdatedAt = now()
	r.alerts[alertID] = alert
	return true, nil
}

func (r *AlertRepository) RefreshCurrentPrice(ctx context.Context, alertID uint, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[alertID]
	if !ok || alert.Price == nil || alert.IsTriggered {
		return nil
	}
	alert.Price.CurrentPrice = price
	alert.UpdatedAt = now()
	r.alerts[alertID] = alert
	return nil
}

func (r *AlertRepository) MarkNotificationSent(ctx context.Context, alertID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[alertID]
	if !ok || !alert.IsTriggered {
		return domain.ErrNotFound
	}
	alert.NotificationSent = true
	alert.UpdatedAt = now()
	r.alerts[alertID] = alert
	return nil
}

func (r *AlertRepository) ListActiveUntriggered(ctx context.Context, kind domain.AlertKind, productID *uint) ([]domain.Alert, error) {
	return r.list(func(a domain.Alert) bool {
		if a.Kind != kind || !a.Pending() {
			return false
		}
		return productID == nil || a.ProductID == *productID
	}), nil
}

func (r *AlertRepository) ListPendingNotification(ctx context.Context, kind domain.AlertKind) ([]domain.Alert, error) {
	return r.list(func(a domain.Alert) bool {
		return a.Kind == kind && a.AwaitingDelivery()
	}), nil
}

func (r *AlertRepository) DeleteNotifiedBefore(ctx context.Context, kind domain.AlertKind, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, alert := range r.alerts {
		if alert.Kind != kind || !alert.IsTriggered || !alert.NotificationSent || alert.TriggeredAt == nil {
			continue
		}
		if alert.TriggeredAt.Before(cutoff) {
			delete(r.alerts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *AlertRepository) CountsByUser(ctx context.Context, userID uint, kind domain.AlertKind) (domain.AlertCounts, error) {
	var counts domain.AlertCounts
	for _, alert := range r.list(func(a domain.Alert) bool { return a.UserID == userID && a.Kind == kind }) {
		counts.Total++
		if alert.IsActive {
			counts.Active++
		}
		if alert.IsTriggered {
			counts.Triggered++
		}
	}
	return counts, nil
}

func (r *AlertRepository) NotificationCounts(ctx context.Context, kind domain.AlertKind) (domain.NotificationCounts, error) {
	var counts domain.NotificationCounts
	for _, alert := range r.list(func(a domain.Alert) bool { return a.Kind == kind }) {
		if alert.IsTriggered {
			counts.Triggered++
		}
		if alert.NotificationSent {
			counts.Notified++
		}
		if alert.AwaitingDelivery() {
			counts.Pending++
		}
	}
	return counts, nil
}

func (r *AlertRepository) CountsByProduct(ctx context.Context, productID uint, kind domain.AlertKind) (domain.ProductAlertCounts, error) {
	var counts domain.ProductAlertCounts
	for _, alert := range r.list(func(a domain.Alert) bool { return a.ProductID == productID && a.Kind == kind }) {
		if alert.IsActive {
			counts.Active++
		}
		if alert.AwaitingDelivery() {
			counts.Pending++
		}
	}
	return counts, nil
}

func (r *AlertRepository) CountProductsWithActiveAlerts(ctx context.Context, productIDs []uint) (int, error) {
	wanted := make(map[uint]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	seen := make(map[uint]bool)
	for _, alert := range r.list(func(a domain.Alert) bool { return a.IsActive && wanted[a.ProductID] }) {
		seen[alert.ProductID] = true
	}
	return len(seen), nil
}

// list returns copies of matching alerts ordered by id.
func (r *AlertRepository) list(match func(domain.Alert) bool) []domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	alerts := make([]domain.Alert, 0)
	for _, alert := range r.alerts {
		if match(alert) {
			alerts = append(alerts, cloneAlert(alert))
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts
}

func cloneAlert(alert domain.Alert) domain.Alert {
	if alert.Price != nil {
		terms := *alert.Price
		alert.Price = &terms
	}
	if alert.Stock != nil {
		terms := *alert.Stock
		alert.Stock = &terms
	}
	if alert.TriggeredAt != nil {
		at := *alert.TriggeredAt
		alert.TriggeredAt = &at
	}
	return alert
}
