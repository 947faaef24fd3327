package db

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	model := mapAlertToModel(*alert)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	alert.ID = model.ID
	alert.CreatedAt = model.CreatedAt
	alert.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, alertID uint) (*domain.Alert, error) {
	var model alertModel
	if err := r.db.WithContext(ctx).First(&model, alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	alert := mapAlertToDomain(model)
	return &alert, nil
}

func (r *AlertRepository) FindActive(ctx context.Context, userID, productID uint, kind domain.AlertKind) (*domain.Alert, error) {
	var model alertModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND kind = ? AND is_active = ?", userID, productID, string(kind), true).
		Order("id").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	alert := mapAlertToDomain(model)
	return &alert, nil
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID uint, filter domain.AlertFilter) ([]domain.Alert, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Kind != "" {
		query = query.Where("kind = ?", string(filter.Kind))
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}

	var models []alertModel
	if err := query.Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models), nil
}

func (r *AlertRepository) UpdateFields(ctx context.Context, alertID uint, patch domain.AlertPatch) error {
	updates := map[string]any{}
	if patch.TargetPrice != nil {
		updates["target_price"] = *patch.TargetPrice
	}
	if patch.StockThreshold != nil {
		updates["stock_threshold"] = *patch.StockThreshold
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&alertModel{}).Where("id = ?", alertID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AlertRepository) Delete(ctx context.Context, alertID uint) error {
	result := r.db.WithContext(ctx).Where("id = ?", alertID).Delete(&alertModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ConditionalTrigger issues a single UPDATE whose WHERE clause carries the
// precondition. Postgres re-checks the clause after acquiring the row lock,
// so of two concurrent callers exactly one sees RowsAffected == 1.
func (r *AlertRepository) ConditionalTrigger(ctx context.Context, alertID uint, update domain.TriggerUpdate) (bool, error) {
	updates := map[string]any{
		"is_triggered": true,
		"triggered_at": update.TriggeredAt,
	}
	if update.CurrentPrice != nil {
		updates["current_price"] = *update.CurrentPrice
	}

	result := r.db.WithContext(ctx).
		Model(&alertModel{}).
		Where("id = ? AND is_active = ? AND is_triggered = ?", alertID, true, false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *AlertRepository) RefreshCurrentPrice(ctx context.Context, alertID uint, price decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&alertModel{}).
		Where("id = ? AND kind = ? AND is_triggered = ?", alertID, string(domain.AlertKindPrice), false).
		Update("current_price", price).Error
}

// MarkNotificationSent is guarded by is_triggered so the notified flag can
// never be set ahead of the trigger.
func (r *AlertRepository) MarkNotificationSent(ctx context.Context, alertID uint) error {
	result := r.db.WithContext(ctx).
		Model(&alertModel{}).
		Where("id = ? AND is_triggered = ?", alertID, true).
		Update("notification_sent", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AlertRepository) ListActiveUntriggered(ctx context.Context, kind domain.AlertKind, productID *uint) ([]domain.Alert, error) {
	query := r.db.WithContext(ctx).Where("kind = ? AND is_active = ? AND is_triggered = ?", string(kind), true, false)
	if productID != nil {
		query = query.Where("product_id = ?", *productID)
	}

	var models []alertModel
	if err := query.Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models), nil
}

func (r *AlertRepository) ListPendingNotification(ctx context.Context, kind domain.AlertKind) ([]domain.Alert, error) {
	var models []alertModel
	err := r.db.WithContext(ctx).
		Where("kind = ? AND is_triggered = ? AND notification_sent = ?", string(kind), true, false).
		Order("triggered_at, id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models), nil
}

func (r *AlertRepository) DeleteNotifiedBefore(ctx context.Context, kind domain.AlertKind, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("kind = ? AND is_triggered = ? AND notification_sent = ? AND triggered_at < ?", string(kind), true, true, cutoff).
		Delete(&alertModel{})
	return result.RowsAffected, result.Error
}

func (r *AlertRepository) CountsByUser(ctx context.Context, userID uint, kind domain.AlertKind) (domain.AlertCounts, error) {
	var counts domain.AlertCounts
	err := r.db.WithContext(ctx).
		Model(&alertModel{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active, "+
				"COALESCE(SUM(CASE WHEN is_triggered THEN 1 ELSE 0 END), 0) AS triggered",
		).
		Where("user_id = ? AND kind = ?", userID, string(kind)).
		Scan(&counts).Error
	return counts, err
}

func (r *AlertRepository) NotificationCounts(ctx context.Context, kind domain.AlertKind) (domain.NotificationCounts, error) {
	var counts domain.NotificationCounts
	err := r.db.WithContext(ctx).
		Model(&alertModel{}).
		Select(
			"COALESCE(SUM(CASE WHEN is_triggered THEN 1 ELSE 0 END), 0) AS triggered, "+
				"COALESCE(SUM(CASE WHEN notification_sent THEN 1 ELSE 0 END), 0) AS notified, "+
				"COALESCE(SUM(CASE WHEN is_triggered AND NOT notification_sent THEN 1 ELSE 0 END), 0) AS pending",
		).
		Where("kind = ?", string(kind)).
		Scan(&counts).Error
	return counts, err
}

func (r *AlertRepository) CountsByProduct(ctx context.Context, productID uint, kind domain.AlertKind) (domain.ProductAlertCounts, error) {
	var counts domain.ProductAlertCounts
	err := r.db.WithContext(ctx).
		Model(&alertModel{}).
		Select(
			"COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active, "+
				"COALESCE(SUM(CASE WHEN is_triggered AND NOT notification_sent THEN 1 ELSE 0 END), 0) AS pending",
		).
		Where("product_id = ? AND kind = ?", productID, string(kind)).
		Scan(&counts).Error
	return counts, err
}

func (r *AlertRepository) CountProductsWithActiveAlerts(ctx context.Context, productIDs []uint) (int, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&alertModel{}).
		Where("product_id IN ? AND is_active = ?", productIDs, true).
		Distinct("product_id").
		Count(&count).Error
	return int(count), err
}

func mapAlertsToDomain(models []alertModel) []domain.Alert {
	alerts := make([]domain.Alert, 0, len(models))
	for _, model := range models {
		alerts = append(alerts, mapAlertToDomain(model))
	}
	return alerts
}

func mapAlertToDomain(model alertModel) domain.Alert {
	alert := domain.Alert{
		ID:               model.ID,
		Kind:             domain.AlertKind(model.Kind),
		UserID:           model.UserID,
		ProductID:        model.ProductID,
		IsActive:         model.IsActive,
		IsTriggered:      model.IsTriggered,
		TriggeredAt:      model.TriggeredAt,
		NotificationSent: model.NotificationSent,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
	switch alert.Kind {
	case domain.AlertKindPrice:
		terms := &domain.PriceTerms{}
		if model.TargetPrice != nil {
			terms.TargetPrice = *model.TargetPrice
		}
		if model.CurrentPrice != nil {
			terms.CurrentPrice = *model.CurrentPrice
		}
		alert.Price = terms
	case domain.AlertKindStock:
		terms := &domain.StockTerms{}
		if model.StockThreshold != nil {
			terms.Threshold = *model.StockThreshold
		}
		alert.Stock = terms
	}
	return alert
}

func mapAlertToModel(alert domain.Alert) alertModel {
	model := alertModel{
		ID:               alert.ID,
		Kind:             string(alert.Kind),
		UserID:           alert.UserID,
		ProductID:        alert.ProductID,
		IsActive:         alert.IsActive,
		IsTriggered:      alert.IsTriggered,
		TriggeredAt:      alert.TriggeredAt,
		NotificationSent: alert.NotificationSent,
		CreatedAt:        alert.CreatedAt,
		UpdatedAt:        alert.UpdatedAt,
	}
	if alert.Price != nil {
		target := alert.Price.TargetPrice
		current := alert.Price.CurrentPrice
		model.TargetPrice = &target
		model.CurrentPrice = &current
	}
	if alert.Stock != nil {
		threshold := alert.Stock.Threshold
		model.StockThreshold = &threshold
	}
	return model
}
