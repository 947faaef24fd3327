package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/NasaVasa/shopalerts/internal/infra/metrics"
	"go.uber.org/zap"
)

// TriggerCounts is the number of alerts a pass moved to triggered, per kind.
type TriggerCounts struct {
	Price int `json:"price"`
	Stock int `json:"stock"`
}

func (c TriggerCounts) Total() int {
	return c.Price + c.Stock
}

func (c *TriggerCounts) add(kind domain.AlertKind) {
	switch kind {
	case domain.AlertKindPrice:
		c.Price++
	case domain.AlertKindStock:
		c.Stock++
	}
}

// AlertDispatcher delivers the notification of one triggered alert.
type AlertDispatcher interface {
	DispatchOne(ctx context.Context, alert domain.Alert) bool
}

// TriggerExecutor applies trigger decisions to storage. Both entry points
// share ConditionalTrigger, so an alert reached by the write path and a
// sweep at the same time triggers once.
type TriggerExecutor struct {
	alerts              domain.AlertRepository
	products            domain.ProductRepository
	dispatcher          AlertDispatcher
	refreshCurrentPrice bool
	metrics             *metrics.Recorder
	logger              *zap.Logger
	now                 func() time.Time
}

func NewTriggerExecutor(
	alerts domain.AlertRepository,
	products domain.ProductRepository,
	dispatcher AlertDispatcher,
	refreshCurrentPrice bool,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *TriggerExecutor {
	return &TriggerExecutor{
		alerts:              alerts,
		products:            products,
		dispatcher:          dispatcher,
		refreshCurrentPrice: refreshCurrentPrice,
		metrics:             recorder,
		logger:              logger,
		now:                 func() time.Time { return time.Now().UTC() },
	}
}

// OnProductMutation is called after a product write commits. Only a price
// decrease or a quantity change from exactly zero to positive is considered,
// and only alerts on that product are evaluated. Alerts it triggers get one
// immediate delivery attempt; failures are left to the dispatch sweep.
// Nothing here fails the caller's write.
func (e *TriggerExecutor) OnProductMutation(ctx context.Context, mutation domain.ProductMutation) TriggerCounts {
	var counts TriggerCounts

	kind, snapshot, ok := mutationSnapshot(mutation)
	if !ok {
		return counts
	}

	productID := mutation.ProductID
	candidates, err := e.alerts.ListActiveUntriggered(ctx, kind, &productID)
	if err != nil {
		e.logger.Error("failed to load alerts for product mutation",
			zap.Uint("product_id", productID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return counts
	}

	triggered := make([]domain.Alert, 0, len(candidates))
	for _, alert := range candidates {
		decision := Evaluate(alert, &snapshot)
		if !decision.Trigger {
			continue
		}
		if updated, ok := e.trigger(ctx, alert, decision, metrics.PathWritePath); ok {
			counts.add(kind)
			triggered = append(triggered, updated)
		}
	}

	if e.dispatcher == nil {
		return counts
	}
	for _, alert := range triggered {
		if !e.dispatcher.DispatchOne(ctx, alert) {
			e.logger.Info("immediate notification not delivered, left for dispatch sweep",
				zap.Uint("alert_id", alert.ID),
				zap.String("kind", string(alert.Kind)),
			)
		}
	}
	return counts
}

// Sweep evaluates every active, untriggered alert against current product
// state. It never dispatches. Per-alert failures are logged and skipped; the
// returned error only reports kinds whose alerts could not be loaded.
func (e *TriggerExecutor) Sweep(ctx context.Context) (TriggerCounts, error) {
	var (
		counts TriggerCounts
		errs   []error
	)

	for _, kind := range domain.AlertKinds {
		n, err := e.sweepKind(ctx, kind)
		if err != nil {
			e.logger.Error("trigger sweep failed", zap.String("kind", string(kind)), zap.Error(err))
			errs = append(errs, err)
		}
		if kind == domain.AlertKindPrice {
			counts.Price = n
		} else {
			counts.Stock = n
		}
	}

	e.logger.Info("trigger sweep complete",
		zap.Int("price_triggered", counts.Price),
		zap.Int("stock_triggered", counts.Stock),
	)
	return counts, errors.Join(errs...)
}

func (e *TriggerExecutor) sweepKind(ctx context.Context, kind domain.AlertKind) (int, error) {
	candidates, err := e.alerts.ListActiveUntriggered(ctx, kind, nil)
	if err != nil {
		return 0, fmt.Errorf("list active %s alerts: %w", kind, err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	products, err := e.products.GetByIDs(ctx, productIDs(candidates))
	if err != nil {
		return 0, fmt.Errorf("load products for %s alerts: %w", kind, err)
	}

	triggered := 0
	for _, alert := range candidates {
		var snapshot *domain.Product
		if product, ok := products[alert.ProductID]; ok {
			snapshot = &product
		}

		decision := Evaluate(alert, snapshot)
		if decision.Trigger {
			if _, ok := e.trigger(ctx, alert, decision, metrics.PathSweep); ok {
				triggered++
			}
			continue
		}
		e.refreshPrice(ctx, alert, decision)
	}
	return triggered, nil
}

// trigger applies the conditional update and returns the alert as written.
// Losing the race to another path is a normal outcome.
func (e *TriggerExecutor) trigger(ctx context.Context, alert domain.Alert, decision Decision, path string) (domain.Alert, bool) {
	triggeredAt := e.now()
	applied, err := e.alerts.ConditionalTrigger(ctx, alert.ID, domain.TriggerUpdate{
		TriggeredAt:  triggeredAt,
		CurrentPrice: decision.CurrentPrice,
	})
	if err != nil {
		e.logger.Error("failed to trigger alert",
			zap.Uint("alert_id", alert.ID),
			zap.String("kind", string(alert.Kind)),
			zap.String("path", path),
			zap.Error(err),
		)
		return alert, false
	}
	if !applied {
		e.logger.Debug("alert already triggered or deactivated",
			zap.Uint("alert_id", alert.ID),
			zap.String("path", path),
		)
		return alert, false
	}

	alert.IsTriggered = true
	alert.TriggeredAt = &triggeredAt
	if decision.CurrentPrice != nil && alert.Price != nil {
		terms := *alert.Price
		terms.CurrentPrice = *decision.CurrentPrice
		alert.Price = &terms
	}

	e.metrics.AlertTriggered(string(alert.Kind), path)
	e.logger.Info("alert triggered",
		zap.Uint("alert_id", alert.ID),
		zap.String("kind", string(alert.Kind)),
		zap.Uint("product_id", alert.ProductID),
		zap.String("path", path),
	)
	return alert, true
}

func (e *TriggerExecutor) refreshPrice(ctx context.Context, alert domain.Alert, decision Decision) {
	if !e.refreshCurrentPrice || alert.Price == nil || decision.CurrentPrice == nil {
		return
	}
	if decision.CurrentPrice.Equal(alert.Price.CurrentPrice) {
		return
	}
	if err := e.alerts.RefreshCurrentPrice(ctx, alert.ID, *decision.CurrentPrice); err != nil {
		e.logger.Warn("failed to refresh cached price", zap.Uint("alert_id", alert.ID), zap.Error(err))
	}
}

// mutationSnapshot maps a qualifying mutation to the alert kind it concerns
// and a product snapshot carrying the new value.
func mutationSnapshot(mutation domain.ProductMutation) (domain.AlertKind, domain.Product, bool) {
	snapshot := domain.Product{ID: mutation.ProductID}

	switch mutation.Field {
	case domain.ProductFieldPrice:
		if !mutation.NewValue.LessThan(mutation.OldValue) {
			return "", snapshot, false
		}
		snapshot.Price = mutation.NewValue
		return domain.AlertKindPrice, snapshot, true
	case domain.ProductFieldQuantity:
		if !mutation.OldValue.IsZero() || !mutation.NewValue.IsPositive() {
			return "", snapshot, false
		}
		snapshot.Quantity = int(mutation.NewValue.IntPart())
		return domain.AlertKindStock, snapshot, true
	default:
		return "", snapshot, false
	}
}

func productIDs(alerts []domain.Alert) []uint {
	seen := make(map[uint]struct{}, len(alerts))
	ids := make([]uint, 0, len(alerts))
	for _, alert := range alerts {
		if _, ok := seen[alert.ProductID]; ok {
			continue
		}
		seen[alert.ProductID] = struct{}{}
		ids = append(ids, alert.ProductID)
	}
	return ids
}
