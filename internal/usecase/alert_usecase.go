package usecase

import (
	"context"
	"errors"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
)

type AlertStats struct {
	Price domain.AlertCounts `json:"price_alerts"`
	Stock domain.AlertCounts `json:"stock_alerts"`
}

type ProductAlertSummary struct {
	ProductID uint                      `json:"product_id"`
	Price     domain.ProductAlertCounts `json:"price_alerts"`
	Stock     domain.ProductAlertCounts `json:"stock_alerts"`
}

// SellerDashboard summarizes a seller's catalog and the alert demand on it.
type SellerDashboard struct {
	TotalProducts      int `json:"total_products"`
	ProductsWithAlerts int `json:"products_with_alerts"`
	LowStockProducts   int `json:"low_stock_products"`
	OutOfStockProducts int `json:"out_of_stock_products"`
}

// LowStockMax is the highest positive quantity counted as low stock.
const LowStockMax = 5

// AlertUsecase is the alert management surface used by the HTTP API and
// the Telegram bot. Every operation is scoped to the owning user; an alert
// owned by someone else is reported as not found.
type AlertUsecase struct {
	users    domain.UserRepository
	alerts   domain.AlertRepository
	products domain.ProductRepository
}

func NewAlertUsecase(users domain.UserRepository, alerts domain.AlertRepository, products domain.ProductRepository) *AlertUsecase {
	return &AlertUsecase{users: users, alerts: alerts, products: products}
}

func (u *AlertUsecase) CreatePriceAlert(ctx context.Context, userID, productID uint, targetPrice decimal.Decimal) (*domain.Alert, error) {
	if targetPrice.IsNegative() {
		return nil, ErrInvalidTargetPrice
	}
	product, err := u.prepareCreate(ctx, userID, productID, domain.AlertKindPrice)
	if err != nil {
		return nil, err
	}

	alert := domain.NewPriceAlert(userID, product.ID, targetPrice, product.Price)
	if err := u.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func (u *AlertUsecase) CreateStockAlert(ctx context.Context, userID, productID uint, threshold int) (*domain.Alert, error) {
	if threshold < 0 {
		return nil, ErrInvalidThreshold
	}
	product, err := u.prepareCreate(ctx, userID, productID, domain.AlertKindStock)
	if err != nil {
		return nil, err
	}

	alert := domain.NewStockAlert(userID, product.ID, threshold)
	if err := u.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func (u *AlertUsecase) ListAlerts(ctx context.Context, userID uint, kind domain.AlertKind, active *bool) ([]domain.Alert, error) {
	if err := u.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	return u.alerts.ListByUser(ctx, userID, domain.AlertFilter{Kind: kind, Active: active})
}

// UpdateAlert applies patch to one of the user's alerts. Patch fields that
// belong to the other kind are rejected. An inactive alert cannot be
// switched back on.
func (u *AlertUsecase) UpdateAlert(ctx context.Context, userID uint, kind domain.AlertKind, alertID uint, patch domain.AlertPatch) (*domain.Alert, error) {
	alert, err := u.ownedAlert(ctx, userID, kind, alertID)
	if err != nil {
		return nil, err
	}

	if patch.TargetPrice != nil && (kind != domain.AlertKindPrice || patch.TargetPrice.IsNegative()) {
		return nil, ErrInvalidTargetPrice
	}
	if patch.StockThreshold != nil && (kind != domain.AlertKindStock || *patch.StockThreshold < 0) {
		return nil, ErrInvalidThreshold
	}
	if patch.IsActive != nil && *patch.IsActive && !alert.IsActive {
		return nil, ErrReactivationNotAllowed
	}
	if patch.Empty() {
		return alert, nil
	}

	if err := u.alerts.UpdateFields(ctx, alertID, patch); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return u.ownedAlert(ctx, userID, kind, alertID)
}

func (u *AlertUsecase) DisableAlert(ctx context.Context, userID uint, kind domain.AlertKind, alertID uint) error {
	inactive := false
	_, err := u.UpdateAlert(ctx, userID, kind, alertID, domain.AlertPatch{IsActive: &inactive})
	return err
}

func (u *AlertUsecase) DeleteAlert(ctx context.Context, userID uint, kind domain.AlertKind, alertID uint) error {
	if _, err := u.ownedAlert(ctx, userID, kind, alertID); err != nil {
		return err
	}
	if err := u.alerts.Delete(ctx, alertID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAlertNotFound
		}
		return err
	}
	return nil
}

func (u *AlertUsecase) Stats(ctx context.Context, userID uint) (AlertStats, error) {
	if err := u.ensureUser(ctx, userID); err != nil {
		return AlertStats{}, err
	}
	price, err := u.alerts.CountsByUser(ctx, userID, domain.AlertKindPrice)
	if err != nil {
		return AlertStats{}, err
	}
	stock, err := u.alerts.CountsByUser(ctx, userID, domain.AlertKindStock)
	if err != nil {
		return AlertStats{}, err
	}
	return AlertStats{Price: price, Stock: stock}, nil
}

// ProductAlertSummary reports alert demand on one of the seller's products.
func (u *AlertUsecase) ProductAlertSummary(ctx context.Context, sellerID, productID uint) (ProductAlertSummary, error) {
	product, err := u.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ProductAlertSummary{}, ErrProductNotFound
		}
		return ProductAlertSummary{}, err
	}
	if product.SellerID != sellerID {
		return ProductAlertSummary{}, ErrProductNotFound
	}

	price, err := u.alerts.CountsByProduct(ctx, productID, domain.AlertKindPrice)
	if err != nil {
		return ProductAlertSummary{}, err
	}
	stock, err := u.alerts.CountsByProduct(ctx, productID, domain.AlertKindStock)
	if err != nil {
		return ProductAlertSummary{}, err
	}
	return ProductAlertSummary{ProductID: productID, Price: price, Stock: stock}, nil
}

func (u *AlertUsecase) SellerDashboard(ctx context.Context, sellerID uint) (SellerDashboard, error) {
	products, err := u.products.ListBySeller(ctx, sellerID)
	if err != nil {
		return SellerDashboard{}, err
	}

	dashboard := SellerDashboard{TotalProducts: len(products)}
	ids := make([]uint, 0, len(products))
	for _, product := range products {
		ids = append(ids, product.ID)
		switch {
		case product.Quantity == 0:
			dashboard.OutOfStockProducts++
		case product.Quantity <= LowStockMax:
			dashboard.LowStockProducts++
		}
	}

	dashboard.ProductsWithAlerts, err = u.alerts.CountProductsWithActiveAlerts(ctx, ids)
	if err != nil {
		return SellerDashboard{}, err
	}
	return dashboard, nil
}

func (u *AlertUsecase) prepareCreate(ctx context.Context, userID, productID uint, kind domain.AlertKind) (*domain.Product, error) {
	if err := u.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	product, err := u.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	_, err = u.alerts.FindActive(ctx, userID, productID, kind)
	if err == nil {
		return nil, ErrAlertExists
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return product, nil
}

func (u *AlertUsecase) ownedAlert(ctx context.Context, userID uint, kind domain.AlertKind, alertID uint) (*domain.Alert, error) {
	alert, err := u.alerts.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	if alert.UserID != userID || alert.Kind != kind {
		return nil, ErrAlertNotFound
	}
	return alert, nil
}

func (u *AlertUsecase) ensureUser(ctx context.Context, userID uint) error {
	if _, err := u.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
