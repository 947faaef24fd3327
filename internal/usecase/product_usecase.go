package usecase

import (
	"context"
	"errors"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MutationObserver is told about every committed product write.
type MutationObserver interface {
	OnProductMutation(ctx context.Context, mutation domain.ProductMutation) TriggerCounts
}

type ProductUpdate struct {
	Product   domain.Product
	Field     string
	OldValue  decimal.Decimal
	NewValue  decimal.Decimal
	Triggered TriggerCounts
}

// ProductPatch is one item of a bulk seller update. Nil fields are left as
// they are; at least one must be set.
type ProductPatch struct {
	ProductID uint
	Price     *decimal.Decimal
	Quantity  *int
}

// BulkResult reports the outcome of one ProductPatch. Product is set on
// success and Err on failure.
type BulkResult struct {
	ProductID uint
	Product   *domain.Product
	Triggered TriggerCounts
	Err       error
}

func (r BulkResult) Success() bool { return r.Err == nil }

// ProductUsecase is the write path for product price and stock. Every
// committed change is handed to the trigger executor before returning.
type ProductUsecase struct {
	products domain.ProductRepository
	observer MutationObserver
	logger   *zap.Logger
}

func NewProductUsecase(products domain.ProductRepository, observer MutationObserver, logger *zap.Logger) *ProductUsecase {
	return &ProductUsecase{products: products, observer: observer, logger: logger}
}

// UpdatePrice sets the price of a seller's product. A zero sellerID is an
// unscoped system write (catalog sync and feed).
func (u *ProductUsecase) UpdatePrice(ctx context.Context, sellerID, productID uint, price decimal.Decimal) (*ProductUpdate, error) {
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	change, err := u.products.UpdatePrice(ctx, sellerID, productID, price)
	return u.afterWrite(ctx, change, err)
}

func (u *ProductUsecase) UpdateQuantity(ctx context.Context, sellerID, productID uint, quantity int) (*ProductUpdate, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	change, err := u.products.UpdateQuantity(ctx, sellerID, productID, quantity)
	return u.afterWrite(ctx, change, err)
}

// BulkUpdate applies each patch in order through UpdatePrice and
// UpdateQuantity. A failing item is reported in its result and does not
// stop the remaining items. Within one item the price is written first; if
// the quantity write then fails, the price change stays committed.
func (u *ProductUsecase) BulkUpdate(ctx context.Context, sellerID uint, patches []ProductPatch) []BulkResult {
	results := make([]BulkResult, 0, len(patches))
	for _, patch := range patches {
		result := u.applyPatch(ctx, sellerID, patch)
		if result.Err != nil {
			u.logger.Warn("bulk product update item failed",
				zap.Uint("seller_id", sellerID),
				zap.Uint("product_id", patch.ProductID),
				zap.Error(result.Err),
			)
		}
		results = append(results, result)
	}
	return results
}

func (u *ProductUsecase) applyPatch(ctx context.Context, sellerID uint, patch ProductPatch) BulkResult {
	result := BulkResult{ProductID: patch.ProductID}
	if patch.Price == nil && patch.Quantity == nil {
		result.Err = ErrEmptyPatch
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	if patch.Price != nil {
		update, err := u.UpdatePrice(ctx, sellerID, patch.ProductID, *patch.Price)
		if err != nil {
			result.Err = err
			return result
		}
		result.Product = &update.Product
		result.Triggered.Price = update.Triggered.Price
	}
	if patch.Quantity != nil {
		update, err := u.UpdateQuantity(ctx, sellerID, patch.ProductID, *patch.Quantity)
		if err != nil {
			result.Product = nil
			result.Err = err
			return result
		}
		result.Product = &update.Product
		result.Triggered.Stock = update.Triggered.Stock
	}
	return result
}

func (u *ProductUsecase) afterWrite(ctx context.Context, change *domain.ProductChange, err error) (*ProductUpdate, error) {
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	update := &ProductUpdate{
		Product:  change.Product,
		Field:    string(change.Mutation.Field),
		OldValue: change.Mutation.OldValue,
		NewValue: change.Mutation.NewValue,
	}
	if u.observer != nil && !change.Mutation.OldValue.Equal(change.Mutation.NewValue) {
		update.Triggered = u.observer.OnProductMutation(ctx, change.Mutation)
	}

	u.logger.Info("product updated",
		zap.Uint("product_id", change.Product.ID),
		zap.String("field", update.Field),
		zap.String("old_value", update.OldValue.String()),
		zap.String("new_value", update.NewValue.String()),
		zap.Int("alerts_triggered", update.Triggered.Total()),
	)
	return update, nil
}
