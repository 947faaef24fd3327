package usecase

import (
	"context"
	"errors"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ImportResult struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
}

type RefreshResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Missing int `json:"missing"`
	Failed  int `json:"failed"`
}

// CatalogSync copies products from the external catalog into the store and
// keeps their prices current. Price changes go through the product write
// path so they reach the trigger executor like any seller update.
type CatalogSync struct {
	catalog         domain.CatalogClient
	products        domain.ProductRepository
	writer          *ProductUsecase
	defaultQuantity int
	logger          *zap.Logger
}

func NewCatalogSync(catalog domain.CatalogClient, products domain.ProductRepository, writer *ProductUsecase, defaultQuantity int, logger *zap.Logger) *CatalogSync {
	return &CatalogSync{
		catalog:         catalog,
		products:        products,
		writer:          writer,
		defaultQuantity: defaultQuantity,
		logger:          logger,
	}
}

// Import creates every catalog product not yet stored, owned by sellerID.
func (s *CatalogSync) Import(ctx context.Context, sellerID uint) (ImportResult, error) {
	var result ImportResult
	if s.catalog == nil {
		return result, ErrCatalogDisabled
	}

	items, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return result, err
	}

	for _, item := range items {
		_, err := s.products.GetByExternalID(ctx, item.ExternalID)
		if err == nil {
			result.Existing++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return result, err
		}

		externalID := item.ExternalID
		product := &domain.Product{
			SellerID:   sellerID,
			ExternalID: &externalID,
			Name:       item.Title,
			Price:      item.Price,
			Quantity:   s.defaultQuantity,
			ImageURL:   item.ImageURL,
		}
		if err := s.products.Create(ctx, product); err != nil {
			return result, err
		}
		result.Created++
	}

	s.logger.Info("catalog import complete",
		zap.Uint("seller_id", sellerID),
		zap.Int("created", result.Created),
		zap.Int("existing", result.Existing),
	)
	return result, nil
}

// RefreshPrices lists the catalog once and writes every stored price that
// differs from it. Products missing from the listing are counted and left
// untouched; a failed write is counted and skipped.
func (s *CatalogSync) RefreshPrices(ctx context.Context) (RefreshResult, error) {
	var result RefreshResult
	if s.catalog == nil {
		return result, ErrCatalogDisabled
	}

	items, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return result, err
	}
	prices := make(map[int64]decimal.Decimal, len(items))
	for _, item := range items {
		prices[item.ExternalID] = item.Price
	}

	products, err := s.products.ListWithExternalID(ctx)
	if err != nil {
		return result, err
	}

	for _, product := range products {
		result.Checked++
		price, ok := prices[*product.ExternalID]
		if !ok {
			result.Missing++
			s.logger.Debug("product not in catalog listing",
				zap.Uint("product_id", product.ID),
				zap.Int64("external_id", *product.ExternalID),
			)
			continue
		}
		if price.Equal(product.Price) {
			continue
		}
		if _, err := s.writer.UpdatePrice(ctx, 0, product.ID, price); err != nil {
			result.Failed++
			s.logger.Warn("catalog price update failed", zap.Uint("product_id", product.ID), zap.Error(err))
			continue
		}
		result.Updated++
	}

	s.logger.Info("catalog price refresh complete",
		zap.Int("checked", result.Checked),
		zap.Int("updated", result.Updated),
		zap.Int("missing", result.Missing),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
