package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"go.uber.org/zap"
)

const defaultFeedReconnectDelay = 5 * time.Second

// CatalogFeed applies live catalog updates through the product write path.
// It keeps one connection open and reconnects after a fixed delay until the
// context ends.
type CatalogFeed struct {
	factory        domain.CatalogFeedFactory
	products       domain.ProductRepository
	writer         *ProductUsecase
	reconnectDelay time.Duration
	logger         *zap.Logger
}

func NewCatalogFeed(factory domain.CatalogFeedFactory, products domain.ProductRepository, writer *ProductUsecase, logger *zap.Logger) *CatalogFeed {
	return &CatalogFeed{
		factory:        factory,
		products:       products,
		writer:         writer,
		reconnectDelay: defaultFeedReconnectDelay,
		logger:         logger,
	}
}

func (f *CatalogFeed) Run(ctx context.Context) error {
	for {
		err := f.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		f.logger.Warn("catalog feed disconnected", zap.Error(err), zap.Duration("retry_in", f.reconnectDelay))

		timer := time.NewTimer(f.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (f *CatalogFeed) runOnce(ctx context.Context) error {
	products, err := f.products.ListWithExternalID(ctx)
	if err != nil {
		return err
	}
	externalIDs := make([]int64, 0, len(products))
	for _, product := range products {
		externalIDs = append(externalIDs, *product.ExternalID)
	}

	client, err := f.factory.Connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if err := client.Subscribe(ctx, externalIDs); err != nil {
		return err
	}

	for {
		updates, err := client.Receive(ctx)
		if err != nil {
			return err
		}
		for _, update := range updates {
			f.Apply(ctx, update)
		}
	}
}

// Apply writes one catalog update to the matching local product. Unknown
// products are ignored.
func (f *CatalogFeed) Apply(ctx context.Context, update domain.CatalogUpdate) {
	product, err := f.products.GetByExternalID(ctx, update.ExternalID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			f.logger.Warn("catalog feed product lookup failed", zap.Int64("external_id", update.ExternalID), zap.Error(err))
		}
		return
	}

	if update.Price != nil && !update.Price.Equal(product.Price) {
		if _, err := f.writer.UpdatePrice(ctx, 0, product.ID, *update.Price); err != nil {
			f.logger.Warn("catalog feed price update failed", zap.Uint("product_id", product.ID), zap.Error(err))
		}
	}
	if update.Quantity != nil && *update.Quantity != product.Quantity {
		if _, err := f.writer.UpdateQuantity(ctx, 0, product.ID, *update.Quantity); err != nil {
			f.logger.Warn("catalog feed quantity update failed", zap.Uint("product_id", product.ID), zap.Error(err))
		}
	}
}
