package domain

import "context"

// CatalogClient reads the external product catalog.
type CatalogClient interface {
	ListProducts(ctx context.Context) ([]CatalogProduct, error)
}

type CatalogFeedFactory interface {
	Connect(ctx context.Context) (CatalogFeedClient, error)
}

// CatalogFeedClient is one live connection to the catalog change stream.
// Receive returns an empty batch for frames that carry no product updates.
type CatalogFeedClient interface {
	Subscribe(ctx context.Context, externalIDs []int64) error
	Receive(ctx context.Context) ([]CatalogUpdate, error)
	Close() error
}
