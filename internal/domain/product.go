package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the read-only snapshot the alert pipeline evaluates against.
// Product data itself is owned by the catalog and seller tooling.
type Product struct {
	ID         uint
	SellerID   uint
	ExternalID *int64
	Name       string
	Price      decimal.Decimal
	Quantity   int
	ImageURL   string
	UpdatedAt  time.Time
}

type ProductField string

const (
	ProductFieldPrice    ProductField = "price"
	ProductFieldQuantity ProductField = "quantity"
)

// ProductMutation describes one committed change to a product. Quantities
// are carried as integral decimals so both fields share one shape.
type ProductMutation struct {
	ProductID uint
	Field     ProductField
	OldValue  decimal.Decimal
	NewValue  decimal.Decimal
}

func PriceMutation(productID uint, oldPrice, newPrice decimal.Decimal) ProductMutation {
	return ProductMutation{ProductID: productID, Field: ProductFieldPrice, OldValue: oldPrice, NewValue: newPrice}
}

func QuantityMutation(productID uint, oldQty, newQty int) ProductMutation {
	return ProductMutation{
		ProductID: productID,
		Field:     ProductFieldQuantity,
		OldValue:  decimal.NewFromInt(int64(oldQty)),
		NewValue:  decimal.NewFromInt(int64(newQty)),
	}
}

// ProductChange is returned by product writes: the product after the write
// and the value it replaced.
type ProductChange struct {
	Product  Product
	Mutation ProductMutation
}

// CatalogProduct is a product as listed by the external catalog.
type CatalogProduct struct {
	ExternalID  int64
	Title       string
	Description string
	Category    string
	Price       decimal.Decimal
	ImageURL    string
}

// CatalogUpdate is a live change pushed by the catalog feed. Nil fields did
// not change.
type CatalogUpdate struct {
	ExternalID int64
	Price      *decimal.Decimal
	Quantity   *int
}
