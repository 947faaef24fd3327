package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductRepository struct {
	mu       sync.Mutex
	nextID   uint
	products map[uint]domain.Product
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[uint]domain.Product)}
}

func (r *ProductRepository) GetByID(ctx context.Context, productID uint) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &product, nil
}

func (r *ProductRepository) GetByIDs(ctx context.Context, productIDs []uint) (map[uint]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	products := make(map[uint]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if product, ok := r.products[id]; ok {
			products[id] = product
		}
	}
	return products, nil
}

func (r *ProductRepository) GetByExternalID(ctx context.Context, externalID int64) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, product := range r.products {
		if product.ExternalID != nil && *product.ExternalID == externalID {
			return &product, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *ProductRepository) ListWithExternalID(ctx context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	products := make([]domain.Product, 0)
	for _, product := range r.products {
		if product.ExternalID != nil {
			products = append(products, product)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (r *ProductRepository) ListBySeller(ctx context.Context, sellerID uint) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	products := make([]domain.Product, 0)
	for _, product := range r.products {
		if product.SellerID == sellerID {
			products = append(products, product)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	product.ID = r.nextID
	product.UpdatedAt = now()
	r.products[product.ID] = *product
	return nil
}

func (r *ProductRepository) UpdatePrice(ctx context.Context, sellerID, productID uint, price decimal.Decimal) (*domain.ProductChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.lookup(sellerID, productID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	mutation := domain.PriceMutation(product.ID, product.Price, price)
	product.Price = price
	product.UpdatedAt = now()
	r.products[product.ID] = product
	return &domain.ProductChange{Product: product, Mutation: mutation}, nil
}

func (r *ProductRepository) UpdateQuantity(ctx context.Context, sellerID, productID uint, quantity int) (*domain.ProductChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.lookup(sellerID, productID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	mutation := domain.QuantityMutation(product.ID, product.Quantity, quantity)
	product.Quantity = quantity
	product.UpdatedAt = now()
	r.products[product.ID] = product
	return &domain.ProductChange{Product: product, Mutation: mutation}, nil
}

// Delete removes a product outright. Only the memory store offers it; it
// stands in for catalog deletions in tests.
func (r *ProductRepository) Delete(productID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, productID)
}

func (r *ProductRepository) lookup(sellerID, productID uint) (domain.Product, bool) {
	product, ok := r.products[productID]
	if !ok || (sellerID != 0 && product.SellerID != sellerID) {
		return domain.Product{}, false
	}
	return product, true
}
