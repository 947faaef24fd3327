package db

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetByID(ctx context.Context, productID uint) (*domain.Product, error) {
	var model productModel
	if err := r.db.WithContext(ctx).First(&model, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	product := mapProductToDomain(model)
	return &product, nil
}

func (r *ProductRepository) GetByIDs(ctx context.Context, productIDs []uint) (map[uint]domain.Product, error) {
	products := make(map[uint]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return products, nil
	}

	var models []productModel
	if err := r.db.WithContext(ctx).Where("id IN ?", productIDs).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, model := range models {
		products[model.ID] = mapProductToDomain(model)
	}
	return products, nil
}

func (r *ProductRepository) GetByExternalID(ctx context.Context, externalID int64) (*domain.Product, error) {
	var model productModel
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	product := mapProductToDomain(model)
	return &product, nil
}

func (r *ProductRepository) ListWithExternalID(ctx context.Context) ([]domain.Product, error) {
	var models []productModel
	if err := r.db.WithContext(ctx).Where("external_id IS NOT NULL").Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(models))
	for _, model := range models {
		products = append(products, mapProductToDomain(model))
	}
	return products, nil
}

func (r *ProductRepository) ListBySeller(ctx context.Context, sellerID uint) ([]domain.Product, error) {
	var models []productModel
	if err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(models))
	for _, model := range models {
		products = append(products, mapProductToDomain(model))
	}
	return products, nil
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	model := mapProductToModel(*product)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		history := []productHistoryModel{
			{ProductID: model.ID, Field: string(domain.ProductFieldPrice), Value: model.Price, RecordedAt: now},
			{ProductID: model.ID, Field: string(domain.ProductFieldQuantity), Value: decimal.NewFromInt(int64(model.Quantity)), RecordedAt: now},
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return err
	}
	product.ID = model.ID
	product.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *ProductRepository) UpdatePrice(ctx context.Context, sellerID, productID uint, price decimal.Decimal) (*domain.ProductChange, error) {
	return r.update(ctx, sellerID, productID, domain.ProductFieldPrice, func(model *productModel) (decimal.Decimal, decimal.Decimal) {
		old := model.Price
		model.Price = price
		return old, price
	})
}

func (r *ProductRepository) UpdateQuantity(ctx context.Context, sellerID, productID uint, quantity int) (*domain.ProductChange, error) {
	return r.update(ctx, sellerID, productID, domain.ProductFieldQuantity, func(model *productModel) (decimal.Decimal, decimal.Decimal) {
		old := model.Quantity
		model.Quantity = quantity
		return decimal.NewFromInt(int64(old)), decimal.NewFromInt(int64(quantity))
	})
}

func (r *ProductRepository) update(
	ctx context.Context,
	sellerID, productID uint,
	field domain.ProductField,
	apply func(model *productModel) (decimal.Decimal, decimal.Decimal),
) (*domain.ProductChange, error) {
	var change domain.ProductChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", productID)
		if sellerID != 0 {
			query = query.Where("seller_id = ?", sellerID)
		}

		var model productModel
		if err := query.First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		oldValue, newValue := apply(&model)
		if err := tx.Model(&productModel{}).Where("id = ?", model.ID).
			Updates(map[string]any{"price": model.Price, "quantity": model.Quantity}).Error; err != nil {
			return err
		}
		history := productHistoryModel{ProductID: model.ID, Field: string(field), Value: newValue, RecordedAt: time.Now().UTC()}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		change = domain.ProductChange{
			Product: mapProductToDomain(model),
			Mutation: domain.ProductMutation{
				ProductID: model.ID,
				Field:     field,
				OldValue:  oldValue,
				NewValue:  newValue,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

func mapProductToDomain(model productModel) domain.Product {
	return domain.Product{
		ID:         model.ID,
		SellerID:   model.SellerID,
		ExternalID: model.ExternalID,
		Name:       model.Name,
		Price:      model.Price,
		Quantity:   model.Quantity,
		ImageURL:   model.ImageURL,
		UpdatedAt:  model.UpdatedAt,
	}
}

func mapProductToModel(product domain.Product) productModel {
	return productModel{
		ID:         product.ID,
		SellerID:   product.SellerID,
		ExternalID: product.ExternalID,
		Name:       product.Name,
		Price:      product.Price,
		Quantity:   product.Quantity,
		ImageURL:   product.ImageURL,
		UpdatedAt:  product.UpdatedAt,
	}
}
