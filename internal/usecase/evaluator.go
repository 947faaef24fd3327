package usecase

import (
	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
)

// Decision is the outcome of evaluating one alert against a product
// snapshot. CurrentPrice is the value to persist on price alerts and is set
// whenever a product was available, triggered or not.
type Decision struct {
	Trigger      bool
	CurrentPrice *decimal.Decimal
}

// Evaluate decides whether alert qualifies against product. It has no side
// effects. A nil product (deleted after the alert was created) never
// triggers.
func Evaluate(alert domain.Alert, product *domain.Product) Decision {
	if product == nil {
		return Decision{}
	}

	switch alert.Kind {
	case domain.AlertKindPrice:
		if alert.Price == nil {
			return Decision{}
		}
		price := product.Price
		return Decision{
			Trigger:      price.LessThanOrEqual(alert.Price.TargetPrice),
			CurrentPrice: &price,
		}
	case domain.AlertKindStock:
		if alert.Stock == nil {
			return Decision{}
		}
		return Decision{Trigger: product.Quantity > alert.Stock.Threshold}
	default:
		return Decision{}
	}
}
