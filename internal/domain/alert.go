package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type AlertKind string

const (
	AlertKindPrice AlertKind = "price"
	AlertKindStock AlertKind = "stock"
)

var AlertKinds = []AlertKind{AlertKindPrice, AlertKindStock}

func ParseAlertKind(value string) (AlertKind, error) {
	switch AlertKind(value) {
	case AlertKindPrice:
		return AlertKindPrice, nil
	case AlertKindStock:
		return AlertKindStock, nil
	default:
		return "", fmt.Errorf("unknown alert kind %q", value)
	}
}

// PriceTerms is set on price-drop alerts. CurrentPrice caches the product
// price seen at the last evaluation.
type PriceTerms struct {
	TargetPrice  decimal.Decimal
	CurrentPrice decimal.Decimal
}

// StockTerms is set on back-in-stock alerts. The alert qualifies once the
// product quantity is strictly greater than Threshold.
type StockTerms struct {
	Threshold int
}

// Alert is a user's standing request on a product. Kind selects which of
// Price or Stock is populated.
type Alert struct {
	ID               uint
	Kind             AlertKind
	UserID           uint
	ProductID        uint
	IsActive         bool
	IsTriggered      bool
	TriggeredAt      *time.Time
	NotificationSent bool
	Price            *PriceTerms
	Stock            *StockTerms
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewPriceAlert(userID, productID uint, target, current decimal.Decimal) *Alert {
	return &Alert{
		Kind:      AlertKindPrice,
		UserID:    userID,
		ProductID: productID,
		IsActive:  true,
		Price:     &PriceTerms{TargetPrice: target, CurrentPrice: current},
	}
}

func NewStockAlert(userID, productID uint, threshold int) *Alert {
	return &Alert{
		Kind:      AlertKindStock,
		UserID:    userID,
		ProductID: productID,
		IsActive:  true,
		Stock:     &StockTerms{Threshold: threshold},
	}
}

// Pending reports whether the alert still takes part in evaluation.
func (a Alert) Pending() bool {
	return a.IsActive && !a.IsTriggered
}

// AwaitingDelivery reports whether the alert has triggered but its
// notification has not been delivered yet.
func (a Alert) AwaitingDelivery() bool {
	return a.IsTriggered && !a.NotificationSent
}

// AlertPatch carries user-editable fields. Nil fields are left untouched.
type AlertPatch struct {
	TargetPrice    *decimal.Decimal
	StockThreshold *int
	IsActive       *bool
}

func (p AlertPatch) Empty() bool {
	return p.TargetPrice == nil && p.StockThreshold == nil && p.IsActive == nil
}

// TriggerUpdate is the new state written by a conditional trigger. The write
// only applies while the alert is still active and untriggered.
type TriggerUpdate struct {
	TriggeredAt  time.Time
	CurrentPrice *decimal.Decimal
}

type AlertFilter struct {
	Kind   AlertKind
	Active *bool
}

type AlertCounts struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Triggered int64 `json:"triggered"`
}

type NotificationCounts struct {
	Triggered int64 `json:"triggered"`
	Notified  int64 `json:"notified"`
	Pending   int64 `json:"pending"`
}

type ProductAlertCounts struct {
	Active  int64 `json:"active"`
	Pending int64 `json:"pending_notifications"`
}
