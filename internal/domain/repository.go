package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

type UserRepository interface {
	GetByID(ctx context.Context, userID uint) (*User, error)
	GetByTelegramID(ctx context.Context, telegramUserID int64) (*User, error)
	Create(ctx context.Context, user *User) error
	// UpdateEmail sets the address and the email opt-in together.
	UpdateEmail(ctx context.Context, userID uint, email string, notify bool) (*User, error)
}

type AlertRepository interface {
	Create(ctx context.Context, alert *Alert) error
	GetByID(ctx context.Context, alertID uint) (*Alert, error)
	FindActive(ctx context.Context, userID, productID uint, kind AlertKind) (*Alert, error)
	ListByUser(ctx context.Context, userID uint, filter AlertFilter) ([]Alert, error)
	UpdateFields(ctx context.Context, alertID uint, patch AlertPatch) error
	Delete(ctx context.Context, alertID uint) error

	// ConditionalTrigger flips the alert to triggered in a single atomic
	// write guarded by is_active AND NOT is_triggered. It reports whether
	// the write applied; a lost race returns false with a nil error.
	ConditionalTrigger(ctx context.Context, alertID uint, update TriggerUpdate) (bool, error)
	// RefreshCurrentPrice updates the cached price of an untriggered price alert.
	RefreshCurrentPrice(ctx context.Context, alertID uint, price decimal.Decimal) error
	MarkNotificationSent(ctx context.Context, alertID uint) error

	ListActiveUntriggered(ctx context.Context, kind AlertKind, productID *uint) ([]Alert, error)
	ListPendingNotification(ctx context.Context, kind AlertKind) ([]Alert, error)
	DeleteNotifiedBefore(ctx context.Context, kind AlertKind, cutoff time.Time) (int64, error)

	CountsByUser(ctx context.Context, userID uint, kind AlertKind) (AlertCounts, error)
	NotificationCounts(ctx context.Context, kind AlertKind) (NotificationCounts, error)
	CountsByProduct(ctx context.Context, productID uint, kind AlertKind) (ProductAlertCounts, error)
	// CountProductsWithActiveAlerts counts how many of the given products have
	// at least one active alert of either kind.
	CountProductsWithActiveAlerts(ctx context.Context, productIDs []uint) (int, error)
}

type ProductRepository interface {
	GetByID(ctx context.Context, productID uint) (*Product, error)
	GetByIDs(ctx context.Context, productIDs []uint) (map[uint]Product, error)
	GetByExternalID(ctx context.Context, externalID int64) (*Product, error)
	ListWithExternalID(ctx context.Context) ([]Product, error)
	ListBySeller(ctx context.Context, sellerID uint) ([]Product, error)
	Create(ctx context.Context, product *Product) error
	// UpdatePrice and UpdateQuantity lock the row, write the new value and
	// append a history entry in one transaction. A non-zero sellerID scopes
	// the write to that seller's products.
	UpdatePrice(ctx context.Context, sellerID, productID uint, price decimal.Decimal) (*ProductChange, error)
	UpdateQuantity(ctx context.Context, sellerID, productID uint, quantity int) (*ProductChange, error)
}
