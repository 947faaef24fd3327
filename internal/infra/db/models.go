package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type userModel struct {
	ID                 uint   `gorm:"primaryKey"`
	Name               string `gorm:""`
	Email              string `gorm:"index"`
	TelegramUserID     *int64 `gorm:"uniqueIndex"`
	Username           string `gorm:""`
	EmailNotifications bool   `gorm:"not null;default:true"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

func (userModel) TableName() string { return "users" }

// alertModel stores both alert kinds in one table; kind is the discriminant
// and the kind-specific columns are null for the other kind.
type alertModel struct {
	ID               uint             `gorm:"primaryKey"`
	Kind             string           `gorm:"type:varchar(16);not null;index:idx_alerts_user_product_kind,priority:3;index:idx_alerts_kind_active_triggered,priority:1"`
	UserID           uint             `gorm:"not null;index:idx_alerts_user_product_kind,priority:1"`
	ProductID        uint             `gorm:"not null;index:idx_alerts_user_product_kind,priority:2;index"`
	IsActive         bool             `gorm:"not null;default:true;index:idx_alerts_kind_active_triggered,priority:2"`
	IsTriggered      bool             `gorm:"not null;default:false;index:idx_alerts_kind_active_triggered,priority:3"`
	TriggeredAt      *time.Time       `gorm:""`
	NotificationSent bool             `gorm:"not null;default:false"`
	TargetPrice      *decimal.Decimal `gorm:"type:numeric(14,2)"`
	CurrentPrice     *decimal.Decimal `gorm:"type:numeric(14,2)"`
	StockThreshold   *int             `gorm:""`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (alertModel) TableName() string { return "alerts" }

type productModel struct {
	ID         uint            `gorm:"primaryKey"`
	SellerID   uint            `gorm:"not null;index"`
	ExternalID *int64          `gorm:"uniqueIndex"`
	Name       string          `gorm:"not null"`
	Price      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Quantity   int             `gorm:"not null;default:0"`
	ImageURL   string          `gorm:""`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (productModel) TableName() string { return "products" }

// productHistoryModel records every committed price or quantity write.
type productHistoryModel struct {
	ID         uint            `gorm:"primaryKey"`
	ProductID  uint            `gorm:"not null;index:idx_product_history_product_field,priority:1"`
	Field      string          `gorm:"type:varchar(16);not null;index:idx_product_history_product_field,priority:2"`
	Value      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	RecordedAt time.Time       `gorm:"not null"`
}

func (productHistoryModel) TableName() string { return "product_history" }
