package httpapi

import (
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/NasaVasa/shopalerts/internal/usecase"
	"github.com/shopspring/decimal"
)

type createAlertRequest struct {
	ProductID      uint             `json:"product_id"`
	TargetPrice    *decimal.Decimal `json:"target_price"`
	StockThreshold *int             `json:"stock_threshold"`
}

type updateAlertRequest struct {
	TargetPrice    *decimal.Decimal `json:"target_price"`
	StockThreshold *int             `json:"stock_threshold"`
	IsActive       *bool            `json:"is_active"`
}

type priceRequest struct {
	Price *decimal.Decimal `json:"price"`
}

type stockRequest struct {
	Quantity *int `json:"quantity"`
}

type bulkUpdateRequest struct {
	Updates []bulkItemRequest `json:"updates"`
}

type bulkItemRequest struct {
	ProductID uint             `json:"product_id"`
	Price     *decimal.Decimal `json:"price"`
	Quantity  *int             `json:"quantity"`
}

type emailRequest struct {
	Email *string `json:"email"`
}

type testNotificationRequest struct {
	Email string `json:"email"`
}

type alertResponse struct {
	ID               uint             `json:"id"`
	Kind             domain.AlertKind `json:"kind"`
	UserID           uint             `json:"user_id"`
	ProductID        uint             `json:"product_id"`
	TargetPrice      *decimal.Decimal `json:"target_price,omitempty"`
	CurrentPrice     *decimal.Decimal `json:"current_price,omitempty"`
	StockThreshold   *int             `json:"stock_threshold,omitempty"`
	IsActive         bool             `json:"is_active"`
	IsTriggered      bool             `json:"is_triggered"`
	TriggeredAt      *time.Time       `json:"triggered_at,omitempty"`
	NotificationSent bool             `json:"notification_sent"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func toAlertResponse(alert domain.Alert) alertResponse {
	resp := alertResponse{
		ID:               alert.ID,
		Kind:             alert.Kind,
		UserID:           alert.UserID,
		ProductID:        alert.ProductID,
		IsActive:         alert.IsActive,
		IsTriggered:      alert.IsTriggered,
		TriggeredAt:      alert.TriggeredAt,
		NotificationSent: alert.NotificationSent,
		CreatedAt:        alert.CreatedAt,
		UpdatedAt:        alert.UpdatedAt,
	}
	if alert.Price != nil {
		target := alert.Price.TargetPrice
		current := alert.Price.CurrentPrice
		resp.TargetPrice = &target
		resp.CurrentPrice = &current
	}
	if alert.Stock != nil {
		threshold := alert.Stock.Threshold
		resp.StockThreshold = &threshold
	}
	return resp
}

func toAlertResponses(alerts []domain.Alert) []alertResponse {
	out := make([]alertResponse, 0, len(alerts))
	for _, alert := range alerts {
		out = append(out, toAlertResponse(alert))
	}
	return out
}

type productResponse struct {
	ID         uint            `json:"id"`
	SellerID   uint            `json:"seller_id"`
	ExternalID *int64          `json:"external_id,omitempty"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	ImageURL   string          `json:"image_url,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type productUpdateResponse struct {
	Product   productResponse       `json:"product"`
	Field     string                `json:"field"`
	OldValue  decimal.Decimal       `json:"old_value"`
	NewValue  decimal.Decimal       `json:"new_value"`
	Triggered usecase.TriggerCounts `json:"alerts_triggered"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		SellerID:   p.SellerID,
		ExternalID: p.ExternalID,
		Name:       p.Name,
		Price:      p.Price,
		Quantity:   p.Quantity,
		ImageURL:   p.ImageURL,
		UpdatedAt:  p.UpdatedAt,
	}
}

func toProductUpdateResponse(update *usecase.ProductUpdate) productUpdateResponse {
	return productUpdateResponse{
		Product:   toProductResponse(update.Product),
		Field:     update.Field,
		OldValue:  update.OldValue,
		NewValue:  update.NewValue,
		Triggered: update.Triggered,
	}
}

type bulkItemResponse struct {
	ProductID uint                  `json:"product_id"`
	Success   bool                  `json:"success"`
	Error     *errorBody            `json:"error,omitempty"`
	Product   *productResponse      `json:"product,omitempty"`
	Triggered usecase.TriggerCounts `json:"alerts_triggered"`
}

type bulkUpdateResponse struct {
	Results    []bulkItemResponse `json:"results"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
}

func toBulkUpdateResponse(results []usecase.BulkResult) bulkUpdateResponse {
	resp := bulkUpdateResponse{Results: make([]bulkItemResponse, 0, len(results))}
	for _, result := range results {
		item := bulkItemResponse{
			ProductID: result.ProductID,
			Success:   result.Success(),
			Triggered: result.Triggered,
		}
		if result.Success() {
			product := toProductResponse(*result.Product)
			item.Product = &product
			resp.Successful++
		} else {
			_, code, message := errorStatus(result.Err)
			item.Error = &errorBody{Code: code, Message: message}
			resp.Failed++
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}

type userResponse struct {
	ID                 uint   `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	EmailNotifications bool   `json:"email_notifications"`
	Telegram           bool   `json:"telegram_linked"`
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:                 user.ID,
		Name:               user.Name,
		Email:              user.Email,
		EmailNotifications: user.EmailNotifications,
		Telegram:           user.TelegramUserID != 0,
	}
}
