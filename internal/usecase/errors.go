package usecase

import "errors"

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrUserNotRegistered      = errors.New("user not registered")
	ErrProductNotFound        = errors.New("product not found")
	ErrAlertNotFound          = errors.New("alert not found")
	ErrAlertExists            = errors.New("an active alert already exists for this product")
	ErrInvalidKind            = errors.New("invalid alert kind")
	ErrInvalidTargetPrice     = errors.New("invalid target price")
	ErrInvalidThreshold       = errors.New("invalid stock threshold")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrEmptyPatch             = errors.New("update sets neither price nor quantity")
	ErrReactivationNotAllowed = errors.New("inactive alerts cannot be reactivated, create a new alert")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrNoRecipient            = errors.New("no recipient address")
	ErrChannelDisabled        = errors.New("notification channel not configured")
	ErrCatalogDisabled        = errors.New("catalog client not configured")
)
