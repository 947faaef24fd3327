package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/NasaVasa/shopalerts/internal/domain"
)

type UserUsecase struct {
	users domain.UserRepository
}

func NewUserUsecase(users domain.UserRepository) *UserUsecase {
	return &UserUsecase{users: users}
}

// StartOrGetUser returns the user linked to a Telegram account, registering
// one on first contact. Telegram-registered users have no email address, so
// their alerts are delivered over Telegram.
func (u *UserUsecase) StartOrGetUser(ctx context.Context, telegramUserID int64, username string) (*domain.User, error) {
	user, err := u.users.GetByTelegramID(ctx, telegramUserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	newUser := &domain.User{
		Name:               username,
		TelegramUserID:     telegramUserID,
		Username:           username,
		EmailNotifications: true,
	}
	if err := u.users.Create(ctx, newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

// TelegramUser resolves an already registered Telegram account.
func (u *UserUsecase) TelegramUser(ctx context.Context, telegramUserID int64) (*domain.User, error) {
	user, err := u.users.GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotRegistered
		}
		return nil, err
	}
	return user, nil
}

// SetEmail links an email address to the user and opts them into email
// delivery. An empty address clears it, so alerts fall back to Telegram.
func (u *UserUsecase) SetEmail(ctx context.Context, userID uint, address string) (*domain.User, error) {
	address = strings.TrimSpace(address)
	notify := address != ""
	if notify {
		parsed, err := mail.ParseAddress(address)
		if err != nil || parsed.Address != address {
			return nil, ErrInvalidEmail
		}
	}

	user, err := u.users.UpdateEmail(ctx, userID, address, notify)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
