package memory

import (
	"context"
	"sync"

	"github.com/NasaVasa/shopalerts/internal/domain"
)

type UserRepository struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uint]domain.User)}
}

func (r *UserRepository) GetByID(ctx context.Context, userID uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramUserID int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if telegramUserID != 0 && user.TelegramUserID == telegramUserID {
			return &user, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *UserRepository) UpdateEmail(ctx context.Context, userID uint, email string, notify bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	user.Email = email
	user.EmailNotifications = notify
	user.UpdatedAt = now()
	r.users[userID] = user
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}
