package db

import (
	"context"
	"testing"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	user := &domain.User{Name: "asha", TelegramUserID: 42, Username: "asha", EmailNotifications: true}
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)

	found, err := repo.GetByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Empty(t, found.Email)

	updated, err := repo.UpdateEmail(ctx, user.ID, "asha@example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", updated.Email)
	assert.True(t, updated.EmailNotifications)
	assert.Equal(t, int64(42), updated.TelegramUserID)

	updated, err = repo.UpdateEmail(ctx, user.ID, "", false)
	require.NoError(t, err)
	assert.Empty(t, updated.Email)
	assert.False(t, updated.EmailNotifications)

	_, err = repo.UpdateEmail(ctx, 404, "x@example.com", true)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetByTelegramID(ctx, 7)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
