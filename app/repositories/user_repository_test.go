package repositories_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/app/repositories"
)

func TestUserRepository(t *testing.T) {
	repo := repositories.NewUserRepository(openDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Password: "x"}))
	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "u2", Name: "Ada L.", Email: "ada@example.com", Password: "y"}))

	u, err := repo.FindUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", u.Name)

	byEmail, err := repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	_, err = repo.FindUser(ctx, "u2")
	assert.ErrorIs(t, err, payment.ErrUserNotFound)
}
