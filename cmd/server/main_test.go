package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/repository/memstore"
	"github.com/DoHyunDaniel/reservation-api-project/internal/utils"
)

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUsers()

	created, err := seedAdmin(ctx, users, "root@example.com", "s3cret-pass", 4)
	require.NoError(t, err)
	assert.True(t, created)

	u, err := users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "s3cret-pass"))

	// Restarts keep the existing account.
	created, err = seedAdmin(ctx, users, "root@example.com", "other", 4)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSeedAdmin_RefusesNonAdminAccount(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUsers()
	_, err := users.Create(ctx, "kim@example.com", "pw-123456", model.RoleCustomer, 4)
	require.NoError(t, err)

	_, err = seedAdmin(ctx, users, "kim@example.com", "s3cret-pass", 4)
	require.Error(t, err)

	u, err := users.GetByEmail(ctx, "kim@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, u.Role)
}
