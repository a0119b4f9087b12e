package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, env *testutil.TestEnv) *entity.Order {
	t.Helper()
	testutil.SeedDepartment(t, env.DB, "d-cut", "Cutting")
	testutil.SeedRouting(t, env.DB, "P-100", "d-cut")
	order, err := env.Services.Order.Create(context.Background(), testutil.AdminPrincipal("u-admin"), service.CreateOrderRequest{
		OrderNumber: "WO-001",
		ProductID:   "P-100",
		Quantity:    10,
	})
	require.NoError(t, err)
	return order
}

func TestOrderUpdateFieldsKeepsDerivedStatus(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	order := seedOrder(t, env)
	repo := env.Repos.Order

	// a rollup commits after the caller read the order as pending
	started := time.Now()
	order.Status = entity.OrderStatusInProgress
	order.ActualStartDate = &started
	require.NoError(t, repo.UpdateStatus(ctx, order))

	require.NoError(t, repo.UpdateFields(ctx, order.ID, map[string]interface{}{"notes": "rush", "priority": 1}))

	got, err := repo.FindByID(ctx, testutil.TeamID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusInProgress, got.Status)
	assert.NotNil(t, got.ActualStartDate)
	assert.Equal(t, "rush", got.Notes)
	assert.Equal(t, 1, got.Priority)

	n, err := repo.SetQuantity(ctx, order.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestOrderCancelSkipsCompleted(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	order := seedOrder(t, env)
	repo := env.Repos.Order

	ended := time.Now()
	order.Status = entity.OrderStatusCompleted
	order.ActualEndDate = &ended
	require.NoError(t, repo.UpdateStatus(ctx, order))

	n, err := repo.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, err := repo.FindByID(ctx, testutil.TeamID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCompleted, got.Status)
}

func TestOrderVisibleTo(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	order := seedOrder(t, env)
	repo := env.Repos.Order

	ok, err := repo.VisibleTo(ctx, testutil.TeamID, order.ID, testutil.MemberPrincipal("u-op", "d-cut").Scope)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.VisibleTo(ctx, testutil.TeamID, order.ID, testutil.MemberPrincipal("u-op", "d-asm").Scope)
	require.NoError(t, err)
	assert.False(t, ok)
}
