package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int        { return &i }

func TestOrderCreateRejectsDuplicateNumber(t *testing.T) {
	f := setupWOOTest(t)
	_, err := f.env.Services.Order.Create(context.Background(), f.admin, service.CreateOrderRequest{
		OrderNumber: "WO-001",
		ProductID:   "P-100",
		Quantity:    5,
	})
	assert.True(t, service.IsKind(err, service.KindConflict))
}

func TestOrderCreateValidation(t *testing.T) {
	f := setupWOOTest(t)
	ctx := context.Background()

	_, err := f.env.Services.Order.Create(ctx, f.admin, service.CreateOrderRequest{OrderNumber: "WO-2", ProductID: "P-100", Quantity: 0})
	assert.True(t, service.IsKind(err, service.KindValidation))

	_, err = f.env.Services.Order.Create(ctx, f.admin, service.CreateOrderRequest{OrderNumber: "WO-2", ProductID: "P-100", Quantity: 1, Priority: 9})
	assert.True(t, service.IsKind(err, service.KindValidation))

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err = f.env.Services.Order.Create(ctx, f.admin, service.CreateOrderRequest{
		OrderNumber: "WO-2", ProductID: "P-100", Quantity: 1,
		ScheduledStartDate: &start, ScheduledEndDate: &end,
	})
	assert.True(t, service.IsKind(err, service.KindValidation))

	_, err = f.env.Services.Order.Create(ctx, f.admin, service.CreateOrderRequest{OrderNumber: "WO-2", ProductID: "P-unknown", Quantity: 1})
	assert.Error(t, err)
}

func TestOrderCreateDefaultsPriority(t *testing.T) {
	f := setupWOOTest(t)
	assert.Equal(t, 3, f.order.Priority)
}

func TestOrderCancel(t *testing.T) {
	f := setupWOOTest(t)
	ctx := context.Background()

	_, err := f.env.Services.Order.Update(ctx, f.admin, f.order.ID, service.UpdateOrderRequest{Status: strPtr(entity.OrderStatusCompleted)})
	assert.True(t, service.IsKind(err, service.KindValidation))

	order, err := f.env.Services.Order.Update(ctx, f.admin, f.order.ID, service.UpdateOrderRequest{Status: strPtr(entity.OrderStatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCancelled, order.Status)

	// operations of a cancelled order are abandoned
	_, err = f.env.Services.WOO.Start(ctx, f.admin, f.order.Operations[0].ID, "")
	assert.True(t, service.IsKind(err, service.KindConflict))
	d, err := f.env.Services.WOO.Get(ctx, f.admin, f.order.Operations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entity.WOOStatusReady, d.Status)
	assert.Empty(t, d.AllowedActions)

	order, err = f.env.Services.Order.Get(ctx, f.admin, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCancelled, order.Status)
}

func TestOrderCancelStopsRunningOperation(t *testing.T) {
	f := setupWOOTest(t)
	ctx := context.Background()
	first := f.order.Operations[0].ID

	_, err := f.apply(t, first, service.WOOActionRequest{Action: "start"})
	require.NoError(t, err)
	order, err := f.env.Services.Order.Update(ctx, f.admin, f.order.ID, service.UpdateOrderRequest{Status: strPtr(entity.OrderStatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCancelled, order.Status)
	assert.NotNil(t, order.ActualStartDate)

	_, err = f.apply(t, first, service.WOOActionRequest{Action: "pause", PauseReasonID: f.reason.ID})
	assert.True(t, service.IsKind(err, service.KindConflict))
	_, err = f.apply(t, first, service.WOOActionRequest{Action: "complete"})
	assert.True(t, service.IsKind(err, service.KindConflict))

	// already cancelled, nothing to do
	_, err = f.env.Services.Order.Update(ctx, f.admin, f.order.ID, service.UpdateOrderRequest{Status: strPtr(entity.OrderStatusCancelled)})
	require.NoError(t, err)
}

func TestOrderQuantityLockedAfterStart(t *testing.T) {
	f := setupWOOTest(t)
	ctx := context.Background()

	order, err := f.env.Services.Order.Update(ctx, f.admin, f.order.ID, service.UpdateOrderRequest{Quantity: intPtr(25)})
	require.NoError(t, err)
	assert.Equal(t, 25, order.Quantity)
	for _, op := range order.Operations {
		assert.Equal(t, 25, op.QuantityToProduce)
	}

	_, err = f.env.Services.WOO.Start(ctx, f.admin, f.order.Operations[0].ID, "")
	require.NoError(t, err)

	_, err = f.env.Services.Order.Update(ctx, f.admin, f.order.ID, service.UpdateOrderRequest{Quantity: intPtr(30)})
	assert.True(t, service.IsKind(err, service.KindConflict))

	order, err = f.env.Services.Order.Update(ctx, f.admin, f.order.ID, service.UpdateOrderRequest{Notes: strPtr("rush"), Priority: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, "rush", order.Notes)
	assert.Equal(t, 1, order.Priority)
}

func TestOrderListFilters(t *testing.T) {
	f := setupWOOTest(t)
	ctx := context.Background()
	_, err := f.env.Services.Order.Create(ctx, f.admin, service.CreateOrderRequest{OrderNumber: "WO-002", ProductID: "P-100", Quantity: 2, Priority: 1})
	require.NoError(t, err)

	items, total, err := f.env.Services.Order.List(ctx, f.admin, repository.OrderListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	items, total, err = f.env.Services.Order.List(ctx, f.admin, repository.OrderListParams{Priority: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "WO-002", items[0].OrderNumber)

	_, _, err = f.env.Services.Order.List(ctx, f.admin, repository.OrderListParams{Status: "bogus"})
	assert.True(t, service.IsKind(err, service.KindValidation))
}

func TestOrderScopedByDepartment(t *testing.T) {
	f := setupWOOTest(t)
	ctx := context.Background()
	testutil.SeedRouting(t, f.env.DB, "P-ASM", f.deptB.ID)
	other, err := f.env.Services.Order.Create(ctx, f.admin, service.CreateOrderRequest{OrderNumber: "WO-ASM", ProductID: "P-ASM", Quantity: 3})
	require.NoError(t, err)

	cutter := testutil.MemberPrincipal("u-cut", f.deptA.ID)
	items, total, err := f.env.Services.Order.List(ctx, cutter, repository.OrderListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "WO-001", items[0].OrderNumber)

	_, err = f.env.Services.Order.Get(ctx, cutter, other.ID)
	assert.True(t, service.IsKind(err, service.KindNotFound))
	_, err = f.env.Services.Order.Update(ctx, cutter, other.ID, service.UpdateOrderRequest{Notes: strPtr("x")})
	assert.True(t, service.IsKind(err, service.KindNotFound))

	assembler := testutil.MemberPrincipal("u-asm", f.deptB.ID)
	_, total, err = f.env.Services.Order.List(ctx, assembler, repository.OrderListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = f.env.Services.Order.List(ctx, testutil.MemberPrincipal("u-none"), repository.OrderListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestRoutingCreateValidation(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	admin := testutil.AdminPrincipal("u-admin")
	dept := testutil.SeedDepartment(t, env.DB, "d-1", "Machining")

	_, err := env.Services.Routing.Create(ctx, admin, service.CreateRoutingRequest{
		Name:      "Bracket",
		ProductID: "P-200",
		Operations: []service.RoutingOperationInput{
			{OperationNumber: 10, Name: "Mill", DepartmentID: dept.ID, RunTime: 12},
			{OperationNumber: 10, Name: "Drill", DepartmentID: "d-missing", RunTime: -1},
		},
	})
	e := appErr(t, err)
	assert.Equal(t, service.CodeValidation, e.Code)

	inactive := false
	routing, err := env.Services.Routing.Create(ctx, admin, service.CreateRoutingRequest{
		Name:      "Bracket",
		ProductID: "P-200",
		IsActive:  &inactive,
		Operations: []service.RoutingOperationInput{
			{OperationNumber: 20, Name: "Drill", DepartmentID: dept.ID, RunTime: 5},
			{OperationNumber: 10, Name: "Mill", DepartmentID: dept.ID, RunTime: 12},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.0", routing.Version)
	assert.False(t, routing.IsActive)
	require.Len(t, routing.Operations, 2)
	assert.Equal(t, 10, routing.Operations[0].OperationNumber)

	_, err = env.Services.Routing.Create(ctx, admin, service.CreateRoutingRequest{
		Name:      "Bracket",
		ProductID: "P-200",
		Operations: []service.RoutingOperationInput{
			{OperationNumber: 10, Name: "Mill", DepartmentID: dept.ID},
		},
	})
	assert.True(t, service.IsKind(err, service.KindConflict))

	// no active routing for the product yet
	_, err = env.Services.Order.Create(ctx, admin, service.CreateOrderRequest{OrderNumber: "WO-9", ProductID: "P-200", Quantity: 1})
	assert.Error(t, err)

	_, err = env.Services.Routing.SetActive(ctx, admin, routing.ID, true)
	require.NoError(t, err)
	order, err := env.Services.Order.Create(ctx, admin, service.CreateOrderRequest{OrderNumber: "WO-9", ProductID: "P-200", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, routing.ID, order.RoutingID)
	assert.Equal(t, 12.0, order.Operations[0].StandardTime)
}

func TestDepartmentLifecycle(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	admin := testutil.AdminPrincipal("u-admin")

	dept, err := env.Services.Department.Create(ctx, admin, service.DepartmentRequest{Name: strPtr("Welding")})
	require.NoError(t, err)
	assert.True(t, dept.IsActive)

	_, err = env.Services.Department.Create(ctx, admin, service.DepartmentRequest{Name: strPtr("Welding")})
	assert.True(t, service.IsKind(err, service.KindConflict))

	outsider := testutil.MemberPrincipal("u-x", "d-other")
	_, err = env.Services.Department.Update(ctx, outsider, dept.ID, service.DepartmentRequest{Name: strPtr("Weld")})
	assert.True(t, service.IsKind(err, service.KindForbidden))

	testutil.SeedRouting(t, env.DB, "P-1", dept.ID)
	err = env.Services.Department.Delete(ctx, admin, dept.ID)
	assert.True(t, service.IsKind(err, service.KindConflict))

	spare, err := env.Services.Department.Create(ctx, admin, service.DepartmentRequest{Name: strPtr("Spare")})
	require.NoError(t, err)
	require.NoError(t, env.Services.Department.Delete(ctx, admin, spare.ID))

	list, err := env.Services.Department.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Welding", list[0].Name)

	list, err = env.Services.Department.List(ctx, testutil.MemberPrincipal("u-none"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPauseReasonCreate(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	admin := testutil.AdminPrincipal("u-admin")

	reason, err := env.Services.PauseReason.Create(ctx, admin, service.CreatePauseReasonRequest{Code: "brk", Name: "Break"})
	require.NoError(t, err)
	assert.Equal(t, "BRK", reason.Code)

	_, err = env.Services.PauseReason.Create(ctx, admin, service.CreatePauseReasonRequest{Code: "BRK", Name: "Again"})
	assert.True(t, service.IsKind(err, service.KindConflict))

	list, err := env.Services.PauseReason.List(ctx, admin, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
