package service

import (
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		status string
		action string
		want   bool
	}{
		{entity.WOOStatusPending, entity.OperationActionStart, true},
		{entity.WOOStatusReady, entity.OperationActionStart, true},
		{entity.WOOStatusInProgress, entity.OperationActionStart, false},
		{entity.WOOStatusInProgress, entity.OperationActionPause, true},
		{entity.WOOStatusInProgress, entity.OperationActionComplete, true},
		{entity.WOOStatusPaused, entity.OperationActionResume, true},
		{entity.WOOStatusPaused, entity.OperationActionComplete, false},
		{entity.WOOStatusReady, entity.OperationActionPause, false},
		{entity.WOOStatusCompleted, entity.OperationActionStart, false},
		{entity.WOOStatusCompleted, entity.OperationActionResume, false},
	}
	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.action, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.status, tt.action))
		})
	}
}

func TestAllowedActions(t *testing.T) {
	assert.Equal(t, []string{"start"}, AllowedActions(entity.WOOStatusReady))
	assert.Equal(t, []string{"complete", "pause"}, AllowedActions(entity.WOOStatusInProgress))
	assert.Equal(t, []string{"resume"}, AllowedActions(entity.WOOStatusPaused))
	assert.Empty(t, AllowedActions(entity.WOOStatusCompleted))
}

func TestSourceAndTargetStatus(t *testing.T) {
	assert.ElementsMatch(t, []string{entity.WOOStatusPending, entity.WOOStatusReady}, SourceStatuses(entity.OperationActionStart))

	to, ok := TargetStatus(entity.OperationActionResume)
	assert.True(t, ok)
	assert.Equal(t, entity.WOOStatusInProgress, to)

	assert.False(t, IsKnownAction("cancel"))
}

func woos(statuses ...string) []entity.WorkOrderOperation {
	out := make([]entity.WorkOrderOperation, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, entity.WorkOrderOperation{Status: s})
	}
	return out
}

func TestDeriveOrderStatus(t *testing.T) {
	tests := []struct {
		name    string
		current string
		woos    []entity.WorkOrderOperation
		want    string
	}{
		{"no operations", entity.OrderStatusPending, nil, entity.OrderStatusPending},
		{"all completed", entity.OrderStatusInProgress, woos("completed", "completed"), entity.OrderStatusCompleted},
		{"any in progress", entity.OrderStatusPending, woos("completed", "in_progress", "paused"), entity.OrderStatusInProgress},
		{"paused only", entity.OrderStatusInProgress, woos("paused", "pending"), entity.OrderStatusPaused},
		{"waiting between operations", entity.OrderStatusInProgress, woos("completed", "ready"), entity.OrderStatusWaiting},
		{"nothing started", entity.OrderStatusPending, woos("ready", "pending"), entity.OrderStatusPending},
		{"cancelled sticks", entity.OrderStatusCancelled, woos("in_progress"), entity.OrderStatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveOrderStatus(tt.current, tt.woos))
		})
	}
}

func TestApplyOrderRollupSetsActualDates(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	started := now.Add(-2 * time.Hour)
	order := &entity.Order{Status: entity.OrderStatusPending}
	ops := []entity.WorkOrderOperation{
		{Status: entity.WOOStatusInProgress, ActualStartTime: &started},
		{Status: entity.WOOStatusPending},
	}

	assert.True(t, applyOrderRollup(order, ops, now))
	assert.Equal(t, entity.OrderStatusInProgress, order.Status)
	if assert.NotNil(t, order.ActualStartDate) {
		assert.True(t, order.ActualStartDate.Equal(started))
	}
	assert.Nil(t, order.ActualEndDate)

	ops[0].Status = entity.WOOStatusCompleted
	ops[1].Status = entity.WOOStatusCompleted
	assert.True(t, applyOrderRollup(order, ops, now))
	assert.Equal(t, entity.OrderStatusCompleted, order.Status)
	if assert.NotNil(t, order.ActualEndDate) {
		assert.True(t, order.ActualEndDate.Equal(now))
	}

	assert.False(t, applyOrderRollup(order, ops, now.Add(time.Hour)))
}
