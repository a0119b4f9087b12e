package service

import (
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
)

// DeriveOrderStatus rolls WOO statuses up into the order status. A cancelled
// order stays cancelled whatever its operations do.
func DeriveOrderStatus(current string, woos []entity.WorkOrderOperation) string {
	if current == entity.OrderStatusCancelled {
		return entity.OrderStatusCancelled
	}
	if len(woos) == 0 {
		return entity.OrderStatusPending
	}

	var completed, inProgress, paused int
	for _, w := range woos {
		switch w.Status {
		case entity.WOOStatusCompleted:
			completed++
		case entity.WOOStatusInProgress:
			inProgress++
		case entity.WOOStatusPaused:
			paused++
		}
	}

	switch {
	case completed == len(woos):
		return entity.OrderStatusCompleted
	case inProgress > 0:
		return entity.OrderStatusInProgress
	case paused > 0:
		return entity.OrderStatusPaused
	case completed > 0:
		return entity.OrderStatusWaiting
	default:
		return entity.OrderStatusPending
	}
}

// applyOrderRollup 更新订单状态及实际起止时间，返回是否有变化
func applyOrderRollup(order *entity.Order, woos []entity.WorkOrderOperation, now time.Time) bool {
	next := DeriveOrderStatus(order.Status, woos)
	changed := next != order.Status
	order.Status = next

	if next != entity.OrderStatusPending && next != entity.OrderStatusCancelled && order.ActualStartDate == nil {
		start := now
		for _, w := range woos {
			if w.ActualStartTime != nil && w.ActualStartTime.Before(start) {
				start = *w.ActualStartTime
			}
		}
		order.ActualStartDate = &start
		changed = true
	}
	if next == entity.OrderStatusCompleted && order.ActualEndDate == nil {
		end := now
		order.ActualEndDate = &end
		changed = true
	}
	return changed
}
