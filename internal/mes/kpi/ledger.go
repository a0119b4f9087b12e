// Package kpi holds the pure time accounting and aggregate calculations behind
// the MES dashboards. Nothing in here touches the database; callers load rows
// and map them to Operation / OrderSample values first.
package kpi

import "time"

// Interval 暂停区间，End 为空表示仍在暂停
type Interval struct {
	Start time.Time
	End   *time.Time
}

// Operation 一个工序执行实例的计算样本
type Operation struct {
	ID                string
	DepartmentID      string
	DepartmentName    string
	OperationName     string
	OperatorID        string
	Status            string
	StandardTime      float64 // 分钟
	StartedAt         *time.Time
	EndedAt           *time.Time
	Pauses            []Interval
	QuantityToProduce int
	QuantityCompleted int
}

// ActiveElapsed returns the worked duration between start and end (now when
// end is nil) minus every pause interval. Open pauses run until now. Pauses are
// clipped to the operation window and the result never goes below zero.
func ActiveElapsed(start time.Time, end *time.Time, pauses []Interval, now time.Time) time.Duration {
	windowEnd := now
	if end != nil {
		windowEnd = *end
	}
	total := windowEnd.Sub(start)
	if total <= 0 {
		return 0
	}

	var paused time.Duration
	for _, p := range pauses {
		pStart := p.Start
		pEnd := now
		if p.End != nil {
			pEnd = *p.End
		}
		if pStart.Before(start) {
			pStart = start
		}
		if pEnd.After(windowEnd) {
			pEnd = windowEnd
		}
		if d := pEnd.Sub(pStart); d > 0 {
			paused += d
		}
	}

	active := total - paused
	if active < 0 {
		return 0
	}
	return active
}

// ActiveElapsedMinutes 工序有效工作分钟数；未开工返回 (0, false)
func ActiveElapsedMinutes(op Operation, now time.Time) (float64, bool) {
	if op.StartedAt == nil {
		return 0, false
	}
	return ActiveElapsed(*op.StartedAt, op.EndedAt, op.Pauses, now).Minutes(), true
}

// PausedDuration 暂停总时长（开放区间算到 now）
func PausedDuration(pauses []Interval, now time.Time) time.Duration {
	var total time.Duration
	for _, p := range pauses {
		end := now
		if p.End != nil {
			end = *p.End
		}
		if d := end.Sub(p.Start); d > 0 {
			total += d
		}
	}
	return total
}
