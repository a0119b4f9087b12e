package kpi

import (
	"math"
	"sort"
	"time"
)

// EfficiencyCap 效率上限（百分比）
const EfficiencyCap = 200.0

// Round2 保留两位小数，只在输出边界调用
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CycleTime 周期时间（分钟）= 有效工作时长
func CycleTime(op Operation, now time.Time) float64 {
	minutes, _ := ActiveElapsedMinutes(op, now)
	return minutes
}

// Efficiency standard/cycle as a percentage, capped at EfficiencyCap.
func Efficiency(standardTime, cycleTime float64) float64 {
	if cycleTime <= 0 {
		return 0
	}
	return math.Min(standardTime/cycleTime*100, EfficiencyCap)
}

// OperationEfficiency 单工序效率
func OperationEfficiency(op Operation, now time.Time) float64 {
	return Efficiency(op.StandardTime, CycleTime(op, now))
}

// AverageCycleTime 平均周期时间；未开工样本不计入，空集为 0
func AverageCycleTime(ops []Operation, now time.Time) float64 {
	var sum float64
	var n int
	for _, op := range ops {
		minutes, ok := ActiveElapsedMinutes(op, now)
		if !ok {
			continue
		}
		sum += minutes
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AverageEfficiency 平均效率；空集为 0
func AverageEfficiency(ops []Operation, now time.Time) float64 {
	var sum float64
	var n int
	for _, op := range ops {
		if op.StartedAt == nil {
			continue
		}
		sum += OperationEfficiency(op, now)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// CompletionRate 完成率 = 完成数量达标的工序占比
func CompletionRate(ops []Operation) float64 {
	if len(ops) == 0 {
		return 0
	}
	var done int
	for _, op := range ops {
		if op.QuantityCompleted >= op.QuantityToProduce {
			done++
		}
	}
	return float64(done) / float64(len(ops)) * 100
}

// Throughput 吞吐量（每小时工序数），只统计结束时间落在尾部窗口内的样本
func Throughput(ops []Operation, windowHours float64, now time.Time) float64 {
	if windowHours <= 0 {
		return 0
	}
	return float64(len(InWindow(ops, windowHours, now))) / windowHours
}

// InWindow 结束时间在 (now-window, now] 内的样本
func InWindow(ops []Operation, windowHours float64, now time.Time) []Operation {
	since := now.Add(-time.Duration(windowHours * float64(time.Hour)))
	var out []Operation
	for _, op := range ops {
		if op.EndedAt == nil {
			continue
		}
		if op.EndedAt.After(since) && !op.EndedAt.After(now) {
			out = append(out, op)
		}
	}
	return out
}

// OrderSample 订单交付样本
type OrderSample struct {
	Status           string
	ScheduledEndDate *time.Time
	ActualEndDate    *time.Time
}

// OnTimeDeliveryRate counts completed orders that finished on or before their
// scheduled end. Orders without a scheduled end are left out of the denominator.
func OnTimeDeliveryRate(orders []OrderSample, completedStatus string) float64 {
	var total, onTime int
	for _, o := range orders {
		if o.Status != completedStatus || o.ScheduledEndDate == nil {
			continue
		}
		total++
		if o.ActualEndDate != nil && !o.ActualEndDate.After(*o.ScheduledEndDate) {
			onTime++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(onTime) / float64(total) * 100
}

// OperatorUtilization distinct operators currently working (activeStatus) over
// distinct operators seen in the sample.
func OperatorUtilization(ops []Operation, activeStatus string) float64 {
	all := make(map[string]struct{})
	active := make(map[string]struct{})
	for _, op := range ops {
		if op.OperatorID == "" {
			continue
		}
		all[op.OperatorID] = struct{}{}
		if op.Status == activeStatus {
			active[op.OperatorID] = struct{}{}
		}
	}
	if len(all) == 0 {
		return 0
	}
	return float64(len(active)) / float64(len(all)) * 100
}

// DepartmentGroup 按部门分组的样本
type DepartmentGroup struct {
	DepartmentID   string
	DepartmentName string
	Operations     []Operation
}

// GroupByDepartment 按部门分组，按部门名称排序
func GroupByDepartment(ops []Operation) []DepartmentGroup {
	index := make(map[string]int)
	var groups []DepartmentGroup
	for _, op := range ops {
		i, ok := index[op.DepartmentID]
		if !ok {
			i = len(groups)
			index[op.DepartmentID] = i
			groups = append(groups, DepartmentGroup{
				DepartmentID:   op.DepartmentID,
				DepartmentName: op.DepartmentName,
			})
		}
		groups[i].Operations = append(groups[i].Operations, op)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].DepartmentName == groups[b].DepartmentName {
			return groups[a].DepartmentID < groups[b].DepartmentID
		}
		return groups[a].DepartmentName < groups[b].DepartmentName
	})
	return groups
}
