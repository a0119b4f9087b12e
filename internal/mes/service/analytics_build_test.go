package service

import (
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/kpi"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBottleneckSeverity(t *testing.T) {
	assert.Equal(t, SeverityHigh, BottleneckSeverity(12))
	assert.Equal(t, SeverityMedium, BottleneckSeverity(7))
	assert.Equal(t, SeverityLow, BottleneckSeverity(3))
	assert.Equal(t, SeverityMedium, BottleneckSeverity(10))
	assert.Equal(t, SeverityLow, BottleneckSeverity(5))
}

func TestBuildDepartmentWIPRanksBottlenecks(t *testing.T) {
	rows := []repository.DepartmentStatusCount{
		{DepartmentID: "d-asm", DepartmentName: "Assembly", Status: entity.WOOStatusInProgress, Count: 4},
		{DepartmentID: "d-asm", DepartmentName: "Assembly", Status: entity.WOOStatusReady, Count: 3},
		{DepartmentID: "d-cut", DepartmentName: "Cutting", Status: entity.WOOStatusPending, Count: 12},
		{DepartmentID: "d-qc", DepartmentName: "QC", Status: entity.WOOStatusPaused, Count: 3},
	}

	depts, bottlenecks := buildDepartmentWIP(rows)
	require.Len(t, depts, 3)
	assert.Equal(t, "Assembly", depts[0].DepartmentName)
	assert.Equal(t, int64(7), depts[0].Total)
	assert.Equal(t, int64(4), depts[0].ByStatus[entity.WOOStatusInProgress])
	assert.Equal(t, int64(0), depts[0].ByStatus[entity.WOOStatusPaused])

	require.Len(t, bottlenecks, 3)
	assert.Equal(t, "Cutting", bottlenecks[0].DepartmentName)
	assert.Equal(t, SeverityHigh, bottlenecks[0].Severity)
	assert.Equal(t, "Assembly", bottlenecks[1].DepartmentName)
	assert.Equal(t, SeverityMedium, bottlenecks[1].Severity)
	assert.Equal(t, "QC", bottlenecks[2].DepartmentName)
	assert.Equal(t, SeverityLow, bottlenecks[2].Severity)
}

func TestBuildOperationBottlenecksTieBreak(t *testing.T) {
	out := buildOperationBottlenecks([]repository.OperationCount{
		{OperationName: "Weld", DepartmentName: "B", Count: 2},
		{OperationName: "Drill", DepartmentName: "A", Count: 2},
		{OperationName: "Paint", DepartmentName: "C", Count: 6},
	})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"Paint", "Drill", "Weld"}, []string{out[0].OperationName, out[1].OperationName, out[2].OperationName})
}

func TestBuildPerformanceEmptyKeepsTrendLength(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	perf := buildPerformance(nil, 7, 168, now)

	assert.Equal(t, 7, perf.Days)
	assert.Equal(t, 0, perf.SampleSize)
	for _, m := range []MetricBreakdown{perf.CycleTime, perf.Efficiency, perf.Throughput, perf.Quality} {
		assert.Len(t, m.Trend, 7)
		assert.NotNil(t, m.ByDepartment)
		assert.Equal(t, 0.0, m.Overall)
	}
	assert.Equal(t, "2026-03-10", perf.CycleTime.Trend[6].Date)
}

func TestBuildPerformance(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	at := func(d time.Duration) *time.Time { v := now.Add(d); return &v }

	samples := []kpi.Operation{
		{
			ID: "a", DepartmentID: "d1", DepartmentName: "Assembly", Status: entity.WOOStatusCompleted,
			StandardTime: 30, StartedAt: at(-2 * time.Hour), EndedAt: at(-2*time.Hour + 45*time.Minute),
			Pauses:            []kpi.Interval{{Start: now.Add(-2*time.Hour + 10*time.Minute), End: at(-2*time.Hour + 20*time.Minute)}},
			QuantityToProduce: 10, QuantityCompleted: 8,
		},
		{
			ID: "b", DepartmentID: "d1", DepartmentName: "Assembly", Status: entity.WOOStatusCompleted,
			StandardTime: 60, StartedAt: at(-time.Hour), EndedAt: at(-time.Hour + 10*time.Minute),
			QuantityToProduce: 10, QuantityCompleted: 10,
		},
		{
			ID: "old", DepartmentID: "d1", DepartmentName: "Assembly", Status: entity.WOOStatusCompleted,
			StandardTime: 30, StartedAt: at(-30 * 24 * time.Hour), EndedAt: at(-30*24*time.Hour + 30*time.Minute),
			QuantityToProduce: 10, QuantityCompleted: 10,
		},
	}

	perf := buildPerformance(samples, 7, 168, now)
	assert.Equal(t, 2, perf.SampleSize)
	// (35 + 10) / 2
	assert.Equal(t, 22.5, perf.CycleTime.Overall)
	// 30/35 = 85.71%, 60/10 capped at 200%
	assert.InDelta(t, (30.0/35.0*100+200)/2, perf.Efficiency.Overall, 0.01)
	assert.Equal(t, 50.0, perf.Quality.Overall)
	require.Len(t, perf.CycleTime.ByDepartment, 1)
	assert.Equal(t, 2, perf.CycleTime.ByDepartment[0].Count)

	last := perf.Throughput.Trend[len(perf.Throughput.Trend)-1]
	assert.Equal(t, 2, last.Count)
	assert.Equal(t, kpi.Round2(2.0/24), last.Value)
}
