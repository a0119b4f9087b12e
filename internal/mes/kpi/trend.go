package kpi

import (
	"time"

	"github.com/dustin/go-humanize"
)

// TrendPoint 日趋势点
type TrendPoint struct {
	Date              string  `json:"date"`
	Count             int     `json:"count"`
	AverageCycleTime  float64 `json:"average_cycle_time"`
	AverageEfficiency float64 `json:"average_efficiency"`
	CompletionRate    float64 `json:"completion_rate"`
}

// DayStart 本地零点
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DailyTrend buckets operations by the local day of EndedAt for the last `days`
// days ending today. The result always has exactly `days` points, oldest first,
// with zeroed points for idle days.
func DailyTrend(ops []Operation, days int, now time.Time) []TrendPoint {
	if days <= 0 {
		return []TrendPoint{}
	}
	today := DayStart(now)
	first := today.AddDate(0, 0, -(days - 1))

	buckets := make([][]Operation, days)
	for _, op := range ops {
		if op.EndedAt == nil {
			continue
		}
		end := op.EndedAt.In(now.Location())
		if end.Before(first) || !end.Before(today.AddDate(0, 0, 1)) {
			continue
		}
		for i := days - 1; i >= 0; i-- {
			if !end.Before(first.AddDate(0, 0, i)) {
				buckets[i] = append(buckets[i], op)
				break
			}
		}
	}

	points := make([]TrendPoint, days)
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i)
		set := buckets[i]
		points[i] = TrendPoint{
			Date:              day.Format("2006-01-02"),
			Count:             len(set),
			AverageCycleTime:  Round2(AverageCycleTime(set, now)),
			AverageEfficiency: Round2(AverageEfficiency(set, now)),
			CompletionRate:    Round2(CompletionRate(set)),
		}
	}
	return points
}

var relativeMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: time.Second},
	{D: time.Hour, Format: "%dm %s", DivBy: time.Minute},
	{D: 24 * time.Hour, Format: "%dh %s", DivBy: time.Hour},
	{D: 30 * 24 * time.Hour, Format: "%dd %s", DivBy: 24 * time.Hour},
	{D: 365 * 24 * time.Hour, Format: "%dmo %s", DivBy: 30 * 24 * time.Hour},
	{D: humanize.LongTime, Format: "%dy %s", DivBy: 365 * 24 * time.Hour},
}

// RelativeTime 相对时间，例如 "5m ago"
func RelativeTime(then, now time.Time) string {
	return humanize.CustomRelTime(then, now, "ago", "from now", relativeMagnitudes)
}
