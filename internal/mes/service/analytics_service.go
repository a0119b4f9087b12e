package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/cache"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/kpi"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 瓶颈等级阈值（在制工序数）
const (
	BottleneckHighThreshold   = 10
	BottleneckMediumThreshold = 5

	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"

	cycleTimeWindowDays = 30
	maxTrendDays        = 365
)

// AnalyticsOptions 统计窗口参数
type AnalyticsOptions struct {
	TrendDays              int
	ThroughputWindowHours  float64
	UtilizationWindowHours float64
	RecentActivityLimit    int
	BoardLimit             int
}

// AnalyticsService 看板、在制品、绩效统计
type AnalyticsService struct {
	repos   *repository.Repositories
	cache   *cache.Cache
	metrics *Metrics
	opts    AnalyticsOptions
	logger  *zap.Logger
	now     func() time.Time
}

func NewAnalyticsService(repos *repository.Repositories, c *cache.Cache, metrics *Metrics, opts AnalyticsOptions, logger *zap.Logger) *AnalyticsService {
	if opts.TrendDays <= 0 {
		opts.TrendDays = 30
	}
	if opts.ThroughputWindowHours <= 0 {
		opts.ThroughputWindowHours = 168
	}
	if opts.UtilizationWindowHours <= 0 {
		opts.UtilizationWindowHours = 24
	}
	if opts.RecentActivityLimit <= 0 {
		opts.RecentActivityLimit = 20
	}
	if opts.BoardLimit <= 0 {
		opts.BoardLimit = 200
	}
	return &AnalyticsService{repos: repos, cache: c, metrics: metrics, opts: opts, logger: logger, now: time.Now}
}

// ==================== Dashboard ====================

// DashboardMetrics 首页看板
type DashboardMetrics struct {
	OrdersByStatus      map[string]int64 `json:"orders_by_status"`
	OperationsByStatus  map[string]int64 `json:"operations_by_status"`
	TotalOrders         int64            `json:"total_orders"`
	ActiveOrders        int64            `json:"active_orders"`
	LiveOperations      int64            `json:"live_operations"`
	CompletedToday      int64            `json:"completed_today"`
	AverageCycleTime    float64          `json:"average_cycle_time"`
	OnTimeDeliveryRate  float64          `json:"on_time_delivery_rate"`
	OperatorUtilization float64          `json:"operator_utilization"`
	GeneratedAt         time.Time        `json:"generated_at"`
	Degraded            bool             `json:"degraded,omitempty"`
}

func zeroDashboard(now time.Time) *DashboardMetrics {
	return &DashboardMetrics{
		OrdersByStatus:     zeroCounts(entity.OrderStatuses),
		OperationsByStatus: zeroCounts(entity.WOOStatuses),
		GeneratedAt:        now,
	}
}

// Dashboard composes the headline counters. The sub-queries run concurrently.
func (s *AnalyticsService) Dashboard(ctx context.Context, p *Principal) *DashboardMetrics {
	now := s.now()
	if p.Scope.IsEmpty() {
		return zeroDashboard(now)
	}
	key := s.key(ctx, p, "dashboard")
	var cached DashboardMetrics
	if s.getCached(ctx, key, &cached) {
		return &cached
	}

	var (
		orderCounts map[string]int64
		wooCounts   map[string]int64
		today       int64
		completed   []entity.WorkOrderOperation
		orders      []entity.Order
		started     []entity.WorkOrderOperation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orderCounts, err = s.repos.Order.CountByStatus(gctx, p.TeamID, p.Scope)
		return err
	})
	g.Go(func() (err error) {
		wooCounts, err = s.repos.WOO.CountByStatus(gctx, p.TeamID, p.Scope)
		return err
	})
	g.Go(func() (err error) {
		today, err = s.repos.WOO.CountCompletedSince(gctx, p.TeamID, p.Scope, kpi.DayStart(now))
		return err
	})
	g.Go(func() (err error) {
		completed, err = s.repos.WOO.ListCompletedSince(gctx, p.TeamID, p.Scope, now.AddDate(0, 0, -cycleTimeWindowDays))
		return err
	})
	g.Go(func() (err error) {
		orders, err = s.repos.Order.ListCompletedSince(gctx, p.TeamID, p.Scope, now.AddDate(0, 0, -cycleTimeWindowDays))
		return err
	})
	g.Go(func() (err error) {
		since := now.Add(-time.Duration(s.opts.UtilizationWindowHours * float64(time.Hour)))
		started, err = s.repos.WOO.ListStartedSince(gctx, p.TeamID, p.Scope, since)
		return err
	})
	if err := g.Wait(); err != nil {
		s.degraded(p, "dashboard", err)
		out := zeroDashboard(now)
		out.Degraded = true
		return out
	}

	out := zeroDashboard(now)
	for status, n := range orderCounts {
		out.OrdersByStatus[status] = n
		out.TotalOrders += n
		if status == entity.OrderStatusInProgress || status == entity.OrderStatusPaused || status == entity.OrderStatusWaiting {
			out.ActiveOrders += n
		}
	}
	for status, n := range wooCounts {
		out.OperationsByStatus[status] = n
		if status != entity.WOOStatusCompleted {
			out.LiveOperations += n
		}
	}
	out.CompletedToday = today
	out.AverageCycleTime = kpi.Round2(kpi.AverageCycleTime(toSamples(completed), now))
	out.OnTimeDeliveryRate = kpi.Round2(kpi.OnTimeDeliveryRate(toOrderSamples(orders), entity.OrderStatusCompleted))
	out.OperatorUtilization = kpi.Round2(kpi.OperatorUtilization(toSamples(started), entity.WOOStatusInProgress))

	s.setCached(ctx, key, out)
	return out
}

// ==================== WIP ====================

// DepartmentWIP 部门在制品
type DepartmentWIP struct {
	DepartmentID   string           `json:"department_id"`
	DepartmentName string           `json:"department_name"`
	Total          int64            `json:"total"`
	ByStatus       map[string]int64 `json:"by_status"`
}

// Bottleneck 瓶颈排名项
type Bottleneck struct {
	DepartmentID   string `json:"department_id"`
	DepartmentName string `json:"department_name"`
	OperationName  string `json:"operation_name,omitempty"`
	Count          int64  `json:"count"`
	Severity       string `json:"severity"`
}

// BoardItem 看板卡片
type BoardItem struct {
	OperationID       string     `json:"operation_id"`
	OrderID           string     `json:"order_id"`
	OrderNumber       string     `json:"order_number"`
	ProductID         string     `json:"product_id"`
	Priority          int        `json:"priority"`
	OperationNumber   int        `json:"operation_number"`
	OperationName     string     `json:"operation_name"`
	DepartmentID      string     `json:"department_id"`
	DepartmentName    string     `json:"department_name"`
	OperatorID        string     `json:"operator_id"`
	Status            string     `json:"status"`
	StartedAt         *time.Time `json:"started_at"`
	ActiveMinutes     float64    `json:"active_minutes"`
	StandardTime      float64    `json:"standard_time"`
	QuantityToProduce int        `json:"quantity_to_produce"`
	QuantityCompleted int        `json:"quantity_completed"`
}

// WIPAnalytics 在制品视图
type WIPAnalytics struct {
	TotalLive             int64            `json:"total_live"`
	ByStatus              map[string]int64 `json:"by_status"`
	ByDepartment          []DepartmentWIP  `json:"by_department"`
	DepartmentBottlenecks []Bottleneck     `json:"department_bottlenecks"`
	OperationBottlenecks  []Bottleneck     `json:"operation_bottlenecks"`
	Board                 []BoardItem      `json:"board"`
	GeneratedAt           time.Time        `json:"generated_at"`
	Degraded              bool             `json:"degraded,omitempty"`
}

func zeroWIP(now time.Time) *WIPAnalytics {
	return &WIPAnalytics{
		ByStatus:              zeroCounts(entity.LiveWOOStatuses),
		ByDepartment:          []DepartmentWIP{},
		DepartmentBottlenecks: []Bottleneck{},
		OperationBottlenecks:  []Bottleneck{},
		Board:                 []BoardItem{},
		GeneratedAt:           now,
	}
}

// BottleneckSeverity 瓶颈等级：>10 high，>5 medium，其余 low
func BottleneckSeverity(count int64) string {
	switch {
	case count > BottleneckHighThreshold:
		return SeverityHigh
	case count > BottleneckMediumThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// WIP groups live operations by department and status and ranks bottlenecks.
func (s *AnalyticsService) WIP(ctx context.Context, p *Principal) *WIPAnalytics {
	now := s.now()
	if p.Scope.IsEmpty() {
		return zeroWIP(now)
	}
	key := s.key(ctx, p, "wip")
	var cached WIPAnalytics
	if s.getCached(ctx, key, &cached) {
		return &cached
	}

	var (
		deptRows []repository.DepartmentStatusCount
		opRows   []repository.OperationCount
		live     []entity.WorkOrderOperation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		deptRows, err = s.repos.WOO.CountLiveByDepartment(gctx, p.TeamID, p.Scope)
		return err
	})
	g.Go(func() (err error) {
		opRows, err = s.repos.WOO.CountLiveByOperation(gctx, p.TeamID, p.Scope)
		return err
	})
	g.Go(func() (err error) {
		live, err = s.repos.WOO.ListLive(gctx, p.TeamID, p.Scope, s.opts.BoardLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.degraded(p, "wip", err)
		out := zeroWIP(now)
		out.Degraded = true
		return out
	}

	out := zeroWIP(now)
	out.ByDepartment, out.DepartmentBottlenecks = buildDepartmentWIP(deptRows)
	for _, row := range deptRows {
		out.ByStatus[row.Status] += row.Count
		out.TotalLive += row.Count
	}
	out.OperationBottlenecks = buildOperationBottlenecks(opRows)
	for _, w := range live {
		out.Board = append(out.Board, boardItem(w, now))
	}

	s.setCached(ctx, key, out)
	return out
}

// buildDepartmentWIP folds (department, status) rows into per-department totals
// and the department bottleneck ranking.
func buildDepartmentWIP(rows []repository.DepartmentStatusCount) ([]DepartmentWIP, []Bottleneck) {
	index := make(map[string]int)
	depts := []DepartmentWIP{}
	for _, row := range rows {
		i, ok := index[row.DepartmentID]
		if !ok {
			i = len(depts)
			index[row.DepartmentID] = i
			depts = append(depts, DepartmentWIP{
				DepartmentID:   row.DepartmentID,
				DepartmentName: row.DepartmentName,
				ByStatus:       zeroCounts(entity.LiveWOOStatuses),
			})
		}
		depts[i].ByStatus[row.Status] += row.Count
		depts[i].Total += row.Count
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i].DepartmentName < depts[j].DepartmentName })

	bottlenecks := make([]Bottleneck, 0, len(depts))
	for _, d := range depts {
		bottlenecks = append(bottlenecks, Bottleneck{
			DepartmentID:   d.DepartmentID,
			DepartmentName: d.DepartmentName,
			Count:          d.Total,
			Severity:       BottleneckSeverity(d.Total),
		})
	}
	sortBottlenecks(bottlenecks)
	return depts, bottlenecks
}

func buildOperationBottlenecks(rows []repository.OperationCount) []Bottleneck {
	out := make([]Bottleneck, 0, len(rows))
	for _, row := range rows {
		out = append(out, Bottleneck{
			DepartmentID:   row.DepartmentID,
			DepartmentName: row.DepartmentName,
			OperationName:  row.OperationName,
			Count:          row.Count,
			Severity:       BottleneckSeverity(row.Count),
		})
	}
	sortBottlenecks(out)
	return out
}

// sortBottlenecks 按数量降序，同数量按名称
func sortBottlenecks(items []Bottleneck) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		if items[i].DepartmentName != items[j].DepartmentName {
			return items[i].DepartmentName < items[j].DepartmentName
		}
		return items[i].OperationName < items[j].OperationName
	})
}

func boardItem(w entity.WorkOrderOperation, now time.Time) BoardItem {
	item := BoardItem{
		OperationID:       w.ID,
		OrderID:           w.OrderID,
		OperationNumber:   w.OperationNumber,
		OperationName:     w.Name,
		DepartmentID:      w.DepartmentID,
		DepartmentName:    w.DepartmentName(),
		Status:            w.Status,
		StartedAt:         w.ActualStartTime,
		StandardTime:      w.StandardTime,
		QuantityToProduce: w.QuantityToProduce,
		QuantityCompleted: w.QuantityCompleted,
	}
	if w.Order != nil {
		item.OrderNumber = w.Order.OrderNumber
		item.ProductID = w.Order.ProductID
		item.Priority = w.Order.Priority
	}
	if w.OperatorID != nil {
		item.OperatorID = *w.OperatorID
	}
	if active, ok := kpi.ActiveElapsedMinutes(ToSample(w), now); ok {
		item.ActiveMinutes = kpi.Round2(active)
	}
	return item
}

// ==================== Recent activity ====================

// ActivityItem 最近动态
type ActivityItem struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	OperationID   string    `json:"operation_id"`
	OperationName string    `json:"operation_name"`
	DepartmentID  string    `json:"department_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	OperatorID    string    `json:"operator_id"`
	Note          string    `json:"note,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	RelativeTime  string    `json:"relative_time"`
}

// RecentActivity 最近的工序状态变更，新的在前
func (s *AnalyticsService) RecentActivity(ctx context.Context, p *Principal, limit int) []ActivityItem {
	items := []ActivityItem{}
	if p.Scope.IsEmpty() {
		return items
	}
	if limit <= 0 || limit > 100 {
		limit = s.opts.RecentActivityLimit
	}
	events, err := s.repos.OperationEvent.Recent(ctx, p.TeamID, p.Scope, limit)
	if err != nil {
		s.degraded(p, "recent_activity", err)
		return items
	}
	now := s.now()
	for _, e := range events {
		items = append(items, ActivityItem{
			ID:            e.ID,
			Action:        e.Action,
			OrderID:       e.OrderID,
			OrderNumber:   e.OrderNumber,
			OperationID:   e.WorkOrderOperationID,
			OperationName: e.OperationName,
			DepartmentID:  e.DepartmentID,
			FromStatus:    e.FromStatus,
			ToStatus:      e.ToStatus,
			OperatorID:    e.OperatorID,
			Note:          e.Note,
			OccurredAt:    e.OccurredAt,
			RelativeTime:  kpi.RelativeTime(e.OccurredAt, now),
		})
	}
	return items
}

// ==================== Performance ====================

// DepartmentValue 部门维度数值
type DepartmentValue struct {
	DepartmentID   string  `json:"department_id"`
	DepartmentName string  `json:"department_name"`
	Value          float64 `json:"value"`
	Count          int     `json:"count"`
}

// TrendValue 日趋势数值
type TrendValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// MetricBreakdown 单项指标：总体、部门、日趋势
type MetricBreakdown struct {
	Overall      float64           `json:"overall"`
	ByDepartment []DepartmentValue `json:"by_department"`
	Trend        []TrendValue      `json:"trend"`
}

// PerformanceMetrics 绩效视图
type PerformanceMetrics struct {
	Days                  int             `json:"days"`
	ThroughputWindowHours float64         `json:"throughput_window_hours"`
	SampleSize            int             `json:"sample_size"`
	CycleTime             MetricBreakdown `json:"cycle_time"`
	Efficiency            MetricBreakdown `json:"efficiency"`
	Throughput            MetricBreakdown `json:"throughput"`
	Quality               MetricBreakdown `json:"quality"`
	GeneratedAt           time.Time       `json:"generated_at"`
	Degraded              bool            `json:"degraded,omitempty"`
}

func (s *AnalyticsService) normalizeDays(days int) int {
	if days <= 0 {
		return s.opts.TrendDays
	}
	if days > maxTrendDays {
		return maxTrendDays
	}
	return days
}

// zeroPerformance keeps the trend arrays at exactly days entries.
func (s *AnalyticsService) zeroPerformance(days int, now time.Time) *PerformanceMetrics {
	return buildPerformance(nil, days, s.opts.ThroughputWindowHours, now)
}

// Performance composes cycle time, efficiency, throughput and quality over the
// last days calendar days.
func (s *AnalyticsService) Performance(ctx context.Context, p *Principal, days int) *PerformanceMetrics {
	days = s.normalizeDays(days)
	now := s.now()
	if p.Scope.IsEmpty() {
		return s.zeroPerformance(days, now)
	}
	key := s.key(ctx, p, "performance", days)
	var cached PerformanceMetrics
	if s.getCached(ctx, key, &cached) {
		return &cached
	}

	since := kpi.DayStart(now).AddDate(0, 0, -(days - 1))
	windowStart := now.Add(-time.Duration(s.opts.ThroughputWindowHours * float64(time.Hour)))
	if windowStart.Before(since) {
		since = windowStart
	}
	completed, err := s.repos.WOO.ListCompletedSince(ctx, p.TeamID, p.Scope, since)
	if err != nil {
		s.degraded(p, "performance", err)
		out := s.zeroPerformance(days, now)
		out.Degraded = true
		return out
	}

	out := buildPerformance(toSamples(completed), days, s.opts.ThroughputWindowHours, now)
	s.setCached(ctx, key, out)
	return out
}

// buildPerformance 纯计算部分
func buildPerformance(samples []kpi.Operation, days int, windowHours float64, now time.Time) *PerformanceMetrics {
	trendStart := kpi.DayStart(now).AddDate(0, 0, -(days - 1))
	var inTrend []kpi.Operation
	for _, op := range samples {
		if op.EndedAt != nil && !op.EndedAt.Before(trendStart) {
			inTrend = append(inTrend, op)
		}
	}
	throughputSet := kpi.InWindow(samples, windowHours, now)

	out := &PerformanceMetrics{
		Days:                  days,
		ThroughputWindowHours: windowHours,
		SampleSize:            len(inTrend),
		GeneratedAt:           now,
		CycleTime: MetricBreakdown{
			Overall:      kpi.Round2(kpi.AverageCycleTime(inTrend, now)),
			ByDepartment: []DepartmentValue{},
		},
		Efficiency: MetricBreakdown{
			Overall:      kpi.Round2(kpi.AverageEfficiency(inTrend, now)),
			ByDepartment: []DepartmentValue{},
		},
		Throughput: MetricBreakdown{
			Overall:      kpi.Round2(kpi.Throughput(throughputSet, windowHours, now)),
			ByDepartment: []DepartmentValue{},
		},
		Quality: MetricBreakdown{
			Overall:      kpi.Round2(kpi.CompletionRate(inTrend)),
			ByDepartment: []DepartmentValue{},
		},
	}

	for _, g := range kpi.GroupByDepartment(inTrend) {
		base := DepartmentValue{DepartmentID: g.DepartmentID, DepartmentName: g.DepartmentName, Count: len(g.Operations)}
		ct, eff, q := base, base, base
		ct.Value = kpi.Round2(kpi.AverageCycleTime(g.Operations, now))
		eff.Value = kpi.Round2(kpi.AverageEfficiency(g.Operations, now))
		q.Value = kpi.Round2(kpi.CompletionRate(g.Operations))
		out.CycleTime.ByDepartment = append(out.CycleTime.ByDepartment, ct)
		out.Efficiency.ByDepartment = append(out.Efficiency.ByDepartment, eff)
		out.Quality.ByDepartment = append(out.Quality.ByDepartment, q)
	}
	for _, g := range kpi.GroupByDepartment(throughputSet) {
		out.Throughput.ByDepartment = append(out.Throughput.ByDepartment, DepartmentValue{
			DepartmentID:   g.DepartmentID,
			DepartmentName: g.DepartmentName,
			Count:          len(g.Operations),
			Value:          kpi.Round2(kpi.Throughput(g.Operations, windowHours, now)),
		})
	}

	trend := kpi.DailyTrend(inTrend, days, now)
	out.CycleTime.Trend = make([]TrendValue, len(trend))
	out.Efficiency.Trend = make([]TrendValue, len(trend))
	out.Throughput.Trend = make([]TrendValue, len(trend))
	out.Quality.Trend = make([]TrendValue, len(trend))
	for i, pt := range trend {
		out.CycleTime.Trend[i] = TrendValue{Date: pt.Date, Count: pt.Count, Value: pt.AverageCycleTime}
		out.Efficiency.Trend[i] = TrendValue{Date: pt.Date, Count: pt.Count, Value: pt.AverageEfficiency}
		out.Throughput.Trend[i] = TrendValue{Date: pt.Date, Count: pt.Count, Value: kpi.Round2(float64(pt.Count) / 24)}
		out.Quality.Trend[i] = TrendValue{Date: pt.Date, Count: pt.Count, Value: pt.CompletionRate}
	}
	return out
}

// ==================== Export ====================

// ExportPerformance 绩效导出为xlsx
func (s *AnalyticsService) ExportPerformance(ctx context.Context, p *Principal, days int) (*excelize.File, string, error) {
	perf := s.Performance(ctx, p, days)
	f := newWorkbook("Summary")

	summary := [][]interface{}{
		{"cycle_time_minutes", perf.CycleTime.Overall},
		{"efficiency_percent", perf.Efficiency.Overall},
		{"throughput_per_hour", perf.Throughput.Overall},
		{"quality_percent", perf.Quality.Overall},
		{"sample_size", perf.SampleSize},
		{"days", perf.Days},
	}
	if err := writeSheet(f, "Summary", []string{"metric", "value"}, summary); err != nil {
		f.Close()
		return nil, "", err
	}

	var byDept [][]interface{}
	for i, d := range perf.CycleTime.ByDepartment {
		row := []interface{}{d.DepartmentName, d.Count, d.Value}
		row = append(row, perf.Efficiency.ByDepartment[i].Value, perf.Quality.ByDepartment[i].Value)
		byDept = append(byDept, row)
	}
	if err := writeSheet(f, "Departments",
		[]string{"department", "completed", "avg_cycle_time", "avg_efficiency", "completion_rate"}, byDept); err != nil {
		f.Close()
		return nil, "", err
	}

	var trend [][]interface{}
	for i, pt := range perf.CycleTime.Trend {
		trend = append(trend, []interface{}{
			pt.Date, pt.Count, pt.Value,
			perf.Efficiency.Trend[i].Value,
			perf.Throughput.Trend[i].Value,
			perf.Quality.Trend[i].Value,
		})
	}
	if err := writeSheet(f, "Daily",
		[]string{"date", "completed", "avg_cycle_time", "avg_efficiency", "throughput_per_hour", "completion_rate"}, trend); err != nil {
		f.Close()
		return nil, "", err
	}

	filename := fmt.Sprintf("performance_%s_%dd.xlsx", s.now().Format("20060102"), perf.Days)
	return f, filename, nil
}

// ExportWIP 在制品导出为xlsx
func (s *AnalyticsService) ExportWIP(ctx context.Context, p *Principal) (*excelize.File, string, error) {
	wip := s.WIP(ctx, p)
	f := newWorkbook("Board")

	var board [][]interface{}
	for _, b := range wip.Board {
		started := ""
		if b.StartedAt != nil {
			started = b.StartedAt.Format(time.RFC3339)
		}
		board = append(board, []interface{}{
			b.OrderNumber, b.Priority, b.OperationNumber, b.OperationName, b.DepartmentName,
			b.OperatorID, b.Status, started, b.ActiveMinutes, b.StandardTime,
			b.QuantityCompleted, b.QuantityToProduce,
		})
	}
	if err := writeSheet(f, "Board", []string{
		"order_number", "priority", "operation_number", "operation", "department",
		"operator", "status", "started_at", "active_minutes", "standard_time",
		"qty_completed", "qty_to_produce",
	}, board); err != nil {
		f.Close()
		return nil, "", err
	}

	var bottlenecks [][]interface{}
	for _, b := range wip.DepartmentBottlenecks {
		bottlenecks = append(bottlenecks, []interface{}{"department", b.DepartmentName, "", b.Count, b.Severity})
	}
	for _, b := range wip.OperationBottlenecks {
		bottlenecks = append(bottlenecks, []interface{}{"operation", b.DepartmentName, b.OperationName, b.Count, b.Severity})
	}
	if err := writeSheet(f, "Bottlenecks", []string{"level", "department", "operation", "live", "severity"}, bottlenecks); err != nil {
		f.Close()
		return nil, "", err
	}

	return f, fmt.Sprintf("wip_%s.xlsx", s.now().Format("20060102_1504")), nil
}

// ==================== helpers ====================

func (s *AnalyticsService) key(ctx context.Context, p *Principal, view string, params ...interface{}) string {
	if s.cache == nil {
		return ""
	}
	params = append(params, p.Scope.All, p.Scope.IDs)
	return s.cache.Key(ctx, p.TeamID, view, params...)
}

func (s *AnalyticsService) getCached(ctx context.Context, key string, dst interface{}) bool {
	return s.cache != nil && key != "" && s.cache.GetJSON(ctx, key, dst)
}

func (s *AnalyticsService) setCached(ctx context.Context, key string, v interface{}) {
	if s.cache != nil && key != "" {
		s.cache.SetJSON(ctx, key, v)
	}
}

func (s *AnalyticsService) degraded(p *Principal, view string, err error) {
	s.logger.Error("analytics degraded to zeroed result",
		zap.String("view", view),
		zap.String("team_id", p.TeamID),
		zap.Error(err))
	if s.metrics != nil {
		s.metrics.AnalyticsDegraded.WithLabelValues(view).Inc()
	}
}

func zeroCounts(statuses []string) map[string]int64 {
	m := make(map[string]int64, len(statuses))
	for _, st := range statuses {
		m[st] = 0
	}
	return m
}

func toSamples(woos []entity.WorkOrderOperation) []kpi.Operation {
	out := make([]kpi.Operation, 0, len(woos))
	for _, w := range woos {
		out = append(out, ToSample(w))
	}
	return out
}

func toOrderSamples(orders []entity.Order) []kpi.OrderSample {
	out := make([]kpi.OrderSample, 0, len(orders))
	for _, o := range orders {
		out = append(out, kpi.OrderSample{
			Status:           o.Status,
			ScheduledEndDate: o.ScheduledEndDate,
			ActualEndDate:    o.ActualEndDate,
		})
	}
	return out
}
