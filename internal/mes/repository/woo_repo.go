package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// WOORepository 工单工序仓库
type WOORepository struct {
	db *gorm.DB
}

func NewWOORepository(db *gorm.DB) *WOORepository {
	return &WOORepository{db: db}
}

// WithTx 绑定事务
func (r *WOORepository) WithTx(tx *gorm.DB) *WOORepository {
	return &WOORepository{db: tx}
}

// BatchCreate 批量创建
func (r *WOORepository) BatchCreate(ctx context.Context, woos []entity.WorkOrderOperation) error {
	if len(woos) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Order", "Department", "RoutingOperation", "PauseEvents").Create(&woos).Error
}

// FindByID 查询工序执行实例（附带订单、部门、工序模板、暂停记录）
func (r *WOORepository) FindByID(ctx context.Context, teamID, id string) (*entity.WorkOrderOperation, error) {
	var woo entity.WorkOrderOperation
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Department").
		Preload("RoutingOperation").
		Preload("PauseEvents", func(db *gorm.DB) *gorm.DB {
			return db.Order("start_time ASC")
		}).
		Preload("PauseEvents.PauseReason").
		Where("id = ? AND team_id = ?", id, teamID).
		First(&woo).Error
	if err != nil {
		return nil, translate(err)
	}
	return &woo, nil
}

// WOOListParams 工序列表参数
type WOOListParams struct {
	OrderID      string
	Status       string
	DepartmentID string
	OperatorID   string
	From         *time.Time
	To           *time.Time
	Page
}

// List 按部门范围过滤的工序列表
func (r *WOORepository) List(ctx context.Context, teamID string, scope DepartmentScope, params WOOListParams) ([]entity.WorkOrderOperation, int64, error) {
	if scope.IsEmpty() {
		return []entity.WorkOrderOperation{}, 0, nil
	}
	query := r.db.WithContext(ctx).Model(&entity.WorkOrderOperation{}).Where("team_id = ?", teamID)
	query = scope.Apply(query, "department_id")
	if params.OrderID != "" {
		query = query.Where("order_id = ?", params.OrderID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.DepartmentID != "" {
		query = query.Where("department_id = ?", params.DepartmentID)
	}
	if params.OperatorID != "" {
		query = query.Where("operator_id = ?", params.OperatorID)
	}
	if params.From != nil {
		query = query.Where("actual_start_time >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("actual_start_time <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := params.normalize()
	var items []entity.WorkOrderOperation
	err := query.
		Preload("Order").
		Preload("Department").
		Order("created_at DESC, operation_number ASC").
		Offset(offset).Limit(limit).
		Find(&items).Error
	return items, total, err
}

// ListByOrder 订单下全部工序，按工序号排序
func (r *WOORepository) ListByOrder(ctx context.Context, orderID string) ([]entity.WorkOrderOperation, error) {
	var items []entity.WorkOrderOperation
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("operation_number ASC").
		Find(&items).Error
	return items, err
}

// TransitionStatus applies updates only while the row is still in one of the
// expected statuses. Zero rows affected means another writer got there first.
func (r *WOORepository) TransitionStatus(ctx context.Context, id string, expected []string, updates map[string]interface{}) (int64, error) {
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).Model(&entity.WorkOrderOperation{}).
		Where("id = ? AND status IN ?", id, expected).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// StatusOf 当前状态
func (r *WOORepository) StatusOf(ctx context.Context, teamID, id string) (string, error) {
	var woo entity.WorkOrderOperation
	err := r.db.WithContext(ctx).Select("id", "status").
		Where("id = ? AND team_id = ?", id, teamID).
		First(&woo).Error
	if err != nil {
		return "", translate(err)
	}
	return woo.Status, nil
}

// PromoteNext 将下一道未开始工序置为就绪
func (r *WOORepository) PromoteNext(ctx context.Context, orderID string, afterNumber int) error {
	var next entity.WorkOrderOperation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND operation_number > ?", orderID, afterNumber).
		Order("operation_number ASC").
		First(&next).Error
	if err != nil {
		if translate(err) == ErrNotFound {
			return nil
		}
		return err
	}
	if next.Status != entity.WOOStatusPending {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.WorkOrderOperation{}).
		Where("id = ? AND status = ?", next.ID, entity.WOOStatusPending).
		Updates(map[string]interface{}{"status": entity.WOOStatusReady, "updated_at": time.Now()}).Error
}

// HasIncompletePredecessor 是否存在未完成的前序工序
func (r *WOORepository) HasIncompletePredecessor(ctx context.Context, orderID string, operationNumber int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.WorkOrderOperation{}).
		Where("order_id = ? AND operation_number < ? AND status <> ?", orderID, operationNumber, entity.WOOStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

// dropAbandoned hides unfinished operations whose order was cancelled.
func dropAbandoned(db *gorm.DB, table string) *gorm.DB {
	return db.Where("("+table+".status = ? OR NOT EXISTS (SELECT 1 FROM mes_orders o WHERE o.id = "+table+".order_id AND o.status = ?))",
		entity.WOOStatusCompleted, entity.OrderStatusCancelled)
}

// StatusCount 状态计数行
type StatusCount struct {
	Status string
	Count  int64
}

// CountByStatus 按状态统计
func (r *WOORepository) CountByStatus(ctx context.Context, teamID string, scope DepartmentScope) (map[string]int64, error) {
	result := make(map[string]int64)
	if scope.IsEmpty() {
		return result, nil
	}
	var rows []StatusCount
	query := r.db.WithContext(ctx).Model(&entity.WorkOrderOperation{}).
		Select("status, COUNT(*) AS count").
		Where("team_id = ?", teamID)
	query = dropAbandoned(query, "mes_work_order_operations")
	err := scope.Apply(query, "department_id").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}

// DepartmentStatusCount 部门+状态计数行
type DepartmentStatusCount struct {
	DepartmentID   string
	DepartmentName string
	Status         string
	Count          int64
}

// CountLiveByDepartment 在制工序按部门和状态统计
func (r *WOORepository) CountLiveByDepartment(ctx context.Context, teamID string, scope DepartmentScope) ([]DepartmentStatusCount, error) {
	if scope.IsEmpty() {
		return []DepartmentStatusCount{}, nil
	}
	var rows []DepartmentStatusCount
	query := r.db.WithContext(ctx).Table("mes_work_order_operations AS w").
		Select("w.department_id AS department_id, COALESCE(d.name, '') AS department_name, w.status AS status, COUNT(*) AS count").
		Joins("LEFT JOIN mes_departments d ON d.id = w.department_id").
		Where("w.team_id = ? AND w.status IN ?", teamID, entity.LiveWOOStatuses)
	query = dropAbandoned(query, "w")
	err := scope.Apply(query, "w.department_id").
		Group("w.department_id, d.name, w.status").
		Scan(&rows).Error
	return rows, err
}

// OperationCount 工序名称+部门计数行
type OperationCount struct {
	OperationName  string
	DepartmentID   string
	DepartmentName string
	Count          int64
}

// CountLiveByOperation 在制工序按工序名和部门统计
func (r *WOORepository) CountLiveByOperation(ctx context.Context, teamID string, scope DepartmentScope) ([]OperationCount, error) {
	if scope.IsEmpty() {
		return []OperationCount{}, nil
	}
	var rows []OperationCount
	query := r.db.WithContext(ctx).Table("mes_work_order_operations AS w").
		Select("w.name AS operation_name, w.department_id AS department_id, COALESCE(d.name, '') AS department_name, COUNT(*) AS count").
		Joins("LEFT JOIN mes_departments d ON d.id = w.department_id").
		Where("w.team_id = ? AND w.status IN ?", teamID, entity.LiveWOOStatuses)
	query = dropAbandoned(query, "w")
	err := scope.Apply(query, "w.department_id").
		Group("w.name, w.department_id, d.name").
		Scan(&rows).Error
	return rows, err
}

// ListLive 在制工序（看板）
func (r *WOORepository) ListLive(ctx context.Context, teamID string, scope DepartmentScope, limit int) ([]entity.WorkOrderOperation, error) {
	if scope.IsEmpty() {
		return []entity.WorkOrderOperation{}, nil
	}
	query := r.db.WithContext(ctx).
		Where("team_id = ? AND status IN ?", teamID, entity.LiveWOOStatuses)
	query = dropAbandoned(query, "mes_work_order_operations")
	query = scope.Apply(query, "department_id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var items []entity.WorkOrderOperation
	err := query.
		Preload("Order").
		Preload("Department").
		Preload("PauseEvents").
		Order("updated_at DESC").
		Find(&items).Error
	return items, err
}

// ListCompletedSince 指定时间后完成的工序，附带暂停记录
func (r *WOORepository) ListCompletedSince(ctx context.Context, teamID string, scope DepartmentScope, since time.Time) ([]entity.WorkOrderOperation, error) {
	if scope.IsEmpty() {
		return []entity.WorkOrderOperation{}, nil
	}
	query := r.db.WithContext(ctx).
		Where("team_id = ? AND status = ? AND actual_end_time >= ?", teamID, entity.WOOStatusCompleted, since)
	query = scope.Apply(query, "department_id")
	var items []entity.WorkOrderOperation
	err := query.
		Preload("Department").
		Preload("PauseEvents").
		Order("actual_end_time ASC").
		Find(&items).Error
	return items, err
}

// CountCompletedSince 指定时间后完成的工序数
func (r *WOORepository) CountCompletedSince(ctx context.Context, teamID string, scope DepartmentScope, since time.Time) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.WorkOrderOperation{}).
		Where("team_id = ? AND status = ? AND actual_end_time >= ?", teamID, entity.WOOStatusCompleted, since)
	err := scope.Apply(query, "department_id").Count(&count).Error
	return count, err
}

// ListStartedSince 指定时间后开工的工序（只取计算人员利用率所需字段）
func (r *WOORepository) ListStartedSince(ctx context.Context, teamID string, scope DepartmentScope, since time.Time) ([]entity.WorkOrderOperation, error) {
	if scope.IsEmpty() {
		return []entity.WorkOrderOperation{}, nil
	}
	query := r.db.WithContext(ctx).
		Select("id", "operator_id", "status", "department_id").
		Where("team_id = ? AND operator_id IS NOT NULL AND (actual_start_time >= ? OR status = ?)",
			teamID, since, entity.WOOStatusInProgress)
	query = dropAbandoned(query, "mes_work_order_operations")
	query = scope.Apply(query, "department_id")
	var items []entity.WorkOrderOperation
	err := query.Find(&items).Error
	return items, err
}
