package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// OrderRepository 生产订单仓库
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx 绑定事务
func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// DB 返回底层db用于事务
func (r *OrderRepository) DB() *gorm.DB {
	return r.db
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// UpdateFields writes only the given columns. Derived columns (status and the
// actual dates) are owned by the rollup and never pass through here.
func (r *OrderRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&entity.Order{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Cancel 取消订单；已完成的订单不受影响，返回受影响行数
func (r *OrderRepository) Cancel(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.Order{}).
		Where("id = ? AND status <> ?", id, entity.OrderStatusCompleted).
		Updates(map[string]interface{}{
			"status":     entity.OrderStatusCancelled,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// SetQuantity changes the quantity while the order is still pending.
func (r *OrderRepository) SetQuantity(ctx context.Context, id string, quantity int) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.Order{}).
		Where("id = ? AND status = ?", id, entity.OrderStatusPending).
		Updates(map[string]interface{}{
			"quantity":   quantity,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// scopeOrders keeps orders with at least one operation in a visible department.
func scopeOrders(db *gorm.DB, scope DepartmentScope) *gorm.DB {
	if scope.All {
		return db
	}
	if len(scope.IDs) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where("EXISTS (SELECT 1 FROM mes_work_order_operations w WHERE w.order_id = mes_orders.id AND w.department_id IN ?)", scope.IDs)
}

// VisibleTo 订单是否在部门范围内
func (r *OrderRepository) VisibleTo(ctx context.Context, teamID, id string, scope DepartmentScope) (bool, error) {
	if scope.All {
		return true, nil
	}
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.Order{}).Where("id = ? AND team_id = ?", id, teamID)
	err := scopeOrders(query, scope).Count(&count).Error
	return count > 0, err
}

// FindByID 查询订单，附带工序
func (r *OrderRepository) FindByID(ctx context.Context, teamID, id string) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).
		Preload("Operations", func(db *gorm.DB) *gorm.DB {
			return db.Order("operation_number ASC")
		}).
		Preload("Operations.Department").
		Where("id = ? AND team_id = ?", id, teamID).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// ExistsByNumber 订单号是否已存在
func (r *OrderRepository) ExistsByNumber(ctx context.Context, teamID, orderNumber, excludeID string) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.Order{}).
		Where("team_id = ? AND order_number = ?", teamID, orderNumber)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// OrderListParams 订单列表参数
type OrderListParams struct {
	Status    string
	ProductID string
	Priority  int
	Keyword   string
	Page
}

func (r *OrderRepository) List(ctx context.Context, teamID string, scope DepartmentScope, params OrderListParams) ([]entity.Order, int64, error) {
	if scope.IsEmpty() {
		return []entity.Order{}, 0, nil
	}
	query := r.db.WithContext(ctx).Model(&entity.Order{}).Where("team_id = ?", teamID)
	query = scopeOrders(query, scope)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.Priority > 0 {
		query = query.Where("priority = ?", params.Priority)
	}
	if params.Keyword != "" {
		kw := "%" + strings.ToLower(params.Keyword) + "%"
		query = query.Where("(LOWER(order_number) LIKE ? OR LOWER(erp_reference) LIKE ?)", kw, kw)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := params.normalize()
	var orders []entity.Order
	err := query.Order("priority ASC, created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error
	return orders, total, err
}

// CountByStatus 按状态统计订单数
func (r *OrderRepository) CountByStatus(ctx context.Context, teamID string, scope DepartmentScope) (map[string]int64, error) {
	result := make(map[string]int64)
	if scope.IsEmpty() {
		return result, nil
	}
	var rows []StatusCount
	query := r.db.WithContext(ctx).Model(&entity.Order{}).
		Select("status, COUNT(*) AS count").
		Where("team_id = ?", teamID)
	err := scopeOrders(query, scope).Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}

// ListCompletedSince 指定时间后完成的订单（准时交付率）
func (r *OrderRepository) ListCompletedSince(ctx context.Context, teamID string, scope DepartmentScope, since time.Time) ([]entity.Order, error) {
	if scope.IsEmpty() {
		return []entity.Order{}, nil
	}
	var orders []entity.Order
	query := r.db.WithContext(ctx).
		Where("team_id = ? AND status = ? AND actual_end_date >= ?", teamID, entity.OrderStatusCompleted, since)
	err := scopeOrders(query, scope).Find(&orders).Error
	return orders, err
}

// UpdateStatus 更新订单状态及实际起止时间
func (r *OrderRepository) UpdateStatus(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Model(&entity.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":            order.Status,
			"actual_start_date": order.ActualStartDate,
			"actual_end_date":   order.ActualEndDate,
			"updated_at":        time.Now(),
		}).Error
}
