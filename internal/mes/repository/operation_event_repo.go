package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OperationEventRepository 工序事件日志仓库
type OperationEventRepository struct {
	db *gorm.DB
}

func NewOperationEventRepository(db *gorm.DB) *OperationEventRepository {
	return &OperationEventRepository{db: db}
}

// WithTx 绑定事务
func (r *OperationEventRepository) WithTx(tx *gorm.DB) *OperationEventRepository {
	return &OperationEventRepository{db: tx}
}

// Create 记录工序事件
func (r *OperationEventRepository) Create(ctx context.Context, event *entity.OperationEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

// Recent 最近的工序事件，新的在前
func (r *OperationEventRepository) Recent(ctx context.Context, teamID string, scope DepartmentScope, limit int) ([]entity.OperationEvent, error) {
	if scope.IsEmpty() {
		return []entity.OperationEvent{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	query := r.db.WithContext(ctx).Where("team_id = ?", teamID)
	var events []entity.OperationEvent
	err := scope.Apply(query, "department_id").
		Order("occurred_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// FindByWOO 某工序的事件历史
func (r *OperationEventRepository) FindByWOO(ctx context.Context, wooID string) ([]entity.OperationEvent, error) {
	var events []entity.OperationEvent
	err := r.db.WithContext(ctx).
		Where("work_order_operation_id = ?", wooID).
		Order("occurred_at ASC").
		Find(&events).Error
	return events, err
}
