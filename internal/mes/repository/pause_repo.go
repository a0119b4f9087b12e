package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// PauseRepository 暂停原因与暂停记录仓库
type PauseRepository struct {
	db *gorm.DB
}

func NewPauseRepository(db *gorm.DB) *PauseRepository {
	return &PauseRepository{db: db}
}

// WithTx 绑定事务
func (r *PauseRepository) WithTx(tx *gorm.DB) *PauseRepository {
	return &PauseRepository{db: tx}
}

// FindReason 查询暂停原因
func (r *PauseRepository) FindReason(ctx context.Context, teamID, id string) (*entity.PauseReason, error) {
	var reason entity.PauseReason
	err := r.db.WithContext(ctx).Where("id = ? AND team_id = ?", id, teamID).First(&reason).Error
	if err != nil {
		return nil, translate(err)
	}
	return &reason, nil
}

// ListReasons 暂停原因列表
func (r *PauseRepository) ListReasons(ctx context.Context, teamID string, activeOnly bool) ([]entity.PauseReason, error) {
	query := r.db.WithContext(ctx).Where("team_id = ?", teamID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var reasons []entity.PauseReason
	err := query.Order("code ASC").Find(&reasons).Error
	return reasons, err
}

// ExistsReasonCode 暂停原因编码是否已存在
func (r *PauseRepository) ExistsReasonCode(ctx context.Context, teamID, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.PauseReason{}).
		Where("team_id = ? AND code = ?", teamID, code).
		Count(&count).Error
	return count > 0, err
}

func (r *PauseRepository) CreateReason(ctx context.Context, reason *entity.PauseReason) error {
	return r.db.WithContext(ctx).Create(reason).Error
}

// OpenEvent 创建暂停记录
func (r *PauseRepository) OpenEvent(ctx context.Context, event *entity.PauseEvent) error {
	return r.db.WithContext(ctx).Omit("PauseReason").Create(event).Error
}

// CloseLatestOpen closes the most recent open pause of a WOO. Returns the
// number of rows closed.
func (r *PauseRepository) CloseLatestOpen(ctx context.Context, wooID string, at time.Time) (int64, error) {
	var open entity.PauseEvent
	err := r.db.WithContext(ctx).
		Where("work_order_operation_id = ? AND end_time IS NULL", wooID).
		Order("start_time DESC").
		First(&open).Error
	if err != nil {
		if translate(err) == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	result := r.db.WithContext(ctx).Model(&entity.PauseEvent{}).
		Where("id = ? AND end_time IS NULL", open.ID).
		Update("end_time", at)
	return result.RowsAffected, result.Error
}

// ListByWOO 某工序的暂停记录
func (r *PauseRepository) ListByWOO(ctx context.Context, wooID string) ([]entity.PauseEvent, error) {
	var events []entity.PauseEvent
	err := r.db.WithContext(ctx).
		Preload("PauseReason").
		Where("work_order_operation_id = ?", wooID).
		Order("start_time ASC").
		Find(&events).Error
	return events, err
}
