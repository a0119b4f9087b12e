package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// DataCollectionRepository 数据采集活动与采集记录仓库
type DataCollectionRepository struct {
	db *gorm.DB
}

func NewDataCollectionRepository(db *gorm.DB) *DataCollectionRepository {
	return &DataCollectionRepository{db: db}
}

// WithTx 绑定事务
func (r *DataCollectionRepository) WithTx(tx *gorm.DB) *DataCollectionRepository {
	return &DataCollectionRepository{db: tx}
}

func (r *DataCollectionRepository) CreateActivity(ctx context.Context, activity *entity.DataCollectionActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *DataCollectionRepository) FindActivity(ctx context.Context, teamID, id string) (*entity.DataCollectionActivity, error) {
	var activity entity.DataCollectionActivity
	err := r.db.WithContext(ctx).Where("id = ? AND team_id = ?", id, teamID).First(&activity).Error
	if err != nil {
		return nil, translate(err)
	}
	return &activity, nil
}

// FindActivities 批量查询活动，忽略不存在的ID
func (r *DataCollectionRepository) FindActivities(ctx context.Context, teamID string, ids []string) ([]entity.DataCollectionActivity, error) {
	if len(ids) == 0 {
		return []entity.DataCollectionActivity{}, nil
	}
	var activities []entity.DataCollectionActivity
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND id IN ?", teamID, ids).
		Order("name ASC").
		Find(&activities).Error
	return activities, err
}

func (r *DataCollectionRepository) ListActivities(ctx context.Context, teamID string, activeOnly bool) ([]entity.DataCollectionActivity, error) {
	query := r.db.WithContext(ctx).Where("team_id = ?", teamID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var activities []entity.DataCollectionActivity
	err := query.Order("name ASC").Find(&activities).Error
	return activities, err
}

func (r *DataCollectionRepository) CreateSubmission(ctx context.Context, submission *entity.DataCollectionSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// ListSubmissions 某工序的采集记录
func (r *DataCollectionRepository) ListSubmissions(ctx context.Context, wooID string) ([]entity.DataCollectionSubmission, error) {
	var items []entity.DataCollectionSubmission
	err := r.db.WithContext(ctx).
		Where("work_order_operation_id = ?", wooID).
		Order("submitted_at ASC").
		Find(&items).Error
	return items, err
}
