package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// APIKeyRepository API密钥仓库
type APIKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(ctx context.Context, key *entity.APIKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

// FindByPrefix 按前缀查找
func (r *APIKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*entity.APIKey, error) {
	var key entity.APIKey
	if err := r.db.WithContext(ctx).Where("key_prefix = ?", prefix).First(&key).Error; err != nil {
		return nil, translate(err)
	}
	return &key, nil
}

func (r *APIKeyRepository) List(ctx context.Context, teamID string) ([]entity.APIKey, error) {
	var keys []entity.APIKey
	err := r.db.WithContext(ctx).Where("team_id = ?", teamID).Order("created_at DESC").Find(&keys).Error
	return keys, err
}

// Revoke 停用密钥
func (r *APIKeyRepository) Revoke(ctx context.Context, teamID, id string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.APIKey{}).
		Where("id = ? AND team_id = ?", id, teamID).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	return result.RowsAffected, result.Error
}

// Touch 更新最近使用时间
func (r *APIKeyRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.APIKey{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
}
