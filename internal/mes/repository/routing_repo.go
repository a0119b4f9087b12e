package repository

import (
	"context"
	"strings"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// RoutingRepository 工艺路线仓库
type RoutingRepository struct {
	db *gorm.DB
}

func NewRoutingRepository(db *gorm.DB) *RoutingRepository {
	return &RoutingRepository{db: db}
}

// WithTx 绑定事务
func (r *RoutingRepository) WithTx(tx *gorm.DB) *RoutingRepository {
	return &RoutingRepository{db: tx}
}

// Create 创建路线及其工序
func (r *RoutingRepository) Create(ctx context.Context, routing *entity.Routing) error {
	return r.db.WithContext(ctx).Create(routing).Error
}

// FindByID 查询路线，工序按工序号排序
func (r *RoutingRepository) FindByID(ctx context.Context, teamID, id string) (*entity.Routing, error) {
	var routing entity.Routing
	err := r.db.WithContext(ctx).
		Preload("Operations", func(db *gorm.DB) *gorm.DB {
			return db.Order("operation_number ASC")
		}).
		Preload("Operations.Department").
		Where("id = ? AND team_id = ?", id, teamID).
		First(&routing).Error
	if err != nil {
		return nil, translate(err)
	}
	return &routing, nil
}

// Exists 同一产品同一版本是否已存在
func (r *RoutingRepository) Exists(ctx context.Context, teamID, productID, version string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Routing{}).
		Where("team_id = ? AND product_id = ? AND version = ?", teamID, productID, version).
		Count(&count).Error
	return count > 0, err
}

// RoutingListParams 路线列表参数
type RoutingListParams struct {
	ProductID  string
	ActiveOnly bool
	Keyword    string
	Page
}

func (r *RoutingRepository) List(ctx context.Context, teamID string, params RoutingListParams) ([]entity.Routing, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Routing{}).Where("team_id = ?", teamID)
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if params.Keyword != "" {
		kw := "%" + strings.ToLower(params.Keyword) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(product_id) LIKE ?", kw, kw)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := params.normalize()
	var items []entity.Routing
	err := query.Order("product_id ASC, version DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// FindActiveForProduct 产品当前启用的最新路线
func (r *RoutingRepository) FindActiveForProduct(ctx context.Context, teamID, productID string) (*entity.Routing, error) {
	var routing entity.Routing
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND product_id = ? AND is_active = ?", teamID, productID, true).
		Order("created_at DESC").
		First(&routing).Error
	if err != nil {
		return nil, translate(err)
	}
	return r.FindByID(ctx, teamID, routing.ID)
}

// SetActive 启用或停用路线
func (r *RoutingRepository) SetActive(ctx context.Context, teamID, id string, active bool) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.Routing{}).
		Where("id = ? AND team_id = ?", id, teamID).
		Update("is_active", active)
	return result.RowsAffected, result.Error
}
