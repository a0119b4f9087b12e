package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// DepartmentRepository 部门仓库
type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) Create(ctx context.Context, dept *entity.Department) error {
	return r.db.WithContext(ctx).Create(dept).Error
}

func (r *DepartmentRepository) Update(ctx context.Context, dept *entity.Department) error {
	return r.db.WithContext(ctx).Save(dept).Error
}

func (r *DepartmentRepository) Delete(ctx context.Context, teamID, id string) error {
	return r.db.WithContext(ctx).Where("id = ? AND team_id = ?", id, teamID).Delete(&entity.Department{}).Error
}

func (r *DepartmentRepository) FindByID(ctx context.Context, teamID, id string) (*entity.Department, error) {
	var dept entity.Department
	err := r.db.WithContext(ctx).Where("id = ? AND team_id = ?", id, teamID).First(&dept).Error
	if err != nil {
		return nil, translate(err)
	}
	return &dept, nil
}

// List 部门列表（附带引用该部门的工序模板数量），受部门范围限制
func (r *DepartmentRepository) List(ctx context.Context, teamID string, scope DepartmentScope) ([]entity.Department, error) {
	if scope.IsEmpty() {
		return []entity.Department{}, nil
	}
	query := r.db.WithContext(ctx).Where("team_id = ?", teamID)
	var depts []entity.Department
	if err := scope.Apply(query, "id").Order("name ASC").Find(&depts).Error; err != nil {
		return nil, err
	}
	if len(depts) == 0 {
		return depts, nil
	}

	ids := make([]string, len(depts))
	for i, d := range depts {
		ids[i] = d.ID
	}
	var rows []struct {
		DepartmentID string
		Count        int64
	}
	err := r.db.WithContext(ctx).Model(&entity.RoutingOperation{}).
		Select("department_id, COUNT(*) AS count").
		Where("department_id IN ?", ids).
		Group("department_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.DepartmentID] = row.Count
	}
	for i := range depts {
		depts[i].OperationCount = counts[depts[i].ID]
	}
	return depts, nil
}

// CountOperations 引用该部门的工序模板数
func (r *DepartmentRepository) CountOperations(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.RoutingOperation{}).
		Where("department_id = ?", id).
		Count(&count).Error
	return count, err
}

// ExistsByName 同名部门是否存在
func (r *DepartmentRepository) ExistsByName(ctx context.Context, teamID, name, excludeID string) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.Department{}).Where("team_id = ? AND name = ?", teamID, name)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// CountInTeam 统计属于团队的部门ID数量（校验输入）
func (r *DepartmentRepository) CountInTeam(ctx context.Context, teamID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Department{}).
		Where("team_id = ? AND id IN ?", teamID, ids).
		Count(&count).Error
	return count, err
}
