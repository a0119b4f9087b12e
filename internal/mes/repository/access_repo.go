package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccessRepository 用户、团队成员与部门授权
type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// FindUser 查询用户
func (r *AccessRepository) FindUser(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UpsertUser 创建或更新用户
func (r *AccessRepository) UpsertUser(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "updated_at"}),
	}).Create(user).Error
}

// FindMember 查询团队成员
func (r *AccessRepository) FindMember(ctx context.Context, teamID, userID string) (*entity.TeamMember, error) {
	var member entity.TeamMember
	err := r.db.WithContext(ctx).Where("team_id = ? AND user_id = ?", teamID, userID).First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

// SaveMember 创建或更新团队成员
func (r *AccessRepository) SaveMember(ctx context.Context, member *entity.TeamMember) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "all_departments", "updated_at"}),
	}).Create(member).Error
}

// DepartmentIDs 用户在团队内被授权的部门
func (r *AccessRepository) DepartmentIDs(ctx context.Context, teamID, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&entity.DepartmentAccess{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Order("department_id ASC").
		Pluck("department_id", &ids).Error
	return ids, err
}

// ReplaceDepartments 覆盖用户的部门授权
func (r *AccessRepository) ReplaceDepartments(ctx context.Context, teamID, userID string, allDepartments bool, departmentIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).
			Delete(&entity.DepartmentAccess{}).Error; err != nil {
			return err
		}
		if len(departmentIDs) > 0 {
			now := time.Now()
			rows := make([]entity.DepartmentAccess, 0, len(departmentIDs))
			for _, id := range departmentIDs {
				rows = append(rows, entity.DepartmentAccess{TeamID: teamID, UserID: userID, DepartmentID: id, CreatedAt: now})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return tx.Model(&entity.TeamMember{}).
			Where("team_id = ? AND user_id = ?", teamID, userID).
			Updates(map[string]interface{}{"all_departments": allDepartments, "updated_at": time.Now()}).Error
	})
}

// RemoveDepartment 删除部门时清理授权
func (r *AccessRepository) RemoveDepartment(ctx context.Context, departmentID string) error {
	return r.db.WithContext(ctx).Where("department_id = ?", departmentID).Delete(&entity.DepartmentAccess{}).Error
}
