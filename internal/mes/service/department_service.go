package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DepartmentService 部门管理
type DepartmentService struct {
	repo       *repository.DepartmentRepository
	accessRepo *repository.AccessRepository
	logger     *zap.Logger
}

func NewDepartmentService(repo *repository.DepartmentRepository, accessRepo *repository.AccessRepository, logger *zap.Logger) *DepartmentService {
	return &DepartmentService{repo: repo, accessRepo: accessRepo, logger: logger}
}

// DepartmentRequest 创建/修改部门
type DepartmentRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// List 受部门范围限制
func (s *DepartmentService) List(ctx context.Context, p *Principal) ([]entity.Department, error) {
	depts, err := s.repo.List(ctx, p.TeamID, p.Scope)
	if err != nil {
		return nil, InternalError("failed to list departments", err)
	}
	return depts, nil
}

func (s *DepartmentService) Create(ctx context.Context, p *Principal, req DepartmentRequest) (*entity.Department, error) {
	name := ""
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if name == "" {
		return nil, ValidationError("name is required", FieldError{Field: "name", Message: "is required"})
	}
	if err := s.checkName(ctx, p.TeamID, name, ""); err != nil {
		return nil, err
	}

	now := time.Now()
	dept := &entity.Department{
		ID:        uuid.New().String(),
		TeamID:    p.TeamID,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Description != nil {
		dept.Description = *req.Description
	}
	if req.IsActive != nil {
		dept.IsActive = *req.IsActive
	}
	if err := s.repo.Create(ctx, dept); err != nil {
		return nil, InternalError("failed to create department", err)
	}
	s.logger.Info("department created", zap.String("team_id", p.TeamID), zap.String("department_id", dept.ID))
	return dept, nil
}

func (s *DepartmentService) Update(ctx context.Context, p *Principal, id string, req DepartmentRequest) (*entity.Department, error) {
	dept, err := s.repo.FindByID(ctx, p.TeamID, id)
	if err != nil {
		return nil, notFoundOr(err, "department")
	}
	if !p.Scope.Allows(dept.ID) {
		return nil, ForbiddenError("department is outside your access scope")
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ValidationError("name cannot be empty", FieldError{Field: "name", Message: "is required"})
		}
		if name != dept.Name {
			if err := s.checkName(ctx, p.TeamID, name, dept.ID); err != nil {
				return nil, err
			}
			dept.Name = name
		}
	}
	if req.Description != nil {
		dept.Description = *req.Description
	}
	if req.IsActive != nil {
		dept.IsActive = *req.IsActive
	}
	dept.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, dept); err != nil {
		return nil, InternalError("failed to update department", err)
	}
	dept.OperationCount, _ = s.repo.CountOperations(ctx, dept.ID)
	return dept, nil
}

// Delete refuses to remove a department still referenced by routing operations.
func (s *DepartmentService) Delete(ctx context.Context, p *Principal, id string) error {
	dept, err := s.repo.FindByID(ctx, p.TeamID, id)
	if err != nil {
		return notFoundOr(err, "department")
	}
	if !p.Scope.Allows(dept.ID) {
		return ForbiddenError("department is outside your access scope")
	}
	count, err := s.repo.CountOperations(ctx, dept.ID)
	if err != nil {
		return InternalError("failed to count department operations", err)
	}
	if count > 0 {
		return ConflictError(fmt.Sprintf("department is used by %d routing operations", count))
	}
	if err := s.repo.Delete(ctx, p.TeamID, dept.ID); err != nil {
		return InternalError("failed to delete department", err)
	}
	if err := s.accessRepo.RemoveDepartment(ctx, dept.ID); err != nil {
		s.logger.Warn("failed to clean department access", zap.String("department_id", dept.ID), zap.Error(err))
	}
	s.logger.Info("department deleted", zap.String("team_id", p.TeamID), zap.String("department_id", dept.ID))
	return nil
}

func (s *DepartmentService) checkName(ctx context.Context, teamID, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, teamID, name, excludeID)
	if err != nil {
		return InternalError("failed to check department name", err)
	}
	if exists {
		return ConflictError("department " + name + " already exists")
	}
	return nil
}
