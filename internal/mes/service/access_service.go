package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"go.uber.org/zap"
)

// AccessService 部门访问范围
type AccessService struct {
	repo     *repository.AccessRepository
	deptRepo *repository.DepartmentRepository
	logger   *zap.Logger
}

func NewAccessService(repo *repository.AccessRepository, deptRepo *repository.DepartmentRepository, logger *zap.Logger) *AccessService {
	return &AccessService{repo: repo, deptRepo: deptRepo, logger: logger}
}

// Member returns the membership row, or nil when the user is not in the team.
func (s *AccessService) Member(ctx context.Context, teamID, userID string) (*entity.TeamMember, error) {
	member, err := s.repo.FindMember(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, InternalError("failed to load team member", err)
	}
	return member, nil
}

// Resolve computes the department scope of a user inside a team. Team admins
// and members flagged all_departments see everything; other members see their
// granted departments; non-members see nothing.
func (s *AccessService) Resolve(ctx context.Context, userID, teamID string) (repository.DepartmentScope, error) {
	member, err := s.Member(ctx, teamID, userID)
	if err != nil {
		return repository.DepartmentScope{}, err
	}
	return s.scopeFor(ctx, member)
}

func (s *AccessService) scopeFor(ctx context.Context, member *entity.TeamMember) (repository.DepartmentScope, error) {
	if member == nil {
		return repository.DepartmentScope{}, nil
	}
	if member.Role == entity.TeamRoleAdmin || member.AllDepartments {
		return repository.AllDepartments(), nil
	}
	ids, err := s.repo.DepartmentIDs(ctx, member.TeamID, member.UserID)
	if err != nil {
		return repository.DepartmentScope{}, InternalError("failed to load department access", err)
	}
	return repository.DepartmentScope{IDs: ids}, nil
}

// AddMemberRequest 添加团队成员（命令行引导用）
type AddMemberRequest struct {
	UserID         string
	Name           string
	Email          string
	Role           string
	AllDepartments bool
}

// AddMember creates the user when missing and upserts its team membership.
// An empty name keeps the stored one.
func (s *AccessService) AddMember(ctx context.Context, teamID string, req AddMemberRequest) (*entity.TeamMember, error) {
	if teamID == "" || req.UserID == "" {
		return nil, ValidationError("team and user are required")
	}
	if req.Role == "" {
		req.Role = entity.TeamRoleMember
	}
	if req.Role != entity.TeamRoleAdmin && req.Role != entity.TeamRoleMember {
		return nil, ValidationError("role must be admin or member", FieldError{Field: "role", Message: "must be admin or member"})
	}

	now := time.Now()
	user := &entity.User{ID: req.UserID, Name: req.Name, Email: req.Email, Status: "active", CreatedAt: now, UpdatedAt: now}
	if existing, err := s.repo.FindUser(ctx, req.UserID); err == nil {
		if user.Name == "" {
			user.Name = existing.Name
		}
		if user.Email == "" {
			user.Email = existing.Email
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, InternalError("failed to load user", err)
	}
	if user.Name == "" {
		user.Name = req.UserID
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return nil, InternalError("failed to save user", err)
	}

	member := &entity.TeamMember{
		TeamID:         teamID,
		UserID:         req.UserID,
		Role:           req.Role,
		AllDepartments: req.AllDepartments,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.SaveMember(ctx, member); err != nil {
		return nil, InternalError("failed to save team member", err)
	}
	s.logger.Info("team member saved",
		zap.String("team_id", teamID),
		zap.String("user_id", req.UserID),
		zap.String("role", req.Role))
	return member, nil
}

// DepartmentAccessRequest 设置部门授权
type DepartmentAccessRequest struct {
	AllDepartments bool     `json:"all_departments"`
	DepartmentIDs  []string `json:"department_ids"`
}

// DepartmentAccessView 用户部门授权
type DepartmentAccessView struct {
	UserID         string   `json:"user_id"`
	TeamID         string   `json:"team_id"`
	Role           string   `json:"role"`
	AllDepartments bool     `json:"all_departments"`
	DepartmentIDs  []string `json:"department_ids"`
}

// SetDepartmentAccess 覆盖成员的部门授权
func (s *AccessService) SetDepartmentAccess(ctx context.Context, teamID, userID string, req DepartmentAccessRequest) (*DepartmentAccessView, error) {
	member, err := s.Member(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, NotFoundError("team member")
	}

	ids := uniqueSorted(req.DepartmentIDs)
	if len(ids) > 0 {
		count, err := s.deptRepo.CountInTeam(ctx, teamID, ids)
		if err != nil {
			return nil, InternalError("failed to check departments", err)
		}
		if int(count) != len(ids) {
			return nil, ValidationError("unknown department in department_ids")
		}
	}

	if err := s.repo.ReplaceDepartments(ctx, teamID, userID, req.AllDepartments, ids); err != nil {
		return nil, InternalError("failed to save department access", err)
	}
	s.logger.Info("department access updated",
		zap.String("team_id", teamID),
		zap.String("user_id", userID),
		zap.Bool("all_departments", req.AllDepartments),
		zap.Int("departments", len(ids)))

	return &DepartmentAccessView{
		UserID:         userID,
		TeamID:         teamID,
		Role:           member.Role,
		AllDepartments: req.AllDepartments,
		DepartmentIDs:  ids,
	}, nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
