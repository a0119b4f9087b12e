package service

import (
	"context"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PauseReasonService 暂停原因字典
type PauseReasonService struct {
	repo   *repository.PauseRepository
	logger *zap.Logger
}

func NewPauseReasonService(repo *repository.PauseRepository, logger *zap.Logger) *PauseReasonService {
	return &PauseReasonService{repo: repo, logger: logger}
}

// CreatePauseReasonRequest 创建暂停原因
type CreatePauseReasonRequest struct {
	Code string `json:"code" binding:"required,max=32"`
	Name string `json:"name" binding:"required"`
}

func (s *PauseReasonService) List(ctx context.Context, p *Principal, activeOnly bool) ([]entity.PauseReason, error) {
	reasons, err := s.repo.ListReasons(ctx, p.TeamID, activeOnly)
	if err != nil {
		return nil, InternalError("failed to list pause reasons", err)
	}
	return reasons, nil
}

// Create 编码统一转大写，团队内唯一
func (s *PauseReasonService) Create(ctx context.Context, p *Principal, req CreatePauseReasonRequest) (*entity.PauseReason, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	name := strings.TrimSpace(req.Name)
	var fields []FieldError
	if code == "" {
		fields = append(fields, FieldError{Field: "code", Message: "is required"})
	}
	if name == "" {
		fields = append(fields, FieldError{Field: "name", Message: "is required"})
	}
	if len(fields) > 0 {
		return nil, ValidationError("invalid pause reason", fields...)
	}

	exists, err := s.repo.ExistsReasonCode(ctx, p.TeamID, code)
	if err != nil {
		return nil, InternalError("failed to check pause reason", err)
	}
	if exists {
		return nil, ConflictError("pause reason " + code + " already exists")
	}

	now := time.Now()
	reason := &entity.PauseReason{
		ID:        uuid.New().String(),
		TeamID:    p.TeamID,
		Code:      code,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateReason(ctx, reason); err != nil {
		return nil, InternalError("failed to create pause reason", err)
	}
	s.logger.Info("pause reason created", zap.String("team_id", p.TeamID), zap.String("code", code))
	return reason, nil
}
