package service

import (
	"context"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyService API密钥管理
type APIKeyService struct {
	repo       *repository.APIKeyRepository
	access     *AccessService
	bcryptCost int
	logger     *zap.Logger
}

func NewAPIKeyService(repo *repository.APIKeyRepository, access *AccessService, logger *zap.Logger) *APIKeyService {
	return &APIKeyService{repo: repo, access: access, bcryptCost: bcrypt.DefaultCost, logger: logger}
}

// SetBCryptCost 调整哈希强度（测试用低成本）
func (s *APIKeyService) SetBCryptCost(cost int) {
	s.bcryptCost = cost
}

// CreateAPIKeyRequest 创建密钥
type CreateAPIKeyRequest struct {
	Name      string     `json:"name" binding:"required"`
	CanRead   *bool      `json:"can_read"`
	CanWrite  bool       `json:"can_write"`
	CanAdmin  bool       `json:"can_admin"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreatedAPIKey 创建结果，Key 只返回这一次
type CreatedAPIKey struct {
	entity.APIKey
	Key string `json:"key"`
}

// Create issues a key for teamID owned by createdBy. The creator must be a
// team member; the plaintext key is returned once and only its hash is stored.
func (s *APIKeyService) Create(ctx context.Context, teamID, createdBy string, req CreateAPIKeyRequest) (*CreatedAPIKey, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ValidationError("name is required", FieldError{Field: "name", Message: "is required"})
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, ValidationError("expires_at must be in the future", FieldError{Field: "expires_at", Message: "must be in the future"})
	}
	member, err := s.access.Member(ctx, teamID, createdBy)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ForbiddenError("not a member of this team")
	}

	prefix := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	secret := strings.ReplaceAll(uuid.New().String(), "-", "")
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return nil, InternalError("failed to hash api key", err)
	}

	canRead := true
	if req.CanRead != nil {
		canRead = *req.CanRead
	}
	now := time.Now()
	key := entity.APIKey{
		ID:         uuid.New().String(),
		TeamID:     teamID,
		Name:       strings.TrimSpace(req.Name),
		KeyPrefix:  prefix,
		SecretHash: string(hash),
		CanRead:    canRead,
		CanWrite:   req.CanWrite,
		CanAdmin:   req.CanAdmin,
		ExpiresAt:  req.ExpiresAt,
		IsActive:   true,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, &key); err != nil {
		return nil, InternalError("failed to create api key", err)
	}
	s.logger.Info("api key created", zap.String("team_id", teamID), zap.String("key_id", key.ID), zap.String("prefix", prefix))

	return &CreatedAPIKey{
		APIKey: key,
		Key:    APIKeyPrefix + "_" + prefix + "_" + secret,
	}, nil
}

func (s *APIKeyService) List(ctx context.Context, teamID string) ([]entity.APIKey, error) {
	keys, err := s.repo.List(ctx, teamID)
	if err != nil {
		return nil, InternalError("failed to list api keys", err)
	}
	return keys, nil
}

// Revoke 停用密钥
func (s *APIKeyService) Revoke(ctx context.Context, teamID, id string) error {
	n, err := s.repo.Revoke(ctx, teamID, id)
	if err != nil {
		return InternalError("failed to revoke api key", err)
	}
	if n == 0 {
		return NotFoundError("api key")
	}
	s.logger.Info("api key revoked", zap.String("team_id", teamID), zap.String("key_id", id))
	return nil
}
