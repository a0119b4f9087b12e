package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyPrefix 密钥前缀，完整格式 mes_<prefix>_<secret>
const APIKeyPrefix = "mes"

// Principal 已认证的调用方
type Principal struct {
	UserID   string
	TeamID   string
	APIKeyID string
	Role     string
	CanRead  bool
	CanWrite bool
	CanAdmin bool
	Scope    repository.DepartmentScope
}

// Has 检查权限标志
func (p *Principal) Has(permission string) bool {
	switch permission {
	case PermissionRead:
		return p.CanRead || p.CanWrite || p.CanAdmin
	case PermissionWrite:
		return p.CanWrite || p.CanAdmin
	case PermissionAdmin:
		return p.CanAdmin
	}
	return false
}

// 权限标志
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)

// JWTClaims JWT claims
type JWTClaims struct {
	UserID string `json:"uid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService 认证：API密钥或JWT + 团队成员
type AuthService struct {
	keyRepo   *repository.APIKeyRepository
	access    *AccessService
	jwtSecret string
	logger    *zap.Logger
	now       func() time.Time
}

func NewAuthService(keyRepo *repository.APIKeyRepository, access *AccessService, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{keyRepo: keyRepo, access: access, jwtSecret: jwtSecret, logger: logger, now: time.Now}
}

// Authenticate resolves a bearer credential to a principal for teamID. API keys
// carry their own team; when teamID is empty the key's team is used.
func (s *AuthService) Authenticate(ctx context.Context, credential, teamID string) (*Principal, error) {
	if credential == "" {
		return nil, UnauthorizedError("authorization is required")
	}
	if strings.HasPrefix(credential, APIKeyPrefix+"_") {
		return s.authenticateAPIKey(ctx, credential, teamID)
	}
	return s.authenticateJWT(ctx, credential, teamID)
}

func (s *AuthService) authenticateAPIKey(ctx context.Context, credential, teamID string) (*Principal, error) {
	prefix, secret, ok := splitAPIKey(credential)
	if !ok {
		return nil, UnauthorizedError("malformed api key")
	}
	key, err := s.keyRepo.FindByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, UnauthorizedError("invalid api key")
		}
		return nil, InternalError("failed to load api key", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return nil, UnauthorizedError("invalid api key")
	}
	now := s.now()
	if !key.IsActive {
		return nil, UnauthorizedError("api key revoked")
	}
	if key.ExpiresAt != nil && !now.Before(*key.ExpiresAt) {
		return nil, UnauthorizedError("api key expired")
	}
	if teamID == "" {
		teamID = key.TeamID
	}
	if teamID != key.TeamID {
		return nil, ForbiddenError("api key does not belong to this team")
	}

	if err := s.keyRepo.Touch(ctx, key.ID, now); err != nil {
		s.logger.Warn("failed to update api key usage", zap.String("key_id", key.ID), zap.Error(err))
	}

	scope, err := s.access.Resolve(ctx, key.CreatedBy, key.TeamID)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID:   key.CreatedBy,
		TeamID:   key.TeamID,
		APIKeyID: key.ID,
		CanRead:  key.CanRead,
		CanWrite: key.CanWrite,
		CanAdmin: key.CanAdmin,
		Scope:    scope,
	}, nil
}

func (s *AuthService) authenticateJWT(ctx context.Context, tokenString, teamID string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, UnauthorizedError("invalid or expired token")
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, UnauthorizedError("invalid token claims")
	}
	if teamID == "" {
		return nil, ValidationError("X-Team-ID header is required")
	}

	member, err := s.access.Member(ctx, teamID, claims.UserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ForbiddenError("not a member of this team")
	}
	scope, err := s.access.scopeFor(ctx, member)
	if err != nil {
		return nil, err
	}
	isAdmin := member.Role == entity.TeamRoleAdmin
	return &Principal{
		UserID:   claims.UserID,
		TeamID:   teamID,
		Role:     member.Role,
		CanRead:  true,
		CanWrite: true,
		CanAdmin: isAdmin,
		Scope:    scope,
	}, nil
}

// splitAPIKey 拆分 mes_<prefix>_<secret>
func splitAPIKey(key string) (prefix, secret string, ok bool) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 || parts[0] != APIKeyPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
