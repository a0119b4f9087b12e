package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// APIKeyHandler API密钥管理（admin）
type APIKeyHandler struct {
	svc *service.APIKeyService
}

func NewAPIKeyHandler(svc *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{svc: svc}
}

// List GET /api-keys
func (h *APIKeyHandler) List(c *gin.Context) {
	keys, err := h.svc.List(c.Request.Context(), GetPrincipal(c).TeamID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": keys})
}

// Create POST /api-keys，明文密钥只在此返回一次
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req service.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	p := GetPrincipal(c)
	key, err := h.svc.Create(c.Request.Context(), p.TeamID, p.UserID, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, key)
}

// Revoke DELETE /api-keys/:id
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	if err := h.svc.Revoke(c.Request.Context(), GetPrincipal(c).TeamID, c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"id": c.Param("id"), "revoked": true})
}
