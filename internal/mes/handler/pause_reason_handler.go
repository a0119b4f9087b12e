package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// PauseReasonHandler 暂停原因
type PauseReasonHandler struct {
	svc *service.PauseReasonService
}

func NewPauseReasonHandler(svc *service.PauseReasonService) *PauseReasonHandler {
	return &PauseReasonHandler{svc: svc}
}

// List GET /pause-reasons?active=true
func (h *PauseReasonHandler) List(c *gin.Context) {
	reasons, err := h.svc.List(c.Request.Context(), GetPrincipal(c), queryBool(c, "active", false))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": reasons})
}

// Create POST /pause-reasons
func (h *PauseReasonHandler) Create(c *gin.Context) {
	var req service.CreatePauseReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	reason, err := h.svc.Create(c.Request.Context(), GetPrincipal(c), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, reason)
}
