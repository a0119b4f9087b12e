package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// DepartmentHandler 部门与部门授权
type DepartmentHandler struct {
	svc    *service.DepartmentService
	access *service.AccessService
}

func NewDepartmentHandler(svc *service.DepartmentService, access *service.AccessService) *DepartmentHandler {
	return &DepartmentHandler{svc: svc, access: access}
}

// List GET /departments
func (h *DepartmentHandler) List(c *gin.Context) {
	depts, err := h.svc.List(c.Request.Context(), GetPrincipal(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": depts})
}

// Create POST /departments
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req service.DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	dept, err := h.svc.Create(c.Request.Context(), GetPrincipal(c), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, dept)
}

// Update PATCH /departments/:id
func (h *DepartmentHandler) Update(c *gin.Context) {
	var req service.DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	dept, err := h.svc.Update(c.Request.Context(), GetPrincipal(c), c.Param("id"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, dept)
}

// Delete DELETE /departments/:id，被工序模板引用时返回409
func (h *DepartmentHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetPrincipal(c), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"id": c.Param("id"), "deleted": true})
}

// SetAccess PUT /departments/access/:userId
func (h *DepartmentHandler) SetAccess(c *gin.Context) {
	var req service.DepartmentAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	view, err := h.access.SetDepartmentAccess(c.Request.Context(), GetPrincipal(c).TeamID, c.Param("userId"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, view)
}
