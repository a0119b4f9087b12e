package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// RoutingHandler 工艺路线
type RoutingHandler struct {
	svc *service.RoutingService
}

func NewRoutingHandler(svc *service.RoutingService) *RoutingHandler {
	return &RoutingHandler{svc: svc}
}

// List GET /routings?product_id=&active=&keyword=
func (h *RoutingHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.RoutingListParams{
		ProductID:  c.Query("product_id"),
		ActiveOnly: queryBool(c, "active", false),
		Keyword:    c.Query("keyword"),
		Page:       repository.Page{Page: page, PageSize: pageSize},
	}
	items, total, err := h.svc.List(c.Request.Context(), GetPrincipal(c), params)
	if err != nil {
		RespondError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// Get GET /routings/:id
func (h *RoutingHandler) Get(c *gin.Context) {
	routing, err := h.svc.Get(c.Request.Context(), GetPrincipal(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, routing)
}

// Create POST /routings
func (h *RoutingHandler) Create(c *gin.Context) {
	var req service.CreateRoutingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	routing, err := h.svc.Create(c.Request.Context(), GetPrincipal(c), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, routing)
}

// SetActive PATCH /routings/:id {is_active}
func (h *RoutingHandler) SetActive(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	routing, err := h.svc.SetActive(c.Request.Context(), GetPrincipal(c), c.Param("id"), *req.IsActive)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, routing)
}

// Import POST /routings/import (multipart: file, name, product_id, version)
func (h *RoutingHandler) Import(c *gin.Context) {
	var req service.ImportRoutingRequest
	if err := c.ShouldBind(&req); err != nil {
		BindError(c, err)
		return
	}
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, service.ValidationError("xlsx file is required", service.FieldError{Field: "file", Message: "is required"}))
		return
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		RespondError(c, service.ValidationError("cannot parse xlsx file: "+err.Error()))
		return
	}
	defer f.Close()

	routing, err := h.svc.Import(c.Request.Context(), GetPrincipal(c), req, f)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, routing)
}

// ImportTemplate GET /routings/import/template
func (h *RoutingHandler) ImportTemplate(c *gin.Context) {
	f, err := h.svc.ImportTemplate()
	if err != nil {
		RespondError(c, service.InternalError("failed to build template", err))
		return
	}
	defer f.Close()
	writeWorkbook(c, f, "routing_import_template.xlsx")
}

// writeWorkbook 输出xlsx附件
func writeWorkbook(c *gin.Context, f *excelize.File, filename string) {
	c.Header("Content-Type", service.XLSXContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	if err := f.Write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}
