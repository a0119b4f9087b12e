package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// WOOHandler 工单工序
type WOOHandler struct {
	svc *service.WOOService
}

func NewWOOHandler(svc *service.WOOService) *WOOHandler {
	return &WOOHandler{svc: svc}
}

// List GET /work-order-operations
// 查询参数同时接受 camelCase 与 snake_case（orderId / order_id）
func (h *WOOHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	from, err := queryTime(c, "from")
	if err != nil {
		RespondError(c, err)
		return
	}
	to, err := queryTime(c, "to")
	if err != nil {
		RespondError(c, err)
		return
	}
	params := repository.WOOListParams{
		OrderID:      firstQuery(c, "orderId", "order_id"),
		Status:       c.Query("status"),
		DepartmentID: firstQuery(c, "departmentId", "department_id"),
		OperatorID:   firstQuery(c, "operatorId", "operator_id"),
		From:         from,
		To:           to,
		Page:         repository.Page{Page: page, PageSize: pageSize},
	}
	items, total, err := h.svc.List(c.Request.Context(), GetPrincipal(c), params)
	if err != nil {
		RespondError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// Get GET /work-order-operations/:id
func (h *WOOHandler) Get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), GetPrincipal(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, detail)
}

// Action PATCH /work-order-operations/:id {action: start|pause|resume|complete}
func (h *WOOHandler) Action(c *gin.Context) {
	var req service.WOOActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	detail, err := h.svc.Apply(c.Request.Context(), GetPrincipal(c), c.Param("id"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, detail)
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}
