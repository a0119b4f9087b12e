package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// OrderHandler 生产订单
type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// Create POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	order, err := h.svc.Create(c.Request.Context(), GetPrincipal(c), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, order)
}

// List GET /orders?status=&product_id=&priority=&keyword=&page=&page_size=
func (h *OrderHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	priority, err := queryInt(c, "priority", 0)
	if err != nil {
		RespondError(c, err)
		return
	}
	params := repository.OrderListParams{
		Status:    c.Query("status"),
		ProductID: c.Query("product_id"),
		Priority:  priority,
		Keyword:   c.Query("keyword"),
		Page:      repository.Page{Page: page, PageSize: pageSize},
	}
	orders, total, err := h.svc.List(c.Request.Context(), GetPrincipal(c), params)
	if err != nil {
		RespondError(c, err)
		return
	}
	List(c, orders, total, page, pageSize)
}

// Get GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.svc.Get(c.Request.Context(), GetPrincipal(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, order)
}

// Update PATCH /orders/:id
func (h *OrderHandler) Update(c *gin.Context) {
	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	order, err := h.svc.Update(c.Request.Context(), GetPrincipal(c), c.Param("id"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, order)
}
