package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// DataCollectionHandler 数据采集
type DataCollectionHandler struct {
	svc *service.DataCollectionService
}

func NewDataCollectionHandler(svc *service.DataCollectionService) *DataCollectionHandler {
	return &DataCollectionHandler{svc: svc}
}

// Submit POST /data-collection
func (h *DataCollectionHandler) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	submission, err := h.svc.Submit(c.Request.Context(), GetPrincipal(c), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, submission)
}

// ListSubmissions GET /data-collection?work_order_operation_id=
func (h *DataCollectionHandler) ListSubmissions(c *gin.Context) {
	wooID := firstQuery(c, "work_order_operation_id", "workOrderOperationId")
	if wooID == "" {
		RespondError(c, service.ValidationError("work_order_operation_id is required",
			service.FieldError{Field: "work_order_operation_id", Message: "is required"}))
		return
	}
	items, err := h.svc.ListSubmissions(c.Request.Context(), GetPrincipal(c), wooID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// ListActivities GET /data-collection/activities?active=true
func (h *DataCollectionHandler) ListActivities(c *gin.Context) {
	items, err := h.svc.ListActivities(c.Request.Context(), GetPrincipal(c), queryBool(c, "active", false))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// CreateActivity POST /data-collection/activities
func (h *DataCollectionHandler) CreateActivity(c *gin.Context) {
	var req service.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	activity, err := h.svc.CreateActivity(c.Request.Context(), GetPrincipal(c), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, activity)
}
