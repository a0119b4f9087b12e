package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// AnalyticsHandler 统计看板。统计失败时服务返回归零结构，这里不会出错
type AnalyticsHandler struct {
	svc *service.AnalyticsService
}

func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// Dashboard GET /analytics/dashboard
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	Success(c, h.svc.Dashboard(c.Request.Context(), GetPrincipal(c)))
}

// WIP GET /analytics/wip
func (h *AnalyticsHandler) WIP(c *gin.Context) {
	Success(c, h.svc.WIP(c.Request.Context(), GetPrincipal(c)))
}

// Performance GET /analytics/performance?days=30
func (h *AnalyticsHandler) Performance(c *gin.Context) {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, h.svc.Performance(c.Request.Context(), GetPrincipal(c), days))
}

// RecentActivity GET /analytics/recent-activity?limit=20
func (h *AnalyticsHandler) RecentActivity(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": h.svc.RecentActivity(c.Request.Context(), GetPrincipal(c), limit)})
}

// ExportPerformance GET /analytics/performance/export?days=30
func (h *AnalyticsHandler) ExportPerformance(c *gin.Context) {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		RespondError(c, err)
		return
	}
	f, filename, err := h.svc.ExportPerformance(c.Request.Context(), GetPrincipal(c), days)
	if err != nil {
		RespondError(c, service.InternalError("failed to build workbook", err))
		return
	}
	defer f.Close()
	writeWorkbook(c, f, filename)
}

// ExportWIP GET /analytics/wip/export
func (h *AnalyticsHandler) ExportWIP(c *gin.Context) {
	f, filename, err := h.svc.ExportWIP(c.Request.Context(), GetPrincipal(c))
	if err != nil {
		RespondError(c, service.InternalError("failed to build workbook", err))
		return
	}
	defer f.Close()
	writeWorkbook(c, f, filename)
}
