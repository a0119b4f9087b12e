package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册 /api/v1 下的业务路由，authMW 负责解析 Principal
func RegisterRoutes(api *gin.RouterGroup, h *Handlers, authMW gin.HandlerFunc) {
	read := middleware.RequirePermission(service.PermissionRead)
	write := middleware.RequirePermission(service.PermissionWrite)
	admin := middleware.RequirePermission(service.PermissionAdmin)

	authorized := api.Group("")
	authorized.Use(authMW)
	{
		// 工单
		orders := authorized.Group("/orders")
		{
			orders.POST("", write, h.Order.Create)
			orders.GET("", read, h.Order.List)
			orders.GET("/:id", read, h.Order.Get)
			orders.PATCH("/:id", write, h.Order.Update)
		}

		// 工序执行
		woos := authorized.Group("/work-order-operations")
		{
			woos.GET("", read, h.WOO.List)
			woos.GET("/:id", read, h.WOO.Get)
			woos.PATCH("/:id", write, h.WOO.Action)
		}

		// 工艺路线
		routings := authorized.Group("/routings")
		{
			routings.GET("", read, h.Routing.List)
			routings.GET("/import/template", read, h.Routing.ImportTemplate)
			routings.POST("/import", write, h.Routing.Import)
			routings.GET("/:id", read, h.Routing.Get)
			routings.POST("", write, h.Routing.Create)
			routings.PATCH("/:id", write, h.Routing.SetActive)
		}

		// 部门
		departments := authorized.Group("/departments")
		{
			departments.GET("", read, h.Department.List)
			departments.POST("", write, h.Department.Create)
			departments.PATCH("/:id", write, h.Department.Update)
			departments.DELETE("/:id", write, h.Department.Delete)
			departments.PUT("/access/:userId", admin, h.Department.SetAccess)
		}

		pauseReasons := authorized.Group("/pause-reasons")
		{
			pauseReasons.GET("", read, h.PauseReason.List)
			pauseReasons.POST("", write, h.PauseReason.Create)
		}

		// 统计看板
		analytics := authorized.Group("/analytics", read)
		{
			analytics.GET("/dashboard", h.Analytics.Dashboard)
			analytics.GET("/wip", h.Analytics.WIP)
			analytics.GET("/wip/export", h.Analytics.ExportWIP)
			analytics.GET("/performance", h.Analytics.Performance)
			analytics.GET("/performance/export", h.Analytics.ExportPerformance)
			analytics.GET("/recent-activity", h.Analytics.RecentActivity)
		}

		// 数据采集
		collection := authorized.Group("/data-collection")
		{
			collection.POST("", write, h.DataCollection.Submit)
			collection.GET("", read, h.DataCollection.ListSubmissions)
			collection.GET("/activities", read, h.DataCollection.ListActivities)
			collection.POST("/activities", admin, h.DataCollection.CreateActivity)
		}

		files := authorized.Group("/files")
		{
			files.POST("/upload", write, h.File.Upload)
			files.GET("/download/:id", read, h.File.Download)
		}

		apiKeys := authorized.Group("/api-keys", admin)
		{
			apiKeys.GET("", h.APIKey.List)
			apiKeys.POST("", h.APIKey.Create)
			apiKeys.DELETE("/:id", h.APIKey.Revoke)
		}

		// SSE 实时推送
		authorized.GET("/events", read, h.SSE.Stream)
	}
}
