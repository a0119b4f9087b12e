package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Handlers 处理器集合
type Handlers struct {
	Order          *OrderHandler
	WOO            *WOOHandler
	Routing        *RoutingHandler
	Department     *DepartmentHandler
	PauseReason    *PauseReasonHandler
	Analytics      *AnalyticsHandler
	DataCollection *DataCollectionHandler
	File           *FileHandler
	APIKey         *APIKeyHandler
	SSE            *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		Order:          NewOrderHandler(svc.Order),
		WOO:            NewWOOHandler(svc.WOO),
		Routing:        NewRoutingHandler(svc.Routing),
		Department:     NewDepartmentHandler(svc.Department, svc.Access),
		PauseReason:    NewPauseReasonHandler(svc.PauseReason),
		Analytics:      NewAnalyticsHandler(svc.Analytics),
		DataCollection: NewDataCollectionHandler(svc.DataCollection),
		File:           NewFileHandler(svc.File),
		APIKey:         NewAPIKeyHandler(svc.APIKey),
		SSE:            NewSSEHandler(hub),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// List 分页列表响应
func List(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// RespondError 错误响应 {error:{code,message,timestamp,requestId,details}}
func RespondError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

// BindError converts a gin binding failure into a validation error listing
// each offending field.
func BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]service.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, service.FieldError{
				Field:   toSnake(fe.Field()),
				Message: describeTag(fe),
			})
		}
		RespondError(c, service.ValidationError("invalid request body", fields...))
		return
	}
	RespondError(c, service.ValidationError("invalid request body: "+err.Error()))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be >= " + fe.Param()
	case "max":
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}

// toSnake OrderNumber → order_number, ERPReference → erp_reference
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prev := runes[i-1]
			prevLower := (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9')
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			prevUpper := prev >= 'A' && prev <= 'Z'
			if prevLower || (prevUpper && nextLower) {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GetPrincipal 从上下文获取调用方
func GetPrincipal(c *gin.Context) *service.Principal {
	return middleware.GetPrincipal(c)
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// queryTime 解析 RFC3339 或 2006-01-02 时间参数
func queryTime(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return nil, service.ValidationError("invalid "+key, service.FieldError{Field: key, Message: "must be RFC3339 or YYYY-MM-DD"})
	}
	return &t, nil
}

// queryInt 整数参数，缺省返回 def
func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, service.ValidationError("invalid "+key, service.FieldError{Field: key, Message: "must be an integer"})
	}
	return n, nil
}

// queryBool 布尔参数
func queryBool(c *gin.Context, key string, def bool) bool {
	v := c.Query(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
