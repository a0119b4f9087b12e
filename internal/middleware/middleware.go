package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 上下文键
const (
	ContextPrincipal = "principal"
	ContextUserID    = "user_id"
	ContextTeamID    = "team_id"
	ContextRequestID = "request_id"

	HeaderTeamID = "X-Team-ID"
)

// Logger 日志中间件
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
			zap.String("request_id", c.GetString(ContextRequestID)),
		}

		if userID := c.GetString(ContextUserID); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if teamID := c.GetString(ContextTeamID); teamID != "" {
			fields = append(fields, zap.String("team_id", teamID))
		}

		if status >= 500 {
			logger.Error("Server error", fields...)
		} else if status >= 400 {
			logger.Warn("Client error", fields...)
		} else {
			logger.Info("Request", fields...)
		}
	}
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID, X-Team-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID 请求ID中间件
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextRequestID, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// Auth resolves the bearer credential (api key or JWT) plus X-Team-ID into a
// principal and stores it on the context.
func Auth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var credential string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				credential = strings.TrimSpace(parts[1])
			}
		}

		// 回退到 query param（SSE 场景使用）
		if credential == "" {
			credential = c.Query("token")
		}
		teamID := c.GetHeader(HeaderTeamID)
		if teamID == "" {
			teamID = c.Query("team_id")
		}

		principal, err := auth.Authenticate(c.Request.Context(), credential, teamID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Set(ContextUserID, principal.UserID)
		c.Set(ContextTeamID, principal.TeamID)
		c.Next()
	}
}

// RequirePermission 权限标志检查：read / write / admin
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil {
			AbortWithError(c, service.UnauthorizedError("authorization is required"))
			return
		}
		if !principal.Has(permission) {
			AbortWithError(c, service.ForbiddenError("permission denied: "+permission))
			return
		}
		c.Next()
	}
}

// GetPrincipal 从上下文获取调用方
func GetPrincipal(c *gin.Context) *service.Principal {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil
	}
	p, _ := v.(*service.Principal)
	return p
}

// ErrorBody 错误响应体
type ErrorBody struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// ErrorResponse {error:{...}}
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteError maps err onto the error envelope. Errors that are not AppErrors
// are reported as internal.
func WriteError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.JSON(status, ErrorResponse{Error: body})
}

// AbortWithError 写错误并中断
func AbortWithError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}

func errorBody(c *gin.Context, err error) (int, ErrorBody) {
	var appErr *service.AppError
	if !errors.As(err, &appErr) {
		appErr = service.InternalError("internal server error", err)
	}
	if appErr.Kind == service.KindInternal {
		_ = c.Error(err)
	}
	message := appErr.Message
	if message == "" {
		message = http.StatusText(appErr.HTTPStatus())
	}
	return appErr.HTTPStatus(), ErrorBody{
		Code:      appErr.Code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: c.GetString(ContextRequestID),
		Details:   appErr.Details,
	}
}
