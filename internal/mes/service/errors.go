package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
)

// ErrorKind 错误分类
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindInvalidTransition
)

// 错误码
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeMissingReason     = "MISSING_REASON"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError 业务错误，handler 根据 Kind 映射 HTTP 状态码
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus 对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInvalidTransition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// FieldError 单个字段校验失败
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func ValidationError(message string, fields ...FieldError) *AppError {
	e := &AppError{Kind: KindValidation, Code: CodeValidation, Message: message}
	if len(fields) > 0 {
		e.Details = map[string]interface{}{"fields": fields}
	}
	return e
}

func MissingReasonError() *AppError {
	return &AppError{Kind: KindValidation, Code: CodeMissingReason, Message: "pause reason is required"}
}

func NotFoundError(what string) *AppError {
	return &AppError{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

func ConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Code: CodeConflict, Message: message}
}

func UnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: message}
}

func ForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Code: CodeForbidden, Message: message}
}

// InvalidTransitionError 非法状态转换，附带当前状态和可执行动作
func InvalidTransitionError(currentStatus, action string, allowed []string) *AppError {
	if allowed == nil {
		allowed = []string{}
	}
	return &AppError{
		Kind:    KindInvalidTransition,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s operation in status %s", action, currentStatus),
		Details: map[string]interface{}{
			"currentStatus":  currentStatus,
			"action":         action,
			"allowedActions": allowed,
		},
	}
}

func InternalError(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// notFoundOr maps repository.ErrNotFound to a NotFound AppError and wraps
// anything else as internal.
func notFoundOr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return NotFoundError(what)
	}
	return InternalError("failed to load "+what, err)
}

// IsKind 判断错误分类
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
