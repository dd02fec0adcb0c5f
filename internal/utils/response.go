package utils

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 统一错误响应结构
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// Error 返回错误响应并终止后续处理
func Error(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		Success: false,
		Error:   code,
		Message: message,
	})
}

// Fail 将错误映射为统一的错误信封
func Fail(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		Error(c, appErr.Status, appErr.Message)
		return
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		Error(c, http.StatusUnauthorized, authErr.Description)
		return
	}

	slog.ErrorContext(c.Request.Context(), "请求处理失败",
		slog.String("path", c.Request.URL.Path),
		slog.String("request_id", c.GetString(RequestIDKey)),
		slog.Any("error", err),
	)
	Error(c, ErrInternal.Status, ErrInternal.Message)
}

// NotFound 返回404错误
func NotFound(c *gin.Context) {
	Error(c, ErrNotFound.Status, ErrNotFound.Message)
}

// Unauthorized 返回401错误
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// RequestIDKey 请求 ID 在 gin.Context 中的键
const RequestIDKey = "request_id"
