package utils

import (
	"errors"
	"net/http"
)

// AppError 可直接映射为 HTTP 状态码的业务错误
type AppError struct {
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// 错误定义
var (
	ErrUnprocessable    = &AppError{Status: http.StatusUnprocessableEntity, Message: "unprocessable"}
	ErrNotFound         = &AppError{Status: http.StatusNotFound, Message: "Resource Not Found"}
	ErrBadRequest       = &AppError{Status: http.StatusBadRequest, Message: "bad request"}
	ErrMethodNotAllowed = &AppError{Status: http.StatusMethodNotAllowed, Message: "method not allowed"}
	ErrTooManyRequests  = &AppError{Status: http.StatusTooManyRequests, Message: "too many requests"}
	ErrInternal         = &AppError{Status: http.StatusInternalServerError, Message: "internal server error"}
)

// Unprocessable 包装请求体校验失败的原因
func Unprocessable(cause error) *AppError {
	return &AppError{Status: ErrUnprocessable.Status, Message: ErrUnprocessable.Message, Err: cause}
}

// Is 按状态码比较，便于 errors.Is(err, ErrNotFound)
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Status == t.Status
}

// AuthError 认证或授权失败
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	return e.Code + ": " + e.Description
}

// NewAuthError 创建认证错误
func NewAuthError(code, description string, status int) *AuthError {
	return &AuthError{Code: code, Description: description, Status: status}
}

// AuthError 错误码
const (
	AuthCodeHeaderMissing = "authorization_header_missing"
	AuthCodeInvalidHeader = "invalid_header"
	AuthCodeInvalidToken  = "invalid_token"
	AuthCodeTokenExpired  = "token_expired"
	AuthCodeInvalidClaims = "invalid_claims"
	AuthCodeUnauthorized  = "unauthorized"
)
