package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/user/casting/internal/model"
	"github.com/user/casting/internal/utils"
)

// claimsKey 声明在 gin.Context 中的键
const claimsKey = "claims"

type claimsCtxKey struct{}

// TokenVerifier 校验 Bearer 令牌
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*model.Claims, error)
}

// AuthOptions 认证中间件选项
type AuthOptions struct {
	// StrictStatus 为 true 时按 AuthError 自身状态码返回（400/401/403），否则一律 401
	StrictStatus bool
	// OnFailure 认证失败回调，用于指标统计
	OnFailure func(code string)
}

// Authenticate 解析 Authorization 头并校验令牌
func Authenticate(verifier TokenVerifier, opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortAuth(c, err, opts)
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			abortAuth(c, err, opts)
			return
		}

		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(ContextWithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequirePermission 检查声明集中是否包含指定权限，必须在 Authenticate 之后
func RequirePermission(permission string, opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := CheckPermission(GetClaims(c), permission); err != nil {
			abortAuth(c, err, opts)
			return
		}
		c.Next()
	}
}

// CheckPermission 无 permissions 声明返回 400，缺少权限返回 403
func CheckPermission(claims *model.Claims, permission string) error {
	if !claims.HasPermissionsClaim() {
		return utils.NewAuthError(utils.AuthCodeInvalidClaims, "Permissions not included in JWT.", http.StatusBadRequest)
	}
	if !claims.HasPermission(permission) {
		return utils.NewAuthError(utils.AuthCodeUnauthorized, "Permission not found.", http.StatusForbidden)
	}
	return nil
}

// GetClaims 从上下文获取已验证的声明（未认证返回 nil）
func GetClaims(c *gin.Context) *model.Claims {
	if v, exists := c.Get(claimsKey); exists {
		if claims, ok := v.(*model.Claims); ok {
			return claims
		}
	}
	return ClaimsFromContext(c.Request.Context())
}

// ContextWithClaims 将声明写入 context
func ContextWithClaims(ctx context.Context, claims *model.Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, claims)
}

// ClaimsFromContext 从 context 读取声明
func ClaimsFromContext(ctx context.Context) *model.Claims {
	claims, _ := ctx.Value(claimsCtxKey{}).(*model.Claims)
	return claims
}

// bearerToken 从 Authorization 头中提取令牌
func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) == 0 {
		return "", utils.NewAuthError(utils.AuthCodeHeaderMissing, "Authorization header is expected.", http.StatusUnauthorized)
	}

	switch {
	case !strings.EqualFold(parts[0], "bearer"):
		return "", utils.NewAuthError(utils.AuthCodeInvalidHeader, `Authorization header must start with "Bearer".`, http.StatusUnauthorized)
	case len(parts) == 1:
		return "", utils.NewAuthError(utils.AuthCodeInvalidHeader, "Token not found.", http.StatusUnauthorized)
	case len(parts) > 2:
		return "", utils.NewAuthError(utils.AuthCodeInvalidHeader, "Authorization header must be bearer token.", http.StatusUnauthorized)
	}
	return parts[1], nil
}

func abortAuth(c *gin.Context, err error, opts AuthOptions) {
	var authErr *utils.AuthError
	if !errors.As(err, &authErr) {
		utils.Fail(c, err)
		return
	}

	if opts.OnFailure != nil {
		opts.OnFailure(authErr.Code)
	}
	slog.InfoContext(c.Request.Context(), "认证失败",
		slog.String("path", c.Request.URL.Path),
		slog.String("code", authErr.Code),
		slog.String("request_id", c.GetString(utils.RequestIDKey)),
	)

	if opts.StrictStatus {
		utils.Error(c, authErr.Status, authErr.Description)
		return
	}
	utils.Unauthorized(c, authErr.Description)
}
