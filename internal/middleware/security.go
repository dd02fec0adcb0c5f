package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"

	"github.com/user/casting/internal/utils"
)

// SecureHeaders 设置安全响应头，生产环境强制 HTTPS
func SecureHeaders(production bool) gin.HandlerFunc {
	s := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		FeaturePolicy:         "none",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})

	return func(c *gin.Context) {
		err := s.Process(c.Writer, c.Request)
		// 已重定向到 HTTPS
		if status := c.Writer.Status(); status >= 300 && status < 400 {
			c.Abort()
			return
		}
		if err != nil {
			slog.WarnContext(c.Request.Context(), "安全头校验拒绝请求", slog.Any("error", err))
			utils.Error(c, utils.ErrBadRequest.Status, utils.ErrBadRequest.Message)
			return
		}
		c.Next()
	}
}
