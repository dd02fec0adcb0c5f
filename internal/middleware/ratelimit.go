package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"

	"github.com/user/casting/internal/utils"
)

// RateLimit 按客户端 IP 限流，perMinute <= 0 时不启用
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"success":false,"error":429,"message":"` + utils.ErrTooManyRequests.Message + `"}`))
		}),
	)

	return func(c *gin.Context) {
		allowed := false
		limiter(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			allowed = true
			c.Request = r
		})).ServeHTTP(c.Writer, c.Request)

		if !allowed {
			c.Abort()
			return
		}
		c.Next()
	}
}
