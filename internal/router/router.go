package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/user/casting/internal/handler"
	"github.com/user/casting/internal/middleware"
	"github.com/user/casting/internal/service"
	"github.com/user/casting/internal/utils"
)

// Options 路由选项
type Options struct {
	Auth middleware.AuthOptions
	// Metrics 为 nil 时不暴露 /metrics
	Metrics *middleware.Metrics
}

// Route 受保护的 API 路由
type Route struct {
	Method     string
	Path       string
	Permission string
	Handle     gin.HandlerFunc
}

// Routes 路由与所需权限
func Routes(h *handler.Handler) []Route {
	return []Route{
		{http.MethodGet, "/actors", service.PermGetActors, h.ListActors},
		{http.MethodPost, "/actors", service.PermAddActor, h.CreateActor},
		{http.MethodPatch, "/actors/:id", service.PermModifyActor, h.UpdateActor},
		{http.MethodDelete, "/actors/:id", service.PermDeleteActor, h.DeleteActor},

		{http.MethodGet, "/movies", service.PermGetMovies, h.ListMovies},
		{http.MethodPost, "/movies", service.PermAddMovie, h.CreateMovie},
		{http.MethodPatch, "/movies/:id", service.PermModifyMovie, h.UpdateMovie},
		{http.MethodDelete, "/movies/:id", service.PermDeleteMovie, h.DeleteMovie},
	}
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler, verifier middleware.TokenVerifier, opts Options) {
	r.HandleMethodNotAllowed = true
	r.NoRoute(utils.NotFound)
	r.NoMethod(func(c *gin.Context) {
		utils.Error(c, utils.ErrMethodNotAllowed.Status, utils.ErrMethodNotAllowed.Message)
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// ==================== 业务 API（需要令牌）====================
	api := r.Group("/")
	api.Use(middleware.Authenticate(verifier, opts.Auth))
	for _, rt := range Routes(h) {
		api.Handle(rt.Method, rt.Path, middleware.RequirePermission(rt.Permission, opts.Auth), rt.Handle)
	}
}
