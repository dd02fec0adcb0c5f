package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/user/casting/internal/config"
	"github.com/user/casting/internal/handler"
	"github.com/user/casting/internal/middleware"
	"github.com/user/casting/internal/repository"
	"github.com/user/casting/internal/router"
	"github.com/user/casting/internal/service"
	"github.com/user/casting/internal/utils"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		slog.Info("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		slog.Error("配置加载失败", slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// 初始化数据库
	db, err := repository.InitDB(cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		logger.Error("数据库连接失败", slog.Any("error", err))
		os.Exit(1)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DBReset {
		// 会清空全部数据
		logger.Warn("DB_RESET 已开启，重建数据表并写入示例数据")
		if err := repository.Reset(ctx, db); err != nil {
			logger.Error("重建数据表失败", slog.Any("error", err))
			os.Exit(1)
		}
	} else if err := repository.AutoMigrate(db); err != nil {
		logger.Error("数据表迁移失败", slog.Any("error", err))
		os.Exit(1)
	}

	// 初始化仓库
	repos := repository.NewRepositories(db)

	// 令牌验证
	verifier := service.NewTokenVerifier(service.VerifierConfig{
		Issuer:         cfg.TokenIssuer(),
		Audience:       cfg.APIAudience,
		Algorithms:     cfg.AuthAlgorithms,
		HS256Secret:    cfg.HS256Secret,
		JWKSURL:        cfg.JWKSEndpoint(),
		KeyCacheTTL:    cfg.JWKSCacheTTL,
		TokenCacheSize: cfg.TokenCacheSize,
		Leeway:         cfg.AuthLeeway,
	}, nil, logger)
	if verifier.UsesSharedSecret() {
		logger.Warn("使用 HS256 共享密钥验证令牌，仅用于本地开发")
	} else {
		// 启动定时刷新公钥
		service.NewKeyRefreshService(verifier, verifier.KeyCacheTTL()/2, logger).Start(ctx)
	}

	if err := handler.RegisterValidators(); err != nil {
		logger.Error("注册校验规则失败", slog.Any("error", err))
		os.Exit(1)
	}

	// 初始化 Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	var metrics *middleware.Metrics
	if cfg.MetricsEnabled {
		metrics = middleware.NewMetrics()
	}

	// 中间件
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(metrics.Middleware())
	r.Use(middleware.SecureHeaders(cfg.IsProduction()))
	r.Use(middleware.CORS(cfg.CORSAllowOrigins))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	// 启用 gzip，默认压缩级别
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 初始化 Handler
	h := handler.NewHandler(repos)

	// 注册路由
	authOpts := middleware.AuthOptions{StrictStatus: cfg.StrictAuthStatus}
	if metrics != nil {
		authOpts.OnFailure = metrics.AuthFailed
	}
	router.RegisterRoutes(r, h, verifier, router.Options{Auth: authOpts, Metrics: metrics})

	// 配置 HTTP 服务器
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		logger.Info("服务器启动", slog.String("addr", "http://localhost:"+cfg.Port), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("服务器启动失败", slog.Any("error", err))
			stop()
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	<-ctx.Done()
	logger.Info("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器强制关闭", slog.Any("error", err))
		return
	}

	logger.Info("服务器已退出")
}
