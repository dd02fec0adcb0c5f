package service

import (
	"context"
	"log/slog"
	"time"
)

// KeyRefresher 可刷新公钥的验证器
type KeyRefresher interface {
	Refresh(ctx context.Context) error
}

// KeyRefreshService 定时刷新 JWKS，避免请求路径上同步拉取
type KeyRefreshService struct {
	refresher KeyRefresher
	interval  time.Duration
	logger    *slog.Logger
}

// NewKeyRefreshService 创建刷新服务
func NewKeyRefreshService(refresher KeyRefresher, interval time.Duration, logger *slog.Logger) *KeyRefreshService {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyRefreshService{refresher: refresher, interval: interval, logger: logger}
}

// Start 启动定时任务，ctx 取消后退出
func (s *KeyRefreshService) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)

	// 启动时先运行一次
	go s.run(ctx)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run(ctx)
			}
		}
	}()
}

func (s *KeyRefreshService) run(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.refresher.Refresh(fetchCtx); err != nil {
		s.logger.Warn("[KeyRefresh] 刷新公钥失败", slog.Any("error", err))
		return
	}
	s.logger.Debug("[KeyRefresh] 公钥已刷新")
}
