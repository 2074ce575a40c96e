package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rigo1357/saprotmon/config"
	"github.com/rigo1357/saprotmon/internal/api/handler"
	"github.com/rigo1357/saprotmon/internal/api/router"
	"github.com/rigo1357/saprotmon/internal/client"
	"github.com/rigo1357/saprotmon/internal/repository"
	"github.com/rigo1357/saprotmon/internal/service"
	"github.com/rigo1357/saprotmon/pkg/jwt"
	applogger "github.com/rigo1357/saprotmon/pkg/logger"
	"github.com/rigo1357/saprotmon/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("SMART_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("catalog", cfg.Catalog.BaseURL),
		zap.String("optimizer", cfg.Optimizer.BaseURL),
	)

	// 3. 连接 Redis（可选：连接失败时降级为进程内存储，不中断启动）
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，排课会话改用进程内存储，生成接口不限流", zap.Error(err))
			rdb = nil
		}
	} else {
		logger.Info("未启用 Redis，排课会话使用进程内存储")
	}

	// 4. 初始化 JWT 校验器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 5. 依赖注入: Repository / Client → Service → Handler
	repo := repository.NewRepository(rdb, cfg.Session.TTL)
	clients := service.Clients{
		Catalog:   client.NewCatalogClient(&cfg.Catalog, logger),
		Optimizer: client.NewOptimizerClient(&cfg.Optimizer, logger),
	}
	svc := service.NewService(cfg, repo, clients, logger)
	h := handler.NewHandler(svc)

	// 6. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 7. 启动 HTTP 服务器（优雅关闭）
	// 写超时需覆盖一次完整的优化器调用
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Optimizer.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 8. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
