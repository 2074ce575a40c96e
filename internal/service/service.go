package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/rigo1357/saprotmon/config"
	"github.com/rigo1357/saprotmon/internal/client"
	"github.com/rigo1357/saprotmon/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Scheduler SchedulerService
	Catalog   CatalogService
	Export    ExportService
}

// Clients 外部服务客户端
type Clients struct {
	Catalog   client.CatalogClient
	Optimizer client.OptimizerClient
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	clients Clients,
	logger *zap.Logger,
) *Service {
	return &Service{
		Scheduler: NewSchedulerService(cfg, repo, clients, logger),
		Catalog:   NewCatalogService(repo, clients.Catalog, logger),
		Export:    NewExportService(repo, logger),
	}
}

// formatTime 统一的时间输出格式
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
