package handler

import "github.com/rigo1357/saprotmon/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Session *SessionHandler
	Catalog *CatalogHandler
	Export  *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Session: NewSessionHandler(svc.Scheduler),
		Catalog: NewCatalogHandler(svc.Catalog),
		Export:  NewExportHandler(svc.Export),
	}
}
