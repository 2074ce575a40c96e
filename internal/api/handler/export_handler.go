package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/rigo1357/saprotmon/internal/service"
	"github.com/rigo1357/saprotmon/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportSchedule 导出最近一次成功的课表
// GET /api/v1/sessions/:id/export?format=xlsx|ics
func (h *ExportHandler) ExportSchedule(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var (
		export      func(context.Context, string, string) (*bytes.Buffer, string, error)
		contentType string
	)
	switch c.DefaultQuery("format", "xlsx") {
	case "xlsx":
		export, contentType = h.exportSvc.ExportXLSX, contentTypeXLSX
	case "ics":
		export, contentType = h.exportSvc.ExportICS, contentTypeICS
	default:
		response.BadRequest(c, 17007, "format 只能为 xlsx 或 ics")
		return
	}

	buf, filename, err := export(requestContext(c), userID, c.Param("id"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 17101, "排课会话不存在")
	case errors.Is(err, service.ErrNoScheduleResult):
		response.NotFound(c, 17102, "尚未生成课表")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
