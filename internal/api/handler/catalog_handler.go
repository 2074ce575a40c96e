package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/rigo1357/saprotmon/internal/client"
	"github.com/rigo1357/saprotmon/internal/dto"
	"github.com/rigo1357/saprotmon/internal/service"
	"github.com/rigo1357/saprotmon/pkg/response"
)

// CatalogHandler 课程目录模块 HTTP 处理器
type CatalogHandler struct {
	catalogSvc service.CatalogService
}

// NewCatalogHandler 创建 CatalogHandler
func NewCatalogHandler(catalogSvc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogSvc: catalogSvc}
}

// Metadata 学期与专业列表
// GET /api/v1/catalog/metadata
func (h *CatalogHandler) Metadata(c *gin.Context) {
	meta, err := h.catalogSvc.Metadata(requestContext(c))
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}

	response.OK(c, meta)
}

// ListCourses 课程列表
// GET /api/v1/catalog/courses?semester=xxx&major=xxx&session_id=xxx
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CourseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 17001, "semester 不能为空")
		return
	}

	list, err := h.catalogSvc.ListCourses(requestContext(c), userID, &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}

	response.OK(c, list)
}

func (h *CatalogHandler) handleCatalogError(c *gin.Context, err error) {
	var se *client.StatusError
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 17101, "排课会话不存在")
	case errors.Is(err, client.ErrCatalogUnavailable):
		response.BadGateway(c, 17303, "课程目录服务不可用", err.Error())
	case errors.As(err, &se):
		response.BadGateway(c, 17304, "课程目录服务拒绝了请求", se.Detail)
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
