package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/rigo1357/saprotmon/internal/builder"
	"github.com/rigo1357/saprotmon/internal/client"
	"github.com/rigo1357/saprotmon/internal/dto"
	"github.com/rigo1357/saprotmon/internal/service"
	pkgerrors "github.com/rigo1357/saprotmon/pkg/errors"
	"github.com/rigo1357/saprotmon/pkg/response"
)

// SessionHandler 排课会话模块 HTTP 处理器
type SessionHandler struct {
	schedulerSvc service.SchedulerService
}

// NewSessionHandler 创建 SessionHandler
func NewSessionHandler(schedulerSvc service.SchedulerService) *SessionHandler {
	return &SessionHandler{schedulerSvc: schedulerSvc}
}

// ═══════════════════════════════════════════════════════════
// 会话
// ═══════════════════════════════════════════════════════════

// CreateSession 创建排课会话
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 17001, "参数校验失败")
		return
	}

	sess, err := h.schedulerSvc.CreateSession(requestContext(c), userID, &req)
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.Created(c, sess)
}

// GetSession 获取排课会话
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	sess, err := h.schedulerSvc.GetSession(requestContext(c), userID, c.Param("id"))
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, sess)
}

// DeleteSession 丢弃排课会话
// DELETE /api/v1/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.schedulerSvc.DeleteSession(requestContext(c), userID, c.Param("id")); err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, nil)
}

// ═══════════════════════════════════════════════════════════
// 表单字段
// ═══════════════════════════════════════════════════════════

// UpdateStudyInfo 更新学期与专业
// PUT /api/v1/sessions/:id/study-info
func (h *SessionHandler) UpdateStudyInfo(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateStudyInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 17001, "参数校验失败")
		return
	}

	sess, err := h.schedulerSvc.UpdateStudyInfo(requestContext(c), userID, c.Param("id"), &req)
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, sess)
}

// SetMaxCredits 设置最大学分
// PUT /api/v1/sessions/:id/max-credits
func (h *SessionHandler) SetMaxCredits(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SetMaxCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 17001, "参数校验失败")
		return
	}

	sess, err := h.schedulerSvc.SetMaxCredits(requestContext(c), userID, c.Param("id"), &req)
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, sess)
}

// SetTab 切换选课标签
// PUT /api/v1/sessions/:id/tab
func (h *SessionHandler) SetTab(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SetTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 17001, "参数校验失败")
		return
	}

	sess, err := h.schedulerSvc.SetTab(requestContext(c), userID, c.Param("id"), &req)
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, sess)
}

// ═══════════════════════════════════════════════════════════
// 选课
// ═══════════════════════════════════════════════════════════

// ToggleSubject 勾选 / 取消勾选课程
// POST /api/v1/sessions/:id/subjects/toggle
func (h *SessionHandler) ToggleSubject(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ToggleSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 17001, "参数校验失败")
		return
	}

	result, err := h.schedulerSvc.ToggleSubject(requestContext(c), userID, c.Param("id"), &req)
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, result)
}

// RemoveSubject 按原始课程码取消选择
// DELETE /api/v1/sessions/:id/subjects/:code
func (h *SessionHandler) RemoveSubject(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	sess, err := h.schedulerSvc.RemoveSubject(requestContext(c), userID, c.Param("id"), c.Param("code"))
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, sess)
}

// ReorderSubject 调整课程顺序（即调整优先级）
// POST /api/v1/sessions/:id/subjects/reorder
func (h *SessionHandler) ReorderSubject(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ReorderSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 17001, "参数校验失败")
		return
	}

	sess, err := h.schedulerSvc.ReorderSubject(requestContext(c), userID, c.Param("id"), &req)
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, sess)
}

// ═══════════════════════════════════════════════════════════
// 空闲时间与约束
// ═══════════════════════════════════════════════════════════

// SetFreeTime 整体替换空闲时间
// PUT /api/v1/sessions/:id/free-time
func (h *SessionHandler) SetFreeTime(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SetFreeTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 17005, "空闲时间格式无效")
		return
	}

	sess, err := h.schedulerSvc.SetFreeTime(requestContext(c), userID, c.Param("id"), &req)
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, sess)
}

// ToggleFreeTime 翻转单个空闲时间单元格
// POST /api/v1/sessions/:id/free-time/toggle
func (h *SessionHandler) ToggleFreeTime(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ToggleFreeTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 17001, "参数校验失败")
		return
	}

	sess, err := h.schedulerSvc.ToggleFreeTime(requestContext(c), userID, c.Param("id"), &req)
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, sess)
}

// UpdateConstraints 更新附加约束
// PUT /api/v1/sessions/:id/constraints
func (h *SessionHandler) UpdateConstraints(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateConstraintsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 17001, "参数校验失败")
		return
	}

	sess, err := h.schedulerSvc.UpdateConstraints(requestContext(c), userID, c.Param("id"), &req)
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, sess)
}

// ═══════════════════════════════════════════════════════════
// 生成课表
// ═══════════════════════════════════════════════════════════

// PreviewRequest 预览将要提交给优化器的请求体
// GET /api/v1/sessions/:id/request
func (h *SessionHandler) PreviewRequest(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	req, err := h.schedulerSvc.PreviewRequest(requestContext(c), userID, c.Param("id"))
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, req)
}

// Generate 提交优化器生成课表
// POST /api/v1/sessions/:id/generate
func (h *SessionHandler) Generate(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.schedulerSvc.Generate(requestContext(c), userID, c.Param("id"))
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, result)
}

// GetResult 获取最近一次成功的排课结果
// GET /api/v1/sessions/:id/result
func (h *SessionHandler) GetResult(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.schedulerSvc.GetResult(requestContext(c), userID, c.Param("id"))
	if err != nil {
		h.handleSchedulerError(c, err)
		return
	}

	response.OK(c, result)
}

// ── 错误映射 ──

func (h *SessionHandler) handleSchedulerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, builder.ErrInvalidCredits):
		response.BadRequest(c, 17002, "最大学分必须为非负整数")
	case errors.Is(err, builder.ErrInvalidTab):
		response.BadRequest(c, 17003, "选课标签无效")
	case errors.Is(err, builder.ErrInvalidDirection):
		response.BadRequest(c, 17004, "移动方向只能为 -1 或 1")
	case errors.Is(err, builder.ErrInvalidFreeTimeCell):
		response.BadRequest(c, 17005, "空闲时间单元格无效")
	case errors.Is(err, builder.ErrNoSubjectsSelected):
		response.BadRequest(c, 17006, "请至少选择一门课程")
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 17101, "排课会话不存在")
	case errors.Is(err, service.ErrNoScheduleResult):
		response.NotFound(c, 17102, "尚未生成课表")
	case errors.Is(err, builder.ErrGenerationInProgress):
		response.Conflict(c, 17201, "课表正在生成中，请稍候")
	case errors.Is(err, builder.ErrStaleAttempt):
		response.Conflict(c, 17202, "排课结果已被更新的请求取代")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 17203, "会话已被其他操作修改，请刷新后重试")
	case errors.Is(err, client.ErrOptimizerRejected):
		response.BadGateway(c, 17301, "排课优化器拒绝了请求", client.DetailOf(err))
	case errors.Is(err, client.ErrOptimizerUnavailable):
		response.BadGateway(c, 17302, "排课优化器不可用", err.Error())
	case errors.Is(err, client.ErrCatalogUnavailable):
		response.BadGateway(c, 17303, "课程目录服务不可用", err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
