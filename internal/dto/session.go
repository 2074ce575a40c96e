package dto

import (
	"github.com/rigo1357/saprotmon/internal/builder"
	"github.com/rigo1357/saprotmon/internal/model"
)

// ── 排课会话 DTO ──

// CreateSessionRequest 创建排课会话请求
type CreateSessionRequest struct {
	Semester   string `json:"semester"    binding:"max=64"`
	Major      string `json:"major"       binding:"max=128"`
	MaxCredits string `json:"max_credits" binding:"max=8"`
}

// UpdateStudyInfoRequest 更新学期 / 专业请求
type UpdateStudyInfoRequest struct {
	Semester string `json:"semester" binding:"required,max=64"`
	Major    string `json:"major"    binding:"max=128"`
}

// SetMaxCreditsRequest 设置最大学分请求
// 原样接收用户输入，空串表示清空
type SetMaxCreditsRequest struct {
	MaxCredits string `json:"max_credits" binding:"max=8"`
}

// SetTabRequest 切换选课标签请求
type SetTabRequest struct {
	Tab string `json:"tab" binding:"required"`
}

// ToggleSubjectRequest 勾选 / 取消勾选课程请求
type ToggleSubjectRequest struct {
	Code         string `json:"code"          binding:"required,max=64"`
	OriginalCode string `json:"original_code" binding:"max=64"`
	Name         string `json:"name"          binding:"max=256"`
	Credits      int    `json:"credits"       binding:"min=0,max=60"`
	Department   string `json:"department"`
	Major        string `json:"major"`
	Semester     string `json:"semester"`
	Day          string `json:"day"`
}

// ToCourse 转换为目录课程
func (r *ToggleSubjectRequest) ToCourse() model.Course {
	return model.Course{
		Code:         r.Code,
		OriginalCode: r.OriginalCode,
		Name:         r.Name,
		Credits:      r.Credits,
		Department:   r.Department,
		Major:        r.Major,
		Semester:     r.Semester,
		Day:          r.Day,
	}
}

// ReorderSubjectRequest 调整课程顺序请求
type ReorderSubjectRequest struct {
	Index     *int `json:"index"     binding:"required,min=0"`
	Direction int  `json:"direction" binding:"required"`
}

// SetFreeTimeRequest 整体替换空闲时间请求
type SetFreeTimeRequest struct {
	FreeTime model.FreeTimeGrid `json:"free_time"`
}

// ToggleFreeTimeRequest 翻转单个空闲时间单元格请求
type ToggleFreeTimeRequest struct {
	Day    string `json:"day"    binding:"required"`
	Period string `json:"period" binding:"required"`
}

// UpdateConstraintsRequest 更新附加约束请求（字段为空表示不修改）
type UpdateConstraintsRequest struct {
	AvoidConsecutive *bool `json:"avoidConsecutive"`
	BalanceDays      *bool `json:"balanceDays"`
	PreferMorning    *bool `json:"preferMorning"`
	AllowSaturday    *bool `json:"allowSaturday"`
}

// Apply 将非空字段应用到约束集合
func (r *UpdateConstraintsRequest) Apply(c model.ConstraintSet) model.ConstraintSet {
	if r.AvoidConsecutive != nil {
		c.AvoidConsecutive = *r.AvoidConsecutive
	}
	if r.BalanceDays != nil {
		c.BalanceDays = *r.BalanceDays
	}
	if r.PreferMorning != nil {
		c.PreferMorning = *r.PreferMorning
	}
	if r.AllowSaturday != nil {
		c.AllowSaturday = *r.AllowSaturday
	}
	return c
}

// ── 响应 ──

// GenerationResponse 生成状态
type GenerationResponse struct {
	Phase      builder.Phase `json:"phase"`
	AttemptID  string        `json:"attempt_id,omitempty"`
	StartedAt  string        `json:"started_at,omitempty"`
	Deadline   string        `json:"deadline,omitempty"`
	FinishedAt string        `json:"finished_at,omitempty"`
	Error      string        `json:"error,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	HasResult  bool          `json:"has_result"`
}

// SessionResponse 排课会话视图
type SessionResponse struct {
	ID           string                  `json:"id"`
	Semester     string                  `json:"semester"`
	Major        string                  `json:"major"`
	Tab          model.Tab               `json:"tab"`
	MaxCredits   *int                    `json:"max_credits"`
	MinCredits   *int                    `json:"min_credits"`
	Subjects     []model.SelectedSubject `json:"subjects"`
	Pending      []string                `json:"pending"`
	CreditStatus builder.CreditStatus    `json:"credit_status"`
	FreeTime     model.FreeTimeGrid      `json:"free_time"`
	Slots        []string                `json:"available_time_slots"`
	Constraints  model.ConstraintSet     `json:"constraints"`
	Generation   GenerationResponse      `json:"generation"`
	Version      int                     `json:"version"`
	CreatedAt    string                  `json:"created_at"`
	UpdatedAt    string                  `json:"updated_at"`
}

// ToggleResponse 勾选结果
// Action: removed / cancelled / added / discarded
type ToggleResponse struct {
	Action  string                 `json:"action"`
	Subject *model.SelectedSubject `json:"subject,omitempty"`
	Session *SessionResponse       `json:"session"`
}

// ScheduleResultResponse 排课结果视图
//
// PreCheck 为提交时基于完整选课的学分检查，Diagnosis 为扣除冲突课程后的诊断，两者分别展示
type ScheduleResultResponse struct {
	AttemptID           string                          `json:"attempt_id"`
	Schedule            []model.ScheduleItem            `json:"schedule"`
	Cost                float64                         `json:"cost"`
	Cells               map[string][]model.ScheduleItem `json:"cells"`
	Grid                []builder.GridRow               `json:"grid"`
	Conflicts           []model.ConflictEntry           `json:"conflicts"`
	AlternativeSessions []model.AlternativeSession      `json:"alternative_sessions"`
	PreCheck            builder.CreditStatus            `json:"pre_check"`
	Diagnosis           builder.CreditDiagnosis         `json:"diagnosis"`
	GeneratedAt         string                          `json:"generated_at"`
}
