// Package builder 实现排课请求构建的核心领域逻辑：
// 选课集合、优先级推导、学分预算、请求组装与优化结果解读。
//
// 包内全部为纯函数与同步状态迁移，不做任何 I/O；
// 目录查询、优化器调用与持久化由 service 层编排。
package builder

import "errors"

// ── 构建器业务错误 ──

var (
	ErrNoSubjectsSelected   = errors.New("请至少选择一门课程")
	ErrInvalidCredits       = errors.New("最大学分必须为非负整数")
	ErrInvalidDirection     = errors.New("移动方向只能为 -1 或 +1")
	ErrInvalidTab           = errors.New("选课标签只能为 current 或 retake")
	ErrInvalidFreeTimeCell  = errors.New("空闲时间单元格不合法")
	ErrStaleResolution      = errors.New("课程班组解析结果已失效")
	ErrGenerationInProgress = errors.New("已有排课请求正在处理中")
	ErrStaleAttempt         = errors.New("排课尝试已失效")
)
