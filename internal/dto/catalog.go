package dto

import "github.com/rigo1357/saprotmon/internal/model"

// ── 课程目录 DTO ──

// CourseListRequest 课程列表查询参数
// SessionID 非空时标记该会话中已选 / 解析中的课程
type CourseListRequest struct {
	Semester  string `form:"semester"   binding:"required,max=64"`
	Major     string `form:"major"      binding:"max=128"`
	SessionID string `form:"session_id" binding:"omitempty,uuid"`
}

// CourseItem 课程列表项
type CourseItem struct {
	model.Course
	Selected bool `json:"selected"`
	Pending  bool `json:"pending"`
}

// CourseListResponse 课程列表响应
// 目录不可用时返回空列表并置 CatalogUnavailable
type CourseListResponse struct {
	Total              int          `json:"total"`
	Items              []CourseItem `json:"items"`
	CatalogUnavailable bool         `json:"catalog_unavailable"`
}

// CatalogMetadataResponse 学期与专业元数据
type CatalogMetadataResponse struct {
	Semesters []string `json:"semesters"`
	Majors    []string `json:"majors"`
}
