package model

import "strings"

// sessionSuffixSep 课程目录为同一课程的不同班组生成 "<原始课程码>-G<n>" 形式的课程码
const sessionSuffixSep = "-G"

// Course 课程目录中的课程
// OriginalCode 在目录适配层始终被填充，是选课去重的键
type Course struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Credits      int    `json:"credits"`
	Department   string `json:"department,omitempty"`
	Major        string `json:"major,omitempty"`
	Semester     string `json:"semester,omitempty"`
	OriginalCode string `json:"original_code"`
	Day          string `json:"day,omitempty"`
}

// Session 课程的一个具体开课班组（固定星期、时间与起止日期）
type Session struct {
	Code         string `json:"code"`
	OriginalCode string `json:"original_code"`
	Name         string `json:"name"`
	Credits      int    `json:"credits"`
	Department   string `json:"department,omitempty"`
	Semester     string `json:"semester,omitempty"`
	Day          string `json:"day,omitempty"`
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	Group        string `json:"group,omitempty"`
}

// NormalizeOriginalCode 计算课程的原始课程码
// 优先使用目录显式给出的 original；否则截取 "-G" 之前的部分；都没有则为 code 本身
func NormalizeOriginalCode(code, original string) string {
	if o := strings.TrimSpace(original); o != "" {
		return o
	}
	code = strings.TrimSpace(code)
	if idx := strings.Index(code, sessionSuffixSep); idx > 0 {
		return code[:idx]
	}
	return code
}

// Normalize 补齐 OriginalCode
func (c *Course) Normalize() {
	c.OriginalCode = NormalizeOriginalCode(c.Code, c.OriginalCode)
}

// Normalize 补齐 OriginalCode
func (s *Session) Normalize() {
	s.OriginalCode = NormalizeOriginalCode(s.Code, s.OriginalCode)
}
