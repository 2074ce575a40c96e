package model

// SubjectTypeTheory 优化器要求的课程类型字段，本服务只提交理论课
const SubjectTypeTheory = "Lý thuyết"

// Tab 选课面板的当前标签
type Tab string

const (
	TabCurrent Tab = "current"
	TabRetake  Tab = "retake"
)

// Valid 判断标签是否合法
func (t Tab) Valid() bool {
	return t == TabCurrent || t == TabRetake
}

// SelectedSubject 提交给优化器的选课单元
// Priority 只在组装请求 / 渲染视图时按当前顺序实时计算，不作为持久状态
type SelectedSubject struct {
	Code         string `json:"code"`
	OriginalCode string `json:"original_code"`
	DisplayName  string `json:"displayName"`
	Name         string `json:"name"`
	Credits      int    `json:"credits"`
	Instructor   string `json:"instructor"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Day          string `json:"day,omitempty"`
	SubjectType  string `json:"subject_type"`
	IsRetake     bool   `json:"is_retake"`
	Priority     int    `json:"priority,omitempty"`
}
