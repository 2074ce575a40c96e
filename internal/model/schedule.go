package model

// ScheduleItem 优化器排入某个槽位的课程
type ScheduleItem struct {
	Time       string `json:"time"` // "<day>_<label>"
	Subject    string `json:"subject"`
	Instructor string `json:"instructor"`
	Sessions   int    `json:"sessions,omitempty"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
	Priority   int    `json:"priority,omitempty"`
	IsRetake   bool   `json:"is_retake"`
}

// ConflictEntry 因冲突被优化器移除的课程
type ConflictEntry struct {
	Subject  string `json:"subject"`
	KeptWith string `json:"kept_with,omitempty"`
	Reason   string `json:"reason"`
}

// AlternativeSession 优化器自动换班记录
type AlternativeSession struct {
	Original        string `json:"original"`
	Alternative     string `json:"alternative"`
	OriginalTime    string `json:"original_time,omitempty"`
	AlternativeTime string `json:"alternative_time,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// ScheduleResult 一次成功的优化调用结果
type ScheduleResult struct {
	Schedule            []ScheduleItem       `json:"schedule"`
	Cost                float64              `json:"cost"`
	RemovedConflicts    []ConflictEntry      `json:"removed_conflicts"`
	AlternativeSessions []AlternativeSession `json:"alternative_sessions,omitempty"`
}
