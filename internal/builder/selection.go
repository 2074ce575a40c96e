package builder

import (
	"time"

	"github.com/rigo1357/saprotmon/internal/model"
)

// 无可用开课班组时的默认时间窗
const (
	defaultStartTime    = "07:00"
	defaultEndTime      = "11:30"
	defaultValidityDays = 90
	defaultCredits      = 3
	dateLayout          = "2006-01-02"
)

// SelectionSet 有序且按原始课程码去重的选课集合
// 顺序即插入顺序，只能由 Toggle / Reorder 改变
type SelectionSet struct {
	Subjects []model.SelectedSubject `json:"subjects"`
}

// Len 已选课程数
func (s SelectionSet) Len() int {
	return len(s.Subjects)
}

// Items 返回已选课程的副本
func (s SelectionSet) Items() []model.SelectedSubject {
	out := make([]model.SelectedSubject, len(s.Subjects))
	copy(out, s.Subjects)
	return out
}

// entryOriginalCode 兼容历史数据：旧条目可能未保存 original_code
func entryOriginalCode(e model.SelectedSubject) string {
	return model.NormalizeOriginalCode(e.Code, e.OriginalCode)
}

// matches 三路匹配：原始课程码相同 / 课程码完全相同 / 已选条目的课程码等于候选的原始课程码
func matches(e model.SelectedSubject, course model.Course) bool {
	orig := course.OriginalCode
	return entryOriginalCode(e) == orig || e.Code == course.Code || e.Code == orig
}

// Contains 判断课程是否已被选中
func (s SelectionSet) Contains(course model.Course) bool {
	course.Normalize()
	for _, e := range s.Subjects {
		if matches(e, course) {
			return true
		}
	}
	return false
}

// ContainsOriginal 按原始课程码判断是否已选
func (s SelectionSet) ContainsOriginal(originalCode string) bool {
	return s.Contains(model.Course{Code: originalCode, OriginalCode: originalCode})
}

// remove 删除所有与课程匹配的条目，返回删除数量
func (s *SelectionSet) remove(course model.Course) int {
	kept := make([]model.SelectedSubject, 0, len(s.Subjects))
	removed := 0
	for _, e := range s.Subjects {
		if matches(e, course) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.Subjects = kept
	return removed
}

// add 追加新条目；已存在同一原始课程码时拒绝
func (s *SelectionSet) add(sub model.SelectedSubject) bool {
	if s.Contains(model.Course{Code: sub.Code, OriginalCode: entryOriginalCode(sub)}) {
		return false
	}
	s.Subjects = append(s.Subjects, sub)
	return true
}

// Reorder 将 index 处的条目移动到 index+direction
// 目标越界时为空操作（返回 false）
func (s *SelectionSet) Reorder(index, direction int) (bool, error) {
	if direction != -1 && direction != 1 {
		return false, ErrInvalidDirection
	}
	if index < 0 || index >= len(s.Subjects) {
		return false, nil
	}
	target := index + direction
	if target < 0 || target >= len(s.Subjects) {
		return false, nil
	}
	s.Subjects[index], s.Subjects[target] = s.Subjects[target], s.Subjects[index]
	return true, nil
}

// TotalCredits 已选课程学分合计
func (s SelectionSet) TotalCredits() int {
	return sumCredits(s.Subjects)
}

func sumCredits(subjects []model.SelectedSubject) int {
	total := 0
	for _, sub := range subjects {
		total += sub.Credits
	}
	return total
}

// BuildSubject 由课程与解析到的开课班组构造选课单元
//
// 会话解析策略：
//   - lookupErr 为空且 sessions 非空时只取第一个班组（按目录顺序）
//   - 无班组或查询失败时按课程本身构造，使用 07:00-11:30 与自 today 起 90 天的默认窗口
func BuildSubject(course model.Course, sessions []model.Session, lookupErr error, isRetake bool, today time.Time) model.SelectedSubject {
	course.Normalize()

	startDate := today.Format(dateLayout)
	endDate := today.AddDate(0, 0, defaultValidityDays).Format(dateLayout)

	if lookupErr == nil && len(sessions) > 0 {
		first := sessions[0]
		code := orDefault(first.Code, course.Code)
		display := orDefault(first.Name, course.Name)
		credits := first.Credits
		if credits <= 0 {
			credits = course.Credits
		}
		return model.SelectedSubject{
			Code:         code,
			OriginalCode: course.OriginalCode,
			DisplayName:  display,
			Name:         code + " - " + display,
			Credits:      creditsOrDefault(credits),
			Instructor:   orDefault(first.Department, course.Department),
			StartTime:    orDefault(first.StartTime, defaultStartTime),
			EndTime:      orDefault(first.EndTime, defaultEndTime),
			StartDate:    orDefault(first.StartDate, startDate),
			EndDate:      orDefault(first.EndDate, endDate),
			Day:          orDefault(first.Day, course.Day),
			SubjectType:  model.SubjectTypeTheory,
			IsRetake:     isRetake,
		}
	}

	return model.SelectedSubject{
		Code:         course.Code,
		OriginalCode: course.OriginalCode,
		DisplayName:  course.Name,
		Name:         course.Code + " - " + course.Name,
		Credits:      creditsOrDefault(course.Credits),
		Instructor:   course.Department,
		StartTime:    defaultStartTime,
		EndTime:      defaultEndTime,
		StartDate:    startDate,
		EndDate:      endDate,
		Day:          course.Day,
		SubjectType:  model.SubjectTypeTheory,
		IsRetake:     isRetake,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func creditsOrDefault(c int) int {
	if c <= 0 {
		return defaultCredits
	}
	return c
}
