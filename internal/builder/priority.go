package builder

import "github.com/rigo1357/saprotmon/internal/model"

const (
	maxPriority = 10
	minPriority = 1
	retakeBonus = 2
)

// PriorityAt 计算位于 index 的课程优先级
// priority = min(10, max(1, 10-index) + (重修 ? 2 : 0))
func PriorityAt(index int, isRetake bool) int {
	base := maxPriority - index
	if base < minPriority {
		base = minPriority
	}
	if isRetake {
		base += retakeBonus
	}
	if base > maxPriority {
		return maxPriority
	}
	return base
}

// Priorities 按当前顺序计算所有课程的优先级
func Priorities(subjects []model.SelectedSubject) []int {
	out := make([]int, len(subjects))
	for i, s := range subjects {
		out[i] = PriorityAt(i, s.IsRetake)
	}
	return out
}

// WithPriorities 返回附带实时优先级的副本，不修改入参
func WithPriorities(subjects []model.SelectedSubject) []model.SelectedSubject {
	out := make([]model.SelectedSubject, len(subjects))
	for i, s := range subjects {
		s.Priority = PriorityAt(i, s.IsRetake)
		out[i] = s
	}
	return out
}
