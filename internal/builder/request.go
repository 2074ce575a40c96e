package builder

import "github.com/rigo1357/saprotmon/internal/model"

// ScheduleRequest 发往优化器的请求体
type ScheduleRequest struct {
	Subjects              []model.SelectedSubject `json:"subjects"`
	AvailableTimeSlots    []string                `json:"available_time_slots"`
	Constraints           map[string][]string     `json:"constraints"`
	AdditionalConstraints model.ConstraintSet     `json:"additionalConstraints"`
}

// BuildSlots 按星期优先、时段次之的规范顺序输出空闲槽位
// 结果永不为 nil，空网格序列化为 []
func BuildSlots(grid model.FreeTimeGrid) []string {
	slots := make([]string, 0, grid.FreeCount())
	for _, d := range model.Days {
		for _, p := range model.Periods {
			if grid.IsFree(d, p) {
				slots = append(slots, model.SlotKey(d, p))
			}
		}
	}
	return slots
}

// BuildPayload 组装优化器请求
// 优先级按当前顺序重新计算；未选课程时返回 ErrNoSubjectsSelected
func BuildPayload(subjects []model.SelectedSubject, slots []string, constraints model.ConstraintSet) (ScheduleRequest, error) {
	if len(subjects) == 0 {
		return ScheduleRequest{}, ErrNoSubjectsSelected
	}
	if slots == nil {
		slots = []string{}
	}
	return ScheduleRequest{
		Subjects:              WithPriorities(subjects),
		AvailableTimeSlots:    slots,
		Constraints:           map[string][]string{},
		AdditionalConstraints: constraints,
	}, nil
}
