package builder

import "github.com/rigo1357/saprotmon/internal/model"

// GroupByCell 按 time 字段分组，组内保持优化器返回顺序
// 不存在的键表示该单元格空闲
func GroupByCell(items []model.ScheduleItem) map[string][]model.ScheduleItem {
	out := make(map[string][]model.ScheduleItem)
	for _, it := range items {
		out[it.Time] = append(out[it.Time], it)
	}
	return out
}

// GridCell 周课表中的一个单元格
type GridCell struct {
	Day   model.DayTag         `json:"day"`
	Slot  string               `json:"slot"`
	Items []model.ScheduleItem `json:"items"`
}

// GridRow 一个时段在 7 天中的单元格
type GridRow struct {
	Period model.Period `json:"period"`
	Label  string       `json:"label"`
	Start  string       `json:"start"`
	End    string       `json:"end"`
	Cells  []GridCell   `json:"cells"`
}

// BuildGrid 将单元格映射展开为 3 行 × 7 列的有序网格
func BuildGrid(cells map[string][]model.ScheduleItem) []GridRow {
	rows := make([]GridRow, 0, len(model.Periods))
	for _, p := range model.Periods {
		start, end := p.ClockRange()
		row := GridRow{Period: p, Label: p.Label(), Start: start, End: end, Cells: make([]GridCell, 0, len(model.Days))}
		for _, d := range model.Days {
			key := model.SlotKey(d, p)
			items := cells[key]
			if items == nil {
				items = []model.ScheduleItem{}
			}
			row.Cells = append(row.Cells, GridCell{Day: d, Slot: key, Items: items})
		}
		rows = append(rows, row)
	}
	return rows
}

// CreditDiagnosis 优化结果返回后的学分诊断
// 与 CreditStatus（提交前检查）相互独立，分别展示
type CreditDiagnosis struct {
	ScheduledCredits int      `json:"scheduled_credits"`
	MinCredits       int      `json:"min_credits"`
	Insufficient     bool     `json:"insufficient"`
	Deficit          int      `json:"deficit"`
	DroppedSubjects  []string `json:"dropped_subjects"`
}

// DiagnoseCredits 扣除冲突移除的课程后重新计算学分
// 按 SelectedSubject.Name 与 ConflictEntry.Subject 匹配
func DiagnoseCredits(subjects []model.SelectedSubject, conflicts []model.ConflictEntry, minCredits *int) CreditDiagnosis {
	dropped := make(map[string]struct{}, len(conflicts))
	for _, c := range conflicts {
		dropped[c.Subject] = struct{}{}
	}

	d := CreditDiagnosis{DroppedSubjects: []string{}}
	for _, s := range subjects {
		if _, ok := dropped[s.Name]; ok {
			d.DroppedSubjects = append(d.DroppedSubjects, s.Name)
			continue
		}
		d.ScheduledCredits += s.Credits
	}
	if minCredits != nil {
		d.MinCredits = *minCredits
	}
	if d.ScheduledCredits < d.MinCredits {
		d.Insufficient = true
		d.Deficit = d.MinCredits - d.ScheduledCredits
	}
	return d
}
