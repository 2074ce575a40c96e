package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DayTag 星期标签（越南课表惯例：T2=周一 … CN=周日）
type DayTag string

const (
	DayMon DayTag = "T2"
	DayTue DayTag = "T3"
	DayWed DayTag = "T4"
	DayThu DayTag = "T5"
	DayFri DayTag = "T6"
	DaySat DayTag = "T7"
	DaySun DayTag = "CN"
)

// Days 规范顺序的 7 个星期标签
var Days = [7]DayTag{DayMon, DayTue, DayWed, DayThu, DayFri, DaySat, DaySun}

// Period 一天内的时段
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

// Periods 规范顺序的 3 个时段
var Periods = [3]Period{PeriodMorning, PeriodAfternoon, PeriodEvening}

// periodLabels 时段在槽位字符串中的标签，必须与优化器约定一致
var periodLabels = [3]string{"Sáng", "Chiều", "Tối"}

// periodClock 时段对应的上课钟点范围（每节 45 分钟）
var periodClock = [3][2]string{
	{"07:30", "11:15"},
	{"12:30", "16:15"},
	{"17:30", "21:15"},
}

// DayIndex 返回星期标签在规范顺序中的下标
func DayIndex(d DayTag) (int, bool) {
	for i, v := range Days {
		if v == d {
			return i, true
		}
	}
	return 0, false
}

// PeriodIndex 返回时段在规范顺序中的下标
func PeriodIndex(p Period) (int, bool) {
	for i, v := range Periods {
		if v == p {
			return i, true
		}
	}
	return 0, false
}

// Label 时段标签（Sáng / Chiều / Tối）
func (p Period) Label() string {
	if i, ok := PeriodIndex(p); ok {
		return periodLabels[i]
	}
	return ""
}

// ClockRange 时段的起止钟点
func (p Period) ClockRange() (string, string) {
	if i, ok := PeriodIndex(p); ok {
		return periodClock[i][0], periodClock[i][1]
	}
	return "", ""
}

// SlotKey 构造 "<day>_<label>" 槽位字符串
func SlotKey(d DayTag, p Period) string {
	return string(d) + "_" + p.Label()
}

// DayAvailability 单日三个时段的空闲标记
type DayAvailability struct {
	Morning   bool `json:"morning"`
	Afternoon bool `json:"afternoon"`
	Evening   bool `json:"evening"`
}

// FreeTimeGrid 7×3 空闲时间矩阵
// 固定 21 个单元格；未出现的单元格一律视为不空闲
type FreeTimeGrid struct {
	cells [7][3]bool
}

// Set 设置某个单元格
func (g *FreeTimeGrid) Set(d DayTag, p Period, free bool) error {
	di, ok := DayIndex(d)
	if !ok {
		return fmt.Errorf("未知星期标签 %q", d)
	}
	pi, ok := PeriodIndex(p)
	if !ok {
		return fmt.Errorf("未知时段 %q", p)
	}
	g.cells[di][pi] = free
	return nil
}

// Toggle 翻转某个单元格
func (g *FreeTimeGrid) Toggle(d DayTag, p Period) error {
	return g.Set(d, p, !g.IsFree(d, p))
}

// IsFree 查询某个单元格，非法坐标视为不空闲
func (g FreeTimeGrid) IsFree(d DayTag, p Period) bool {
	di, ok := DayIndex(d)
	if !ok {
		return false
	}
	pi, ok := PeriodIndex(p)
	if !ok {
		return false
	}
	return g.cells[di][pi]
}

// FreeCount 空闲单元格数量
func (g FreeTimeGrid) FreeCount() int {
	n := 0
	for _, day := range g.cells {
		for _, free := range day {
			if free {
				n++
			}
		}
	}
	return n
}

// Day 返回某天的三个时段
func (g FreeTimeGrid) Day(d DayTag) DayAvailability {
	return DayAvailability{
		Morning:   g.IsFree(d, PeriodMorning),
		Afternoon: g.IsFree(d, PeriodAfternoon),
		Evening:   g.IsFree(d, PeriodEvening),
	}
}

// MarshalJSON 输出完整的 7 天映射
func (g FreeTimeGrid) MarshalJSON() ([]byte, error) {
	out := make(map[DayTag]DayAvailability, len(Days))
	for _, d := range Days {
		out[d] = g.Day(d)
	}
	return json.Marshal(out)
}

// UnmarshalJSON 接受 day→{morning,afternoon,evening} 映射，缺失项视为 false
func (g *FreeTimeGrid) UnmarshalJSON(data []byte) error {
	var in map[DayTag]DayAvailability
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var grid FreeTimeGrid
	for d, a := range in {
		di, ok := DayIndex(d)
		if !ok {
			return fmt.Errorf("未知星期标签 %q", d)
		}
		grid.cells[di] = [3]bool{a.Morning, a.Afternoon, a.Evening}
	}
	*g = grid
	return nil
}

// ParseSlotKey 解析 "<day>_<label>" 槽位字符串
func ParseSlotKey(key string) (DayTag, Period, bool) {
	day, label, ok := strings.Cut(key, "_")
	if !ok {
		return "", "", false
	}
	if _, found := DayIndex(DayTag(day)); !found {
		return "", "", false
	}
	for i, l := range periodLabels {
		if l == label {
			return DayTag(day), Periods[i], true
		}
	}
	return "", "", false
}
