package builder

import (
	"strconv"
	"strings"

	"github.com/rigo1357/saprotmon/internal/model"
)

// CreditBudget 学分上下限
// 两者同时存在或同时为空：Min 永远由 Max 推导
type CreditBudget struct {
	Max *int `json:"max_credits,omitempty"`
	Min *int `json:"min_credits,omitempty"`
}

// MinCreditsFor 最低学分 = floor(max * 2 / 3)
func MinCreditsFor(maxCredits int) int {
	// 分解计算避免 maxCredits*2 溢出
	return 2*(maxCredits/3) + (2*(maxCredits%3))/3
}

// SetMax 解析用户输入的最大学分
// 空串清空上下限；非整数或负数拒绝且不修改状态
func (b *CreditBudget) SetMax(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		b.Max, b.Min = nil, nil
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return ErrInvalidCredits
	}
	lo := MinCreditsFor(v)
	b.Max, b.Min = &v, &lo
	return nil
}

// Clear 清空上下限
func (b *CreditBudget) Clear() {
	b.Max, b.Min = nil, nil
}

// MinOrZero 未设置时视为 0
func (b CreditBudget) MinOrZero() int {
	if b.Min == nil {
		return 0
	}
	return *b.Min
}

// MaxOrZero 未设置时视为 0
func (b CreditBudget) MaxOrZero() int {
	if b.Max == nil {
		return 0
	}
	return *b.Max
}

// CreditState 学分状态
type CreditState string

const (
	CreditUnder CreditState = "under"
	CreditOver  CreditState = "over"
	CreditOK    CreditState = "ok"
)

// CreditStatus 提交前学分检查结果（基于完整选课集合，仅作提示，不阻止提交）
type CreditStatus struct {
	Total           int         `json:"total"`
	Min             *int        `json:"min_credits,omitempty"`
	Max             *int        `json:"max_credits,omitempty"`
	State           CreditState `json:"state"`
	Deficit         int         `json:"deficit"`
	Excess          int         `json:"excess"`
	ProgressPercent float64     `json:"progress_percent"`
}

// Evaluate 评估已选课程学分
func (b CreditBudget) Evaluate(subjects []model.SelectedSubject) CreditStatus {
	total := sumCredits(subjects)
	lo, hi := b.MinOrZero(), b.MaxOrZero()

	st := CreditStatus{Total: total, Min: b.Min, Max: b.Max, State: CreditOK}
	if lo > 0 {
		st.ProgressPercent = float64(total) / float64(lo) * 100
		if st.ProgressPercent > 100 {
			st.ProgressPercent = 100
		}
	}

	switch {
	case total < lo:
		st.State = CreditUnder
		st.Deficit = lo - total
	case hi > 0 && total > hi:
		st.State = CreditOver
		st.Excess = total - hi
	}
	return st
}
