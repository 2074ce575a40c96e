package model

// ConstraintSet 附加约束开关，原样透传给优化器
type ConstraintSet struct {
	AvoidConsecutive bool `json:"avoidConsecutive"`
	BalanceDays      bool `json:"balanceDays"`
	PreferMorning    bool `json:"preferMorning"`
	AllowSaturday    bool `json:"allowSaturday"`
}

// DefaultConstraints 新会话的默认约束
func DefaultConstraints() ConstraintSet {
	return ConstraintSet{AvoidConsecutive: true, BalanceDays: true}
}
