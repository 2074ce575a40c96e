package builder

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rigo1357/saprotmon/internal/model"
)

var testToday = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func subj(code string, credits int, retake bool) model.SelectedSubject {
	return model.SelectedSubject{
		Code:         code,
		OriginalCode: code,
		DisplayName:  code,
		Name:         code + " - " + code,
		Credits:      credits,
		IsRetake:     retake,
	}
}

// toggleOn 模拟 service 层的两阶段勾选
func toggleOn(t *testing.T, s *SchedulingSession, c model.Course, sessions []model.Session) ToggleTicket {
	t.Helper()
	ticket := s.BeginToggle(c)
	if ticket.Action != TogglePending {
		return ticket
	}
	sub := BuildSubject(ticket.Course, sessions, nil, ticket.IsRetake, testToday)
	if err := s.CompleteToggle(ticket.Course.OriginalCode, ticket.Token, sub); err != nil {
		t.Fatalf("CompleteToggle 失败: %v", err)
	}
	return ticket
}

// ── 优先级 ──

func TestPriorityAt(t *testing.T) {
	tests := []struct {
		index  int
		retake bool
		want   int
	}{
		{0, false, 10},
		{1, false, 9},
		{9, false, 1},
		{15, false, 1},
		{0, true, 10},
		{1, true, 10},
		{3, true, 9},
		{20, true, 3},
	}
	for _, tt := range tests {
		if got := PriorityAt(tt.index, tt.retake); got != tt.want {
			t.Errorf("PriorityAt(%d,%v)=%d，期望 %d", tt.index, tt.retake, got, tt.want)
		}
	}
}

func TestPriorityAt_BoundsAndMonotonic(t *testing.T) {
	for _, retake := range []bool{false, true} {
		prev := PriorityAt(0, retake)
		for i := 0; i < 40; i++ {
			p := PriorityAt(i, retake)
			if p < 1 || p > 10 {
				t.Fatalf("优先级越界: index=%d retake=%v p=%d", i, retake, p)
			}
			if p > prev {
				t.Fatalf("优先级应随位置单调不增: index=%d", i)
			}
			prev = p
		}
	}
	for i := 0; i < 40; i++ {
		if PriorityAt(i, true) < PriorityAt(i, false) {
			t.Fatalf("重修优先级不应低于非重修: index=%d", i)
		}
	}
}

// 场景 4：优先级跟随位置而非课程
func TestReorder_PrioritiesFollowPosition(t *testing.T) {
	set := SelectionSet{Subjects: []model.SelectedSubject{subj("A", 3, false), subj("B", 3, false), subj("C", 3, false)}}

	// 前置一个占位，使 A B C 的优先级为 9 8 7
	set.Subjects = append([]model.SelectedSubject{subj("Z", 3, false)}, set.Subjects...)
	if got := Priorities(set.Subjects)[1:]; !reflect.DeepEqual(got, []int{9, 8, 7}) {
		t.Fatalf("期望 [9 8 7]，实际: %v", got)
	}

	// 将 C 移到 A 之前
	for _, idx := range []int{3, 2} {
		ok, err := set.Reorder(idx, -1)
		if err != nil || !ok {
			t.Fatalf("Reorder(%d,-1) 失败: %v %v", idx, ok, err)
		}
	}
	codes := []string{set.Subjects[1].Code, set.Subjects[2].Code, set.Subjects[3].Code}
	if !reflect.DeepEqual(codes, []string{"C", "A", "B"}) {
		t.Fatalf("期望顺序 [C A B]，实际: %v", codes)
	}
	if got := Priorities(set.Subjects)[1:]; !reflect.DeepEqual(got, []int{9, 8, 7}) {
		t.Errorf("移动后期望 [9 8 7]，实际: %v", got)
	}
}

func TestReorder_Boundaries(t *testing.T) {
	set := SelectionSet{Subjects: []model.SelectedSubject{subj("A", 3, false), subj("B", 3, false)}}
	if ok, err := set.Reorder(0, -1); ok || err != nil {
		t.Errorf("首项上移应为空操作，实际: %v %v", ok, err)
	}
	if ok, err := set.Reorder(1, 1); ok || err != nil {
		t.Errorf("末项下移应为空操作，实际: %v %v", ok, err)
	}
	if ok, err := set.Reorder(5, 1); ok || err != nil {
		t.Errorf("越界下标应为空操作，实际: %v %v", ok, err)
	}
	if _, err := set.Reorder(0, 2); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("期望 ErrInvalidDirection，实际: %v", err)
	}
	if set.Subjects[0].Code != "A" {
		t.Error("空操作不应改变顺序")
	}
}

func TestWithPriorities_DoesNotMutate(t *testing.T) {
	in := []model.SelectedSubject{subj("A", 3, false)}
	out := WithPriorities(in)
	if in[0].Priority != 0 {
		t.Error("WithPriorities 不应修改入参")
	}
	if out[0].Priority != 10 {
		t.Errorf("期望优先级 10，实际: %d", out[0].Priority)
	}
}

// ── 学分 ──

func TestMinCreditsFor(t *testing.T) {
	for m := 0; m <= 300; m++ {
		if got, want := MinCreditsFor(m), m*2/3; got != want {
			t.Fatalf("MinCreditsFor(%d)=%d，期望 %d", m, got, want)
		}
	}
	big := int(^uint(0) >> 1)
	if got := MinCreditsFor(big); got <= 0 {
		t.Errorf("大数不应溢出，实际: %d", got)
	}
}

func TestCreditBudget_SetMax(t *testing.T) {
	var b CreditBudget
	if err := b.SetMax(" 18 "); err != nil {
		t.Fatal(err)
	}
	if *b.Max != 18 || *b.Min != 12 {
		t.Fatalf("期望 max=18 min=12，实际: %d %d", *b.Max, *b.Min)
	}

	for _, raw := range []string{"abc", "-1", "12.5", "1e3"} {
		if err := b.SetMax(raw); !errors.Is(err, ErrInvalidCredits) {
			t.Errorf("输入 %q 期望 ErrInvalidCredits，实际: %v", raw, err)
		}
		if *b.Max != 18 || *b.Min != 12 {
			t.Errorf("非法输入 %q 不应修改状态", raw)
		}
	}

	if err := b.SetMax("  "); err != nil {
		t.Fatal(err)
	}
	if b.Max != nil || b.Min != nil {
		t.Error("空输入应同时清空上下限")
	}

	if err := b.SetMax("0"); err != nil {
		t.Fatal(err)
	}
	if *b.Max != 0 || *b.Min != 0 {
		t.Error("0 为合法输入")
	}
}

// 场景 2：学分不足提示
func TestCreditBudget_EvaluateUnder(t *testing.T) {
	var b CreditBudget
	if err := b.SetMax("18"); err != nil {
		t.Fatal(err)
	}
	st := b.Evaluate([]model.SelectedSubject{subj("A", 3, false), subj("B", 3, false), subj("C", 3, false)})
	if st.State != CreditUnder || st.Deficit != 3 || st.Total != 9 {
		t.Errorf("期望 under/缺 3 学分，实际: %+v", st)
	}
	if st.ProgressPercent != 75 {
		t.Errorf("期望进度 75，实际: %v", st.ProgressPercent)
	}
}

func TestCreditBudget_EvaluateOverAndOK(t *testing.T) {
	var b CreditBudget
	_ = b.SetMax("6")
	over := b.Evaluate([]model.SelectedSubject{subj("A", 4, false), subj("B", 4, false)})
	if over.State != CreditOver || over.Excess != 2 || over.ProgressPercent != 100 {
		t.Errorf("期望 over/超 2 学分，实际: %+v", over)
	}
	ok := b.Evaluate([]model.SelectedSubject{subj("A", 5, false)})
	if ok.State != CreditOK {
		t.Errorf("期望 ok，实际: %+v", ok)
	}

	var unset CreditBudget
	if st := unset.Evaluate(nil); st.State != CreditOK || st.ProgressPercent != 0 {
		t.Errorf("未设置上限时应为 ok，实际: %+v", st)
	}
}

// ── 请求组装 ──

// 场景 1：空闲时间转换为槽位
func TestBuildSlots_Scenario(t *testing.T) {
	var g model.FreeTimeGrid
	_ = g.Set(model.DayWed, model.PeriodAfternoon, true)
	_ = g.Set(model.DayMon, model.PeriodMorning, true)

	got := BuildSlots(g)
	if !reflect.DeepEqual(got, []string{"T2_Sáng", "T4_Chiều"}) {
		t.Errorf("期望 [T2_Sáng T4_Chiều]，实际: %v", got)
	}
}

func TestBuildSlots_CountAndOrder(t *testing.T) {
	var empty model.FreeTimeGrid
	if got := BuildSlots(empty); got == nil || len(got) != 0 {
		t.Errorf("空网格应返回非 nil 空切片，实际: %#v", got)
	}

	var full model.FreeTimeGrid
	for _, d := range model.Days {
		for _, p := range model.Periods {
			_ = full.Set(d, p, true)
		}
	}
	slots := BuildSlots(full)
	if len(slots) != 21 {
		t.Fatalf("期望 21 个槽位，实际: %d", len(slots))
	}
	if slots[0] != "T2_Sáng" || slots[2] != "T2_Tối" || slots[20] != "CN_Tối" {
		t.Errorf("槽位顺序错误: %v", slots)
	}
}

func TestBuildPayload(t *testing.T) {
	if _, err := BuildPayload(nil, nil, model.DefaultConstraints()); !errors.Is(err, ErrNoSubjectsSelected) {
		t.Fatalf("期望 ErrNoSubjectsSelected，实际: %v", err)
	}

	subjects := []model.SelectedSubject{subj("A", 3, false), subj("B", 3, true)}
	req, err := BuildPayload(subjects, nil, model.DefaultConstraints())
	if err != nil {
		t.Fatal(err)
	}
	if req.Subjects[0].Priority != 10 || req.Subjects[1].Priority != 10 {
		t.Errorf("优先级计算错误: %+v", req.Subjects)
	}
	if !req.Subjects[1].IsRetake {
		t.Error("重修标记应透传")
	}

	b, _ := json.Marshal(req)
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["constraints"]) != "{}" {
		t.Errorf("constraints 应为 {}，实际: %s", raw["constraints"])
	}
	if string(raw["available_time_slots"]) != "[]" {
		t.Errorf("available_time_slots 应为 []，实际: %s", raw["available_time_slots"])
	}
	if _, ok := raw["additionalConstraints"]; !ok {
		t.Error("缺少 additionalConstraints 字段")
	}
}

// ── 结果解读 ──

func TestGroupByCell_StablePartition(t *testing.T) {
	items := []model.ScheduleItem{
		{Time: "T2_Sáng", Subject: "A"},
		{Time: "T3_Tối", Subject: "B"},
		{Time: "T2_Sáng", Subject: "C"},
	}
	cells := GroupByCell(items)

	total := 0
	for _, v := range cells {
		total += len(v)
	}
	if total != len(items) {
		t.Fatalf("分组后总数应为 %d，实际 %d", len(items), total)
	}
	if got := cells["T2_Sáng"]; len(got) != 2 || got[0].Subject != "A" || got[1].Subject != "C" {
		t.Errorf("组内顺序错误: %+v", got)
	}
	if _, ok := cells["T4_Sáng"]; ok {
		t.Error("空闲单元格不应出现在映射中")
	}
}

func TestBuildGrid(t *testing.T) {
	rows := BuildGrid(GroupByCell([]model.ScheduleItem{{Time: "CN_Chiều", Subject: "A"}}))
	if len(rows) != 3 {
		t.Fatalf("期望 3 行，实际 %d", len(rows))
	}
	if rows[1].Label != "Chiều" || rows[1].Start != "12:30" || rows[1].End != "16:15" {
		t.Errorf("第二行时段错误: %+v", rows[1])
	}
	if len(rows[1].Cells) != 7 || rows[1].Cells[6].Day != model.DaySun || len(rows[1].Cells[6].Items) != 1 {
		t.Errorf("CN 下午单元格错误: %+v", rows[1].Cells[6])
	}
	if rows[0].Cells[0].Items == nil {
		t.Error("空单元格应为非 nil 空切片")
	}
}

// 场景 5：冲突移除后学分不足，而提交前检查通过
func TestDiagnoseCredits_Scenario(t *testing.T) {
	a, b := subj("A", 3, false), subj("B", 3, false)
	minCredits := 5

	pre := CreditBudget{Min: &minCredits}.Evaluate([]model.SelectedSubject{a, b})
	if pre.State != CreditOK {
		t.Fatalf("提交前检查应通过，实际: %+v", pre)
	}

	d := DiagnoseCredits([]model.SelectedSubject{a, b}, []model.ConflictEntry{{Subject: b.Name, Reason: "trùng lịch"}}, &minCredits)
	if !d.Insufficient || d.ScheduledCredits != 3 || d.Deficit != 2 {
		t.Errorf("期望学分不足 3<5，实际: %+v", d)
	}
	if !reflect.DeepEqual(d.DroppedSubjects, []string{b.Name}) {
		t.Errorf("被移除课程错误: %v", d.DroppedSubjects)
	}
}

func TestDiagnoseCredits_NoMin(t *testing.T) {
	d := DiagnoseCredits([]model.SelectedSubject{subj("A", 3, false)}, nil, nil)
	if d.Insufficient || d.ScheduledCredits != 3 || d.MinCredits != 0 {
		t.Errorf("未设置最低学分时不应提示不足，实际: %+v", d)
	}
}

// ── 选课构造 ──

func TestBuildSubject_FromFirstSession(t *testing.T) {
	course := model.Course{Code: "INT1001", Name: "Lập trình", Credits: 4, Department: "CNTT"}
	sessions := []model.Session{
		{Code: "INT1001-G1", Name: "Lập trình G1", Credits: 0, StartTime: "12:30", EndTime: "16:15", Day: "T3"},
		{Code: "INT1001-G2"},
	}
	sub := BuildSubject(course, sessions, nil, true, testToday)
	if sub.Code != "INT1001-G1" || sub.OriginalCode != "INT1001" {
		t.Errorf("应使用第一个班组: %+v", sub)
	}
	if sub.Credits != 4 || sub.Instructor != "CNTT" || sub.Name != "INT1001-G1 - Lập trình G1" {
		t.Errorf("字段回退错误: %+v", sub)
	}
	if sub.StartDate != "2026-09-01" || sub.EndDate != "2026-11-30" {
		t.Errorf("日期回退错误: %s %s", sub.StartDate, sub.EndDate)
	}
	if !sub.IsRetake || sub.SubjectType != model.SubjectTypeTheory {
		t.Errorf("重修标记或课程类型错误: %+v", sub)
	}
}

func TestBuildSubject_FallbackOnLookupFailure(t *testing.T) {
	course := model.Course{Code: "MAT2002", Name: "Giải tích"}
	for _, tc := range []struct {
		name     string
		sessions []model.Session
		err      error
	}{
		{"空结果", nil, nil},
		{"查询失败", []model.Session{{Code: "X"}}, errors.New("timeout")},
	} {
		sub := BuildSubject(course, tc.sessions, tc.err, false, testToday)
		if sub.Code != "MAT2002" || sub.StartTime != "07:00" || sub.EndTime != "11:30" || sub.Credits != 3 {
			t.Errorf("%s: 默认窗口错误: %+v", tc.name, sub)
		}
	}
}

// ── 会话 ──

// 场景 3：班组码与原始码匹配同一门课
func TestSession_ToggleMatchesOriginalCode(t *testing.T) {
	s := NewSession("s1", "u1", testToday)
	toggleOn(t, s, model.Course{Code: "X-G1", Name: "X"}, nil)
	if s.Selection.Len() != 1 || s.Selection.Subjects[0].OriginalCode != "X" {
		t.Fatalf("期望选中 1 门原始码为 X 的课程，实际: %+v", s.Selection.Subjects)
	}

	ticket := s.BeginToggle(model.Course{Code: "X", Name: "X"})
	if ticket.Action != ToggleRemoved {
		t.Fatalf("期望 removed，实际: %s", ticket.Action)
	}
	if s.Selection.Len() != 0 {
		t.Errorf("期望选课为空，实际: %d", s.Selection.Len())
	}
}

func TestSession_ToggleDedupUnderSequences(t *testing.T) {
	s := NewSession("s1", "u1", testToday)
	courses := []model.Course{
		{Code: "A"}, {Code: "B-G2"}, {Code: "A-G1"}, {Code: "B"}, {Code: "C", OriginalCode: "C0"}, {Code: "C0"}, {Code: "A"},
	}
	for _, c := range courses {
		toggleOn(t, s, c, []model.Session{{Code: c.Code + "-G9"}})
		seen := map[string]bool{}
		for _, e := range s.Selection.Subjects {
			orig := entryOriginalCode(e)
			if seen[orig] {
				t.Fatalf("原始课程码 %s 重复: %+v", orig, s.Selection.Subjects)
			}
			seen[orig] = true
		}
	}
}

func TestSession_StaleResolutionDiscarded(t *testing.T) {
	s := NewSession("s1", "u1", testToday)
	course := model.Course{Code: "A"}

	first := s.BeginToggle(course)
	if first.Action != TogglePending {
		t.Fatalf("期望 pending，实际: %s", first.Action)
	}
	if second := s.BeginToggle(course); second.Action != ToggleCancelled {
		t.Fatalf("再次勾选应撤销解析，实际: %s", second.Action)
	}
	third := s.BeginToggle(course)

	if err := s.CompleteToggle("A", first.Token, subj("A", 3, false)); !errors.Is(err, ErrStaleResolution) {
		t.Fatalf("旧令牌期望 ErrStaleResolution，实际: %v", err)
	}
	if s.Selection.Len() != 0 {
		t.Fatal("过期解析结果不应被应用")
	}
	if err := s.CompleteToggle("A", third.Token, subj("A", 3, false)); err != nil {
		t.Fatalf("当前令牌应被接受: %v", err)
	}
	if s.Selection.Len() != 1 || s.IsPending("A") {
		t.Errorf("期望选中 1 门且无待解析，实际: %d %v", s.Selection.Len(), s.Pending)
	}
}

func TestSession_RetakeCapturedAtToggleOn(t *testing.T) {
	s := NewSession("s1", "u1", testToday)
	if err := s.SetTab(model.TabRetake); err != nil {
		t.Fatal(err)
	}
	toggleOn(t, s, model.Course{Code: "A"}, nil)
	_ = s.SetTab(model.TabCurrent)
	toggleOn(t, s, model.Course{Code: "B"}, nil)

	if !s.Selection.Subjects[0].IsRetake || s.Selection.Subjects[1].IsRetake {
		t.Errorf("重修标记应在勾选时确定: %+v", s.Selection.Subjects)
	}
	if err := s.SetTab("other"); !errors.Is(err, ErrInvalidTab) {
		t.Errorf("期望 ErrInvalidTab，实际: %v", err)
	}
}

func TestSession_ToggleFreeTime(t *testing.T) {
	s := NewSession("s1", "u1", testToday)
	if err := s.ToggleFreeTime(model.DayMon, model.PeriodMorning); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Slots(), []string{"T2_Sáng"}) {
		t.Errorf("槽位错误: %v", s.Slots())
	}
	if err := s.ToggleFreeTime("T9", model.PeriodMorning); !errors.Is(err, ErrInvalidFreeTimeCell) {
		t.Errorf("期望 ErrInvalidFreeTimeCell，实际: %v", err)
	}
}

func TestSession_GenerationGuard(t *testing.T) {
	s := NewSession("s1", "u1", testToday)
	now := testToday

	if _, err := s.BeginGeneration(now, time.Minute, "a0"); !errors.Is(err, ErrNoSubjectsSelected) {
		t.Fatalf("期望 ErrNoSubjectsSelected，实际: %v", err)
	}
	if s.PhaseAt(now) != PhaseIdle {
		t.Fatal("校验失败不应产生尝试")
	}

	toggleOn(t, s, model.Course{Code: "A"}, nil)
	_ = s.SetMaxCredits("3")

	req, err := s.BeginGeneration(now, time.Minute, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(req.Subjects) != 1 || req.Subjects[0].Priority != 10 {
		t.Errorf("请求内容错误: %+v", req.Subjects)
	}
	if _, err := s.BeginGeneration(now.Add(30*time.Second), time.Minute, "a2"); !errors.Is(err, ErrGenerationInProgress) {
		t.Fatalf("期望 ErrGenerationInProgress，实际: %v", err)
	}

	// 超过截止时间视为放弃
	later := now.Add(2 * time.Minute)
	if s.PhaseAt(later) != PhaseFailed {
		t.Errorf("超时尝试应视为 failed，实际: %s", s.PhaseAt(later))
	}
	if _, err := s.BeginGeneration(later, time.Minute, "a3"); err != nil {
		t.Fatalf("超时后应允许重新提交: %v", err)
	}
	if err := s.FinishGeneration("a1", model.ScheduleResult{}, later); !errors.Is(err, ErrStaleAttempt) {
		t.Errorf("旧尝试的结果期望 ErrStaleAttempt，实际: %v", err)
	}

	result := model.ScheduleResult{Schedule: []model.ScheduleItem{{Time: "T2_Sáng", Subject: "A - A"}}}
	if err := s.FinishGeneration("a3", result, later); err != nil {
		t.Fatal(err)
	}
	if s.PhaseAt(later) != PhaseSucceeded || len(s.CellMap()["T2_Sáng"]) != 1 {
		t.Errorf("成功结果记录错误: %+v", s.Attempt)
	}
	if d := s.Diagnosis(); d == nil || d.MinCredits != 2 || d.Insufficient {
		t.Errorf("诊断错误: %+v", d)
	}
}

func TestSession_FailureKeepsSelectionAndOutcome(t *testing.T) {
	s := NewSession("s1", "u1", testToday)
	toggleOn(t, s, model.Course{Code: "A"}, nil)

	_, _ = s.BeginGeneration(testToday, time.Minute, "a1")
	_ = s.FinishGeneration("a1", model.ScheduleResult{Cost: 1}, testToday)

	_, _ = s.BeginGeneration(testToday, time.Minute, "a2")
	if err := s.FailGeneration("a2", errors.New("optimizer down"), "detail", testToday); err != nil {
		t.Fatal(err)
	}
	if s.PhaseAt(testToday) != PhaseFailed || s.Attempt.Detail != "detail" {
		t.Errorf("失败状态记录错误: %+v", s.Attempt)
	}
	if s.Selection.Len() != 1 {
		t.Error("失败不应丢失选课")
	}
	if s.Outcome == nil || s.Outcome.AttemptID != "a1" {
		t.Error("失败不应覆盖上一次成功结果")
	}
	if _, err := s.BeginGeneration(testToday, time.Minute, "a3"); err != nil {
		t.Errorf("失败后应允许重新提交: %v", err)
	}
}

func TestSession_JSONRoundTrip(t *testing.T) {
	s := NewSession("s1", "u1", testToday)
	toggleOn(t, s, model.Course{Code: "A"}, nil)
	_ = s.ToggleFreeTime(model.DaySat, model.PeriodEvening)
	_ = s.SetMaxCredits("9")
	s.BeginToggle(model.Course{Code: "B"})

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var back SchedulingSession
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Selection.Len() != 1 || !back.FreeTime.IsFree(model.DaySat, model.PeriodEvening) || *back.Credits.Min != 6 {
		t.Errorf("反序列化后状态不一致: %+v", back)
	}
	if !back.IsPending("B") || back.Generation != s.Generation {
		t.Errorf("待解析令牌丢失: %+v", back.Pending)
	}
}
