package builder

import (
	"fmt"
	"time"

	"github.com/rigo1357/saprotmon/internal/model"
)

// StudyInfo 学期与专业，决定目录查询范围
type StudyInfo struct {
	Semester string `json:"semester"`
	Major    string `json:"major"`
}

// Phase 排课生成阶段
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// GenerationAttempt 一次提交优化器的尝试
// Subjects / MinCredits / PreCheck 为提交时的快照，结果诊断以此为准
type GenerationAttempt struct {
	ID         string                  `json:"id"`
	Phase      Phase                   `json:"phase"`
	StartedAt  time.Time               `json:"started_at"`
	Deadline   time.Time               `json:"deadline"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Detail     string                  `json:"detail,omitempty"`
	Subjects   []model.SelectedSubject `json:"subjects"`
	MinCredits *int                    `json:"min_credits,omitempty"`
	PreCheck   CreditStatus            `json:"pre_check"`
}

// ScheduleOutcome 最近一次成功的排课结果
// 失败的尝试不会覆盖它
type ScheduleOutcome struct {
	AttemptID   string                  `json:"attempt_id"`
	Result      model.ScheduleResult    `json:"result"`
	Subjects    []model.SelectedSubject `json:"subjects"`
	MinCredits  *int                    `json:"min_credits,omitempty"`
	PreCheck    CreditStatus            `json:"pre_check"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// SchedulingSession 一张排课表单的全部状态
//
// 所有迁移函数都是同步的纯状态修改；调用方负责加载、保存与并发控制。
type SchedulingSession struct {
	ID          string              `json:"id"`
	OwnerID     string              `json:"owner_id"`
	StudyInfo   StudyInfo           `json:"study_info"`
	Credits     CreditBudget        `json:"credits"`
	Tab         model.Tab           `json:"tab"`
	Selection   SelectionSet        `json:"selection"`
	Pending     map[string]uint64   `json:"pending,omitempty"`
	Generation  uint64              `json:"generation"`
	FreeTime    model.FreeTimeGrid  `json:"free_time"`
	Constraints model.ConstraintSet `json:"constraints"`
	Attempt     *GenerationAttempt  `json:"attempt,omitempty"`
	Outcome     *ScheduleOutcome    `json:"outcome,omitempty"`
	model.VersionedState
}

// NewSession 创建空白会话
func NewSession(id, ownerID string, now time.Time) *SchedulingSession {
	return &SchedulingSession{
		ID:          id,
		OwnerID:     ownerID,
		Tab:         model.TabCurrent,
		Selection:   SelectionSet{Subjects: []model.SelectedSubject{}},
		Pending:     map[string]uint64{},
		Constraints: model.DefaultConstraints(),
		VersionedState: model.VersionedState{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// ── 表单字段 ──

// SetStudyInfo 更新学期与专业
func (s *SchedulingSession) SetStudyInfo(semester, major string) {
	s.StudyInfo = StudyInfo{Semester: semester, Major: major}
}

// SetMaxCredits 设置最大学分，解析失败时状态不变
func (s *SchedulingSession) SetMaxCredits(raw string) error {
	return s.Credits.SetMax(raw)
}

// SetTab 切换选课标签；只影响之后勾选的课程
func (s *SchedulingSession) SetTab(tab model.Tab) error {
	if !tab.Valid() {
		return ErrInvalidTab
	}
	s.Tab = tab
	return nil
}

// SetFreeTime 整体替换空闲时间网格
func (s *SchedulingSession) SetFreeTime(grid model.FreeTimeGrid) {
	s.FreeTime = grid
}

// ToggleFreeTime 翻转单个空闲时间单元格
func (s *SchedulingSession) ToggleFreeTime(day model.DayTag, period model.Period) error {
	if err := s.FreeTime.Toggle(day, period); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFreeTimeCell, err)
	}
	return nil
}

// SetConstraints 替换附加约束
func (s *SchedulingSession) SetConstraints(c model.ConstraintSet) {
	s.Constraints = c
}

// ── 选课（两阶段勾选） ──

// ToggleAction BeginToggle 的结果类型
type ToggleAction string

const (
	// ToggleRemoved 已选课程被取消
	ToggleRemoved ToggleAction = "removed"
	// ToggleCancelled 正在解析的课程被取消
	ToggleCancelled ToggleAction = "cancelled"
	// TogglePending 已登记解析令牌，等待 CompleteToggle
	TogglePending ToggleAction = "pending"
)

// ToggleTicket 勾选操作的第一阶段结果
type ToggleTicket struct {
	Action   ToggleAction `json:"action"`
	Course   model.Course `json:"course"`
	Token    uint64       `json:"token,omitempty"`
	IsRetake bool         `json:"is_retake"`
	Semester string       `json:"semester"`
}

// BeginToggle 勾选 / 取消勾选课程的第一阶段
//
//   - 课程正在解析中：撤销令牌
//   - 课程已选：删除全部匹配条目
//   - 否则登记新的解析令牌，调用方解析班组后调用 CompleteToggle
func (s *SchedulingSession) BeginToggle(course model.Course) ToggleTicket {
	course.Normalize()
	ticket := ToggleTicket{Course: course, Semester: s.StudyInfo.Semester}

	if s.Pending == nil {
		s.Pending = map[string]uint64{}
	}
	if _, ok := s.Pending[course.OriginalCode]; ok {
		delete(s.Pending, course.OriginalCode)
		ticket.Action = ToggleCancelled
		return ticket
	}
	if s.Selection.remove(course) > 0 {
		ticket.Action = ToggleRemoved
		return ticket
	}

	s.Generation++
	s.Pending[course.OriginalCode] = s.Generation
	ticket.Action = TogglePending
	ticket.Token = s.Generation
	ticket.IsRetake = s.Tab == model.TabRetake
	return ticket
}

// CompleteToggle 勾选操作的第二阶段
// 仅当令牌仍然有效时追加课程，否则返回 ErrStaleResolution 且状态不变
func (s *SchedulingSession) CompleteToggle(originalCode string, token uint64, subject model.SelectedSubject) error {
	current, ok := s.Pending[originalCode]
	if !ok || current != token {
		return ErrStaleResolution
	}
	delete(s.Pending, originalCode)
	if subject.OriginalCode == "" {
		subject.OriginalCode = originalCode
	}
	if !s.Selection.add(subject) {
		return ErrStaleResolution
	}
	return nil
}

// IsPending 课程是否正在解析
func (s *SchedulingSession) IsPending(originalCode string) bool {
	_, ok := s.Pending[originalCode]
	return ok
}

// RemoveSubject 按原始课程码取消选择
func (s *SchedulingSession) RemoveSubject(originalCode string) bool {
	delete(s.Pending, originalCode)
	return s.Selection.remove(model.Course{Code: originalCode, OriginalCode: originalCode}) > 0
}

// Reorder 调整课程顺序
func (s *SchedulingSession) Reorder(index, direction int) (bool, error) {
	return s.Selection.Reorder(index, direction)
}

// ── 派生投影 ──

// CreditStatus 提交前学分检查
func (s *SchedulingSession) CreditStatus() CreditStatus {
	return s.Credits.Evaluate(s.Selection.Subjects)
}

// SubjectsWithPriorities 附带实时优先级的已选课程
func (s *SchedulingSession) SubjectsWithPriorities() []model.SelectedSubject {
	return WithPriorities(s.Selection.Subjects)
}

// Slots 当前空闲槽位
func (s *SchedulingSession) Slots() []string {
	return BuildSlots(s.FreeTime)
}

// AssembleRequest 组装优化器请求
func (s *SchedulingSession) AssembleRequest() (ScheduleRequest, error) {
	return BuildPayload(s.Selection.Subjects, s.Slots(), s.Constraints)
}

// CellMap 最近一次成功结果的单元格映射；无结果时返回 nil
func (s *SchedulingSession) CellMap() map[string][]model.ScheduleItem {
	if s.Outcome == nil {
		return nil
	}
	return GroupByCell(s.Outcome.Result.Schedule)
}

// Diagnosis 最近一次成功结果的学分诊断；无结果时返回 nil
func (s *SchedulingSession) Diagnosis() *CreditDiagnosis {
	if s.Outcome == nil {
		return nil
	}
	d := DiagnoseCredits(s.Outcome.Subjects, s.Outcome.Result.RemovedConflicts, s.Outcome.MinCredits)
	return &d
}

// ── 生成状态机 ──

// PhaseAt 当前生成阶段；超过截止时间仍在 submitting 的尝试视为失败
func (s *SchedulingSession) PhaseAt(now time.Time) Phase {
	if s.Attempt == nil {
		return PhaseIdle
	}
	if s.Attempt.Phase == PhaseSubmitting && !now.Before(s.Attempt.Deadline) {
		return PhaseFailed
	}
	return s.Attempt.Phase
}

// BeginGeneration 开始一次提交
// 已有未超时的尝试时返回 ErrGenerationInProgress；未选课程时返回 ErrNoSubjectsSelected
func (s *SchedulingSession) BeginGeneration(now time.Time, timeout time.Duration, attemptID string) (ScheduleRequest, error) {
	if s.PhaseAt(now) == PhaseSubmitting {
		return ScheduleRequest{}, ErrGenerationInProgress
	}
	req, err := s.AssembleRequest()
	if err != nil {
		return ScheduleRequest{}, err
	}

	var minCredits *int
	if s.Credits.Min != nil {
		v := *s.Credits.Min
		minCredits = &v
	}
	s.Attempt = &GenerationAttempt{
		ID:         attemptID,
		Phase:      PhaseSubmitting,
		StartedAt:  now,
		Deadline:   now.Add(timeout),
		Subjects:   req.Subjects,
		MinCredits: minCredits,
		PreCheck:   s.CreditStatus(),
	}
	return req, nil
}

func (s *SchedulingSession) activeAttempt(attemptID string) (*GenerationAttempt, error) {
	if s.Attempt == nil || s.Attempt.ID != attemptID || s.Attempt.Phase != PhaseSubmitting {
		return nil, ErrStaleAttempt
	}
	return s.Attempt, nil
}

// FinishGeneration 记录成功结果
func (s *SchedulingSession) FinishGeneration(attemptID string, result model.ScheduleResult, now time.Time) error {
	a, err := s.activeAttempt(attemptID)
	if err != nil {
		return err
	}
	if result.Schedule == nil {
		result.Schedule = []model.ScheduleItem{}
	}
	if result.RemovedConflicts == nil {
		result.RemovedConflicts = []model.ConflictEntry{}
	}
	a.Phase = PhaseSucceeded
	a.FinishedAt = &now
	s.Outcome = &ScheduleOutcome{
		AttemptID:   a.ID,
		Result:      result,
		Subjects:    a.Subjects,
		MinCredits:  a.MinCredits,
		PreCheck:    a.PreCheck,
		GeneratedAt: now,
	}
	return nil
}

// FailGeneration 记录失败；选课与上一次成功结果保持不变
func (s *SchedulingSession) FailGeneration(attemptID string, cause error, detail string, now time.Time) error {
	a, err := s.activeAttempt(attemptID)
	if err != nil {
		return err
	}
	a.Phase = PhaseFailed
	a.FinishedAt = &now
	if cause != nil {
		a.Error = cause.Error()
	}
	a.Detail = detail
	return nil
}
