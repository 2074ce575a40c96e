package service

import (
	"sort"
	"time"

	"github.com/rigo1357/saprotmon/internal/builder"
	"github.com/rigo1357/saprotmon/internal/dto"
	"github.com/rigo1357/saprotmon/internal/model"
)

// toSessionResponse 将会话聚合投影为视图，优先级按当前顺序实时计算
func toSessionResponse(s *builder.SchedulingSession, now time.Time) *dto.SessionResponse {
	pending := make([]string, 0, len(s.Pending))
	for code := range s.Pending {
		pending = append(pending, code)
	}
	sort.Strings(pending)

	return &dto.SessionResponse{
		ID:           s.ID,
		Semester:     s.StudyInfo.Semester,
		Major:        s.StudyInfo.Major,
		Tab:          s.Tab,
		MaxCredits:   s.Credits.Max,
		MinCredits:   s.Credits.Min,
		Subjects:     s.SubjectsWithPriorities(),
		Pending:      pending,
		CreditStatus: s.CreditStatus(),
		FreeTime:     s.FreeTime,
		Slots:        s.Slots(),
		Constraints:  s.Constraints,
		Generation:   toGenerationResponse(s, now),
		Version:      s.Version,
		CreatedAt:    formatTime(s.CreatedAt),
		UpdatedAt:    formatTime(s.UpdatedAt),
	}
}

func toGenerationResponse(s *builder.SchedulingSession, now time.Time) dto.GenerationResponse {
	g := dto.GenerationResponse{Phase: s.PhaseAt(now), HasResult: s.Outcome != nil}
	a := s.Attempt
	if a == nil {
		return g
	}
	g.AttemptID = a.ID
	g.StartedAt = formatTime(a.StartedAt)
	g.Deadline = formatTime(a.Deadline)
	if a.FinishedAt != nil {
		g.FinishedAt = formatTime(*a.FinishedAt)
	}
	g.Error = a.Error
	g.Detail = a.Detail
	if g.Phase == builder.PhaseFailed && a.Phase == builder.PhaseSubmitting {
		g.Error = "排课请求超时"
	}
	return g
}

// toResultResponse 将最近一次成功结果投影为视图
func toResultResponse(s *builder.SchedulingSession) (*dto.ScheduleResultResponse, error) {
	o := s.Outcome
	if o == nil {
		return nil, ErrNoScheduleResult
	}
	cells := s.CellMap()
	resp := &dto.ScheduleResultResponse{
		AttemptID:           o.AttemptID,
		Schedule:            o.Result.Schedule,
		Cost:                o.Result.Cost,
		Cells:               cells,
		Grid:                builder.BuildGrid(cells),
		Conflicts:           o.Result.RemovedConflicts,
		AlternativeSessions: o.Result.AlternativeSessions,
		PreCheck:            o.PreCheck,
		Diagnosis:           *s.Diagnosis(),
		GeneratedAt:         formatTime(o.GeneratedAt),
	}
	if resp.AlternativeSessions == nil {
		resp.AlternativeSessions = []model.AlternativeSession{}
	}
	return resp, nil
}
